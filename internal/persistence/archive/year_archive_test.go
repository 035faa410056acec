package archive

import (
	"os"
	"path/filepath"
	"testing"

	"hexopolis.gg/internal/sim/engine"
	"hexopolis.gg/internal/sim/tuning"
)

func TestArchiveYearSnapshot(t *testing.T) {
	tune := tuning.Defaults()
	instanceDir := filepath.Join(t.TempDir(), "hexopolis_1")

	src := filepath.Join(instanceDir, "snapshots", "42.snap.zst")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := []byte("dummy")
	if err := os.WriteFile(src, want, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	state := engine.StateV1{Version: 1, InstanceID: tune.InstanceID, OpSeq: 42}
	yearLen := tune.Calendar.WeekLengthS * int64(tune.Calendar.TotalWeeks)

	// Mid year one: nothing to archive yet.
	_, _, ok, err := ArchiveYearSnapshot(instanceDir, src, state, "d1", tune.Calendar.StartUnix+yearLen/2, tune)
	if err != nil || ok {
		t.Fatalf("mid-year archive: ok=%v err=%v", ok, err)
	}

	// Year two has begun: the year-one snapshot archives once.
	now := tune.Calendar.StartUnix + yearLen + 3600
	year, path, ok, err := ArchiveYearSnapshot(instanceDir, src, state, "d1", now, tune)
	if err != nil || !ok {
		t.Fatalf("archive: ok=%v err=%v", ok, err)
	}
	if year != 1 {
		t.Fatalf("year=%d want 1", year)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != string(want) {
		t.Fatalf("archived content: %q err=%v", got, err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "meta.json")); err != nil {
		t.Fatalf("meta.json missing: %v", err)
	}

	// Idempotent within the same year.
	_, _, ok, err = ArchiveYearSnapshot(instanceDir, src, state, "d1", now+60, tune)
	if err != nil || ok {
		t.Fatalf("repeat archive: ok=%v err=%v", ok, err)
	}
}
