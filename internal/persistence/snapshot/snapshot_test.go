package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"hexopolis.gg/internal/sim/engine"
	"hexopolis.gg/internal/sim/tuning"
)

func TestWriteReadRoundTrip(t *testing.T) {
	tune := tuning.Defaults()
	eng := engine.New(tune, "ADMIN")
	if err := eng.Initialize("ADMIN", tune.Calendar.StartUnix); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	go eng.Run()
	defer eng.Stop()

	state := eng.ExportState()
	digest := engine.DigestOf(state)

	path := filepath.Join(t.TempDir(), "snapshots", "000000000000.snap.zst")
	if err := Write(path, state); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.InstanceID != state.InstanceID || got.OpSeq != state.OpSeq {
		t.Fatalf("header fields: got %s/%d, want %s/%d", got.InstanceID, got.OpSeq, state.InstanceID, state.OpSeq)
	}

	// The decoded state must boot a second engine that exports the same
	// canonical digest.
	eng2 := engine.New(tune, "ADMIN")
	if err := eng2.ImportState(got); err != nil {
		t.Fatalf("import: %v", err)
	}
	go eng2.Run()
	defer eng2.Stop()
	if d := eng2.Digest(); d != digest {
		t.Fatalf("digest drift through snapshot: got %s, want %s", d, digest)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "absent.snap.zst")); err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}

func TestWriteIsAtomic(t *testing.T) {
	tune := tuning.Defaults()
	eng := engine.New(tune, "ADMIN")
	if err := eng.Initialize("ADMIN", time.Now().Unix()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	go eng.Run()
	defer eng.Stop()

	dir := t.TempDir()
	path := filepath.Join(dir, "s.snap.zst")
	if err := Write(path, eng.ExportState()); err != nil {
		t.Fatalf("write: %v", err)
	}
	// No .tmp leftover after a successful write.
	if m, _ := filepath.Glob(filepath.Join(dir, "*.tmp")); len(m) != 0 {
		t.Fatalf("tmp files left behind: %v", m)
	}
}
