// Package archive keeps one snapshot per completed calendar year under
// instanceDir/archives/, so an instance's full economic history survives
// snapshot rotation.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"hexopolis.gg/internal/sim/engine"
	"hexopolis.gg/internal/sim/tuning"
)

type YearArchiveMeta struct {
	Year      int    `json:"year"`
	OpSeq     uint64 `json:"op_seq"`
	Digest    string `json:"digest"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// ArchiveYearSnapshot copies a snapshot into `instanceDir/archives/year_<NNN>/`
// when `now` has entered a later calendar year than any existing archive.
// Years count full totalWeeks cycles since the calendar start. Returns
// archived=false when the year is still open or already archived.
func ArchiveYearSnapshot(instanceDir, snapshotPath string, state engine.StateV1, digest string, now int64, tune tuning.Tuning) (year int, archivedPath string, archived bool, err error) {
	cal := tune.Calendar
	yearLen := cal.WeekLengthS * int64(cal.TotalWeeks)
	if yearLen <= 0 || now <= cal.StartUnix {
		return 0, "", false, nil
	}
	// Year N is archivable once year N+1 has begun.
	year = int((now - cal.StartUnix) / yearLen)
	if year <= 0 {
		return 0, "", false, nil
	}

	archiveDir := filepath.Join(instanceDir, "archives", fmt.Sprintf("year_%03d", year))
	if _, statErr := os.Stat(filepath.Join(archiveDir, "meta.json")); statErr == nil {
		return 0, "", false, nil
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := YearArchiveMeta{
		Year:      year,
		OpSeq:     state.OpSeq,
		Digest:    digest,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, merr := json.MarshalIndent(meta, "", "  "); merr == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return year, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
