// Package oplog is the durable command journal: one JSONL entry per applied
// instant, zstd-compressed, rotated hourly. The replay verifier re-applies
// these entries against a fresh engine and compares digests.
package oplog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"hexopolis.gg/internal/sim/engine"
)

type jsonlZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func newJSONLZstdWriter(baseDir, prefix string) *jsonlZstdWriter {
	return &jsonlZstdWriter{baseDir: baseDir, prefix: prefix}
}

func (w *jsonlZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *jsonlZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonlZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *jsonlZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *jsonlZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Writer journals applied instants for one instance directory.
type Writer struct{ w *jsonlZstdWriter }

func NewWriter(instanceDir string) *Writer {
	return &Writer{w: newJSONLZstdWriter(filepath.Join(instanceDir, "ops"), "ops")}
}

func (l *Writer) WriteOp(entry engine.OpLogEntry) error { return l.w.Write(entry) }
func (l *Writer) Close() error                          { return l.w.Close() }

// ReadAll streams every journaled op under instanceDir in seq order to fn.
// Files sort lexically by hour, entries inside a file are already ordered.
func ReadAll(instanceDir string, fn func(engine.OpLogEntry) error) error {
	dir := filepath.Join(instanceDir, "ops")
	matches, err := filepath.Glob(filepath.Join(dir, "ops-*.jsonl.zst"))
	if err != nil {
		return err
	}
	sort.Strings(matches)
	for _, path := range matches {
		if err := readFile(path, fn); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func readFile(path string, fn func(engine.OpLogEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for sc.Scan() {
		var entry engine.OpLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return sc.Err()
}
