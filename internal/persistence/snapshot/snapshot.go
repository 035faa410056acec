// Package snapshot persists full engine state to disk: a zstd stream holding
// one JSON header line (for quick inspection with zstdcat|head) followed by
// the gob body.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"hexopolis.gg/internal/sim/engine"
)

type Header struct {
	Version    int    `json:"version"`
	InstanceID string `json:"instance_id"`
	OpSeq      uint64 `json:"op_seq"`
}

func Write(path string, state engine.StateV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(Header{
		Version:    state.Version,
		InstanceID: state.InstanceID,
		OpSeq:      state.OpSeq,
	})
	if _, err := bw.Write(hb); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = f.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&state); err != nil {
		_ = f.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func Read(path string) (engine.StateV1, error) {
	var state engine.StateV1
	f, err := os.Open(path)
	if err != nil {
		return state, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return state, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; the gob body is authoritative.
	if _, err := br.ReadBytes('\n'); err != nil {
		return state, err
	}
	if err := gob.NewDecoder(br).Decode(&state); err != nil {
		return state, fmt.Errorf("gob decode: %w", err)
	}
	return state, nil
}
