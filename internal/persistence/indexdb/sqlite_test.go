package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"hexopolis.gg/internal/sim/engine"
	"hexopolis.gg/internal/sim/tuning"
)

func TestIndexWritesAndFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := idx.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("tuning: %v", err)
	}
	for i := uint64(1); i <= 5; i++ {
		ok := i != 3
		code := ""
		if !ok {
			code = "E_INSUFFICIENT"
		}
		if err := idx.WriteOp(engine.OpLogEntry{
			Seq: i, Now: 1000 + int64(i), Account: "bob",
			Type: "BUY_TILE", OK: ok, Code: code, Digest: "d",
		}); err != nil {
			t.Fatalf("write op: %v", err)
		}
	}
	if err := idx.WriteTileBought(engine.TileBoughtEntry{
		Seq: 1, TileID: "abc123", X: 0, Y: 1, Buyer: "bob", Price: 125000,
	}); err != nil {
		t.Fatalf("write bought: %v", err)
	}
	idx.RecordPrice(1000, "WOOD", 2_000_000, 1_000_000, 1_000_000)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var ops, failed, bought, prices int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ops`).Scan(&ops); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM ops WHERE ok=0 AND code='E_INSUFFICIENT'`).Scan(&failed); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM tiles_bought`).Scan(&bought); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM price_history`).Scan(&prices); err != nil {
		t.Fatal(err)
	}
	if ops != 5 || failed != 1 || bought != 1 || prices != 1 {
		t.Fatalf("rows: ops=%d failed=%d bought=%d prices=%d", ops, failed, bought, prices)
	}

	var digest string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='tuning_digest'`).Scan(&digest); err != nil {
		t.Fatal(err)
	}
	if digest != tuning.Defaults().Digest() {
		t.Fatalf("tuning digest %q", digest)
	}
}

func TestWriteAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	if err := idx.WriteOp(engine.OpLogEntry{Seq: 1}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	idx.RecordPrice(1, "WOOD", 1, 1, 1)
}
