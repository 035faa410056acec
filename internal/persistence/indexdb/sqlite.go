// Package indexdb maintains the queryable read model: applied ops, the
// first-purchase ledger, sampled market prices and snapshot records, in a
// single-writer sqlite database. Writes are queued and batched off the
// engine loop; when the queue falls behind, entries are dropped here and the
// compressed op journal stays the source of truth.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"hexopolis.gg/internal/sim/engine"
	"hexopolis.gg/internal/sim/tuning"
)

// Batching knobs for the writer goroutine. A batch commits on whichever
// limit trips first.
const (
	batchSize = 2000
	batchWait = 2 * time.Second
	queueSize = 65536
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqOp reqKind = iota + 1
	reqTileBought
	reqPrice
	reqSnapshot
)

type req struct {
	kind     reqKind
	op       engine.OpLogEntry
	bought   engine.TileBoughtEntry
	price    priceRow
	snapshot snapshotRow
}

type priceRow struct {
	Now      int64
	Resource string
	Price    uint64
	Supply   uint64
	Funds    uint64
}

type snapshotRow struct {
	OpSeq      uint64
	Path       string
	Tiles      int
	Digest     string
	RecordedAt string
}

var schemaStmts = []string{
	// WAL suits the append-heavy workload; NORMAL durability is fine for a
	// rebuildable index.
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA busy_timeout=5000;",
	"PRAGMA temp_store=MEMORY;",
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS ops (
		seq INTEGER PRIMARY KEY,
		now INTEGER NOT NULL,
		account TEXT NOT NULL,
		type TEXT NOT NULL,
		ok INTEGER NOT NULL,
		code TEXT,
		digest TEXT NOT NULL,
		raw_json TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_ops_account ON ops(account, seq);`,
	`CREATE TABLE IF NOT EXISTS tiles_bought (
		seq INTEGER PRIMARY KEY,
		tile_id TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		buyer TEXT NOT NULL,
		price INTEGER NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tiles_bought_tile ON tiles_bought(tile_id);`,
	`CREATE TABLE IF NOT EXISTS price_history (
		now INTEGER NOT NULL,
		resource TEXT NOT NULL,
		price INTEGER NOT NULL,
		supply INTEGER NOT NULL,
		funds INTEGER NOT NULL,
		PRIMARY KEY (now, resource)
	);`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		op_seq INTEGER PRIMARY KEY,
		path TEXT NOT NULL,
		tiles INTEGER NOT NULL,
		digest TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);`,
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range schemaStmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	s := &SQLiteIndex{
		db: db,
		// Sized so a burst of ACT batches never stalls the engine loop.
		ch: make(chan req, queueSize),
	}
	s.wg.Add(1)
	go s.writer()
	return s, nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// enqueue drops on a full queue rather than blocking; the journal is the
// durable record, this table is a view.
func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
	}
}

func (s *SQLiteIndex) WriteOp(entry engine.OpLogEntry) error {
	s.enqueue(req{kind: reqOp, op: entry})
	return nil
}

func (s *SQLiteIndex) WriteTileBought(entry engine.TileBoughtEntry) error {
	s.enqueue(req{kind: reqTileBought, bought: entry})
	return nil
}

// RecordPrice samples one resource quote; the server calls this on a timer.
func (s *SQLiteIndex) RecordPrice(now int64, resource string, price, supply, funds uint64) {
	s.enqueue(req{kind: reqPrice, price: priceRow{
		Now: now, Resource: resource, Price: price, Supply: supply, Funds: funds,
	}})
}

func (s *SQLiteIndex) RecordSnapshot(path string, state engine.StateV1, digest string) {
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		OpSeq:      state.OpSeq,
		Path:       path,
		Tiles:      len(state.Tiles),
		Digest:     digest,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}})
}

// UpsertTuning stores the effective tuning next to the data it indexed.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, kv := range [][2]string{
		{"schema_version", "1"},
		{"tuning_digest", tune.Digest()},
		{"tuning_json", string(b)},
	} {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// batch wraps one open write transaction and its commit bookkeeping.
type batch struct {
	db    *sql.DB
	tx    *sql.Tx
	rows  int
	since time.Time
}

func (b *batch) ensure() bool {
	if b.tx != nil {
		return true
	}
	tx, err := b.db.BeginTx(context.Background(), nil)
	if err != nil {
		// sqlite is briefly locked; back off and let the queue absorb it.
		time.Sleep(50 * time.Millisecond)
		return false
	}
	b.tx, b.rows, b.since = tx, 0, time.Now()
	return true
}

func (b *batch) flush() {
	if b.tx == nil {
		return
	}
	_ = b.tx.Commit()
	b.tx = nil
}

func (b *batch) abort() {
	if b.tx == nil {
		return
	}
	_ = b.tx.Rollback()
	b.tx = nil
}

func (s *SQLiteIndex) writer() {
	defer s.wg.Done()

	b := batch{db: s.db}
	for r := range s.ch {
		if !b.ensure() {
			continue
		}
		if err := insertRow(b.tx, r); err != nil {
			b.abort()
			continue
		}
		b.rows++
		if b.rows >= batchSize || time.Since(b.since) >= batchWait {
			b.flush()
		}
	}
	b.flush()
}

func insertRow(tx *sql.Tx, r req) error {
	switch r.kind {
	case reqOp:
		raw, _ := json.Marshal(r.op)
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO ops(seq,now,account,type,ok,code,digest,raw_json) VALUES(?,?,?,?,?,?,?,?)`,
			int64(r.op.Seq), r.op.Now, r.op.Account, r.op.Type,
			boolInt(r.op.OK), r.op.Code, r.op.Digest, string(raw))
		return err
	case reqTileBought:
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO tiles_bought(seq,tile_id,x,y,buyer,price) VALUES(?,?,?,?,?,?)`,
			int64(r.bought.Seq), r.bought.TileID, r.bought.X, r.bought.Y,
			r.bought.Buyer, int64(r.bought.Price))
		return err
	case reqPrice:
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO price_history(now,resource,price,supply,funds) VALUES(?,?,?,?,?)`,
			r.price.Now, r.price.Resource, int64(r.price.Price),
			int64(r.price.Supply), int64(r.price.Funds))
		return err
	case reqSnapshot:
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO snapshots(op_seq,path,tiles,digest,recorded_at) VALUES(?,?,?,?,?)`,
			int64(r.snapshot.OpSeq), r.snapshot.Path, r.snapshot.Tiles,
			r.snapshot.Digest, r.snapshot.RecordedAt)
		return err
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
