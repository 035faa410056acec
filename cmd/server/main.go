package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"hexopolis.gg/internal/logs"
	"hexopolis.gg/internal/persistence/archive"
	"hexopolis.gg/internal/persistence/indexdb"
	"hexopolis.gg/internal/persistence/oplog"
	"hexopolis.gg/internal/persistence/snapshot"
	"hexopolis.gg/internal/sim/engine"
	"hexopolis.gg/internal/sim/tuning"
	"hexopolis.gg/internal/transport/observer"
	"hexopolis.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		schemaDir  = flag.String("schemas", "./schemas", "wire schema directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		creator    = flag.String("creator", "ADMIN", "creator account (init + fee authority)")
		logLevel   = flag.String("log_level", "info", "debug/info/warn/error")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "load tuning: %v\n", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	instanceDir := filepath.Join(*dataDir, "instances", tune.InstanceID)
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "data dir: %v\n", err)
		os.Exit(1)
	}

	logger := logs.New("server", logs.Config{
		Level:      *logLevel,
		FilePath:   filepath.Join(instanceDir, "logs", "server.log"),
		MaxSizeMB:  128,
		MaxBackups: 8,
		MaxAgeDays: 30,
		Compress:   true,
	})
	defer func() { _ = logger.Sync() }()

	if err == nil {
		logger.Infow("tuning loaded", "path", tp, "digest", tune.Digest())
	} else {
		logger.Warnw("tuning not found, using defaults", "path", tp)
	}

	// Read-model index (droppable; the op journal is the durable record).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(instanceDir, "index", "econ.sqlite"))
		if err != nil {
			logger.Fatalw("open index", "err", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Warnw("index: upsert tuning", "err", err)
		}
	}

	mirror, err := buildMirrorRuntime(instanceDir, logger)
	if err != nil {
		logger.Fatalw("init s3 mirror", "err", err)
	}
	defer mirror.Close()

	eng := engine.New(tune, engine.Address(*creator))
	eng.SetLogger(logger.Named("engine"))

	journal := oplog.NewWriter(instanceDir)
	defer journal.Close()
	eng.SetOpLogger(fanOpLogger{journal: journal, idx: idx})

	// Boot: resume from a snapshot when one exists, otherwise bootstrap the
	// genesis state.
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(instanceDir)
	}
	freshBoot := snapshotToLoad == ""
	if snapshotToLoad != "" {
		state, err := snapshot.Read(snapshotToLoad)
		if err != nil {
			logger.Fatalw("read snapshot", "path", snapshotToLoad, "err", err)
		}
		if err := eng.ImportState(state); err != nil {
			logger.Fatalw("import snapshot", "path", snapshotToLoad, "err", err)
		}
		logger.Infow("resumed", "snapshot", filepath.Base(snapshotToLoad), "op_seq", state.OpSeq)
	} else {
		if err := eng.Initialize(engine.Address(*creator), time.Now().Unix()); err != nil {
			logger.Fatalw("initialize", "err", err)
		}
		logger.Infow("fresh instance", "instance", tune.InstanceID)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go eng.Run()
	defer eng.Stop()

	saveSnapshot := func(final bool) {
		state := eng.ExportState()
		digest := engine.DigestOf(state)
		path := filepath.Join(instanceDir, "snapshots", fmt.Sprintf("%012d.snap.zst", state.OpSeq))
		if err := snapshot.Write(path, state); err != nil {
			logger.Errorw("snapshot write", "err", err)
			return
		}
		logger.Infow("snapshot written", "path", filepath.Base(path), "op_seq", state.OpSeq, "final", final)
		mirror.Enqueue(path)
		if idx != nil {
			idx.RecordSnapshot(path, state, digest)
		}

		now := time.Now().Unix()
		if _, archivedPath, ok, err := archive.ArchiveYearSnapshot(instanceDir, path, state, digest, now, tune); err != nil {
			logger.Errorw("year archive", "err", err)
		} else if ok {
			logger.Infow("year archived", "path", archivedPath)
			mirror.Enqueue(archivedPath)
			mirror.EnqueueIfExists(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
		}
	}

	// The seq-0 snapshot is the replay base for the whole journal.
	if freshBoot {
		saveSnapshot(false)
	}

	// Snapshot + price-history loop.
	go func() {
		every := time.Duration(tune.Server.SnapshotEveryS) * time.Second
		if every <= 0 {
			every = 5 * time.Minute
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				saveSnapshot(false)
				if idx != nil {
					now := time.Now().Unix()
					mv := eng.MarketInfo()
					for _, q := range mv.Resources {
						idx.RecordPrice(now, q.Symbol, q.Price, q.Supply, q.Funds)
					}
				}
			}
		}
	}()

	mux := http.NewServeMux()
	observer.NewServer(eng, logger.Named("query")).Register(mux)

	wsSrv, err := ws.NewServer(eng, *schemaDir, logger.Named("ws"))
	if err != nil {
		logger.Fatalw("compile schemas", "err", err)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	if envBool("HEX_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Infow("listening", "addr", *addr, "instance", tune.InstanceID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalw("serve", "err", err)
	}

	// Connections are closed; the loop is still live for the final export.
	saveSnapshot(true)
}

// fanOpLogger feeds the durable journal first, then the droppable index.
type fanOpLogger struct {
	journal *oplog.Writer
	idx     *indexdb.SQLiteIndex
}

func (f fanOpLogger) WriteOp(entry engine.OpLogEntry) error {
	err := f.journal.WriteOp(entry)
	if f.idx != nil {
		_ = f.idx.WriteOp(entry)
	}
	return err
}

func (f fanOpLogger) WriteTileBought(entry engine.TileBoughtEntry) error {
	if f.idx != nil {
		return f.idx.WriteTileBought(entry)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(instanceDir string) string {
	dir := filepath.Join(instanceDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestSeq uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		seq, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || seq > bestSeq {
			bestSeq = seq
			best = filepath.Join(dir, name)
		}
	}
	return best
}
