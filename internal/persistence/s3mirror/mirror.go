package s3mirror

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Stats is a point-in-time snapshot of mirror counters, served through the
// stats query surface.
type Stats struct {
	QueueDepth          int
	QueueCapacity       int
	EnqueuedTotal       uint64
	QueueSaturatedTotal uint64
	DroppedTotal        uint64
	UploadSuccessTotal  uint64
	UploadFailTotal     uint64
	LastSuccessUnix     int64
	LastErrorUnix       int64
}

// Mirror fans uploads out to a fixed worker pool. Object keys are derived
// from each file's path relative to dataDir, so only files under the
// instance directory can be mirrored.
type Mirror struct {
	client  *Client
	dataDir string
	prefix  string
	log     *zap.SugaredLogger

	jobs        chan string
	enqueueWait time.Duration
	wg          sync.WaitGroup

	nEnqueued  atomic.Uint64
	nSaturated atomic.Uint64
	nDropped   atomic.Uint64
	nUploaded  atomic.Uint64
	nFailed    atomic.Uint64
	okUnix     atomic.Int64
	errUnix    atomic.Int64
}

func NewMirror(client *Client, dataDir, prefix string, workers, queueCapacity int, enqueueWait time.Duration, log *zap.SugaredLogger) *Mirror {
	if workers < 1 {
		workers = 1
	}
	if queueCapacity < 1 {
		queueCapacity = 2048
	}
	if enqueueWait <= 0 {
		enqueueWait = 25 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := &Mirror{
		client:      client,
		dataDir:     dataDir,
		prefix:      strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		log:         log,
		jobs:        make(chan string, queueCapacity),
		enqueueWait: enqueueWait,
	}
	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go m.worker()
	}
	return m
}

func (m *Mirror) worker() {
	defer m.wg.Done()
	for localPath := range m.jobs {
		key, err := m.objectKey(localPath)
		if err != nil {
			m.log.Warnw("mirror skip", "local", localPath, "err", err)
			continue
		}
		if err := m.putWithBackoff(key, localPath); err != nil {
			m.nFailed.Add(1)
			m.errUnix.Store(time.Now().UTC().Unix())
			m.log.Errorw("mirror upload failed", "key", key, "local", localPath, "err", err)
			continue
		}
		m.nUploaded.Add(1)
		m.okUnix.Store(time.Now().UTC().Unix())
		m.log.Infow("mirror uploaded", "key", key, "local", localPath)
	}
}

// Enqueue hands a local file to the worker pool. When the queue is full it
// waits at most enqueueWait before dropping the job and counting the drop.
// It never blocks the snapshot path for longer than that.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil || m.client == nil {
		return
	}
	m.nEnqueued.Add(1)

	select {
	case m.jobs <- localPath:
		return
	default:
		m.nSaturated.Add(1)
	}

	t := time.NewTimer(m.enqueueWait)
	defer t.Stop()
	select {
	case m.jobs <- localPath:
	case <-t.C:
		dropped := m.nDropped.Add(1)
		m.log.Warnw("mirror drop", "local", localPath, "reason", "queue_saturated",
			"dropped_total", dropped)
	}
}

// Close drains and stops the workers. Queued uploads finish; nothing new
// can be enqueued afterwards.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:          len(m.jobs),
		QueueCapacity:       cap(m.jobs),
		EnqueuedTotal:       m.nEnqueued.Load(),
		QueueSaturatedTotal: m.nSaturated.Load(),
		DroppedTotal:        m.nDropped.Load(),
		UploadSuccessTotal:  m.nUploaded.Load(),
		UploadFailTotal:     m.nFailed.Load(),
		LastSuccessUnix:     m.okUnix.Load(),
		LastErrorUnix:       m.errUnix.Load(),
	}
}

func (m *Mirror) putWithBackoff(key, localPath string) error {
	var lastErr error
	for attempt := 1; attempt <= 4; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		lastErr = m.client.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt < 4 {
			time.Sleep(time.Duration(attempt*attempt) * 200 * time.Millisecond)
		}
	}
	return lastErr
}

// objectKey maps a local path under dataDir to its bucket key, with the
// configured prefix prepended. Paths outside dataDir are refused.
func (m *Mirror) objectKey(localPath string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("empty local path")
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}

	base, err := filepath.Abs(m.dataDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", abs, base)
	}
	if m.prefix == "" {
		return rel, nil
	}
	return path.Join(m.prefix, rel), nil
}
