package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hexopolis.gg/internal/persistence/s3mirror"
)

// mirrorRuntime is a nil-safe shim around the optional off-site mirror, so
// main can enqueue unconditionally.
type mirrorRuntime struct {
	enabled bool
	mirror  *s3mirror.Mirror
}

func buildMirrorRuntime(instanceDir string, logger *zap.SugaredLogger) (*mirrorRuntime, error) {
	if !envBool("HEX_S3_MIRROR", false) {
		return &mirrorRuntime{}, nil
	}

	endpoint := strings.TrimSpace(os.Getenv("HEX_S3_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("HEX_S3_BUCKET"))
	accessKeyID := strings.TrimSpace(os.Getenv("HEX_S3_ACCESS_KEY_ID"))
	secretAccessKey := strings.TrimSpace(os.Getenv("HEX_S3_SECRET_ACCESS_KEY"))
	prefix := strings.TrimSpace(os.Getenv("HEX_S3_PREFIX"))

	if endpoint == "" || bucket == "" || accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("HEX_S3_MIRROR=true but HEX_S3_ENDPOINT/HEX_S3_BUCKET/HEX_S3_ACCESS_KEY_ID/HEX_S3_SECRET_ACCESS_KEY are not fully set")
	}

	client, err := s3mirror.NewClient(endpoint, bucket, accessKeyID, secretAccessKey)
	if err != nil {
		return nil, err
	}

	workers := envInt("HEX_S3_UPLOAD_WORKERS", 2)
	queueCap := envInt("HEX_S3_QUEUE_CAPACITY", 256)
	m := s3mirror.NewMirror(client, instanceDir, prefix, workers, queueCap, 2*time.Second, logger.Named("mirror"))

	return &mirrorRuntime{enabled: true, mirror: m}, nil
}

func (r *mirrorRuntime) Enqueue(localPath string) {
	if r == nil || !r.enabled {
		return
	}
	r.mirror.Enqueue(localPath)
}

func (r *mirrorRuntime) EnqueueIfExists(localPath string) {
	if r == nil || !r.enabled {
		return
	}
	if _, err := os.Stat(localPath); err == nil {
		r.mirror.Enqueue(localPath)
	}
}

func (r *mirrorRuntime) Close() {
	if r == nil || r.mirror == nil {
		return
	}
	r.mirror.Close()
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
