package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"clawoffice.ai/internal/persistence/objstore"
)

// storageRuntime is the optional object store: the persisted route catalog
// plus the mirror for rotated event logs.
type storageRuntime struct {
	enabled bool
	catalog *objstore.CatalogStore
	mirror  *objstore.Mirror
}

func buildStorageRuntime(ctx context.Context, dataDir string, logger *log.Logger) (*storageRuntime, error) {
	cfg := objstore.Config{
		Endpoint:        strings.TrimSpace(os.Getenv("OFFICE_MINIO_ENDPOINT")),
		Bucket:          strings.TrimSpace(os.Getenv("OFFICE_MINIO_BUCKET")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("OFFICE_MINIO_ACCESS_KEY")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("OFFICE_MINIO_SECRET_KEY")),
		Region:          strings.TrimSpace(os.Getenv("OFFICE_MINIO_REGION")),
		UseSSL:          envBool("OFFICE_MINIO_USE_SSL", false),
	}
	if !cfg.Enabled() {
		return &storageRuntime{}, nil
	}
	client, err := objstore.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("OFFICE_MINIO_ENDPOINT is set but the client could not be created: %w", err)
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.EnsureBucket(ctx2); err != nil {
		return nil, err
	}

	prefix := strings.TrimSpace(os.Getenv("OFFICE_MINIO_PREFIX"))
	workers := envInt("OFFICE_MIRROR_WORKERS", 2)
	queue := envInt("OFFICE_MIRROR_QUEUE", 256)
	mirror := objstore.NewMirror(client, dataDir, prefix, workers, queue, 25*time.Millisecond, logger)
	logger.Printf("object store enabled: bucket=%s prefix=%q", cfg.Bucket, prefix)

	return &storageRuntime{
		enabled: true,
		catalog: objstore.NewCatalogStore(client, prefix),
		mirror:  mirror,
	}, nil
}

func (r *storageRuntime) Close() {
	if r == nil || r.mirror == nil {
		return
	}
	r.mirror.Close()
}

func (r *storageRuntime) Enqueue(localPath string) {
	if r == nil || !r.enabled || r.mirror == nil {
		return
	}
	r.mirror.Enqueue(localPath)
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
