// Package blob is an optional artifact store for a GRIMOIRE process —
// generated character sheets, session transcripts, and other byte blobs
// a flow's actions may want to persist outside execctx.Context. A
// BlobStore interface with filesystem and S3 implementations, selected
// by config; FilesystemBlobStore and S3BlobStore live in filesystem.go
// and s3.go respectively.
package blob

import (
	"context"
	"fmt"

	"github.com/wyrdbound/grimoire/config"
)

// BlobStore is the interface for pluggable blob storage backends.
type BlobStore interface {
	Put(ctx context.Context, data []byte, mime, filename string) (url string, err error)
	Get(ctx context.Context, url string) ([]byte, error)
}

// NewDefaultBlobStore returns a BlobStore based on cfg, or a
// FilesystemBlobStore rooted at config.DefaultBlobDir if cfg is nil or
// empty.
func NewDefaultBlobStore(ctx context.Context, cfg *config.BlobConfig) (BlobStore, error) {
	if cfg == nil || cfg.Driver == "" || cfg.Driver == "filesystem" {
		dir := config.DefaultBlobDir
		if cfg != nil && cfg.Directory != "" {
			dir = cfg.Directory
		}
		return NewFilesystemBlobStore(dir)
	}
	if cfg.Driver == "s3" {
		return NewS3BlobStore(ctx, cfg.Bucket, cfg.Region)
	}
	return nil, fmt.Errorf("unsupported blob driver: %s", cfg.Driver)
}
