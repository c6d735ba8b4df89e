package blob

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// NewBackend builds the backend selected by cfg. Local objects live below dataDir.
func NewBackend(ctx context.Context, cfg *Config, dataDir string) (IBlobBackend, error) {
	switch cfg.Backend {
	case BackendS3:
		slog.Info("blob backend", "type", BackendS3, "bucket", cfg.S3.BucketName, "region", cfg.S3.Region)
		return NewS3BackendWithConfig(ctx, &cfg.S3)
	case BackendLocal, "":
		root := filepath.Join(dataDir, "blobs")
		slog.Info("blob backend", "type", BackendLocal, "root", root)
		return NewLocalBackend(root)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}
