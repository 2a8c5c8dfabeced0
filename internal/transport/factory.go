package transport

import (
	"context"
	"fmt"

	"tt-go/internal/config"
	"tt-go/internal/tt"
)

// NewTransportFromConfig creates a Transport implementation based on the transport config type.
func NewTransportFromConfig(ctx context.Context, cfg config.TransportConfig) (tt.Transport, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryTransport(cfg.Name), nil
	case "s3":
		t, err := NewS3Transport(ctx, S3Options{
			Name:            cfg.Name,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem transport requires fs_root to be set")
		}
		t, err := NewFileSystemTransport(cfg.Name, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown transport type: %s", cfg.Type)
	}
}
