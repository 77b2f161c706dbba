package storage

import (
	"context"
	"errors"
	"fmt"

	"tcgsync/pkg/config"
	"tcgsync/pkg/logger"
)

// ErrNotFound is returned by HashOf and Read when the key does not exist
var ErrNotFound = errors.New("object not found")

// Backend stores one JSON document per order key
type Backend interface {
	Exists(ctx context.Context, key string) (bool, error)
	// HashOf returns the hex MD5 of the stored content
	HashOf(ctx context.Context, key string) (string, error)
	// Write replaces the content of key atomically
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	// List returns every stored key, sorted
	List(ctx context.Context) ([]string, error)
	CopyToLocal(ctx context.Context, basePath string) (*CopyReport, error)
	String() string
}

// New builds the backend selected by cfg.Type
func New(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (Backend, error) {
	switch cfg.Type {
	case config.StorageLocal, "":
		b, err := NewLocalBackend(cfg.Path)
		if err != nil {
			return nil, err
		}
		b.SetLogger(log)
		return b, nil
	case config.StorageS3:
		b, err := NewObjectBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.SetLogger(log)
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func notFound(key string) error {
	return fmt.Errorf("%s: %w", key, ErrNotFound)
}
