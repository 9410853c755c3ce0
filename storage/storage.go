// Package storage is the key/value collaborator used to cache completions.
// Operations are independent; there are no ordering or transaction
// guarantees across keys.
package storage

import (
	"context"
	"fmt"

	"github.com/martinemde/tmcore/config"
)

// Storage reads and writes string values by key. A missing key is reported
// as ("", false, nil) by Read.
type Storage interface {
	Read(ctx context.Context, key string) (string, bool, error)
	Write(ctx context.Context, key, value string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open builds the Storage named by cfg.Type.
func Open(cfg config.Storage) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		s, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		r, err := NewRedis(RedisConfig{URL: cfg.RedisURL, Prefix: cfg.Prefix})
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
