package blobstore

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	// RootDir is the directory of the fs backend.
	RootDir string
	// Bucket is the object store bucket of the nats backend.
	Bucket string
	Prefix string
}

// Open returns the backend selected by cfg. nc is only used by the nats
// backend and may be nil otherwise.
func Open(ctx context.Context, cfg Config, nc *nats.Conn) (Backend, error) {
	switch cfg.Backend {
	case BackendFS:
		return NewFS(cfg.RootDir)
	case BackendNATS:
		return NewNATS(ctx, nc, cfg.Bucket)
	case "", BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
