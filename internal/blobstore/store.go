// Package blobstore persists created items and interaction contexts as JSON
// objects in a key/value blob backend.
//
// Item keys follow {prefix}{project}/{type}/YYYY/MM/DD/{uuid}.json and
// context keys {prefix}{user}/{YYYYmmddHHMMSS}.json. Objects are never
// updated after they are written.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backend names.
const (
	BackendFS     = "fs"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// ErrNotFound is matched when a key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key      string
	Size     int64
	ModTime  time.Time
	Metadata map[string]string
}

// Backend stores opaque objects under slash-separated keys.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every object whose key starts with prefix, in no
	// particular order.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Name() string
}

// StoreError reports a failed backend call.
type StoreError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s store %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s store %s %s: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ExternalService names the failing collaborator.
func (e *StoreError) ExternalService() string { return "store:" + e.Backend }

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
