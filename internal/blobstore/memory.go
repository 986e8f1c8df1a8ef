package blobstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data     []byte
	metadata map[string]string
	modTime  time.Time
}

// Memory is an in-process backend for tests and the CLI's dry runs.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject), now: time.Now}
}

func (m *Memory) Put(_ context.Context, key string, data []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{
		data:     append([]byte(nil), data...),
		metadata: copyMetadata(metadata),
		modTime:  m.now(),
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, &StoreError{Backend: BackendMemory, Op: "get", Key: key, Err: ErrNotFound}
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{
				Key:      key,
				Size:     int64(len(obj.data)),
				ModTime:  obj.modTime,
				Metadata: copyMetadata(obj.metadata),
			})
		}
	}
	return out, nil
}

func (m *Memory) Name() string { return BackendMemory }

var _ Backend = (*Memory)(nil)
