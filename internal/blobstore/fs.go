package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Gabriell-Belmont/sam--product-management/internal/sanitize"
)

// metaSuffix marks the sidecar file holding an object's metadata.
const metaSuffix = ".meta"

// FS stores each object as a file below a root directory, with its metadata
// in a sidecar file.
type FS struct {
	root string
}

// NewFS creates the root directory if needed.
func NewFS(root string) (*FS, error) {
	if root == "" {
		return nil, errors.New("fs store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, &StoreError{Backend: BackendFS, Op: "init", Err: err}
	}
	return &FS{root: abs}, nil
}

func (s *FS) Put(_ context.Context, key string, data []byte, metadata map[string]string) error {
	path, err := sanitize.Within(s.root, key)
	if err != nil {
		return &StoreError{Backend: BackendFS, Op: "put", Key: key, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return &StoreError{Backend: BackendFS, Op: "put", Key: key, Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return &StoreError{Backend: BackendFS, Op: "put", Key: key, Err: err}
	}
	if len(metadata) == 0 {
		return nil
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return &StoreError{Backend: BackendFS, Op: "put", Key: key, Err: err}
	}
	if err := writeAtomic(path+metaSuffix, meta); err != nil {
		return &StoreError{Backend: BackendFS, Op: "put", Key: key, Err: err}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (s *FS) Get(_ context.Context, key string) ([]byte, error) {
	path, err := sanitize.Within(s.root, key)
	if err != nil {
		return nil, &StoreError{Backend: BackendFS, Op: "get", Key: key, Err: err}
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &StoreError{Backend: BackendFS, Op: "get", Key: key, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &StoreError{Backend: BackendFS, Op: "get", Key: key, Err: err}
	}
	return data, nil
}

func (s *FS) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	if err := sanitize.ValidatePrefix(prefix); err != nil {
		return nil, &StoreError{Backend: BackendFS, Op: "list", Key: prefix, Err: err}
	}

	// Walk from the deepest directory the prefix names.
	start := s.root
	if dir := prefix[:strings.LastIndex(prefix, "/")+1]; dir != "" {
		start = filepath.Join(s.root, filepath.FromSlash(dir))
	}

	var out []ObjectInfo
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, metaSuffix) || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{
			Key:      key,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Metadata: readMetadata(path + metaSuffix),
		})
		return nil
	})
	if err != nil {
		return nil, &StoreError{Backend: BackendFS, Op: "list", Key: prefix, Err: err}
	}
	return out, nil
}

// readMetadata returns nil when the sidecar is missing or unreadable.
func readMetadata(path string) map[string]string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var m map[string]string
	if json.Unmarshal(data, &m) != nil {
		return nil
	}
	return m
}

func (s *FS) Name() string { return BackendFS }

var _ Backend = (*FS)(nil)
