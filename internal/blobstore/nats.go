package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream object store bucket used when none is configured.
const DefaultBucket = "pm-cli-memory"

// NATS stores objects in a JetStream object store bucket.
type NATS struct {
	bucket string
	obs    jetstream.ObjectStore
}

// NewNATS opens bucket on nc, creating it if it does not exist.
func NewNATS(ctx context.Context, nc *nats.Conn, bucket string) (*NATS, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, &StoreError{Backend: BackendNATS, Op: "init", Err: fmt.Errorf("jetstream: %w", err)}
	}
	obs, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Created work items and interaction contexts",
	})
	if err != nil {
		return nil, &StoreError{Backend: BackendNATS, Op: "init", Key: bucket, Err: err}
	}
	return &NATS{bucket: bucket, obs: obs}, nil
}

func (s *NATS) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	_, err := s.obs.Put(ctx, jetstream.ObjectMeta{
		Name:     key,
		Metadata: copyMetadata(metadata),
	}, bytes.NewReader(data))
	if err != nil {
		return &StoreError{Backend: BackendNATS, Op: "put", Key: key, Err: err}
	}
	return nil
}

func (s *NATS) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.obs.GetBytes(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, &StoreError{Backend: BackendNATS, Op: "get", Key: key, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &StoreError{Backend: BackendNATS, Op: "get", Key: key, Err: err}
	}
	return data, nil
}

func (s *NATS) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	infos, err := s.obs.List(ctx)
	if errors.Is(err, jetstream.ErrNoObjectsFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Backend: BackendNATS, Op: "list", Key: prefix, Err: err}
	}
	var out []ObjectInfo
	for _, info := range infos {
		if info.Deleted || !strings.HasPrefix(info.Name, prefix) {
			continue
		}
		out = append(out, ObjectInfo{
			Key:      info.Name,
			Size:     int64(info.Size),
			ModTime:  info.ModTime,
			Metadata: copyMetadata(info.Metadata),
		})
	}
	return out, nil
}

func (s *NATS) Name() string { return BackendNATS }

var _ Backend = (*NATS)(nil)
