package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/sanitize"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "contexts/"

// Metadata keys written with every object.
const (
	MetaItemType = "item_type"
	MetaProject  = "project"
	MetaUser     = "user"
	MetaSavedAt  = "saved_at"
	MetaJiraKey  = "jira_key"
	MetaSource   = "source"
)

const maxContextSuffix = 100

var contextName = regexp.MustCompile(`^\d{14}(?:-(\d+))?\.json$`)

// Record is a stored object with its decoded JSON body.
type Record struct {
	Key      string            `json:"key"`
	Type     item.Type         `json:"item_type,omitempty"`
	SavedAt  time.Time         `json:"saved_at"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Data     map[string]any    `json:"data"`
}

// Repository lays out items and contexts on a Backend.
type Repository struct {
	backend Backend
	prefix  string
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithPrefix sets the key prefix. A trailing slash is added if missing.
func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		r.prefix = prefix
	}
}

// WithClock replaces the clock used for keys and timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a Repository over backend.
func NewRepository(backend Backend, logger *zap.Logger, opts ...Option) (*Repository, error) {
	if backend == nil {
		return nil, errors.New("backend is required for repository")
	}
	if logger == nil {
		return nil, errors.New("logger is required for repository")
	}
	r := &Repository{
		backend: backend,
		prefix:  DefaultPrefix,
		logger:  logger.Named("blobstore"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := sanitize.ValidatePrefix(r.prefix); err != nil {
		return nil, fmt.Errorf("invalid store prefix: %w", err)
	}
	return r, nil
}

// Backend returns the underlying backend name.
func (r *Repository) Backend() string { return r.backend.Name() }

// SaveItem stores payload under the project and type and returns its key.
func (r *Repository) SaveItem(ctx context.Context, project string, t item.Type, payload any, metadata map[string]string) (string, error) {
	now := r.now().UTC()
	key := fmt.Sprintf("%s%s/%s/%s/%s.json",
		r.prefix, sanitize.Segment(project), t.StoragePrefix(), now.Format("2006/01/02"), uuid.NewString())

	meta := copyMetadata(metadata)
	if meta == nil {
		meta = make(map[string]string)
	}
	meta[MetaItemType] = t.String()
	meta[MetaProject] = project
	meta[MetaSavedAt] = now.Format(time.RFC3339Nano)

	if err := r.put(ctx, key, payload, meta); err != nil {
		return "", err
	}
	r.logger.Info("item saved", zap.String("key", key), zap.String("item_type", t.String()))
	return key, nil
}

// LoadItem returns the decoded object at key.
func (r *Repository) LoadItem(ctx context.Context, key string) (map[string]any, error) {
	data, err := r.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

// ListItems returns up to limit items of type t in project, newest first.
// A limit of zero or less returns all of them.
func (r *Repository) ListItems(ctx context.Context, project string, t item.Type, limit int) ([]Record, error) {
	prefix := fmt.Sprintf("%s%s/%s/", r.prefix, sanitize.Segment(project), t.StoragePrefix())
	infos, err := r.backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	kept := infos[:0]
	for _, info := range infos {
		// Subtasks and sub-bugs share a prefix.
		if typ := info.Metadata[MetaItemType]; typ != "" && typ != t.String() {
			continue
		}
		kept = append(kept, info)
	}
	return r.load(ctx, newestFirst(kept), limit, t), nil
}

// History returns up to perType recent items of every type in project.
// Types without items are omitted.
func (r *Repository) History(ctx context.Context, project string, perType int) (map[item.Type][]Record, error) {
	out := make(map[item.Type][]Record)
	for _, t := range item.Types {
		recs, err := r.ListItems(ctx, project, t, perType)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			out[t] = recs
		}
	}
	return out, nil
}

// SaveContext stores one interaction of user under a timestamp-derived key.
// A second context within the same second gets a numeric suffix.
func (r *Repository) SaveContext(ctx context.Context, user string, payload any) (string, error) {
	now := r.now().UTC()
	base := fmt.Sprintf("%s%s/%s", r.prefix, sanitize.Segment(user), now.Format("20060102150405"))

	key := base + ".json"
	for n := 1; ; n++ {
		_, err := r.backend.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return "", err
		}
		if n > maxContextSuffix {
			return "", fmt.Errorf("too many contexts for %s at %s", user, now.Format(time.RFC3339))
		}
		key = base + "-" + strconv.Itoa(n) + ".json"
	}

	meta := map[string]string{
		MetaUser:    user,
		MetaSavedAt: now.Format(time.RFC3339Nano),
	}
	if err := r.put(ctx, key, payload, meta); err != nil {
		return "", err
	}
	r.logger.Info("context saved", zap.String("key", key))
	return key, nil
}

// RecentContexts returns up to limit contexts of user, newest first.
func (r *Repository) RecentContexts(ctx context.Context, user string, limit int) ([]Record, error) {
	prefix := fmt.Sprintf("%s%s/", r.prefix, sanitize.Segment(user))
	infos, err := r.backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	// Items of a project named like the user live deeper in the same tree.
	kept := infos[:0]
	for _, info := range infos {
		if contextName.MatchString(strings.TrimPrefix(info.Key, prefix)) {
			kept = append(kept, info)
		}
	}
	return r.load(ctx, newestFirst(kept), limit, ""), nil
}

func (r *Repository) put(ctx context.Context, key string, payload any, meta map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.backend.Put(ctx, key, data, meta)
}

// load decodes up to limit objects. Unreadable objects are logged and skipped.
func (r *Repository) load(ctx context.Context, infos []ObjectInfo, limit int, t item.Type) []Record {
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	out := make([]Record, 0, len(infos))
	for _, info := range infos {
		data, err := r.LoadItem(ctx, info.Key)
		if err != nil {
			r.logger.Warn("skipping unreadable object", zap.String("key", info.Key), zap.Error(err))
			continue
		}
		rec := Record{
			Key:      info.Key,
			Type:     t,
			SavedAt:  savedAt(info),
			Metadata: info.Metadata,
			Data:     data,
		}
		if rec.Type == "" {
			rec.Type = item.Type(info.Metadata[MetaItemType])
		}
		out = append(out, rec)
	}
	return out
}

func newestFirst(infos []ObjectInfo) []ObjectInfo {
	sort.SliceStable(infos, func(i, j int) bool {
		ti, tj := savedAt(infos[i]), savedAt(infos[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		si, sj := contextSeq(infos[i].Key), contextSeq(infos[j].Key)
		if si >= 0 && sj >= 0 && si != sj {
			return si > sj
		}
		return infos[i].Key > infos[j].Key
	})
	return infos
}

// contextSeq returns the collision suffix of a context key: 0 for the first
// context of a second, n for "-n", and -1 for keys that are not contexts.
func contextSeq(key string) int {
	m := contextName.FindStringSubmatch(key[strings.LastIndex(key, "/")+1:])
	if m == nil {
		return -1
	}
	if m[1] == "" {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

func savedAt(info ObjectInfo) time.Time {
	if ts, err := time.Parse(time.RFC3339Nano, info.Metadata[MetaSavedAt]); err == nil {
		return ts
	}
	return info.ModTime
}
