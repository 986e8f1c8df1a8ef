package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/natstest"
	"github.com/Gabriell-Belmont/sam--product-management/internal/sanitize"
)

func backends() map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		BackendMemory: func(t *testing.T) Backend { return NewMemory() },
		BackendFS: func(t *testing.T) Backend {
			b, err := NewFS(t.TempDir())
			require.NoError(t, err)
			return b
		},
		BackendNATS: func(t *testing.T) Backend {
			b, err := NewNATS(context.Background(), natstest.Connect(t), "")
			require.NoError(t, err)
			return b
		},
	}
}

func keys(infos []ObjectInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Key
	}
	sort.Strings(out)
	return out
}

func TestBackends(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t)
			assert.Equal(t, name, b.Name())

			require.NoError(t, b.Put(ctx, "p/PROJ/stories/a.json", []byte(`{"a":1}`), map[string]string{"k": "v"}))
			require.NoError(t, b.Put(ctx, "p/PROJ/tasks/b.json", []byte(`{"b":2}`), nil))
			require.NoError(t, b.Put(ctx, "p/OTHER/stories/c.json", []byte(`{}`), nil))

			data, err := b.Get(ctx, "p/PROJ/stories/a.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":1}`, string(data))

			_, err = b.Get(ctx, "p/PROJ/missing.json")
			assert.ErrorIs(t, err, ErrNotFound)
			var serr *StoreError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, "store:"+name, serr.ExternalService())

			infos, err := b.List(ctx, "p/PROJ/")
			require.NoError(t, err)
			assert.Equal(t, []string{"p/PROJ/stories/a.json", "p/PROJ/tasks/b.json"}, keys(infos))

			infos, err = b.List(ctx, "p/PROJ/stories/")
			require.NoError(t, err)
			require.Len(t, infos, 1)
			assert.Equal(t, map[string]string{"k": "v"}, infos[0].Metadata)
			assert.Equal(t, int64(7), infos[0].Size)

			infos, err = b.List(ctx, "nothing/")
			require.NoError(t, err)
			assert.Empty(t, infos)
		})
	}
}

func TestFS_RejectsTraversal(t *testing.T) {
	root := t.TempDir()
	b, err := NewFS(filepath.Join(root, "store"))
	require.NoError(t, err)

	err = b.Put(context.Background(), "../escape.json", []byte("x"), nil)
	assert.ErrorIs(t, err, sanitize.ErrPathTraversal)
	_, statErr := os.Stat(filepath.Join(root, "escape.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, b.Name())

	b, err = Open(ctx, Config{Backend: BackendFS, RootDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendFS, b.Name())

	_, err = Open(ctx, Config{Backend: BackendNATS}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: "s3"}, nil)
	assert.Error(t, err)
}

// clock returns successive instants one second apart.
func clock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func newRepo(t *testing.T, b Backend, now func() time.Time) *Repository {
	t.Helper()
	r, err := NewRepository(b, zap.NewNop(), WithClock(now))
	require.NoError(t, err)
	return r
}

func TestRepository_ItemKeys(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	r := newRepo(t, NewMemory(), clock(start))

	key, err := r.SaveItem(context.Background(), "PROJ", item.TypeStory,
		map[string]any{"summary": "S"}, map[string]string{MetaJiraKey: "PROJ-1", MetaSource: "prompt"})
	require.NoError(t, err)

	assert.Regexp(t, `^contexts/PROJ/stories/2026/10/15/[0-9a-f-]{36}\.json$`, key)

	data, err := r.LoadItem(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"summary": "S"}, data)
}

func TestRepository_ListItemsNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t, NewMemory(), clock(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)))

	for _, s := range []string{"first", "second", "third"} {
		_, err := r.SaveItem(ctx, "PROJ", item.TypeTask, map[string]any{"summary": s}, nil)
		require.NoError(t, err)
	}
	_, err := r.SaveItem(ctx, "PROJ", item.TypeSubBug, map[string]any{"summary": "sub-bug"}, nil)
	require.NoError(t, err)
	_, err = r.SaveItem(ctx, "PROJ", item.TypeSubtask, map[string]any{"summary": "subtask"}, nil)
	require.NoError(t, err)

	recs, err := r.ListItems(ctx, "PROJ", item.TypeTask, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "third", recs[0].Data["summary"])
	assert.Equal(t, "second", recs[1].Data["summary"])
	assert.Equal(t, item.TypeTask, recs[0].Type)

	recs, err = r.ListItems(ctx, "PROJ", item.TypeSubtask, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "subtask", recs[0].Data["summary"])

	hist, err := r.History(ctx, "PROJ", 5)
	require.NoError(t, err)
	assert.Len(t, hist[item.TypeTask], 3)
	assert.Len(t, hist[item.TypeSubBug], 1)
	assert.NotContains(t, hist, item.TypeEpic)
}

func TestRepository_Contexts(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	r := newRepo(t, NewMemory(), func() time.Time { return fixed })

	k1, err := r.SaveContext(ctx, "ana", map[string]any{"prompt": "um"})
	require.NoError(t, err)
	k2, err := r.SaveContext(ctx, "ana", map[string]any{"prompt": "dois"})
	require.NoError(t, err)

	assert.Equal(t, "contexts/ana/20261015120000.json", k1)
	assert.Equal(t, "contexts/ana/20261015120000-1.json", k2)

	// An item of a project named like the user is not a context.
	_, err = r.SaveItem(ctx, "ana", item.TypeBug, map[string]any{"summary": "b"}, nil)
	require.NoError(t, err)

	recs, err := r.RecentContexts(ctx, "ana", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "dois", recs[0].Data["prompt"])
}

func TestRepository_ContextsSameSecond(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	r := newRepo(t, NewMemory(), func() time.Time { return fixed })

	for i := 0; i < 12; i++ {
		_, err := r.SaveContext(ctx, "ana", map[string]any{"n": i})
		require.NoError(t, err)
	}

	recs, err := r.RecentContexts(ctx, "ana", 12)
	require.NoError(t, err)
	require.Len(t, recs, 12)
	for i, rec := range recs {
		assert.Equal(t, float64(11-i), rec.Data["n"], "position %d (%s)", i, rec.Key)
	}
	assert.Equal(t, "contexts/ana/20261015120000-11.json", recs[0].Key)
	assert.Equal(t, "contexts/ana/20261015120000.json", recs[11].Key)
}

func TestContextSeq(t *testing.T) {
	tests := []struct {
		key  string
		want int
	}{
		{"contexts/ana/20261015120000.json", 0},
		{"contexts/ana/20261015120000-1.json", 1},
		{"contexts/ana/20261015120000-10.json", 10},
		{"contexts/PROJ/epics/2026/10/15/550e8400-e29b-41d4-a716-446655440000.json", -1},
		{"20261015120000-x.json", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, contextSeq(tt.key), tt.key)
	}
}

func TestRepository_ContextsOrderedByTime(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t, NewMemory(), clock(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)))

	for _, p := range []string{"a", "b", "c", "d"} {
		_, err := r.SaveContext(ctx, "ana", map[string]any{"prompt": p})
		require.NoError(t, err)
	}
	recs, err := r.RecentContexts(ctx, "ana", 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []any{"d", "c", "b"}, []any{recs[0].Data["prompt"], recs[1].Data["prompt"], recs[2].Data["prompt"]})
}

func TestRepository_SkipsUnreadable(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	r := newRepo(t, b, time.Now)

	require.NoError(t, b.Put(ctx, "contexts/PROJ/epics/2026/10/15/bad.json", []byte("{"), nil))
	_, err := r.SaveItem(ctx, "PROJ", item.TypeEpic, map[string]any{"summary": "ok"}, nil)
	require.NoError(t, err)

	recs, err := r.ListItems(ctx, "PROJ", item.TypeEpic, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ok", recs[0].Data["summary"])
}

func TestRepository_OverNATS(t *testing.T) {
	ctx := context.Background()
	b, err := NewNATS(ctx, natstest.Connect(t), "pm-test")
	require.NoError(t, err)
	r := newRepo(t, b, clock(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)))

	key, err := r.SaveItem(ctx, "PROJ", item.TypeEpic, map[string]any{"summary": "E"}, map[string]string{MetaJiraKey: "PROJ-1"})
	require.NoError(t, err)

	recs, err := r.ListItems(ctx, "PROJ", item.TypeEpic, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, key, recs[0].Key)
	assert.Equal(t, "PROJ-1", recs[0].Metadata[MetaJiraKey])
	assert.Equal(t, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), recs[0].SavedAt)
}

func TestNewRepository_Validation(t *testing.T) {
	_, err := NewRepository(nil, zap.NewNop())
	assert.Error(t, err)
	_, err = NewRepository(NewMemory(), nil)
	assert.Error(t, err)
	_, err = NewRepository(NewMemory(), zap.NewNop(), WithPrefix("../x"))
	assert.Error(t, err)

	r, err := NewRepository(NewMemory(), zap.NewNop(), WithPrefix("pm"))
	require.NoError(t, err)
	key, err := r.SaveContext(context.Background(), "u", map[string]any{})
	require.NoError(t, err)
	assert.Regexp(t, `^pm/u/\d{14}\.json$`, key)
}
