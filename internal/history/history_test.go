package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/jejecipher/internal/db"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "jejecipher_test_history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	return New(database)
}

func TestStore_RecordGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tr := &db.Transform{Mode: db.ModeEncode, Source: "api", Input: "cat", Output: "7~4₵(C)", Words: 1}
	id, err := s.Record(ctx, tr)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
	assert.NotEmpty(t, tr.Ref)

	got, err := s.Get(ctx, tr.Ref)
	require.NoError(t, err)
	assert.Equal(t, "7~4₵(C)", got.Output)
	assert.Equal(t, db.ModeEncode, got.Mode)
	assert.Equal(t, 1, got.Words)

	_, err = s.Get(ctx, "no-such-ref")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListFilterAndPaging(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Record(ctx, &db.Transform{Mode: db.ModeEncode, Source: "api", Input: "a", Output: "~4<V>", Words: 1})
		require.NoError(t, err)
	}
	_, err := s.Record(ctx, &db.Transform{Mode: db.ModeDecode, Source: "telegram", Input: "~4<V>", Output: "A", Words: 1})
	require.NoError(t, err)

	all, total, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, all, 6)
	assert.Equal(t, db.ModeDecode, all[0].Mode, "newest first")

	page, total, err := s.List(ctx, Filter{Mode: db.ModeEncode, Limit: 2, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 1)

	tg, total, err := s.List(ctx, Filter{Source: "telegram"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "A", tg[0].Output)
}

func TestStore_DeleteAndPrune(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	old := &db.Transform{Mode: db.ModeEncode, Source: "api", Input: "old", Output: "x",
		CreatedAt: time.Now().Add(-72 * time.Hour)}
	_, err := s.Record(ctx, old)
	require.NoError(t, err)
	fresh := &db.Transform{Mode: db.ModeEncode, Source: "api", Input: "new", Output: "y"}
	_, err = s.Record(ctx, fresh)
	require.NoError(t, err)

	n, err := s.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, old.Ref)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, fresh.Ref))
	assert.ErrorIs(t, s.Delete(ctx, fresh.Ref), ErrNotFound)
}

func TestStore_Stats(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Record(ctx, &db.Transform{Mode: db.ModeEncode, Source: "api", Input: "a", Output: "b"})
	require.NoError(t, err)
	_, err = s.Record(ctx, &db.Transform{Mode: db.ModeDecode, Source: "api", Input: "b", Output: "a"})
	require.NoError(t, err)
	_, err = s.Record(ctx, &db.Transform{Mode: db.ModeDecode, Source: "api", Input: "b", Output: "a",
		CreatedAt: time.Now().Add(-48 * time.Hour)})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, Encoded: 1, Decoded: 2, Today: 2}, st)
}
