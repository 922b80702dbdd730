package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func session(id string, started time.Time) *Session {
	return &Session{
		ID:           id,
		Mode:         "dagger",
		Predictor:    "linear",
		StartedAt:    started,
		EndedAt:      started.Add(90 * time.Second),
		Ticks:        420,
		Iterations:   2,
		ArtifactName: "2026_10_19_12_00_00_001",
		Frames:       420,
	}
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, session("a", start)))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "dagger", got.Mode)
	assert.Equal(t, int64(2), got.Iterations)
	assert.True(t, got.StartedAt.Equal(start))
	assert.Equal(t, 90*time.Second, got.Duration())
	assert.Nil(t, got.Upload)
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess := session("a", time.Now())
	require.NoError(t, s.Put(ctx, sess))

	sess.Upload = &Upload{Bucket: "runs", VideoKey: "sessions/x/x.avi"}
	require.NoError(t, s.Put(ctx, sess))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.Upload)
	assert.Equal(t, "runs", got.Upload.Bucket)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutRequiresID(t *testing.T) {
	s := newTestStore(t)
	err := s.Put(context.Background(), &Session{})
	assert.Error(t, err)
}

func TestListMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, session("old", base)))
	require.NoError(t, s.Put(ctx, session("new", base.Add(2*time.Hour))))
	require.NoError(t, s.Put(ctx, session("mid", base.Add(time.Hour))))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestListEmpty(t *testing.T) {
	list, err := newTestStore(t).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, session("a", time.Now())))

	require.NoError(t, s.Delete(ctx, "a"))
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "a"), ErrNotFound)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, session("a", time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, session("a", time.Now())))
	require.NoError(t, s.Healthcheck(ctx))
}

func TestCancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Put(ctx, session("a", time.Now())), context.Canceled)
	_, err := s.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Healthcheck(ctx), context.Canceled)
}

func TestHealthcheckAfterClose(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Error(t, s.Healthcheck(context.Background()))
}
