package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/dose"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"github.com/vladimiradmaev/dosemate/internal/securestore"
)

func entry(id string, minute int) domain.HistoryEntry {
	at := time.Date(2024, 5, 1, 8, minute, 0, 0, time.UTC)
	return domain.HistoryEntry{
		ID:                id,
		Timestamp:         at,
		Display:           at.Format(domain.DisplayLayout),
		TotalAdministered: 10,
		TotalCalculated:   10,
		Moment:            dose.MomentMorning,
	}
}

func ids(entries []domain.HistoryEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

// recorder collects the snapshots a subscriber receives.
type recorder struct {
	mu    sync.Mutex
	snaps [][]string
}

func (r *recorder) fn(entries []domain.HistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, ids(entries))
}

func (r *recorder) all() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.snaps...)
}

func TestLocalHistory_AppendListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewLocalHistory(NewMemoryKV(), NewHub())

	got, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.Append(ctx, "u1", entry("a", 1)))
	require.NoError(t, repo.Append(ctx, "u1", entry("b", 2)))
	require.NoError(t, repo.Append(ctx, "u2", entry("c", 3)))

	got, err = repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(got))

	got, err = repo.List(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(got))
}

func TestLocalHistory_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewLocalHistory(NewMemoryKV(), NewHub())
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Append(ctx, "u1", entry(id, i)))
	}

	require.NoError(t, repo.Delete(ctx, "u1", "b"))
	got, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(got))

	err = repo.Delete(ctx, "u1", "b")
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)

	err = repo.Delete(ctx, "u2", "a")
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)
}

func TestLocalHistory_Clear(t *testing.T) {
	ctx := context.Background()
	repo := NewLocalHistory(NewMemoryKV(), NewHub())
	require.NoError(t, repo.Append(ctx, "u1", entry("a", 1)))
	require.NoError(t, repo.Append(ctx, "u2", entry("b", 1)))

	require.NoError(t, repo.Clear(ctx, "u1"))
	require.NoError(t, repo.Clear(ctx, "u1"))

	got, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = repo.List(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLocalHistory_SubscribeReceivesEveryChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := NewLocalHistory(NewMemoryKV(), NewHub())
	require.NoError(t, repo.Append(ctx, "u1", entry("a", 1)))

	rec := &recorder{}
	require.NoError(t, repo.Subscribe(ctx, "u1", rec.fn))

	require.NoError(t, repo.Append(ctx, "u1", entry("b", 2)))
	require.NoError(t, repo.Delete(ctx, "u1", "a"))
	require.NoError(t, repo.Append(ctx, "u2", entry("x", 3)))
	require.NoError(t, repo.Clear(ctx, "u1"))

	assert.Equal(t, [][]string{
		{"a"},
		{"b", "a"},
		{"b"},
		{},
	}, rec.all())
}

func TestLocalHistory_SubscribeStopsAfterCancel(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	repo := NewLocalHistory(NewMemoryKV(), hub)

	subCtx, cancel := context.WithCancel(ctx)
	rec := &recorder{}
	require.NoError(t, repo.Subscribe(subCtx, "u1", rec.fn))
	assert.Equal(t, 1, hub.Subscribers("u1"))

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers("u1") == 0 }, time.Second, time.Millisecond)

	require.NoError(t, repo.Append(ctx, "u1", entry("a", 1)))
	assert.Equal(t, [][]string{{}}, rec.all())
}

func TestLocalHistory_SubscribeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := NewLocalHistory(NewMemoryKV(), NewHub())
	err := repo.Subscribe(ctx, "u1", func([]domain.HistoryEntry) {
		t.Fatal("no delivery expected")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalHistory_OverEncryptedStore(t *testing.T) {
	ctx := context.Background()
	store, err := securestore.Open(ctx, ":memory:", "a long passphrase")
	require.NoError(t, err)
	defer store.Close()

	repo := NewLocalHistory(store, NewHub())
	require.NoError(t, repo.Append(ctx, "u1", entry("a", 1)))

	got, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Timestamp.Equal(entry("a", 1).Timestamp))
}

func TestLocalSettings(t *testing.T) {
	ctx := context.Background()
	repo := NewLocalSettings(NewMemoryKV())

	_, found, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	want := domain.DoseSettings{CarbRatio: 8, UseCustomTable: true, CustomTable: dose.DefaultTable()}
	require.NoError(t, repo.Save(ctx, "u1", want))

	got, found, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

func TestLocalUsers_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewLocalUsers(NewMemoryKV())

	_, err := repo.GetByTelegramID(ctx, 42)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	first, err := repo.GetOrCreate(ctx, 42, "anna", "Anna", "K")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, int64(42), first.TelegramID)

	again, err := repo.GetOrCreate(ctx, 42, "renamed", "", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "anna", again.Username)

	other, err := repo.GetOrCreate(ctx, 43, "", "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestMemoryKV_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	in := []string{"a"}
	require.NoError(t, kv.Set(ctx, "k", in))
	in[0] = "changed"

	var out []string
	require.NoError(t, kv.Get(ctx, "k", &out))
	assert.Equal(t, []string{"a"}, out)

	require.NoError(t, kv.Remove(ctx, "k"))
	assert.ErrorIs(t, kv.Get(ctx, "k", &out), securestore.ErrNotFound)
}
