package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soundprediction/controlgraph/pkg/types"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func passage(id string, embedding ...float32) *types.Passage {
	return &types.Passage{ID: id, Text: "text " + id, Source: "test.pdf", Page: 1, Embedding: embedding}
}

func TestBadgerStorePutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []*types.Passage{passage("p1", 1, 0), passage("p2", 0, 1)}))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "text p1", got.Text)

	missing, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestBadgerStorePutOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []*types.Passage{passage("p1", 1, 0)}))
	updated := passage("p1", 0, 1)
	updated.Text = "updated"
	require.NoError(t, store.Put(ctx, []*types.Passage{updated}))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "updated", got.Text)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestBadgerStoreSearchRanksBySimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []*types.Passage{
		passage("aligned", 1, 0),
		passage("diagonal", 0.7, 0.7),
		passage("orthogonal", 0, 1),
	}))

	results, err := store.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "aligned", results[0].ID)
	require.Equal(t, "diagonal", results[1].ID)
	require.Greater(t, results[0].Score, results[1].Score)
	require.Equal(t, results[0].Score, results[0].VectorScore)
}

func TestBadgerStoreSearchValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Search(ctx, []float32{1, 0}, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrInvalidTopK))

	_, err = store.Search(ctx, nil, 5)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrEmptyQuery))
	require.Equal(t, types.KindRetrieval, types.KindOf(err))
}

type failingStore struct{ Store }

var errBackend = errors.New("backend down")

func (f *failingStore) Search(ctx context.Context, q []float32, k int) ([]*types.ScoredPassage, error) {
	return nil, errBackend
}

func TestBreakerStoreOpensAfterFailures(t *testing.T) {
	breaker := NewBreakerStore(&failingStore{}, BreakerConfig{ReadyToTripRatio: 0.5}, nil)
	ctx := context.Background()

	// First failures pass through the backend error.
	for i := 0; i < 3; i++ {
		_, err := breaker.Search(ctx, []float32{1}, 1)
		require.Error(t, err)
	}

	// The breaker is now open and reports retrieval unavailability.
	_, err := breaker.Search(ctx, []float32{1}, 1)
	require.Error(t, err)
	require.Equal(t, types.KindRetrieval, types.KindOf(err))
}

func TestBreakerStorePassesThroughHealthyBackend(t *testing.T) {
	store := newTestStore(t)
	breaker := NewBreakerStore(store, BreakerConfig{}, nil)
	ctx := context.Background()

	require.NoError(t, breaker.Put(ctx, []*types.Passage{passage("p1", 1, 0)}))
	results, err := breaker.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "p1", results[0].ID)
}
