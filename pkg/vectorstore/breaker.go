package vectorstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// BreakerConfig tunes the circuit breaker around a store.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// BreakerStore wraps a Store with a circuit breaker so a failing backend
// degrades retrieval instead of hanging every query behind it.
type BreakerStore struct {
	store Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps store with circuit breaking.
func NewBreakerStore(store Store, cfg BreakerConfig, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadyToTripRatio <= 0 {
		cfg.ReadyToTripRatio = 0.6
	}

	st := gobreaker.Settings{
		Name:        "vectorstore",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("vector store circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
	}

	return &BreakerStore{store: store, cb: gobreaker.NewCircuitBreaker(st)}
}

// Put implements Store.
func (b *BreakerStore) Put(ctx context.Context, passages []*types.Passage) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.store.Put(ctx, passages)
	})
	return classify(err)
}

// Get implements Store.
func (b *BreakerStore) Get(ctx context.Context, id string) (*types.Passage, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.store.Get(ctx, id)
	})
	if err != nil {
		return nil, classify(err)
	}
	passage, _ := result.(*types.Passage)
	return passage, nil
}

// Search implements Store.
func (b *BreakerStore) Search(ctx context.Context, queryVector []float32, topK int) ([]*types.ScoredPassage, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.store.Search(ctx, queryVector, topK)
	})
	if err != nil {
		return nil, classify(err)
	}
	return result.([]*types.ScoredPassage), nil
}

// Count implements Store.
func (b *BreakerStore) Count(ctx context.Context) (int, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.store.Count(ctx)
	})
	if err != nil {
		return 0, classify(err)
	}
	return result.(int), nil
}

// Close implements Store. Close bypasses the breaker.
func (b *BreakerStore) Close() error {
	return b.store.Close()
}

// classify maps open-breaker errors into the retrieval error kind so callers
// see one taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return types.WrapError(types.KindRetrieval, err, "vector store unavailable")
	}
	return err
}
