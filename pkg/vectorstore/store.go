// Package vectorstore persists embedded passages and serves similarity
// search over them. The default backend keeps passages in Badger and scores
// them exhaustively with cosine similarity, which is plenty for corpora in
// the tens of thousands of chunks.
package vectorstore

import (
	"context"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// Store is the passage store used by retrieval.
type Store interface {
	// Put upserts passages; a passage id already present is overwritten.
	Put(ctx context.Context, passages []*types.Passage) error
	// Get returns the passage with the given id, or nil when absent.
	Get(ctx context.Context, id string) (*types.Passage, error)
	// Search returns the topK passages most similar to the query vector,
	// sorted by descending cosine similarity.
	Search(ctx context.Context, queryVector []float32, topK int) ([]*types.ScoredPassage, error)
	// Count returns the number of stored passages.
	Count(ctx context.Context) (int, error)
	Close() error
}
