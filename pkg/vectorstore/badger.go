package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/controlgraph/pkg/types"
	"github.com/soundprediction/controlgraph/pkg/utils"
)

const passagePrefix = "passage:"

// BadgerStore keeps passages in an embedded Badger database. Search is a
// full scan with cosine scoring and a top-K heap.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a store at dir. An empty dir opens an
// in-memory database, which tests use.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Put upserts passages in a single transaction.
func (s *BadgerStore) Put(ctx context.Context, passages []*types.Passage) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, p := range passages {
		if p == nil || p.ID == "" {
			return types.NewError(types.KindConfiguration, "passage without id cannot be stored")
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal passage %s: %w", p.ID, err)
		}
		if err := wb.Set([]byte(passagePrefix+p.ID), data); err != nil {
			return fmt.Errorf("failed to stage passage %s: %w", p.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to commit passages: %w", err)
	}
	return nil
}

// Get returns one passage, or nil when absent.
func (s *BadgerStore) Get(ctx context.Context, id string) (*types.Passage, error) {
	var passage *types.Passage
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(passagePrefix + id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var p types.Passage
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			passage = &p
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read passage %s: %w", id, err)
	}
	return passage, nil
}

// Search scans every stored passage and keeps the topK by cosine similarity.
func (s *BadgerStore) Search(ctx context.Context, queryVector []float32, topK int) ([]*types.ScoredPassage, error) {
	if topK <= 0 {
		return nil, types.WrapError(types.KindRetrieval, types.ErrInvalidTopK, "topK %d", topK)
	}
	if len(queryVector) == 0 {
		return nil, types.WrapError(types.KindRetrieval, types.ErrEmptyQuery, "empty query vector")
	}

	var scored []utils.ScoredItem[*types.Passage]
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(passagePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var p types.Passage
				if err := json.Unmarshal(val, &p); err != nil {
					return err
				}
				scored = append(scored, utils.ScoredItem[*types.Passage]{
					Item:  &p,
					Score: utils.CosineSimilarity(queryVector, p.Embedding),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, types.WrapError(types.KindRetrieval, err, "vector search failed")
	}

	top := utils.TopKByScore(scored, topK)
	out := make([]*types.ScoredPassage, len(top))
	for i, item := range top {
		out[i] = &types.ScoredPassage{
			Passage:     *item.Item,
			Score:       item.Score,
			VectorScore: item.Score,
		}
	}
	return out, nil
}

// Count returns the number of stored passages.
func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(passagePrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
