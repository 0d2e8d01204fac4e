package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"ragqa/internal/adapter/vecmath"
	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var (
	keyDimension  = []byte("dimension")
	bucketVectors = []byte("vectors")
)

var _ port.VectorIndex = (*BoltVectorIndex)(nil)

// BoltVectorIndex implements VectorIndex on a BoltStore. Each collection is a
// nested bucket. Search is brute force over an in-memory copy that is loaded
// on first use and refreshed after every committed write.
type BoltVectorIndex struct {
	db *bbolt.DB

	mu    sync.RWMutex
	cache map[string]*collectionCache
}

type collectionCache struct {
	dimension int
	entries   []cachedEntry // ordered by first insertion
}

type cachedEntry struct {
	id      string
	seq     uint64
	vector  []float32
	payload map[string]string
}

type storedVector struct {
	Seq     uint64            `json:"s"`
	Vector  []float32         `json:"v"`
	Payload map[string]string `json:"p,omitempty"`
}

func NewBoltVectorIndex(st *BoltStore) *BoltVectorIndex {
	return &BoltVectorIndex{
		db:    st.DB(),
		cache: make(map[string]*collectionCache),
	}
}

func (s *BoltVectorIndex) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketCollections).Bucket([]byte(collection)) != nil
		return nil
	})
	return exists, err
}

func (s *BoltVectorIndex) CreateCollection(ctx context.Context, collection string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketCollections).CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("failed to create collection %q: %w", collection, err)
		}
		if _, err := b.CreateBucketIfNotExists(bucketVectors); err != nil {
			return err
		}
		if existing := b.Get(keyDimension); existing != nil {
			if got := int(binary.BigEndian.Uint64(existing)); got != dimension {
				return fmt.Errorf("collection %q already exists with dimension %d", collection, got)
			}
			return nil
		}
		return b.Put(keyDimension, itob(uint64(dimension)))
	})
}

func (s *BoltVectorIndex) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketCollections).DeleteBucket([]byte(collection))
		if err == bbolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete collection %q: %w", collection, err)
	}
	delete(s.cache, collection)
	return nil
}

// Upsert writes all entries in a single transaction.
func (s *BoltVectorIndex) Upsert(ctx context.Context, collection string, entries []port.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("collection %q: %w", collection, domain.ErrCollectionNotFound)
		}
		dimension := int(binary.BigEndian.Uint64(b.Get(keyDimension)))
		vectors := b.Bucket(bucketVectors)

		for _, e := range entries {
			if len(e.Vector) != dimension {
				return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d", e.ID, dimension, len(e.Vector))
			}

			stored := storedVector{Vector: e.Vector, Payload: e.Payload}
			if prev := vectors.Get([]byte(e.ID)); prev != nil {
				var old storedVector
				if err := json.Unmarshal(prev, &old); err == nil {
					stored.Seq = old.Seq
				}
			}
			if stored.Seq == 0 {
				seq, err := vectors.NextSequence()
				if err != nil {
					return err
				}
				stored.Seq = seq
			}

			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := vectors.Put([]byte(e.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Reload lazily on the next search so the cache only ever reflects
	// committed state.
	delete(s.cache, collection)
	return nil
}

// Search scores every vector of the collection by cosine similarity.
func (s *BoltVectorIndex) Search(ctx context.Context, collection string, vector []float32, k int) ([]port.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", c.dimension, len(vector))
	}

	scored := make([]vecmath.Scored, len(c.entries))
	for i, e := range c.entries {
		scored[i] = vecmath.Scored{Pos: i, Score: vecmath.Cosine(vector, e.vector)}
	}

	top := vecmath.TopK(scored, k)
	hits := make([]port.SearchHit, len(top))
	for i, sc := range top {
		e := c.entries[sc.Pos]
		hits[i] = port.SearchHit{ID: e.id, Score: sc.Score, Payload: e.payload}
	}
	return hits, nil
}

// Count returns the number of vectors stored in collection.
func (s *BoltVectorIndex) Count(ctx context.Context, collection string) (int, error) {
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return len(c.entries), nil
}

func (s *BoltVectorIndex) collection(name string) (*collectionCache, error) {
	s.mu.RLock()
	c, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cache[name]; ok {
		return c, nil
	}

	c = &collectionCache{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCollections).Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound)
		}
		c.dimension = int(binary.BigEndian.Uint64(b.Get(keyDimension)))

		return b.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("corrupt vector %s: %w", k, err)
			}
			c.entries = append(c.entries, cachedEntry{
				id:      string(k),
				seq:     stored.Seq,
				vector:  stored.Vector,
				payload: stored.Payload,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(c.entries, func(i, j int) bool {
		return c.entries[i].seq < c.entries[j].seq
	})
	s.cache[name] = c
	return c, nil
}
