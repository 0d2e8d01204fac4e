package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var (
	bucketCollections = []byte("collections")
	bucketManifests   = []byte("manifests")
	bucketHistory     = []byte("history")
	bucketMeta        = []byte("meta")
)

var _ port.HistoryStore = (*BoltStore)(nil)

// BoltStore is the local state file: vector collections, index manifests
// and the answer history all live in one bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketCollections, bucketManifests, bucketHistory, bucketMeta}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Append stores an answered query at the end of the history.
func (s *BoltStore) Append(record *domain.AnswerRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode answer record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
}

// Recent returns up to limit records, newest first.
func (s *BoltStore) Recent(limit int) ([]domain.AnswerRecord, error) {
	var records []domain.AnswerRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketHistory).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec domain.AnswerRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt history entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
