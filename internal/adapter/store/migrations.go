package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the current layout of the state file.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var keySchemaVersion = []byte("schema_version")

// IndexSettings are the settings a collection's vectors depend on. Vectors
// built under different settings are not comparable.
type IndexSettings struct {
	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model"`
	Dimension         int    `json:"dimension"`
	ChunkSize         int    `json:"chunk_size"`
	ChunkOverlap      int    `json:"chunk_overlap"`
}

// Hash returns a short stable fingerprint of the settings.
func (s IndexSettings) Hash() string {
	data, _ := json.Marshal(s)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// Manifest records how a collection was built.
type Manifest struct {
	SchemaVersion int           `json:"schema_version"`
	ConfigHash    string        `json:"config_hash"`
	Settings      IndexSettings `json:"settings"`
}

// ManifestCheck describes whether a collection can be written with the
// current settings.
type ManifestCheck struct {
	Found        bool
	NeedsRebuild bool
	Reason       string
	Previous     *Manifest
}

func (s *BoltStore) GetManifest(collection string) (*Manifest, error) {
	var m *Manifest
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketManifests).Get([]byte(collection))
		if data == nil {
			return nil
		}
		m = &Manifest{}
		return json.Unmarshal(data, m)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest for %q: %w", collection, err)
	}
	return m, nil
}

func (s *BoltStore) PutManifest(collection string, settings IndexSettings) error {
	data, err := json.Marshal(Manifest{
		SchemaVersion: CurrentSchemaVersion,
		ConfigHash:    settings.Hash(),
		Settings:      settings,
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketMeta).Put(keySchemaVersion, itob(CurrentSchemaVersion)); err != nil {
			return err
		}
		return tx.Bucket(bucketManifests).Put([]byte(collection), data)
	})
}

func (s *BoltStore) DeleteManifest(collection string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketManifests).Delete([]byte(collection))
	})
}

// CheckManifest compares the stored manifest of collection with settings.
func (s *BoltStore) CheckManifest(collection string, settings IndexSettings) (*ManifestCheck, error) {
	m, err := s.GetManifest(collection)
	if err != nil {
		return nil, err
	}

	check := &ManifestCheck{Found: m != nil, Previous: m}
	switch {
	case m == nil:
		return check, nil
	case m.SchemaVersion > CurrentSchemaVersion:
		check.NeedsRebuild = true
		check.Reason = fmt.Sprintf("collection written by a newer version (v%d > v%d)", m.SchemaVersion, CurrentSchemaVersion)
	case m.ConfigHash != settings.Hash():
		check.NeedsRebuild = true
		check.Reason = describeChange(m.Settings, settings)
	}
	return check, nil
}

func describeChange(old, cur IndexSettings) string {
	switch {
	case old.EmbeddingProvider != cur.EmbeddingProvider || old.EmbeddingModel != cur.EmbeddingModel:
		return fmt.Sprintf("embedding model changed from %s/%s to %s/%s",
			old.EmbeddingProvider, old.EmbeddingModel, cur.EmbeddingProvider, cur.EmbeddingModel)
	case old.Dimension != cur.Dimension:
		return fmt.Sprintf("embedding dimension changed from %d to %d", old.Dimension, cur.Dimension)
	default:
		return fmt.Sprintf("chunking changed from %d/%d to %d/%d",
			old.ChunkSize, old.ChunkOverlap, cur.ChunkSize, cur.ChunkOverlap)
	}
}
