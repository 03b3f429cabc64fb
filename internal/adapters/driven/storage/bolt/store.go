// Package bolt persists vector index snapshots in a bbolt database file.
//
// Every partition is a top-level bucket holding a "meta" key and a nested
// "entries" bucket keyed by big-endian position. A save replaces the whole
// partition bucket inside one update transaction.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "index.bolt"

var (
	keyMeta       = []byte("meta")
	bucketEntries = []byte("entries")
)

// Store is a bbolt database holding index snapshots for all partitions.
type Store struct {
	db   *bbolt.DB
	path string
}

// NewStore opens (or creates) the database in dataDir.
// If dataDir is empty, defaults to ~/.stackqa/index.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".stackqa", "index")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, DatabaseFile)
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// IndexStore returns the snapshot store for one language partition.
func (s *Store) IndexStore(partition string) driven.IndexStore {
	return &indexStore{store: s, partition: partition}
}

type meta struct {
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	Entries    int       `json:"entries"`
	BuiltAt    time.Time `json:"built_at"`
}

type storedEntry struct {
	Record domain.QARecord `json:"record"`
	Vector []float32       `json:"vector"`
}

type indexStore struct {
	store     *Store
	partition string
}

var _ driven.IndexStore = (*indexStore)(nil)

func (s *indexStore) bucket() []byte {
	return []byte("partition:" + s.partition)
}

// Save replaces the partition bucket.
func (s *indexStore) Save(ctx context.Context, snapshot *domain.IndexSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	return s.store.db.Update(func(tx *bbolt.Tx) error {
		name := s.bucket()
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("deleting previous snapshot: %w", err)
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return fmt.Errorf("creating partition bucket: %w", err)
		}

		data, err := json.Marshal(meta{
			Dimensions: snapshot.Dimensions,
			Model:      snapshot.Model,
			Entries:    snapshot.Len(),
			BuiltAt:    snapshot.BuiltAt.UTC(),
		})
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		if err := b.Put(keyMeta, data); err != nil {
			return fmt.Errorf("writing metadata: %w", err)
		}

		entries, err := b.CreateBucket(bucketEntries)
		if err != nil {
			return fmt.Errorf("creating entries bucket: %w", err)
		}
		for i, r := range snapshot.Records {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := json.Marshal(storedEntry{Record: r, Vector: snapshot.Vectors[i]})
			if err != nil {
				return fmt.Errorf("encoding entry %d: %w", i, err)
			}
			if err := entries.Put(positionKey(i), data); err != nil {
				return fmt.Errorf("writing entry %d: %w", i, err)
			}
		}
		return nil
	})
}

// Load reads the partition bucket.
func (s *indexStore) Load(ctx context.Context) (*domain.IndexSnapshot, error) {
	var snapshot *domain.IndexSnapshot

	err := s.store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket())
		if b == nil {
			return domain.ErrIndexNotFound
		}

		raw := b.Get(keyMeta)
		if raw == nil {
			return fmt.Errorf("%w: missing metadata", domain.ErrIndexCorrupt)
		}
		var m meta
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("%w: decoding metadata: %v", domain.ErrIndexCorrupt, err)
		}

		snapshot = &domain.IndexSnapshot{
			Dimensions: m.Dimensions,
			Model:      m.Model,
			BuiltAt:    m.BuiltAt,
		}

		entries := b.Bucket(bucketEntries)
		if entries == nil {
			return fmt.Errorf("%w: missing entries", domain.ErrIndexCorrupt)
		}

		// bbolt slices are only valid inside the transaction; json.Unmarshal copies.
		err := entries.ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e storedEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("%w: decoding entry: %v", domain.ErrIndexCorrupt, err)
			}
			snapshot.Records = append(snapshot.Records, e.Record)
			snapshot.Vectors = append(snapshot.Vectors, e.Vector)
			return nil
		})
		if err != nil {
			return err
		}

		if snapshot.Len() != m.Entries {
			return fmt.Errorf("%w: metadata lists %d entries, found %d",
				domain.ErrIndexCorrupt, m.Entries, snapshot.Len())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return snapshot, nil
}

// Exists reports whether the partition bucket exists.
func (s *indexStore) Exists(_ context.Context) (bool, error) {
	var exists bool
	err := s.store.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(s.bucket()) != nil
		return nil
	})
	return exists, err
}

// Location returns the database path and partition.
func (s *indexStore) Location() string {
	return s.store.path + "#" + s.partition
}

// Close is a no-op; the database is closed through Store.Close.
func (s *indexStore) Close() error {
	return nil
}

func positionKey(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}
