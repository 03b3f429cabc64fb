// Package file persists vector index snapshots as directory bundles.
//
// Each partition lives in <root>/<partition>/ and holds two files:
//
//   - vectors.gob: gob-encoded records and vectors
//   - meta.json:   dimensions, model, entry count and the sha256 of vectors.gob
//
// A save writes a complete bundle into a temporary directory and swaps it into
// place with renames. The previous bundle is kept as <partition>.bak until the
// swap completes and is used by Load if the swap was interrupted.
package file

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// Bundle file names.
const (
	VectorsFile = "vectors.gob"
	MetaFile    = "meta.json"
)

// formatVersion is bumped when the bundle layout changes.
const formatVersion = 1

// Store is a directory of per-partition snapshot bundles.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
// If dir is empty, defaults to ~/.stackqa/index.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".stackqa", "index")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// IndexStore returns the snapshot store for one language partition.
func (s *Store) IndexStore(partition string) driven.IndexStore {
	return &indexStore{root: s.root, partition: partition}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// meta is the JSON sidecar.
type meta struct {
	Version    int       `json:"version"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	Entries    int       `json:"entries"`
	BuiltAt    time.Time `json:"built_at"`
	Checksum   string    `json:"sha256"`
}

// bundle is the gob payload.
type bundle struct {
	Records []domain.QARecord
	Vectors [][]float32
}

type indexStore struct {
	root      string
	partition string
}

var _ driven.IndexStore = (*indexStore)(nil)

func (s *indexStore) dir() string {
	return filepath.Join(s.root, s.partition)
}

func (s *indexStore) backupDir() string {
	return filepath.Join(s.root, s.partition+".bak")
}

func (s *indexStore) checkPartition() error {
	p := s.partition
	if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) {
		return fmt.Errorf("%w: invalid partition name %q", domain.ErrInvalidInput, p)
	}
	return nil
}

// Save writes snapshot as a new bundle and swaps it into place.
func (s *indexStore) Save(ctx context.Context, snapshot *domain.IndexSnapshot) error {
	if err := s.checkPartition(); err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	tmp, err := os.MkdirTemp(s.root, "."+s.partition+"-*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	sum, err := writeVectors(filepath.Join(tmp, VectorsFile), snapshot)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := meta{
		Version:    formatVersion,
		Dimensions: snapshot.Dimensions,
		Model:      snapshot.Model,
		Entries:    snapshot.Len(),
		BuiltAt:    snapshot.BuiltAt.UTC(),
		Checksum:   sum,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, MetaFile), data, 0600); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	return s.swap(tmp)
}

// swap moves tmp into place, keeping the previous bundle as a backup until done.
func (s *indexStore) swap(tmp string) error {
	final, backup := s.dir(), s.backupDir()

	if err := os.RemoveAll(backup); err != nil {
		return fmt.Errorf("removing stale backup: %w", err)
	}
	hadPrevious := true
	if err := os.Rename(final, backup); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("moving previous bundle aside: %w", err)
		}
		hadPrevious = false
	}
	if err := os.Rename(tmp, final); err != nil {
		if hadPrevious {
			_ = os.Rename(backup, final)
		}
		return fmt.Errorf("moving bundle into place: %w", err)
	}
	if hadPrevious {
		if err := os.RemoveAll(backup); err != nil {
			logger.Warn("index %s: could not remove backup %s: %v", s.partition, backup, err)
		}
	}
	return nil
}

func writeVectors(path string, snapshot *domain.IndexSnapshot) (string, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("creating vectors file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	enc := gob.NewEncoder(io.MultiWriter(f, h))
	if err := enc.Encode(bundle{Records: snapshot.Records, Vectors: snapshot.Vectors}); err != nil {
		return "", fmt.Errorf("encoding vectors: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing vectors file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing vectors file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Load reads the bundle, falling back to the backup left by an interrupted save.
func (s *indexStore) Load(ctx context.Context) (*domain.IndexSnapshot, error) {
	if err := s.checkPartition(); err != nil {
		return nil, err
	}

	dir := s.dir()
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if _, berr := os.Stat(s.backupDir()); berr != nil {
			return nil, domain.ErrIndexNotFound
		}
		logger.Warn("index %s: loading backup bundle from interrupted save", s.partition)
		dir = s.backupDir()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readBundle(dir)
}

func readBundle(dir string) (*domain.IndexSnapshot, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrIndexCorrupt, MetaFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decoding metadata: %v", domain.ErrIndexCorrupt, err)
	}
	if m.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported bundle version %d", domain.ErrIndexCorrupt, m.Version)
	}

	raw, err := os.ReadFile(filepath.Join(dir, VectorsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrIndexCorrupt, VectorsFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading vectors: %w", err)
	}
	sum := sha256.Sum256(raw)
	if hex.EncodeToString(sum[:]) != m.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", domain.ErrIndexCorrupt)
	}

	var b bundle
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: decoding vectors: %v", domain.ErrIndexCorrupt, err)
	}

	snapshot := &domain.IndexSnapshot{
		Dimensions: m.Dimensions,
		Model:      m.Model,
		Records:    b.Records,
		Vectors:    b.Vectors,
		BuiltAt:    m.BuiltAt,
	}
	if snapshot.Len() != m.Entries {
		return nil, fmt.Errorf("%w: metadata lists %d entries, found %d",
			domain.ErrIndexCorrupt, m.Entries, snapshot.Len())
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return snapshot, nil
}

// Exists reports whether a bundle (or its backup) is present.
func (s *indexStore) Exists(_ context.Context) (bool, error) {
	if err := s.checkPartition(); err != nil {
		return false, err
	}
	for _, dir := range []string{s.dir(), s.backupDir()} {
		_, err := os.Stat(filepath.Join(dir, MetaFile))
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("checking bundle: %w", err)
		}
	}
	return false, nil
}

// Location returns the bundle directory.
func (s *indexStore) Location() string {
	return s.dir()
}

// Close is a no-op.
func (s *indexStore) Close() error {
	return nil
}
