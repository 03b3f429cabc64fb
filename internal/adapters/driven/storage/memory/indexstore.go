package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore keeps one index snapshot in memory.
// Snapshots are copied on Save and Load so callers cannot mutate stored state.
type IndexStore struct {
	mu       sync.RWMutex
	snapshot *domain.IndexSnapshot
	saves    int
}

// NewIndexStore creates an empty in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{}
}

// Save replaces the stored snapshot.
func (s *IndexStore) Save(ctx context.Context, snapshot *domain.IndexSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = cloneSnapshot(snapshot)
	s.saves++
	return nil
}

// Load returns a copy of the stored snapshot.
func (s *IndexStore) Load(ctx context.Context) (*domain.IndexSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, domain.ErrIndexNotFound
	}
	return cloneSnapshot(s.snapshot), nil
}

// Exists reports whether a snapshot has been saved.
func (s *IndexStore) Exists(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot != nil, nil
}

// Location returns a placeholder location.
func (s *IndexStore) Location() string {
	return ":memory:"
}

// Close is a no-op.
func (s *IndexStore) Close() error {
	return nil
}

// Saves returns how many times Save succeeded.
func (s *IndexStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Put stores snapshot without validation, for simulating damaged state.
func (s *IndexStore) Put(snapshot *domain.IndexSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}

func cloneSnapshot(in *domain.IndexSnapshot) *domain.IndexSnapshot {
	out := *in
	out.Records = slices.Clone(in.Records)
	out.Vectors = make([][]float32, len(in.Vectors))
	for i, v := range in.Vectors {
		out.Vectors[i] = slices.Clone(v)
	}
	return &out
}
