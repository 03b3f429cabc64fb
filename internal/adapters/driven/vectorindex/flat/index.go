// Package flat provides an exact nearest-neighbour index over question/answer
// records using squared Euclidean distance.
//
// The index holds an immutable snapshot behind an atomic pointer. Queries read
// the current snapshot without locking; Build and Load construct a complete
// replacement and publish it with a single swap, so readers never observe a
// partially built index.
package flat

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Config holds configuration for the flat index.
type Config struct {
	// Language is the partition tag, used in logs and Info.
	Language string

	// Backend names the snapshot store, used in Info.
	Backend string

	// BatchSize is the number of documents per EmbedBatch call (default: 64).
	BatchSize int

	// Concurrency bounds parallel EmbedBatch calls during Build (default: 4).
	Concurrency int
}

// Index is an exact L2 index.
type Index struct {
	embedder driven.EmbeddingService
	store    driven.IndexStore
	cfg      Config

	// mu serialises Build, Load and Save.
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

type entry struct {
	record domain.QARecord
	vector []float32
}

type snapshot struct {
	entries []entry
	dims    int
	model   string
	builtAt time.Time
}

// New creates an empty index. store may be nil when persistence is not needed.
func New(embedder driven.EmbeddingService, store driven.IndexStore, cfg Config) *Index {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Index{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}
}

// Build embeds records and publishes them as the new index contents.
// Invalid records are skipped. With opts.Replace, vectors for documents whose
// text is unchanged are reused from the current snapshot.
func (ix *Index) Build(ctx context.Context, records []domain.QARecord, opts driven.BuildOptions) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	defer logger.Timed("build index " + ix.cfg.Language)()

	current := ix.snap.Load()
	if current != nil && !opts.Replace {
		return domain.ErrIndexAlreadyBuilt
	}

	dims := ix.embedder.Dimensions()
	model := ix.embedder.ModelName()

	reuse := make(map[string][]float32)
	if current != nil && current.dims == dims && current.model == model {
		for _, e := range current.entries {
			reuse[e.record.DocumentText()] = e.vector
		}
	}

	entries := make([]entry, 0, len(records))
	var pending []int
	for _, r := range records {
		if !r.Valid() {
			logger.Warn("index %s: skipping record %q with empty question or answer", ix.cfg.Language, r.ID)
			continue
		}
		e := entry{record: r}
		if v, ok := reuse[r.DocumentText()]; ok {
			e.vector = v
		} else {
			pending = append(pending, len(entries))
		}
		entries = append(entries, e)
	}
	logger.Debug("index %s: %d records, %d to embed, %d reused",
		ix.cfg.Language, len(entries), len(pending), len(entries)-len(pending))

	if err := ix.embedPending(ctx, entries, pending, opts.Progress); err != nil {
		return err
	}

	for i := range entries {
		if dims == 0 {
			dims = len(entries[i].vector)
		}
		if len(entries[i].vector) != dims {
			return fmt.Errorf("%w: record %q has %d dimensions, expected %d",
				domain.ErrEmbeddingService, entries[i].record.ID, len(entries[i].vector), dims)
		}
	}

	ix.snap.Store(&snapshot{
		entries: entries,
		dims:    dims,
		model:   model,
		builtAt: time.Now().UTC(),
	})
	logger.Info("index %s built with %d entries", ix.cfg.Language, len(entries))
	return nil
}

// embedPending fills in vectors for entries[pending[i]] in bounded parallel batches.
func (ix *Index) embedPending(ctx context.Context, entries []entry, pending []int, progress func(int, int)) error {
	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Concurrency)

	var done atomic.Int64
	for start := 0; start < len(pending); start += ix.cfg.BatchSize {
		batch := pending[start:min(start+ix.cfg.BatchSize, len(pending))]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, i := range batch {
				texts[j] = entries[i].record.DocumentText()
			}

			vectors, err := ix.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch at %d: %w", start, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: batch at %d returned %d vectors for %d texts",
					domain.ErrEmbeddingService, start, len(vectors), len(batch))
			}
			for j, i := range batch {
				entries[i].vector = vectors[j]
			}

			n := done.Add(int64(len(batch)))
			if progress != nil {
				progress(int(n), len(pending))
			}
			return nil
		})
	}

	return g.Wait()
}

// Query embeds text and returns the k nearest records.
// The embedding call holds no lock.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]driven.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	if snap := ix.snap.Load(); snap == nil || len(snap.entries) == 0 {
		return nil, domain.ErrIndexNotInitialized
	}

	vector, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return ix.QueryVector(ctx, vector, k)
}

// QueryVector returns the k records nearest to vector, closest first.
// Ties keep insertion order.
func (ix *Index) QueryVector(_ context.Context, vector []float32, k int) ([]driven.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}

	snap := ix.snap.Load()
	if snap == nil || len(snap.entries) == 0 {
		return nil, domain.ErrIndexNotInitialized
	}
	if len(vector) != snap.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrIndexCorrupt, len(vector), snap.dims)
	}

	type scored struct {
		pos  int
		dist float64
	}
	scores := make([]scored, len(snap.entries))
	for i := range snap.entries {
		scores[i] = scored{pos: i, dist: squaredL2(vector, snap.entries[i].vector)}
	}
	slices.SortStableFunc(scores, func(a, b scored) int {
		return cmp.Compare(a.dist, b.dist)
	})

	k = min(k, len(scores))
	matches := make([]driven.Match, k)
	for i := 0; i < k; i++ {
		matches[i] = driven.Match{
			Record:   snap.entries[scores[i].pos].record,
			Distance: scores[i].dist,
		}
	}
	return matches, nil
}

// Save persists the current snapshot.
func (ix *Index) Save(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.store == nil {
		return errors.New("index has no store")
	}
	snap := ix.snap.Load()
	if snap == nil {
		return domain.ErrIndexNotInitialized
	}

	if err := ix.store.Save(ctx, snap.export()); err != nil {
		return fmt.Errorf("save index %s: %w", ix.cfg.Language, err)
	}
	logger.Info("index %s saved to %s", ix.cfg.Language, ix.store.Location())
	return nil
}

// Load replaces the index contents with the persisted snapshot.
// A snapshot whose dimensionality or model differs from the configured
// embedder is rejected with domain.ErrIndexCorrupt.
func (ix *Index) Load(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.store == nil {
		return errors.New("index has no store")
	}

	stored, err := ix.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load index %s: %w", ix.cfg.Language, err)
	}
	if err := stored.Validate(); err != nil {
		return fmt.Errorf("load index %s: inconsistent snapshot: %w", ix.cfg.Language, err)
	}

	if want := ix.embedder.Dimensions(); want > 0 && stored.Dimensions != want {
		return fmt.Errorf("load index %s: %w: stored vectors have %d dimensions, embedder produces %d",
			ix.cfg.Language, domain.ErrIndexCorrupt, stored.Dimensions, want)
	}
	if want := ix.embedder.ModelName(); stored.Model != "" && want != "" && stored.Model != want {
		return fmt.Errorf("load index %s: %w: built with model %q, embedder uses %q",
			ix.cfg.Language, domain.ErrIndexCorrupt, stored.Model, want)
	}

	ix.snap.Store(importSnapshot(stored))
	logger.Info("index %s loaded with %d entries", ix.cfg.Language, stored.Len())
	return nil
}

// Info summarises the current contents.
func (ix *Index) Info() domain.IndexInfo {
	info := domain.IndexInfo{
		Language: ix.cfg.Language,
		Backend:  ix.cfg.Backend,
	}
	if snap := ix.snap.Load(); snap != nil {
		info.Initialized = true
		info.Entries = len(snap.entries)
		info.Dimensions = snap.dims
		info.Model = snap.model
		info.BuiltAt = snap.builtAt
	}
	return info
}

// Close releases the snapshot store.
func (ix *Index) Close() error {
	if ix.store == nil {
		return nil
	}
	return ix.store.Close()
}

func (s *snapshot) export() *domain.IndexSnapshot {
	out := &domain.IndexSnapshot{
		Dimensions: s.dims,
		Model:      s.model,
		Records:    make([]domain.QARecord, len(s.entries)),
		Vectors:    make([][]float32, len(s.entries)),
		BuiltAt:    s.builtAt,
	}
	for i, e := range s.entries {
		out.Records[i] = e.record
		out.Vectors[i] = e.vector
	}
	return out
}

func importSnapshot(s *domain.IndexSnapshot) *snapshot {
	entries := make([]entry, len(s.Records))
	for i := range s.Records {
		entries[i] = entry{record: s.Records[i], vector: s.Vectors[i]}
	}
	return &snapshot{
		entries: entries,
		dims:    s.Dimensions,
		model:   s.Model,
		builtAt: s.BuiltAt,
	}
}

// squaredL2 returns the squared Euclidean distance between a and b.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
