package driven

import (
	"context"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

// VectorIndex is a nearest-neighbour index over question/answer records.
//
// Queries may run concurrently with each other and never observe a partially
// built or loaded index. Build, Load and Save are mutually exclusive.
type VectorIndex interface {
	// Build embeds every record and replaces the index contents.
	// Returns domain.ErrIndexAlreadyBuilt when already initialised and opts.Replace is false.
	Build(ctx context.Context, records []domain.QARecord, opts BuildOptions) error

	// Query returns up to k matches ordered by ascending distance.
	// Returns domain.ErrIndexNotInitialized when the index is empty or was never built.
	Query(ctx context.Context, text string, k int) ([]Match, error)

	// QueryVector is Query with a precomputed embedding.
	QueryVector(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Save persists the current snapshot.
	Save(ctx context.Context) error

	// Load replaces the index contents with the persisted snapshot.
	// Returns domain.ErrIndexNotFound or domain.ErrIndexCorrupt.
	Load(ctx context.Context) error

	// Info summarises the current contents.
	Info() domain.IndexInfo

	// Close releases resources.
	Close() error
}

// BuildOptions configures an index build.
type BuildOptions struct {
	// Replace allows rebuilding an already initialised index.
	Replace bool

	// Progress, when set, is called after each embedded batch.
	Progress func(done, total int)
}

// Match is one raw index hit.
type Match struct {
	Record domain.QARecord

	// Distance is the squared Euclidean distance to the query. Lower is closer.
	Distance float64
}

// IndexStore persists whole index snapshots.
// Save must be atomic: a concurrent or crashed save never leaves a partial snapshot.
type IndexStore interface {
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snapshot *domain.IndexSnapshot) error

	// Load returns the stored snapshot.
	// Returns domain.ErrIndexNotFound when nothing is stored and
	// domain.ErrIndexCorrupt when the stored data cannot be decoded.
	Load(ctx context.Context) (*domain.IndexSnapshot, error)

	// Exists reports whether a snapshot is stored.
	Exists(ctx context.Context) (bool, error)

	// Location describes where snapshots are kept.
	Location() string

	// Close releases resources.
	Close() error
}
