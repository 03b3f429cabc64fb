package flat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stackqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// mockEmbedder returns fixed vectors per text. Unknown texts map to the zero vector.
type mockEmbedder struct {
	dims    int
	model   string
	vectors map[string][]float32
	err     error

	// block, when set, stalls Embed and EmbedBatch for texts in blockOn
	// until the channel is closed.
	block   chan struct{}
	blockOn map[string]bool

	embedded atomic.Int64
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, model: "mock", vectors: map[string][]float32{}}
}

func (m *mockEmbedder) vector(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return make([]float32, m.dims)
}

func (m *mockEmbedder) wait(ctx context.Context, text string) error {
	if m.block == nil || !m.blockOn[text] {
		return nil
	}
	select {
	case <-m.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := m.wait(ctx, text); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := m.wait(ctx, text); err != nil {
			return nil, err
		}
		if m.err != nil {
			return nil, m.err
		}
		out[i] = m.vector(text)
	}
	m.embedded.Add(int64(len(texts)))
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return m.model }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

var _ driven.EmbeddingService = (*mockEmbedder)(nil)

func record(id, question, answer string) domain.QARecord {
	return domain.QARecord{ID: id, Question: question, Answer: answer, SourceLink: "https://so.test/" + id}
}

// lineEmbedder places three records on a line at x=0, 1 and 3.
func lineEmbedder() (*mockEmbedder, []domain.QARecord) {
	emb := newMockEmbedder(2)
	records := []domain.QARecord{
		record("a", "qa", "answer a"),
		record("b", "qb", "answer b"),
		record("c", "qc", "answer c"),
	}
	emb.vectors[records[0].DocumentText()] = []float32{0, 0}
	emb.vectors[records[1].DocumentText()] = []float32{1, 0}
	emb.vectors[records[2].DocumentText()] = []float32{3, 0}
	return emb, records
}

func TestIndex_QueryBeforeBuild(t *testing.T) {
	ix := New(newMockEmbedder(4), nil, Config{})

	_, err := ix.Query(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, domain.ErrIndexNotInitialized)
	assert.False(t, ix.Info().Initialized)
}

func TestIndex_QueryEmptyBuild(t *testing.T) {
	ix := New(newMockEmbedder(4), nil, Config{})
	require.NoError(t, ix.Build(context.Background(), nil, driven.BuildOptions{}))

	_, err := ix.Query(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, domain.ErrIndexNotInitialized)
	assert.True(t, ix.Info().Initialized)
	assert.Equal(t, 0, ix.Info().Entries)
}

func TestIndex_QueryOrdersByDistance(t *testing.T) {
	emb, records := lineEmbedder()
	emb.vectors["query"] = []float32{2.9, 0}

	ix := New(emb, nil, Config{Language: "csharp"})
	require.NoError(t, ix.Build(context.Background(), records, driven.BuildOptions{}))

	matches, err := ix.Query(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "c", matches[0].Record.ID)
	assert.Equal(t, "b", matches[1].Record.ID)
	assert.Equal(t, "a", matches[2].Record.ID)
	assert.InDelta(t, 0.01, matches[0].Distance, 1e-6)
	assert.InDelta(t, 3.61, matches[1].Distance, 1e-6)
	assert.InDelta(t, 8.41, matches[2].Distance, 1e-6)
}

func TestIndex_QueryTruncatesToK(t *testing.T) {
	emb, records := lineEmbedder()
	ix := New(emb, nil, Config{})
	require.NoError(t, ix.Build(context.Background(), records, driven.BuildOptions{}))

	matches, err := ix.QueryVector(context.Background(), []float32{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Record.ID)
	assert.Zero(t, matches[0].Distance)

	matches, err = ix.QueryVector(context.Background(), []float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestIndex_QueryTiesKeepInsertionOrder(t *testing.T) {
	emb := newMockEmbedder(1)
	records := []domain.QARecord{
		record("first", "q1", "a"),
		record("second", "q2", "a"),
		record("third", "q3", "a"),
	}
	ix := New(emb, nil, Config{})
	require.NoError(t, ix.Build(context.Background(), records, driven.BuildOptions{}))

	matches, err := ix.QueryVector(context.Background(), []float32{0}, 3)
	require.NoError(t, err)
	assert.Equal(t, "first", matches[0].Record.ID)
	assert.Equal(t, "second", matches[1].Record.ID)
	assert.Equal(t, "third", matches[2].Record.ID)
}

func TestIndex_QueryInvalidK(t *testing.T) {
	emb, records := lineEmbedder()
	ix := New(emb, nil, Config{})
	require.NoError(t, ix.Build(context.Background(), records, driven.BuildOptions{}))

	_, err := ix.Query(context.Background(), "q", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndex_QueryVectorDimensionMismatch(t *testing.T) {
	emb, records := lineEmbedder()
	ix := New(emb, nil, Config{})
	require.NoError(t, ix.Build(context.Background(), records, driven.BuildOptions{}))

	_, err := ix.QueryVector(context.Background(), []float32{0, 0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
}

func TestIndex_QueryEmbedError(t *testing.T) {
	emb, records := lineEmbedder()
	ix := New(emb, nil, Config{})
	require.NoError(t, ix.Build(context.Background(), records, driven.BuildOptions{}))

	emb.err = domain.ErrEmbeddingService
	_, err := ix.Query(context.Background(), "q", 1)
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
}

func TestIndex_BuildTwiceWithoutReplace(t *testing.T) {
	emb, records := lineEmbedder()
	ix := New(emb, nil, Config{})
	require.NoError(t, ix.Build(context.Background(), records, driven.BuildOptions{}))

	err := ix.Build(context.Background(), records[:1], driven.BuildOptions{})
	assert.ErrorIs(t, err, domain.ErrIndexAlreadyBuilt)
	assert.Equal(t, 3, ix.Info().Entries)
}

func TestIndex_BuildReplaceReusesVectors(t *testing.T) {
	emb, records := lineEmbedder()
	ix := New(emb, nil, Config{BatchSize: 1})
	require.NoError(t, ix.Build(context.Background(), records, driven.BuildOptions{}))
	require.Equal(t, int64(3), emb.embedded.Load())

	updated := append([]domain.QARecord{}, records...)
	updated = append(updated, record("d", "qd", "answer d"))

	require.NoError(t, ix.Build(context.Background(), updated, driven.BuildOptions{Replace: true}))
	assert.Equal(t, int64(4), emb.embedded.Load())
	assert.Equal(t, 4, ix.Info().Entries)
}

func TestIndex_BuildSkipsInvalidRecords(t *testing.T) {
	emb := newMockEmbedder(2)
	records := []domain.QARecord{
		record("ok", "question", "answer"),
		record("no-answer", "question", "  "),
		record("no-question", "", "answer"),
	}
	ix := New(emb, nil, Config{})
	require.NoError(t, ix.Build(context.Background(), records, driven.BuildOptions{}))
	assert.Equal(t, 1, ix.Info().Entries)
}

func TestIndex_BuildReportsProgress(t *testing.T) {
	emb := newMockEmbedder(2)
	var records []domain.QARecord
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		records = append(records, record(id, "q"+id, "a"+id))
	}

	var mu sync.Mutex
	var last, total int
	ix := New(emb, nil, Config{BatchSize: 2, Concurrency: 2})
	err := ix.Build(context.Background(), records, driven.BuildOptions{
		Progress: func(done, all int) {
			mu.Lock()
			defer mu.Unlock()
			last = max(last, done)
			total = all
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, last)
	assert.Equal(t, 5, total)
}

func TestIndex_BuildEmbedErrorKeepsPreviousSnapshot(t *testing.T) {
	emb, records := lineEmbedder()
	ix := New(emb, nil, Config{})
	require.NoError(t, ix.Build(context.Background(), records, driven.BuildOptions{}))

	emb.err = errors.New("boom")
	err := ix.Build(context.Background(), []domain.QARecord{record("x", "qx", "ax")}, driven.BuildOptions{Replace: true})
	require.Error(t, err)

	assert.Equal(t, 3, ix.Info().Entries)
}

func TestIndex_BuildRejectsWrongVectorLength(t *testing.T) {
	emb := newMockEmbedder(2)
	r := record("a", "q", "a")
	emb.vectors[r.DocumentText()] = []float32{1, 2, 3}

	ix := New(emb, nil, Config{})
	err := ix.Build(context.Background(), []domain.QARecord{r}, driven.BuildOptions{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.False(t, ix.Info().Initialized)
}

func TestIndex_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewIndexStore()
	emb, records := lineEmbedder()

	ix := New(emb, store, Config{Language: "csharp", Backend: "memory"})
	require.NoError(t, ix.Build(ctx, records, driven.BuildOptions{}))
	require.NoError(t, ix.Save(ctx))

	restored := New(emb, store, Config{Language: "csharp", Backend: "memory"})
	require.NoError(t, restored.Load(ctx))

	want, err := ix.QueryVector(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	got, err := restored.QueryVector(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info := restored.Info()
	assert.Equal(t, 3, info.Entries)
	assert.Equal(t, 2, info.Dimensions)
	assert.Equal(t, "mock", info.Model)
	assert.Equal(t, "memory", info.Backend)
}

func TestIndex_LoadDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewIndexStore()

	small := newMockEmbedder(768)
	ix := New(small, store, Config{})
	require.NoError(t, ix.Build(ctx, []domain.QARecord{record("a", "q", "a")}, driven.BuildOptions{}))
	require.NoError(t, ix.Save(ctx))

	large := newMockEmbedder(1536)
	restored := New(large, store, Config{})
	err := restored.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
	assert.False(t, restored.Info().Initialized)
}

func TestIndex_LoadModelMismatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewIndexStore()

	emb, records := lineEmbedder()
	ix := New(emb, store, Config{})
	require.NoError(t, ix.Build(ctx, records, driven.BuildOptions{}))
	require.NoError(t, ix.Save(ctx))

	other := newMockEmbedder(2)
	other.model = "other"
	err := New(other, store, Config{}).Load(ctx)
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
}

func TestIndex_LoadInconsistentSnapshot(t *testing.T) {
	store := memory.NewIndexStore()
	store.Put(&domain.IndexSnapshot{
		Dimensions: 2,
		Records:    []domain.QARecord{record("a", "q", "a")},
	})

	err := New(newMockEmbedder(2), store, Config{}).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
}

func TestIndex_LoadMissing(t *testing.T) {
	err := New(newMockEmbedder(2), memory.NewIndexStore(), Config{}).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}

func TestIndex_SaveBeforeBuild(t *testing.T) {
	err := New(newMockEmbedder(2), memory.NewIndexStore(), Config{}).Save(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexNotInitialized)
}

func TestIndex_QueryDuringRebuild(t *testing.T) {
	ctx := context.Background()
	emb, records := lineEmbedder()
	ix := New(emb, nil, Config{})
	require.NoError(t, ix.Build(ctx, records, driven.BuildOptions{}))

	slow := record("slow", "qs", "as")
	emb.block = make(chan struct{})
	emb.blockOn = map[string]bool{slow.DocumentText(): true}

	buildDone := make(chan error, 1)
	go func() {
		buildDone <- ix.Build(ctx, []domain.QARecord{slow}, driven.BuildOptions{Replace: true})
	}()

	// Queries are served from the old snapshot while the rebuild is embedding.
	queryDone := make(chan []driven.Match, 1)
	go func() {
		matches, err := ix.QueryVector(ctx, []float32{0, 0}, 1)
		if err == nil {
			queryDone <- matches
		}
	}()

	select {
	case matches := <-queryDone:
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].Record.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("query blocked by rebuild")
	}

	close(emb.block)
	require.NoError(t, <-buildDone)
	assert.Equal(t, 1, ix.Info().Entries)
}

func TestIndex_ConcurrentQueries(t *testing.T) {
	ctx := context.Background()
	emb, records := lineEmbedder()
	ix := New(emb, nil, Config{})
	require.NoError(t, ix.Build(ctx, records, driven.BuildOptions{}))

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			matches, err := ix.QueryVector(ctx, []float32{3, 0}, 1)
			if err != nil {
				errs <- err
				return
			}
			if matches[0].Record.ID != "c" {
				errs <- errors.New("unexpected nearest record " + matches[0].Record.ID)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestSquaredL2(t *testing.T) {
	assert.InDelta(t, 25.0, squaredL2([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.Zero(t, squaredL2([]float32{1, 2}, []float32{1, 2}))
}
