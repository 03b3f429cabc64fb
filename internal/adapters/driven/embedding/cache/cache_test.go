package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder returns [len(text)] and counts the texts it embeds.
type countingEmbedder struct {
	embedded int
	err      error
	closed   bool
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.embedded++
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int              { return 1 }
func (c *countingEmbedder) ModelName() string            { return "counting" }
func (c *countingEmbedder) Ping(_ context.Context) error { return c.err }
func (c *countingEmbedder) Close() error                 { c.closed = true; return nil }

func TestEmbed_CachesByText(t *testing.T) {
	next := &countingEmbedder{}
	svc, err := New(next, 8)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := svc.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.embedded)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Size: 1}, svc.Stats())
}

func TestEmbed_ReturnedVectorsAreCopies(t *testing.T) {
	svc, err := New(&countingEmbedder{}, 8)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := svc.Embed(ctx, "abc")
	require.NoError(t, err)
	v[0] = 99

	again, err := svc.Embed(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, again)
}

func TestEmbed_ErrorsAreNotCached(t *testing.T) {
	next := &countingEmbedder{err: errors.New("down")}
	svc, err := New(next, 8)
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "x")
	require.Error(t, err)

	next.err = nil
	v, err := svc.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
}

func TestEmbedBatch_OnlyEmbedsMisses(t *testing.T) {
	next := &countingEmbedder{}
	svc, err := New(next, 8)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Embed(ctx, "a")
	require.NoError(t, err)

	vectors, err := svc.EmbedBatch(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vectors)
	assert.Equal(t, 3, next.embedded)

	_, err = svc.EmbedBatch(ctx, []string{"bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 3, next.embedded)
}

func TestEviction(t *testing.T) {
	next := &countingEmbedder{}
	svc, err := New(next, 2)
	require.NoError(t, err)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c", "a"} {
		_, err := svc.Embed(ctx, text)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, next.embedded, "a was evicted by c")
	assert.Equal(t, 2, svc.Stats().Size)
}

func TestDelegation(t *testing.T) {
	next := &countingEmbedder{}
	svc, err := New(next, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, svc.Dimensions())
	assert.Equal(t, "counting", svc.ModelName())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
	assert.True(t, next.closed)
}
