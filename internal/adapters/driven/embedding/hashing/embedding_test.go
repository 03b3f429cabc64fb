package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})
	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.Equal(t, "hashing-384", s.ModelName())
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

func TestEmbed_DeterministicAndNormalised(t *testing.T) {
	s := NewEmbeddingService(Config{Dimensions: 64})
	ctx := context.Background()

	a, err := s.Embed(ctx, "How to join strings?")
	require.NoError(t, err)
	b, err := s.Embed(ctx, "How to join strings?")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestEmbed_EmptyTextIsZeroVector(t *testing.T) {
	s := NewEmbeddingService(Config{Dimensions: 8})
	v, err := s.Embed(context.Background(), "  ?! ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestEmbed_SimilarTextIsCloser(t *testing.T) {
	s := NewEmbeddingService(Config{})
	ctx := context.Background()

	query, _ := s.Embed(ctx, "How to join strings?")
	near, _ := s.Embed(ctx, "How to join strings in C#?\nUse string.Join to join strings.")
	far, _ := s.Embed(ctx, "Reading a file line by line\nUse File.ReadLines.")

	assert.Less(t, squaredDistance(query, near), squaredDistance(query, far))
}

func TestEmbedBatch_MatchesEmbed(t *testing.T) {
	s := NewEmbeddingService(Config{Dimensions: 32})
	ctx := context.Background()

	texts := []string{"alpha beta", "gamma", ""}
	batch, err := s.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := s.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestEmbed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEmbeddingService(Config{}).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"How to join strings?", []string{"how", "to", "join", "strings"}},
		{"C# string.Join", []string{"c#", "string", "join"}},
		{"snake_case and C++", []string{"snake_case", "and", "c++"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
