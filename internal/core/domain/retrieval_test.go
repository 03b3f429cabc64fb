package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceThresholds_Level(t *testing.T) {
	th := DefaultConfidenceThresholds()

	tests := []struct {
		score    float64
		expected ConfidenceLevel
	}{
		{0, ConfidenceHigh},
		{0.44, ConfidenceHigh},
		{0.45, ConfidenceMedium},
		{0.64, ConfidenceMedium},
		{0.65, ConfidenceLow},
		{3.2, ConfidenceLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, th.Level(tt.score), "score %v", tt.score)
	}
}

func TestConfidenceThresholds_Monotonic(t *testing.T) {
	th := DefaultConfidenceThresholds()

	prev := th.Level(0).Rank()
	for score := 0.0; score < 2; score += 0.01 {
		rank := th.Level(score).Rank()
		assert.GreaterOrEqual(t, rank, prev, "level got better as distance grew at %v", score)
		prev = rank
	}
}

func TestConfidenceThresholds_Valid(t *testing.T) {
	assert.True(t, DefaultConfidenceThresholds().Valid())
	assert.True(t, ConfidenceThresholds{High: 0.5, Medium: 0.5}.Valid())
	assert.False(t, ConfidenceThresholds{High: 0.7, Medium: 0.5}.Valid())
	assert.False(t, ConfidenceThresholds{High: -1, Medium: 0.5}.Valid())
}

func TestConfidenceLevel_Rank(t *testing.T) {
	assert.Less(t, ConfidenceHigh.Rank(), ConfidenceMedium.Rank())
	assert.Less(t, ConfidenceMedium.Rank(), ConfidenceLow.Rank())
}
