package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

var testResults = []domain.RetrievalResult{
	{
		Question:        "How to join strings?",
		Answer:          "Use string.Join.",
		SourceLink:      "https://stackoverflow.com/q/1",
		SimilarityScore: 0.3,
		ConfidenceLevel: domain.ConfidenceHigh,
	},
}

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns retrieval results", func(t *testing.T) {
		retrieval := &mockRetrievalService{results: testResults}
		server, err := NewServer(&Ports{Retrieval: retrieval})
		require.NoError(t, err)

		input := RetrieveInput{Question: "join strings", K: 5, Language: "csharp"}
		_, output, err := server.handleRetrieve(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "How to join strings?", output.Results[0].Question)
		assert.Equal(t, "Use string.Join.", output.Results[0].Answer)
		assert.Equal(t, "https://stackoverflow.com/q/1", output.Results[0].Link)
		assert.Equal(t, 0.3, output.Results[0].Score)
		assert.Equal(t, "high", output.Results[0].Confidence)
		assert.Equal(t, domain.RetrievalOptions{K: 5, Language: "csharp"}, retrieval.lastOpts)
	})

	t.Run("no results", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Question: "q"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Empty(t, output.Results)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		retrieval := &mockRetrievalService{err: domain.ErrUnknownLanguage}
		server, err := NewServer(&Ports{Retrieval: retrieval})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Question: "q", Language: "cobol"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnknownLanguage)
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with results", func(t *testing.T) {
		ask := &mockAskService{answer: &domain.Answer{
			Text:    "Use string.Join.",
			Status:  domain.AnswerStatusOK,
			Results: testResults,
		}}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Ask: ask})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "join strings"})

		require.NoError(t, err)
		assert.Equal(t, "Use string.Join.", output.Answer)
		assert.Equal(t, "ok", output.Status)
		assert.Len(t, output.Results, 1)
	})

	t.Run("generation failure is returned as a degraded answer", func(t *testing.T) {
		ask := &mockAskService{
			answer: &domain.Answer{
				Text:    domain.ApologyAnswer,
				Status:  domain.AnswerStatusGenerationFailed,
				Results: testResults,
			},
			err: errors.New("model overloaded"),
		}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Ask: ask})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})

		require.NoError(t, err)
		assert.Equal(t, domain.ApologyAnswer, output.Answer)
		assert.Equal(t, "generation_failed", output.Status)
	})

	t.Run("retrieval failure is an error", func(t *testing.T) {
		ask := &mockAskService{
			answer: &domain.Answer{Status: domain.AnswerStatusUnavailable, Message: domain.MessageUnavailable},
			err:    domain.ErrEmbeddingService,
		}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Ask: ask})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "q"})

		assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	})
}
