package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/core/ports/driving"
)

// judgeByMetric replies with a fixed score per metric description.
func judgeByMetric(scores map[domain.EvaluationMetric]string) func([]driven.ChatMessage) (string, error) {
	return func(messages []driven.ChatMessage) (string, error) {
		prompt := messages[len(messages)-1].Content
		for m, reply := range scores {
			if strings.HasPrefix(prompt, "metric="+m.Description()+"\n") {
				return reply, nil
			}
		}
		return "", errors.New("unexpected prompt")
	}
}

func TestEvaluationService_Evaluate(t *testing.T) {
	llm := &mockLLM{replyFor: judgeByMetric(map[domain.EvaluationMetric]string{
		domain.MetricFaithfulness:     `{"score": 0.8, "reason": "supported"}`,
		domain.MetricAnswerRelevancy:  "```json\n{\"score\": 1.4}\n```",
		domain.MetricContextPrecision: `Here you go: {"score": 0.5}`,
		domain.MetricContextRecall:    `{"score": -0.2}`,
	})}
	svc := NewEvaluationService(llm, newMockPromptStore(), nil, 2)

	report, err := svc.Evaluate(context.Background(), []domain.EvaluationSample{
		{Question: "q1", Answer: "a1", Contexts: []string{"c1"}, GroundTruth: "g1"},
		{Question: "q2", Answer: "a2", Contexts: []string{"c2"}},
	})

	require.NoError(t, err)
	require.Len(t, report.Samples, 2)
	assert.Equal(t, "q1", report.Samples[0].Question)
	assert.InDelta(t, 0.8, report.Samples[0].Scores[domain.MetricFaithfulness], 1e-9)
	assert.InDelta(t, 1.0, report.Samples[0].Scores[domain.MetricAnswerRelevancy], 1e-9, "clamped")
	assert.InDelta(t, 0.5, report.Samples[0].Scores[domain.MetricContextPrecision], 1e-9)
	assert.InDelta(t, 0.0, report.Samples[0].Scores[domain.MetricContextRecall], 1e-9, "clamped")

	assert.NotContains(t, report.Samples[1].Scores, domain.MetricContextRecall, "no ground truth")
	assert.Len(t, report.Samples[1].Scores, 3)

	assert.InDelta(t, 0.8, report.Averages[domain.MetricFaithfulness], 1e-9)
	assert.InDelta(t, 0.0, report.Averages[domain.MetricContextRecall], 1e-9)
	assert.Equal(t, 7, llm.Calls())
	for _, opts := range llm.opts {
		assert.True(t, opts.JSON)
	}
}

func TestEvaluationService_Evaluate_PromptContents(t *testing.T) {
	llm := &mockLLM{reply: `{"score": 1}`}
	svc := NewEvaluationService(llm, newMockPromptStore(), nil, 1)

	_, err := svc.Evaluate(context.Background(), []domain.EvaluationSample{
		{Question: "q", Answer: "a", Contexts: []string{"c1", "c2"}},
	})

	require.NoError(t, err)
	prompt := llm.messages[0][0].Content
	assert.Contains(t, prompt, "question=q\n")
	assert.Contains(t, prompt, "answer=a\n")
	assert.Contains(t, prompt, "context=c1\n\nc2\n")
	assert.Contains(t, prompt, "reference="+noGroundTruth)
}

func TestEvaluationService_Evaluate_Errors(t *testing.T) {
	samples := []domain.EvaluationSample{{Question: "q", Answer: "a"}}

	t.Run("no llm", func(t *testing.T) {
		svc := NewEvaluationService(nil, newMockPromptStore(), nil, 0)
		_, err := svc.Evaluate(context.Background(), samples)
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})

	t.Run("no samples", func(t *testing.T) {
		svc := NewEvaluationService(&mockLLM{}, newMockPromptStore(), nil, 0)
		_, err := svc.Evaluate(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("judge failure is returned", func(t *testing.T) {
		cause := errors.New("model overloaded")
		svc := NewEvaluationService(&mockLLM{err: cause}, newMockPromptStore(), nil, 0)
		report, err := svc.Evaluate(context.Background(), samples)
		assert.ErrorIs(t, err, cause)
		assert.Nil(t, report)
	})

	t.Run("unparseable reply", func(t *testing.T) {
		svc := NewEvaluationService(&mockLLM{reply: "I would say quite good"}, newMockPromptStore(), nil, 0)
		_, err := svc.Evaluate(context.Background(), samples)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestEvaluationService_EvaluateQuestions(t *testing.T) {
	llm := &mockLLM{reply: `{"score": 0.6}`}
	asker := NewAskService(&mockRetriever{results: joinResults}, &mockGenerator{answer: "Use string.Join."}, "C#")
	svc := NewEvaluationService(llm, newMockPromptStore(), asker, 0)

	report, err := svc.EvaluateQuestions(context.Background(), []driving.EvaluationQuestion{
		{Question: "How to join strings?", GroundTruth: "string.Join"},
	})

	require.NoError(t, err)
	require.Len(t, report.Samples, 1)
	assert.Len(t, report.Samples[0].Scores, len(domain.AllEvaluationMetrics()))
	assert.InDelta(t, 0.6, report.Averages[domain.MetricFaithfulness], 1e-9)

	prompt := llm.messages[0][0].Content
	assert.Contains(t, prompt, "answer=Use string.Join.")
	assert.Contains(t, prompt, "Question: How to join strings?\nAnswer: Use string.Join.")
}

func TestEvaluationService_EvaluateQuestions_AskFailure(t *testing.T) {
	asker := NewAskService(&mockRetriever{err: domain.ErrEmbeddingService}, nil, "C#")
	svc := NewEvaluationService(&mockLLM{reply: `{"score": 1}`}, newMockPromptStore(), asker, 0)

	_, err := svc.EvaluateQuestions(context.Background(), []driving.EvaluationQuestion{{Question: "q"}})

	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
}

func TestParseJudgement(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
		ok    bool
	}{
		{reply: `{"score": 0.25}`, want: 0.25, ok: true},
		{reply: "```json\n{\"score\": 0.5, \"reason\": \"ok\"}\n```", want: 0.5, ok: true},
		{reply: `no json here`, ok: false},
		{reply: `{"score": "high"}`, ok: false},
	}
	for _, tt := range tests {
		j, err := parseJudgement(tt.reply)
		if !tt.ok {
			assert.Error(t, err, tt.reply)
			continue
		}
		require.NoError(t, err, tt.reply)
		assert.InDelta(t, tt.want, j.Score, 1e-9)
	}
}
