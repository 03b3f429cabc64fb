package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/core/ports/driving"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// Ensure EvaluationService implements the interface.
var _ driving.EvaluationService = (*EvaluationService)(nil)

// DefaultEvaluationConcurrency bounds parallel judge calls.
const DefaultEvaluationConcurrency = 4

// noGroundTruth fills the reference slot of the judge prompt when a sample has none.
const noGroundTruth = "(not provided)"

// EvaluationService scores ask pipeline output with an LLM judge.
type EvaluationService struct {
	llm         driven.LLMService
	prompts     driven.PromptStore
	asker       driving.AskService
	concurrency int
}

// NewEvaluationService creates an evaluation service. asker is only needed
// for EvaluateQuestions.
func NewEvaluationService(
	llm driven.LLMService, prompts driven.PromptStore, asker driving.AskService, concurrency int,
) *EvaluationService {
	if concurrency <= 0 {
		concurrency = DefaultEvaluationConcurrency
	}
	return &EvaluationService{
		llm:         llm,
		prompts:     prompts,
		asker:       asker,
		concurrency: concurrency,
	}
}

// judgement is the JSON object the judge prompt asks for.
type judgement struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Evaluate scores every sample on every applicable metric. Context recall is
// skipped for samples without a ground truth. The first judge failure aborts
// the run.
func (s *EvaluationService) Evaluate(
	ctx context.Context, samples []domain.EvaluationSample,
) (*domain.EvaluationReport, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples to evaluate", domain.ErrInvalidInput)
	}

	template, err := s.prompts.Load(driven.PromptEvaluate)
	if err != nil {
		return nil, fmt.Errorf("load evaluation prompt: %w", err)
	}

	defer logger.Timed(fmt.Sprintf("evaluate %d samples", len(samples)))()

	scores := make([]domain.SampleScore, len(samples))
	for i, sample := range samples {
		scores[i] = domain.SampleScore{
			Question: sample.Question,
			Scores:   make(map[domain.EvaluationMetric]float64, len(domain.AllEvaluationMetrics())),
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, sample := range samples {
		for _, metric := range metricsFor(sample) {
			g.Go(func() error {
				score, err := s.judge(gctx, template, metric, sample)
				if err != nil {
					return fmt.Errorf("sample %d %s: %w", i+1, metric, err)
				}
				mu.Lock()
				scores[i].Scores[metric] = score
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.EvaluationReport{
		Samples:  scores,
		Averages: averages(scores),
	}, nil
}

// EvaluateQuestions runs each question through the ask pipeline and scores the outcome.
func (s *EvaluationService) EvaluateQuestions(
	ctx context.Context, questions []driving.EvaluationQuestion,
) (*domain.EvaluationReport, error) {
	if s.asker == nil {
		return nil, fmt.Errorf("%w: no ask service configured", domain.ErrInvalidInput)
	}

	samples := make([]domain.EvaluationSample, 0, len(questions))
	for _, q := range questions {
		answer, err := s.asker.Ask(ctx, q.Question, domain.RetrievalOptions{Language: q.Language})
		if err != nil {
			return nil, fmt.Errorf("ask %q: %w", q.Question, err)
		}

		text := answer.Text
		if text == "" {
			text = answer.Message
		}
		contexts := make([]string, len(answer.Results))
		for i, r := range answer.Results {
			contexts[i] = "Question: " + r.Question + "\nAnswer: " + r.Answer
		}

		samples = append(samples, domain.EvaluationSample{
			Question:    q.Question,
			Answer:      text,
			Contexts:    contexts,
			GroundTruth: q.GroundTruth,
		})
		logger.Debug("evaluation: answered %q with %d contexts", q.Question, len(contexts))
	}

	return s.Evaluate(ctx, samples)
}

func (s *EvaluationService) judge(
	ctx context.Context, template string, metric domain.EvaluationMetric, sample domain.EvaluationSample,
) (float64, error) {
	groundTruth := sample.GroundTruth
	if groundTruth == "" {
		groundTruth = noGroundTruth
	}
	prompt := fmt.Sprintf(template,
		metric.Description(),
		sample.Question,
		sample.Answer,
		strings.Join(sample.Contexts, "\n\n"),
		groundTruth,
	)

	reply, err := s.llm.Chat(ctx, []driven.ChatMessage{
		{Role: driven.RoleUser, Content: prompt},
	}, driven.ChatOptions{JSON: true})
	if err != nil {
		return 0, err
	}

	j, err := parseJudgement(reply)
	if err != nil {
		return 0, err
	}
	return domain.ClampScore(j.Score), nil
}

// parseJudgement decodes the first JSON object in reply, tolerating code fences
// and surrounding prose.
func parseJudgement(reply string) (judgement, error) {
	var j judgement
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return j, fmt.Errorf("%w: judge reply has no JSON object: %q", domain.ErrInvalidInput, truncate(reply, 80))
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &j); err != nil {
		return j, fmt.Errorf("%w: decode judge reply: %w", domain.ErrInvalidInput, err)
	}
	return j, nil
}

func metricsFor(sample domain.EvaluationSample) []domain.EvaluationMetric {
	metrics := domain.AllEvaluationMetrics()
	if strings.TrimSpace(sample.GroundTruth) != "" {
		return metrics
	}
	out := metrics[:0]
	for _, m := range metrics {
		if m != domain.MetricContextRecall {
			out = append(out, m)
		}
	}
	return out
}

func averages(scores []domain.SampleScore) map[domain.EvaluationMetric]float64 {
	sums := make(map[domain.EvaluationMetric]float64)
	counts := make(map[domain.EvaluationMetric]int)
	for _, s := range scores {
		for m, v := range s.Scores {
			sums[m] += v
			counts[m]++
		}
	}
	out := make(map[domain.EvaluationMetric]float64, len(sums))
	for m, sum := range sums {
		out[m] = sum / float64(counts[m])
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
