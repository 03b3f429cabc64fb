package domain

import (
	"fmt"
	"math"
	"strings"
)

// EvaluationMetric identifies one quality metric for the ask pipeline.
type EvaluationMetric string

// Supported metrics.
const (
	MetricFaithfulness     EvaluationMetric = "faithfulness"
	MetricAnswerRelevancy  EvaluationMetric = "answer_relevancy"
	MetricContextPrecision EvaluationMetric = "context_precision"
	MetricContextRecall    EvaluationMetric = "context_recall"
)

// AllEvaluationMetrics returns the metrics in report order.
func AllEvaluationMetrics() []EvaluationMetric {
	return []EvaluationMetric{
		MetricFaithfulness,
		MetricAnswerRelevancy,
		MetricContextPrecision,
		MetricContextRecall,
	}
}

// Description returns a human-readable description of the metric.
func (m EvaluationMetric) Description() string {
	switch m {
	case MetricFaithfulness:
		return "How well the answer is supported by the retrieved context"
	case MetricAnswerRelevancy:
		return "How relevant the answer is to the question"
	case MetricContextPrecision:
		return "How much of the retrieved context is relevant"
	case MetricContextRecall:
		return "How much of the information needed is present in the context"
	default:
		return "Unknown"
	}
}

// EvaluationSample is one question with its generated answer and contexts.
type EvaluationSample struct {
	Question    string   `json:"question" yaml:"question"`
	Answer      string   `json:"answer" yaml:"answer"`
	Contexts    []string `json:"contexts" yaml:"contexts"`
	GroundTruth string   `json:"ground_truth,omitempty" yaml:"ground_truth"`
}

// SampleScore holds the per-metric scores for one sample.
type SampleScore struct {
	Question string                       `json:"question"`
	Scores   map[EvaluationMetric]float64 `json:"scores"`
}

// EvaluationReport aggregates scores over all samples. Every score is in [0, 1].
type EvaluationReport struct {
	Samples  []SampleScore                `json:"samples"`
	Averages map[EvaluationMetric]float64 `json:"averages"`
}

// ClampScore limits a score to [0, 1].
func ClampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Markdown renders the report as a markdown table of average scores followed
// by per-sample scores. Metrics that were not scored are omitted.
func (r *EvaluationReport) Markdown() string {
	var b strings.Builder
	b.WriteString("# Evaluation Report\n\n")
	fmt.Fprintf(&b, "Samples: %d\n\n", len(r.Samples))

	b.WriteString("| Metric | Average | Description |\n")
	b.WriteString("|---|---|---|\n")
	for _, m := range AllEvaluationMetrics() {
		avg, ok := r.Averages[m]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "| %s | %.3f | %s |\n", m, avg, m.Description())
	}

	if len(r.Samples) == 0 {
		return b.String()
	}

	b.WriteString("\n## Samples\n")
	for i, s := range r.Samples {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, s.Question)
		for _, m := range AllEvaluationMetrics() {
			if v, ok := s.Scores[m]; ok {
				fmt.Fprintf(&b, "   - %s: %.3f\n", m, v)
			}
		}
	}
	return b.String()
}
