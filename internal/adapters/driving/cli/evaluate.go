package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driving"
	"github.com/custodia-labs/stackqa/internal/logger"
)

var evaluateJSON bool

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [questions.yaml]",
	Short: "Score answer quality with an LLM judge",
	Long: `Runs every question in a YAML file through the ask pipeline and asks
the configured language model to score faithfulness, answer relevancy,
context precision and context recall. Context recall needs a ground truth.

File format:
  questions:
    - question: How do I join strings?
      ground_truth: Use string.Join.
      language: csharp`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(evaluateCmd)
}

// questionSet is the YAML layout of an evaluation file.
type questionSet struct {
	Questions []driving.EvaluationQuestion `yaml:"questions"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	questions, err := loadQuestions(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := initServices(ctx); err != nil {
		return err
	}
	if evaluationService == nil {
		return errors.New("evaluation service not configured")
	}
	if err := indexService.Ensure(ctx); err != nil {
		return fmt.Errorf("prepare index: %w", err)
	}

	report, err := evaluationService.EvaluateQuestions(ctx, questions)
	if err != nil {
		if errors.Is(err, domain.ErrLLMUnavailable) {
			return fmt.Errorf("evaluation needs a language model; configure llm.provider: %w", err)
		}
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if evaluateJSON {
		return outputJSON(cmd, report)
	}
	cmd.Print(report.Markdown())
	return nil
}

func loadQuestions(path string) ([]driving.EvaluationQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}

	var set questionSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidInput, path, err)
	}

	questions := set.Questions[:0]
	for i, q := range set.Questions {
		if q.Question == "" {
			logger.Warn("%s: skipping entry %d without a question", path, i+1)
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: %s contains no questions", domain.ErrInvalidInput, path)
	}
	return questions, nil
}
