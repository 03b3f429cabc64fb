package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/logger"
)

var (
	askK        int
	askLanguage string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from similar Stack Overflow answers",
	Long: `Retrieves the questions most similar to yours and asks the configured
language model to answer using them as references.

Without a language model only the similar questions are shown. If the
model fails, an apology is shown together with the similar questions.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askK, "top", "k", domain.DefaultTopK, "number of similar questions to use")
	askCmd.Flags().StringVarP(&askLanguage, "language", "l", "", "language partition (default from settings)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := initServices(ctx); err != nil {
		return err
	}
	if askService == nil {
		return errors.New("ask service not configured")
	}
	if err := indexService.Ensure(ctx); err != nil {
		logger.Warn("prepare index: %v", err)
	}

	answer, err := askService.Ask(ctx, args[0], domain.RetrievalOptions{K: askK, Language: askLanguage})
	if err != nil {
		logger.Warn("ask: %v", err)
	}

	if askJSON {
		return outputJSON(cmd, answer)
	}

	switch answer.Status {
	case domain.AnswerStatusUnavailable:
		cmd.Println(styles.Error.Render(answer.Message))
		return err
	case domain.AnswerStatusNoResults:
		cmd.Println(answer.Message)
		return nil
	case domain.AnswerStatusRetrievalOnly:
		cmd.Println(styles.Muted.Render(answer.Message))
		cmd.Println()
	default:
		cmd.Println(styles.Title.Render("Answer:"))
		cmd.Println(styles.Answer.Render(answer.Text))
		cmd.Println()
	}

	outputResults(cmd, answer.Results)
	return nil
}
