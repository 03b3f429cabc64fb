package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/stackqa/internal/connectors/stackexchange"
	"github.com/custodia-labs/stackqa/internal/core/domain"
)

var (
	fetchTag      string
	fetchPages    int
	fetchPageSize int
	fetchOutput   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a corpus from Stack Overflow",
	Long: `Downloads the highest voted questions for a tag together with their
accepted answers and writes them as a corpus CSV (title, answer, link).

Set STACKEXCHANGE_KEY for a higher request quota.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchTag, "tag", "t", "c#", "question tag to fetch")
	fetchCmd.Flags().IntVarP(&fetchPages, "pages", "p", 1, "maximum number of pages")
	fetchCmd.Flags().IntVar(&fetchPageSize, "page-size", stackexchange.MaxPageSize, "questions per page")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", domain.DefaultCorpusPath, "corpus CSV to write")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	initCorpusService()
	if corpusService == nil {
		return errors.New("corpus service not configured")
	}

	query := domain.FetchQuery{Tag: fetchTag, MaxPages: fetchPages, PageSize: fetchPageSize}
	n, err := corpusService.Fetch(cmd.Context(), query, fetchOutput)
	if n > 0 {
		cmd.Printf("Wrote %d questions tagged %s to %s\n", n, fetchTag, fetchOutput)
	}
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	if n == 0 {
		cmd.Printf("No questions with accepted answers found for %s\n", fetchTag)
	}
	return nil
}
