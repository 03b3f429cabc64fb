package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

// answerPreviewLen bounds how much of each answer the table output shows.
const answerPreviewLen = 240

var (
	searchK        int
	searchLanguage string
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Find similar answered questions",
	Long: `Finds the previously answered questions closest to the given question.
Results are deduplicated by question and labelled high, medium or low
confidence by their embedding distance.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "top", "k", domain.DefaultTopK, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchLanguage, "language", "l", "", "language partition (default from settings)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := initServices(ctx); err != nil {
		return err
	}
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}
	if err := indexService.Ensure(ctx); err != nil {
		return fmt.Errorf("prepare index: %w", err)
	}

	opts := domain.RetrievalOptions{K: searchK, Language: searchLanguage}
	results, err := retrievalService.Retrieve(ctx, args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputJSON(cmd, results)
	}
	outputResults(cmd, results)
	return nil
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputResults(cmd *cobra.Command, results []domain.RetrievalResult) {
	if len(results) == 0 {
		cmd.Println(domain.MessageNoResults)
		return
	}

	cmd.Println(styles.Title.Render("Similar questions:"))
	cmd.Println()
	for i, r := range results {
		// Format: [N] Question (confidence, distance)
		cmd.Printf("  [%d] %s (%s, %.3f)\n", i+1, styles.Subtitle.Render(r.Question),
			styles.Confidence(r.ConfidenceLevel), r.SimilarityScore)
		if r.SourceLink != "" {
			cmd.Printf("      %s\n", styles.Muted.Render(r.SourceLink))
		}
		cmd.Printf("      %s\n", indent(preview(r.Answer, answerPreviewLen), "      "))
		cmd.Println()
	}
}

// preview shortens s to at most n runes on a word boundary.
func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndexAny(cut, " \n"); i > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}
