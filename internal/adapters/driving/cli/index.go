package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/logger"
)

var (
	indexLanguage string
	indexJSON     bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage language partition indexes",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild indexes from their corpus files",
	Long: `Reloads each partition's corpus CSV, embeds every record and replaces
the saved index. Use --language to rebuild a single partition.`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show index partitions",
	Args:  cobra.NoArgs,
	RunE:  runIndexInfo,
}

func init() {
	indexBuildCmd.Flags().StringVarP(&indexLanguage, "language", "l", "", "rebuild only this partition")
	indexInfoCmd.Flags().BoolVar(&indexJSON, "json", false, "output as JSON")
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexInfoCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := initServices(ctx); err != nil {
		return err
	}
	if indexService == nil {
		return errors.New("index service not configured")
	}

	languages := []string{indexLanguage}
	if indexLanguage == "" {
		infos, err := indexService.Info(ctx)
		if err != nil {
			return err
		}
		languages = languages[:0]
		for _, info := range infos {
			languages = append(languages, info.Language)
		}
	}

	for _, language := range languages {
		logger.Section("Building " + language)
		info, err := indexService.Rebuild(ctx, language)
		if err != nil {
			return fmt.Errorf("build %s: %w", language, err)
		}
		cmd.Printf("Built %s: %d entries, %d dimensions (%s)\n",
			info.Language, info.Entries, info.Dimensions, info.Model)
	}
	return nil
}

func runIndexInfo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := initServices(ctx); err != nil {
		return err
	}
	if indexService == nil {
		return errors.New("index service not configured")
	}
	if err := indexService.Ensure(ctx); err != nil {
		logger.Warn("prepare index: %v", err)
	}

	infos, err := indexService.Info(ctx)
	if err != nil {
		return err
	}
	if indexJSON {
		return outputJSON(cmd, infos)
	}
	outputIndexInfo(cmd, infos)
	return nil
}

func outputIndexInfo(cmd *cobra.Command, infos []domain.IndexInfo) {
	if len(infos) == 0 {
		cmd.Println("No partitions configured.")
		return
	}

	cmd.Println(styles.Title.Render("Indexes"))
	for _, info := range infos {
		cmd.Println()
		cmd.Printf("[%s]\n", styles.Subtitle.Render(info.Language))
		if !info.Initialized {
			cmd.Println("  Status: not built")
			continue
		}
		cmd.Printf("  Entries: %d\n", info.Entries)
		cmd.Printf("  Dimensions: %d\n", info.Dimensions)
		cmd.Printf("  Model: %s\n", info.Model)
		cmd.Printf("  Backend: %s\n", info.Backend)
		if !info.BuiltAt.IsZero() {
			cmd.Printf("  Built: %s\n", info.BuiltAt.Local().Format("2006-01-02 15:04:05"))
		}
	}
}
