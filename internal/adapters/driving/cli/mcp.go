package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/stackqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/stackqa/internal/adapters/driving/mcp"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/logger"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --http to serve streamable HTTP instead, for example to test with the
MCP Inspector.

Prompt templates in the config directory are reloaded when edited.

Examples:
  # Stdio mode (default)
  stackqa mcp

  # HTTP mode
  stackqa mcp --http :8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "stackqa": {
        "command": "/path/to/stackqa",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := initServices(ctx); err != nil {
		return err
	}
	if err := indexService.Ensure(ctx); err != nil {
		return fmt.Errorf("prepare index: %w", err)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Retrieval: retrievalService,
		Ask:       askService,
		Index:     indexService,
	})
	if err != nil {
		return err
	}

	if promptStore != nil {
		watchPrompts(cmd)
	}

	if mcpHTTPAddr != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://%s\n", mcpHTTPAddr)
		return server.RunHTTP(ctx, mcpHTTPAddr)
	}
	return server.Run(ctx)
}

// watchPrompts reloads prompt templates while the server runs. Failure to
// watch is not fatal.
func watchPrompts(cmd *cobra.Command) {
	// Loading once creates the prompt directory the watcher needs.
	if _, err := promptStore.Load(driven.PromptAnswerSystem); err != nil {
		logger.Debug("prompt store: %v", err)
	}

	watcher, err := configfile.NewPromptWatcher(promptStore, configfile.DefaultDebounce)
	if err != nil {
		logger.Warn("prompt hot reload disabled: %v", err)
		return
	}
	watcher.Start(cmd.Context())
	closers = append(closers, watcher.Stop)
}
