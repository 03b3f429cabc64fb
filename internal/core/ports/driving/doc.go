// Package driving defines the use cases the CLI and MCP server call: retrieval,
// asking, index management, corpus fetching, evaluation and settings.
//
// Implementations live in internal/core/services.
package driving
