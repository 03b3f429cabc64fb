// Package mcp provides an MCP (Model Context Protocol) server adapter for stackqa.
// It lets AI assistants retrieve similar Stack Overflow questions and ask for
// grounded answers.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
