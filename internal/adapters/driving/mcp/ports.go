package mcp

import (
	"github.com/custodia-labs/stackqa/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval finds similar questions.
	Retrieval driving.RetrievalService

	// Ask generates answers. The ask tool is not registered without it.
	Ask driving.AskService

	// Index describes the loaded partitions.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
