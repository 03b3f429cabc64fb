package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Question string `json:"question" jsonschema:"the programming question to find similar questions for"`
	K        int    `json:"k,omitempty" jsonschema:"maximum number of results to return (default 3)"`
	Language string `json:"language,omitempty" jsonschema:"corpus partition such as csharp; empty uses the default"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results []ResultOutput `json:"results"`
	Count   int            `json:"count"`
}

// ResultOutput represents a single retrieved question and answer.
type ResultOutput struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Link       string  `json:"link,omitempty"`
	Score      float64 `json:"score"`
	Confidence string  `json:"confidence"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the programming question to answer"`
	K        int    `json:"k,omitempty" jsonschema:"number of similar questions used as context (default 3)"`
	Language string `json:"language,omitempty" jsonschema:"corpus partition such as csharp; empty uses the default"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string         `json:"answer"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Results []ResultOutput `json:"results"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find previously answered Stack Overflow questions similar to a new question",
	}, s.handleRetrieve)

	if s.ports.Ask != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a programming question using similar Stack Overflow questions as context",
		}, s.handleAsk)
	}
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	opts := domain.RetrievalOptions{K: input.K, Language: input.Language}
	results, err := s.ports.Retrieval.Retrieve(ctx, input.Question, opts)
	if err != nil {
		return nil, RetrieveOutput{}, fmt.Errorf("retrieve: %w", err)
	}

	return nil, RetrieveOutput{
		Results: toResultOutputs(results),
		Count:   len(results),
	}, nil
}

// handleAsk handles the ask tool invocation. Degraded answers are returned
// with their status; only a failed retrieval is reported as an error.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	opts := domain.RetrievalOptions{K: input.K, Language: input.Language}
	answer, err := s.ports.Ask.Ask(ctx, input.Question, opts)
	if err != nil {
		if answer == nil || answer.Status == domain.AnswerStatusUnavailable {
			return nil, AskOutput{}, fmt.Errorf("ask: %w", err)
		}
		logger.Warn("ask degraded to %s: %v", answer.Status, err)
	}

	return nil, AskOutput{
		Answer:  answer.Text,
		Status:  string(answer.Status),
		Message: answer.Message,
		Results: toResultOutputs(answer.Results),
	}, nil
}

func toResultOutputs(results []domain.RetrievalResult) []ResultOutput {
	out := make([]ResultOutput, len(results))
	for i, r := range results {
		out[i] = ResultOutput{
			Question:   r.Question,
			Answer:     r.Answer,
			Link:       r.SourceLink,
			Score:      r.SimilarityScore,
			Confidence: r.ConfidenceLevel.String(),
		}
	}
	return out
}
