package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for stackqa resources.
	uriScheme = "stackqa://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "languages",
		Name:        "languages",
		Description: "Language partitions that can be searched",
		MIMEType:    "application/json",
	}, s.handleLanguagesResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "indexes",
		Name:        "indexes",
		Description: "Summary of every loaded index partition",
		MIMEType:    "application/json",
	}, s.handleIndexesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "indexes/{language}",
		Name:        "index-info",
		Description: "Summary of one index partition",
		MIMEType:    "application/json",
	}, s.handleIndexResource)
}

// handleLanguagesResource returns the searchable partition tags.
func (s *Server) handleLanguagesResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.ports.Retrieval.Languages())
}

// handleIndexesResource returns every partition summary.
func (s *Server) handleIndexesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Index == nil {
		return jsonResource(req.Params.URI, []domain.IndexInfo{})
	}

	infos, err := s.ports.Index.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	return jsonResource(req.Params.URI, infos)
}

// handleIndexResource returns the summary of one partition.
func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Index == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	language := extractLanguage(req.Params.URI)
	if language == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	infos, err := s.ports.Index.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	for _, info := range infos {
		if strings.EqualFold(info.Language, language) {
			return jsonResource(req.Params.URI, info)
		}
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractLanguage extracts the language tag from a URI like stackqa://indexes/{language}.
func extractLanguage(uri string) string {
	const prefix = uriScheme + "indexes/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	language := strings.TrimPrefix(uri, prefix)
	if strings.Contains(language, "/") {
		return ""
	}
	return language
}
