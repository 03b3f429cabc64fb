package mcp

import (
	"context"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results   []domain.RetrievalResult
	languages []string
	err       error
	lastOpts  domain.RetrievalOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	_ string,
	opts domain.RetrievalOptions,
) ([]domain.RetrievalResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

func (m *mockRetrievalService) Languages() []string {
	return m.languages
}

// mockAskService is a mock implementation of driving.AskService.
type mockAskService struct {
	answer *domain.Answer
	err    error
}

func (m *mockAskService) Ask(_ context.Context, _ string, _ domain.RetrievalOptions) (*domain.Answer, error) {
	return m.answer, m.err
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	infos []domain.IndexInfo
	err   error
}

func (m *mockIndexService) Ensure(_ context.Context) error {
	return m.err
}

func (m *mockIndexService) Rebuild(_ context.Context, _ string) (*domain.IndexInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &m.infos[0], nil
}

func (m *mockIndexService) Info(_ context.Context) ([]domain.IndexInfo, error) {
	return m.infos, m.err
}
