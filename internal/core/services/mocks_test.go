package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService for testing.
type mockEmbedder struct {
	vector []float32
	err    error
	// block waits for ctx cancellation before returning.
	block bool

	mu    sync.Mutex
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int            { return len(m.vector) }
func (m *mockEmbedder) ModelName() string          { return "mock-embedder" }
func (m *mockEmbedder) Ping(context.Context) error { return m.err }
func (m *mockEmbedder) Close() error               { return nil }

func (m *mockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockIndex implements driven.VectorIndex for testing.
type mockIndex struct {
	language string
	matches  []driven.Match
	queryErr error
	loadErr  error
	buildErr error
	saveErr  error

	lastK    int
	loads    int
	builds   int
	saves    int
	closed   bool
	built    []domain.QARecord
	buildOpt driven.BuildOptions
}

func (m *mockIndex) Build(_ context.Context, records []domain.QARecord, opts driven.BuildOptions) error {
	m.builds++
	m.built = records
	m.buildOpt = opts
	if opts.Progress != nil {
		opts.Progress(len(records), len(records))
	}
	return m.buildErr
}

func (m *mockIndex) Query(ctx context.Context, _ string, k int) ([]driven.Match, error) {
	return m.QueryVector(ctx, nil, k)
}

func (m *mockIndex) QueryVector(_ context.Context, _ []float32, k int) ([]driven.Match, error) {
	m.lastK = k
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if k < len(m.matches) {
		return m.matches[:k], nil
	}
	return m.matches, nil
}

func (m *mockIndex) Save(context.Context) error {
	m.saves++
	return m.saveErr
}

func (m *mockIndex) Load(context.Context) error {
	m.loads++
	return m.loadErr
}

func (m *mockIndex) Info() domain.IndexInfo {
	return domain.IndexInfo{
		Language:    m.language,
		Entries:     len(m.built),
		Initialized: len(m.built) > 0,
		Backend:     "mock",
	}
}

func (m *mockIndex) Close() error {
	m.closed = true
	return nil
}

// mockLLM implements driven.LLMService for testing.
type mockLLM struct {
	reply string
	err   error
	// replyFor, when set, computes the reply from the messages.
	replyFor func(messages []driven.ChatMessage) (string, error)

	mu       sync.Mutex
	messages [][]driven.ChatMessage
	opts     []driven.ChatOptions
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	return m.Chat(ctx, []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}}, driven.ChatOptions{})
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	m.messages = append(m.messages, messages)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()

	if m.replyFor != nil {
		return m.replyFor(messages)
	}
	return m.reply, m.err
}

func (m *mockLLM) ModelName() string          { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return m.err }
func (m *mockLLM) Close() error               { return nil }

func (m *mockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// mockPromptStore implements driven.PromptStore with fixed templates.
type mockPromptStore struct {
	prompts map[string]string
	err     error
}

func newMockPromptStore() *mockPromptStore {
	return &mockPromptStore{prompts: map[string]string{
		driven.PromptAnswerSystem: "You answer %s questions.",
		driven.PromptAnswerUser:   "Q: %s\n\n%s",
		driven.PromptEvaluate:     "metric=%s\nquestion=%s\nanswer=%s\ncontext=%s\nreference=%s",
	}}
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	p, ok := m.prompts[name]
	if !ok {
		return "", fmt.Errorf("%w: prompt %s", domain.ErrNotFound, name)
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// mockRetriever implements driving.RetrievalService for testing.
type mockRetriever struct {
	results []domain.RetrievalResult
	err     error
	last    domain.RetrievalOptions
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, opts domain.RetrievalOptions) ([]domain.RetrievalResult, error) {
	m.last = opts
	return m.results, m.err
}

func (m *mockRetriever) Languages() []string { return []string{"csharp"} }

// mockGenerator implements driven.AnswerGenerator for testing.
type mockGenerator struct {
	answer   string
	err      error
	calls    int
	language string
}

func (m *mockGenerator) Generate(_ context.Context, _ string, _ []domain.RetrievalResult, language string) (string, error) {
	m.calls++
	m.language = language
	return m.answer, m.err
}

// mockCorpusReader implements driven.CorpusReader for testing.
type mockCorpusReader struct {
	records []domain.QARecord
	err     error
	paths   []string
}

func (m *mockCorpusReader) Load(_ context.Context, path string) ([]domain.QARecord, error) {
	m.paths = append(m.paths, path)
	return m.records, m.err
}

// mockSource implements driven.QuestionSource for testing.
type mockSource struct {
	items []domain.RawQA
	err   error
}

func (m *mockSource) Fetch(context.Context, domain.FetchQuery) ([]domain.RawQA, error) {
	return m.items, m.err
}

// mockCorpusWriter implements driven.CorpusWriter for testing.
type mockCorpusWriter struct {
	err     error
	path    string
	written []domain.RawQA
}

func (m *mockCorpusWriter) Write(_ context.Context, path string, items []domain.RawQA) error {
	m.path = path
	m.written = items
	return m.err
}

func match(question string, distance float64) driven.Match {
	return driven.Match{
		Record:   domain.QARecord{ID: question, Question: question, Answer: "answer to " + question},
		Distance: distance,
	}
}
