package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// PromptsDir is the prompt directory name inside the config directory.
const PromptsDir = "prompts"

var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk, falling back
// to built-in defaults.
//
// Initialisation is lazy: the directory and default files are written on the
// first Load, not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

//nolint:lll // prompt text is not wrapped
var defaultPrompts = map[string]string{
	driven.PromptAnswerSystem: `You are a %s programming expert. Give an accurate, detailed answer to the user's question.
Follow these rules:
1. Show code only once and never repeat it.
2. Keep the answer short and clear.
3. Put the explanation before the single code block.
4. Avoid needless repetition and keep to the essentials.
5. Mention best practices and any caveats or limitations.`,

	driven.PromptAnswerUser: `Question: %s

Similar questions and answers for reference:
%s`,

	driven.PromptEvaluate: `You grade a question answering system on one metric.

Metric: %s

Question:
%s

Answer:
%s

Retrieved context:
%s

Reference answer (may be empty):
%s

Respond with a JSON object of the form {"score": <number between 0 and 1>, "reason": "<one sentence>"}.`,
}

// DefaultPrompt returns the built-in template for name.
func DefaultPrompt(name string) (string, bool) {
	p, ok := defaultPrompts[name]
	return p, ok
}

// NewPromptStore creates a file-based prompt store.
// If promptDir is empty, defaults to ~/.stackqa/prompts.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		promptDir = filepath.Join(dir, PromptsDir)
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// Files override defaults; unknown names without a file are an error.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	prompt, err := s.loadFromFile(name)
	if err != nil {
		if fallback, ok := defaultPrompts[name]; ok {
			return fallback, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory, the default files and a README.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		if err := writeIfMissing(filepath.Join(s.promptDir, name+".txt"), content); err != nil {
			s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
			return
		}
	}

	if err := writeIfMissing(filepath.Join(s.promptDir, "README.md"), promptReadme); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %q is empty", name)
	}
	return prompt, nil
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0600)
}

const promptReadme = "# stackqa prompts\n\n" +
	"These files customise the prompts stackqa sends to the language model.\n\n" +
	"## Files\n\n" +
	"- `answer_system.txt` - system prompt for answers; `%s` is the programming language\n" +
	"- `answer_user.txt` - user message; `%s` is the question, then the retrieved references\n" +
	"- `evaluate.txt` - grading prompt; `%s` placeholders are metric, question, answer, context and reference\n\n" +
	"Edits are picked up on the next command. A running `stackqa mcp` server reloads them automatically.\n" +
	"Keep the placeholders in the same order. Delete a file to restore its default.\n"
