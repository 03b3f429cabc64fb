package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [question]", searchCmd.Use)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "search")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasTopFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("top")
	require.NotNil(t, flag, "top flag should exist")
	assert.Equal(t, "k", flag.Shorthand)
	assert.Equal(t, "3", flag.DefValue)
}

func TestSearchCmd_ExecutesWithQuestion(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "search", "How to join strings?")

	require.NoError(t, err)
	assert.Equal(t, 1, mocks.index.ensured)
	assert.Contains(t, out, "Similar questions:")
	assert.Contains(t, out, "How to join strings in C#?")
	assert.Contains(t, out, "https://stackoverflow.com/q/1")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "0.120")
}

func TestSearchCmd_PassesFlags(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "search", "-k", "5", "--language", "python", "question")

	require.NoError(t, err)
	assert.Equal(t, domain.RetrievalOptions{K: 5, Language: "python"}, mocks.retrieval.last)
}

func TestSearchCmd_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "search", "--json", "question")

	require.NoError(t, err)
	var results []domain.RetrievalResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, sampleResults, results)
}

func TestSearchCmd_NoResults(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()
	mocks.retrieval.results = nil

	out, err := execute(t, "search", "question")

	require.NoError(t, err)
	assert.Contains(t, out, domain.MessageNoResults)
}

func TestSearchCmd_RetrievalError(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()
	mocks.retrieval.err = domain.ErrRetrievalTimeout

	_, err := execute(t, "search", "question")

	assert.ErrorIs(t, err, domain.ErrRetrievalTimeout)
}

func TestSearchCmd_EnsureError(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()
	mocks.index.ensureErr = errors.New("corpus missing")

	_, err := execute(t, "search", "question")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "prepare index")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("  short  ", 10))

	assert.Equal(t, "word word word word...", preview(strings.Repeat("word ", 20), 22))
	assert.Equal(t, "ééééé...", preview(strings.Repeat("é", 10), 5), "cuts on runes")
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "a\n  b\n  c", indent("a\nb\nc", "  "))
}
