package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

func TestIndexCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0, len(indexCmd.Commands()))
	for _, c := range indexCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"build", "info"}, names)
}

func TestIndexBuildCmd_RebuildsEveryPartition(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "index", "build")

	require.NoError(t, err)
	assert.Equal(t, []string{"csharp", "python"}, mocks.index.rebuilt)
	assert.Contains(t, out, "Built csharp: 3 entries, 8 dimensions (hashing)")
	assert.Contains(t, out, "Built python")
}

func TestIndexBuildCmd_SingleLanguage(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "index", "build", "--language", "python")

	require.NoError(t, err)
	assert.Equal(t, []string{"python"}, mocks.index.rebuilt)
}

func TestIndexBuildCmd_UnknownLanguage(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()
	mocks.index.rebuildErr = domain.ErrUnknownLanguage

	_, err := execute(t, "index", "build", "-l", "cobol")

	assert.ErrorIs(t, err, domain.ErrUnknownLanguage)
}

func TestIndexInfoCmd(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "index", "info")

	require.NoError(t, err)
	assert.Equal(t, 1, mocks.index.ensured)
	assert.Contains(t, out, "csharp")
	assert.Contains(t, out, "Entries: 3")
	assert.Contains(t, out, "Backend: file")
	assert.Contains(t, out, "Status: not built")
}

func TestIndexInfoCmd_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "index", "info", "--json")

	require.NoError(t, err)
	var infos []domain.IndexInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)
	assert.True(t, infos[0].Initialized)
}

func TestIndexInfoCmd_NoPartitions(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()
	mocks.index.infos = nil

	out, err := execute(t, "index", "info")

	require.NoError(t, err)
	assert.Contains(t, out, "No partitions configured.")
}
