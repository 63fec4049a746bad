package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_WritesProcessEnvAndFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "etc", "runner.env")
	t.Setenv("LLMHOST_TEST_PARALLEL", "")
	require.NoError(t, Set(p, "LLMHOST_TEST_PARALLEL", 16))
	assert.Equal(t, "16", os.Getenv("LLMHOST_TEST_PARALLEL"))

	vars, err := Read(p)
	require.NoError(t, err)
	assert.Equal(t, "16", vars["LLMHOST_TEST_PARALLEL"])
}

func TestSet_PreservesOtherKeys(t *testing.T) {
	p := filepath.Join(t.TempDir(), "runner.env")
	require.NoError(t, os.WriteFile(p, []byte("OLLAMA_HOST=0.0.0.0\nLLMHOST_TEST_PARALLEL=2\n"), 0o644))
	t.Setenv("LLMHOST_TEST_PARALLEL", "")
	require.NoError(t, Set(p, "LLMHOST_TEST_PARALLEL", 4))

	vars, err := Read(p)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", vars["OLLAMA_HOST"])
	assert.Equal(t, "4", vars["LLMHOST_TEST_PARALLEL"])
}

func TestSet_EmptyPathOnlySetsEnv(t *testing.T) {
	t.Setenv("LLMHOST_TEST_PARALLEL", "")
	require.NoError(t, Set("", "LLMHOST_TEST_PARALLEL", 1))
	assert.Equal(t, "1", os.Getenv("LLMHOST_TEST_PARALLEL"))
}

func TestRead_Missing(t *testing.T) {
	vars, err := Read(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.Empty(t, vars)
}
