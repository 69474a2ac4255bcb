package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, &ProjectConfig{EnableAI: true}, cfg)
}

func TestLoadDisableAI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intentmerge.yml"), []byte("enableAI: false\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cfg.EnableAI)
}

func TestLoadOmittedKeyKeepsAIDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intentmerge.yml"), []byte("verbose: true\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.EnableAI, "AI stays on when the config file does not mention it")
	assert.True(t, cfg.Verbose)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	content := `enableAI: true
aiModel: gpt-4.1
apiKeyEnv: MERGE_API_KEY
contextLines: 8
excludeDirs:
  - node_modules
  - vendor
concurrency: 4
verbose: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intentmerge.yml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.EnableAI)
	assert.Equal(t, "gpt-4.1", cfg.AIModel)
	assert.Equal(t, "MERGE_API_KEY", cfg.APIKeyEnv)
	assert.Equal(t, 8, cfg.ContextLines)
	assert.Equal(t, []string{"node_modules", "vendor"}, cfg.ExcludeDirs)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.True(t, cfg.Verbose)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intentmerge.yml"), []byte("enableAI: [broken"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
