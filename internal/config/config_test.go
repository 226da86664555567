package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_MissingExplicitPathIsError(t *testing.T) {
	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	root := t.TempDir()
	content := []byte("max_depth: 4\nexclude:\n  - \"**/*_test.go\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultFileName), content, 0o644))

	cfg, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxDepth)
	assert.Equal(t, []string{"**/*_test.go"}, cfg.Exclude)
	assert.Equal(t, DefaultConfig().Model, cfg.Model)
	assert.Equal(t, DefaultConfig().BatchSize, cfg.BatchSize)
}

func TestLoad_MalformedYAMLIsError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultFileName), []byte(":\n  - ["), 0o644))

	_, err := Load(root, "")
	assert.Error(t, err)
}

func TestLoad_ValidationFailureIsError(t *testing.T) {
	root := t.TempDir()
	content := []byte("max_depth: 99\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultFileName), content, 0o644))

	_, err := Load(root, "")
	assert.Error(t, err)
}

func TestLoad_BadExtensionRejected(t *testing.T) {
	root := t.TempDir()
	content := []byte("extensions:\n  - go\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultFileName), content, 0o644))

	_, err := Load(root, "")
	assert.Error(t, err)
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: gpt-4o\nbase_url: http://localhost:8080/v1\n"), 0o644))

	cfg, err := Load(t.TempDir(), path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "http://localhost:8080/v1", cfg.BaseURL)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{Model: "custom", BatchSize: 5}
	cfg.ApplyDefaults()

	assert.Equal(t, "custom", cfg.Model)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, DefaultConfig().MaxDepth, cfg.MaxDepth)
}
