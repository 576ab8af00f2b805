package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile drops a config.yaml with secure permissions under a fake
// home directory and points HOME at it.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "ragd")
	require.NoError(t, os.MkdirAll(dir, 0700))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "ragd", cfg.Telemetry.ServiceName)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", cfg.Embeddings.Model)
	assert.Equal(t, 512, cfg.Embeddings.MaxLength)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "documents", cfg.Retrieval.Collection)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.7, cfg.Retrieval.SimilarityThreshold, 1e-9)
	assert.Equal(t, "auto", cfg.Completion.Provider)
	assert.InDelta(t, 0.7, cfg.Completion.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.Completion.MaxTokens)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  http_port: 9090
retrieval:
  top_k: 5
  similarity_threshold: 0.6
vectorstore:
  provider: chromem
  chromem:
    path: /tmp/ragd-test-store
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.6, cfg.Retrieval.SimilarityThreshold, 1e-9)
	assert.Equal(t, "/tmp/ragd-test-store", cfg.VectorStore.Chromem.Path)

	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "documents", cfg.Retrieval.Collection)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  http_port: 9090
`)
	t.Setenv("SERVER_HTTP_PORT", "7070")
	t.Setenv("RETRIEVAL_SIMILARITY_THRESHOLD", "0.5")
	t.Setenv("EMBEDDINGS_PROVIDER", "tei")
	t.Setenv("EMBEDDINGS_BASE_URL", "http://localhost:8081")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.InDelta(t, 0.5, cfg.Retrieval.SimilarityThreshold, 1e-9)
	assert.Equal(t, "tei", cfg.Embeddings.Provider)
	assert.Equal(t, "http://localhost:8081", cfg.Embeddings.BaseURL)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, ".config", "ragd", "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_RejectsInsecurePermissions(t *testing.T) {
	path := writeConfigFile(t, "server:\n  http_port: 9090\n")
	require.NoError(t, os.Chmod(path, 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_RejectsPathOutsideAllowedDirs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9090\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file must be in")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [unclosed\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("EMBEDDINGS_PROVIDER", "word2vec")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid embeddings provider")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "bad logging level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid logging level",
		},
		{
			name:    "bad logging format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid logging format",
		},
		{
			name:    "telemetry sample rate out of range",
			mutate:  func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.SampleRate = 1.5 },
			wantErr: "sample rate",
		},
		{
			name:    "bad vectorstore provider",
			mutate:  func(c *Config) { c.VectorStore.Provider = "milvus" },
			wantErr: "invalid vectorstore provider",
		},
		{
			name:    "qdrant without host",
			mutate:  func(c *Config) { c.VectorStore.Provider = "qdrant"; c.Qdrant.Host = "" },
			wantErr: "qdrant host required",
		},
		{
			name:    "empty collection",
			mutate:  func(c *Config) { c.Retrieval.Collection = "" },
			wantErr: "retrieval collection required",
		},
		{
			name:    "zero top_k",
			mutate:  func(c *Config) { c.Retrieval.TopK = 0 },
			wantErr: "top_k must be at least 1",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Retrieval.SimilarityThreshold = 1.2 },
			wantErr: "similarity_threshold must be in [0,1]",
		},
		{
			name:    "bad completion provider",
			mutate:  func(c *Config) { c.Completion.Provider = "llama" },
			wantErr: "invalid completion provider",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Completion.Temperature = 3.0 },
			wantErr: "temperature must be in [0,2]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())

	info, err := os.Stat(filepath.Join(home, ".config", "ragd"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}
