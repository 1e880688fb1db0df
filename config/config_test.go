package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(GeminiKeyEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 120*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes())
	assert.True(t, cfg.Server.CORS)

	assert.Equal(t, "gemini", cfg.Embed.Provider)
	assert.Equal(t, "gemini-embedding-001", cfg.Embed.Model)
	assert.Equal(t, 1, cfg.Embed.Workers)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)

	assert.Equal(t, 500, cfg.Analysis.ChunkSize)
	assert.Equal(t, 3, cfg.Analysis.TopK)
	assert.Equal(t, "flat", cfg.VectorDB.Type)

	assert.False(t, cfg.Database.Enable)
	assert.False(t, cfg.Queue.Enable)
	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_FromFile(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "embed-secret")
	t.Setenv("TEST_REDIS_HOST", "redis.internal")

	path := writeConfig(t, `
server:
  port: 9000
  mode: debug
  request_timeout: 45s
  max_upload_mb: 5
embed:
  provider: tongyi
  model: text-embedding-v3
  api_key: ${TEST_EMBED_KEY}
  workers: 4
  rate_limit: 2.5
llm:
  provider: gemini
  api_key: llm-secret
  temperature: 0.3
analysis:
  chunk_size: 800
  top_k: 5
  query: Summarize the candidate
vectordb:
  type: faiss
queue:
  enable: true
  address: ${TEST_REDIS_HOST}:6379
  concurrency: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, 45*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, int64(5<<20), cfg.Server.MaxUploadBytes())

	assert.Equal(t, "tongyi", cfg.Embed.Provider)
	assert.Equal(t, "embed-secret", cfg.Embed.APIKey)
	assert.Equal(t, 4, cfg.Embed.Workers)
	assert.InDelta(t, 2.5, cfg.Embed.RateLimit, 1e-9)

	assert.Equal(t, "llm-secret", cfg.LLM.APIKey)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-6)

	assert.Equal(t, 800, cfg.Analysis.ChunkSize)
	assert.Equal(t, 5, cfg.Analysis.TopK)
	assert.Equal(t, "Summarize the candidate", cfg.Analysis.Query)
	assert.Equal(t, "faiss", cfg.VectorDB.Type)

	assert.True(t, cfg.Queue.Enable)
	assert.Equal(t, "redis.internal:6379", cfg.Queue.Address)
	assert.Equal(t, 2, cfg.Queue.Concurrency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Run("prefixed variables", func(t *testing.T) {
		t.Setenv("RESUME_SERVER_PORT", "7070")
		t.Setenv("RESUME_ANALYSIS_TOP_K", "7")
		t.Setenv("RESUME_LLM_API_KEY", "from-env")

		cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, 7, cfg.Analysis.TopK)
		assert.Equal(t, "from-env", cfg.LLM.APIKey)
	})

	t.Run("gemini key fallback", func(t *testing.T) {
		t.Setenv(GeminiKeyEnv, "shared-key")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "shared-key", cfg.Embed.APIKey)
		assert.Equal(t, "shared-key", cfg.LLM.APIKey)
	})

	t.Run("fallback only for gemini", func(t *testing.T) {
		t.Setenv(GeminiKeyEnv, "shared-key")

		cfg, err := Load(writeConfig(t, "embed:\n  provider: tongyi\n"))
		require.NoError(t, err)
		assert.Empty(t, cfg.Embed.APIKey)
		assert.Equal(t, "shared-key", cfg.LLM.APIKey)
	})

	t.Run("explicit key wins", func(t *testing.T) {
		t.Setenv(GeminiKeyEnv, "shared-key")

		cfg, err := Load(writeConfig(t, "llm:\n  api_key: own-key\n"))
		require.NoError(t, err)
		assert.Equal(t, "own-key", cfg.LLM.APIKey)
	})
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		field   string
	}{
		{"unknown embed provider", "embed:\n  provider: openai\n", "Embed.Provider"},
		{"zero chunk size", "analysis:\n  chunk_size: 0\n", "Analysis.ChunkSize"},
		{"negative top k", "analysis:\n  top_k: -1\n", "Analysis.TopK"},
		{"unknown index", "vectordb:\n  type: hnsw\n", "VectorDB.Type"},
		{"minio without endpoint", "storage:\n  enable: true\n  type: minio\n", "Storage.Endpoint"},
		{"bad port", "server:\n  port: 70000\n", "Server.Port"},
		{"bad base url", "llm:\n  base_url: not a url\n", "LLM.BaseURL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.field)
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [port"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_A", "alpha")

	assert.Equal(t, "alpha", expandEnv("${EXPAND_A}"))
	assert.Equal(t, "x-alpha-y", expandEnv("x-${EXPAND_A}-y"))
	assert.Equal(t, "", expandEnv("${EXPAND_UNSET_VARIABLE}"))
	assert.Equal(t, "$EXPAND_A", expandEnv("$EXPAND_A"))
	assert.Equal(t, "plain", expandEnv("plain"))
}
