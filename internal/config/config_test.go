package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  api_key: "sk-test"
  model: "gpt-4o"
  task_models:
    screen: "gpt-4o-mini"
qdrant:
  endpoint: "http://qdrant:6333"
screening:
  default_threshold: 80
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "http://qdrant:6333", cfg.Qdrant.Endpoint)
	assert.Equal(t, 80, cfg.Screening.DefaultThreshold)

	// 未配置的项应填充默认值
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, "resume_chunks", cfg.Qdrant.ResumeCollection)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: \"from-file\"\n"), 0o644))

	t.Setenv("OPENROUTER_API_KEY", "from-env")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestGetModelForTask(t *testing.T) {
	cfg := createDefaultConfig()
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.TaskModels = map[string]string{"screen": "gpt-4o"}

	assert.Equal(t, "gpt-4o", cfg.GetModelForTask("screen"))
	assert.Equal(t, "gpt-4o-mini", cfg.GetModelForTask("quality"))
	assert.Equal(t, "gpt-4o-mini", cfg.GetModelForTask("unknown"))
}

func TestDefaultConfigInTests(t *testing.T) {
	// 测试环境下缺失配置文件不应报错
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 75, cfg.Screening.DefaultThreshold)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, GetDuration("30s", 5*time.Second))
	assert.Equal(t, 2*time.Minute, GetDuration("2m", 5*time.Second))
	// 空串和无法解析的值都取默认
	assert.Equal(t, 5*time.Second, GetDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, GetDuration("not-a-duration", 5*time.Second))
}
