package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "APP_ENV", "NODE_ENV", "PORT", "DB_PATH"} {
		t.Setenv(k, "")
	}
}

// TestLoadConfigDefaults 空配置文件应得到完整的默认值
func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	configPath := writeTempConfig(t, "{}\n")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Address)
	assert.Equal(t, ModeDevelopment, cfg.Server.Mode)
	assert.False(t, cfg.Server.IsProduction())
	assert.Equal(t, "dist", cfg.Server.StaticDir)
	assert.Equal(t, 10, cfg.Server.MaxBodyMB)
	assert.Equal(t, "candidates.db", cfg.Store.Path)
	assert.True(t, cfg.Store.LockEnabled())
	assert.Equal(t, ProviderGemini, cfg.Evaluator.Provider)
	assert.Equal(t, "gemini-3-flash-preview", cfg.Evaluator.Model)
	assert.Equal(t, "recruit.candidates", cfg.RabbitMQ.EventsExchange)
	assert.Equal(t, "us-east-1", cfg.MinIO.Location)
	assert.Equal(t, 15, cfg.MinIO.PresignExpiryMins)
	assert.Equal(t, "info", cfg.Logger.Level)
}

// TestLoadConfigFromYAML 验证 YAML 中的值会覆盖默认值
func TestLoadConfigFromYAML(t *testing.T) {
	clearEnv(t)
	configPath := writeTempConfig(t, `
server:
  address: ":8088"
  mode: production
  static_dir: "web/dist"
store:
  path: "/tmp/recruit.db"
  lock: false
evaluator:
  provider: openai_compatible
  model: qwen-plus
  base_url: "https://example.com/v1/chat/completions"
  qpm: 30
  timeout: "15s"
redis:
  address: "localhost:6379"
`)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.Server.Address)
	assert.True(t, cfg.Server.IsProduction())
	assert.Equal(t, "web/dist", cfg.Server.StaticDir)
	assert.Equal(t, "/tmp/recruit.db", cfg.Store.Path)
	assert.False(t, cfg.Store.LockEnabled())
	assert.Equal(t, ProviderOpenAICompatible, cfg.Evaluator.Provider)
	assert.Equal(t, "qwen-plus", cfg.Evaluator.Model)
	assert.Equal(t, 30, cfg.Evaluator.QPM)
	assert.Equal(t, 15*time.Second, GetDuration(cfg.Evaluator.Timeout, time.Minute))
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "recruit", cfg.Redis.KeyPrefix)
}

// TestLoadConfigEnvOverrides 环境变量优先于配置文件
func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	configPath := writeTempConfig(t, `
evaluator:
  api_key: "from-file"
`)
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("PORT", "4000")
	t.Setenv("DB_PATH", "env.db")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Evaluator.APIKey)
	assert.Equal(t, ModeProduction, cfg.Server.Mode)
	assert.Equal(t, ":4000", cfg.Server.Address)
	assert.Equal(t, "env.db", cfg.Store.Path)
}

// TestLoadConfigNonProductionEnvIsDevelopment NODE_ENV 不是 production 时按开发模式处理
func TestLoadConfigNonProductionEnvIsDevelopment(t *testing.T) {
	clearEnv(t)
	t.Setenv("NODE_ENV", "test")

	cfg, err := LoadConfig(writeTempConfig(t, "server:\n  mode: production\n"))
	require.NoError(t, err)
	assert.Equal(t, ModeDevelopment, cfg.Server.Mode)
}

func TestLoadConfigValidation(t *testing.T) {
	clearEnv(t)

	testCases := []struct {
		name    string
		content string
	}{
		{"未知模式", "server:\n  mode: staging\n"},
		{"未知provider", "evaluator:\n  provider: claude\n"},
		{"openai兼容缺少模型", "evaluator:\n  provider: openai_compatible\n"},
		{"qpm为负", "evaluator:\n  qpm: -1\n"},
		{"开启tracing但无endpoint", "tracing:\n  enabled: true\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeTempConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "配置文件不存在")
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := LoadConfigFromFileOnly(writeTempConfig(t, "server: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

func TestCreateSampleConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sample.yaml")

	require.NoError(t, CreateSampleConfig(path))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Address)

	// 第二次调用不会覆盖已有文件
	assert.Error(t, CreateSampleConfig(path))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, GetDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("abc", time.Minute))
}

func TestResolveAPIKey(t *testing.T) {
	keyring.MockInit()

	cfg := EvaluatorConfig{Provider: ProviderGemini}

	_, err := ResolveAPIKey(cfg)
	assert.ErrorIs(t, err, ErrAPIKeyNotFound)

	require.NoError(t, StoreAPIKey(cfg, "  secret-from-keyring  "))
	key, err := ResolveAPIKey(cfg)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-keyring", key)

	// 配置中的 key 优先
	cfg.APIKey = "from-config"
	key, err = ResolveAPIKey(cfg)
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	cfg.APIKey = ""
	require.NoError(t, DeleteAPIKey(cfg))
	require.NoError(t, DeleteAPIKey(cfg), "重复删除不应报错")
	_, err = ResolveAPIKey(cfg)
	assert.ErrorIs(t, err, ErrAPIKeyNotFound)

	assert.Error(t, StoreAPIKey(cfg, "   "))
}
