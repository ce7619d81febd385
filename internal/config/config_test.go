package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/pkg/types"
)

func TestLoadDefaults(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "conductor-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.GraphWorkers)
	assert.NotEmpty(t, cfg.HistoryDir)
	assert.Equal(t, 2.0, cfg.Parser.PollIntervalSeconds)
	assert.Equal(t, 2, cfg.Parser.ConsecutiveReadyChecks)
}

func TestJSONCComments(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "conductor-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	jsoncConfig := `{
		// single-line comment
		"serverBindHttp": "127.0.0.1:7411",
		/* multi-line
		   comment */
		"providers": {
			"anthropic": {
				"apiFormat": "anthropic",
				"baseUrl": "https://api.anthropic.com",
				"apiKey": "test-key" // inline
			}
		}
	}`

	configPath := filepath.Join(tmpDir, ".conductor", "conductor.jsonc")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte(jsoncConfig), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7411", cfg.ServerBindHTTP)
	assert.Equal(t, types.FormatAnthropic, cfg.Providers["anthropic"].APIFormat)
	assert.Equal(t, "test-key", cfg.Providers["anthropic"].APIKey)
}

func TestConfigMergePriority(t *testing.T) {
	tmpHome, err := os.MkdirTemp("", "conductor-home-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpHome)

	tmpProject, err := os.MkdirTemp("", "conductor-project-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpProject)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	defer os.Setenv("HOME", oldHome)

	globalConfig := `{
		"serverBindHttp": "0.0.0.0:8080",
		"providers": {
			"anthropic": {"apiFormat": "anthropic", "baseUrl": "https://global", "apiKey": "global-key"}
		}
	}`
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpHome, ".config"))
	globalDir := filepath.Join(tmpHome, ".config", "conductor")
	require.NoError(t, os.MkdirAll(globalDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "conductor.json"), []byte(globalConfig), 0644))

	projectConfig := `{
		"serverBindHttp": "127.0.0.1:9090"
	}`
	projectDir := filepath.Join(tmpProject, ".conductor")
	require.NoError(t, os.MkdirAll(projectDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "conductor.json"), []byte(projectConfig), 0644))

	cfg, err := Load(tmpProject)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.ServerBindHTTP)
	assert.Equal(t, "global-key", cfg.Providers["anthropic"].APIKey)
}

func TestEnvVarOverride(t *testing.T) {
	os.Setenv("ANTHROPIC_API_KEY", "env-key")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	tmpDir, err := os.MkdirTemp("", "conductor-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Providers["anthropic"].APIKey)
}

func TestEnvVarDoesNotOverrideFileAPIKey(t *testing.T) {
	os.Setenv("ANTHROPIC_API_KEY", "env-key")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	tmpDir, err := os.MkdirTemp("", "conductor-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	fileConfig := `{"providers": {"anthropic": {"apiFormat": "anthropic", "apiKey": "file-key"}}}`
	configPath := filepath.Join(tmpDir, ".conductor", "conductor.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte(fileConfig), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.Providers["anthropic"].APIKey)
}

func TestMergeConfigFunction(t *testing.T) {
	t.Run("merges providers", func(t *testing.T) {
		target := &types.Config{
			Providers: map[string]types.ProviderSpec{
				"anthropic": {APIFormat: types.FormatAnthropic},
			},
		}
		source := &types.Config{
			Providers: map[string]types.ProviderSpec{
				"openai": {APIFormat: types.FormatOpenAI},
			},
		}

		mergeConfig(target, source)

		assert.Len(t, target.Providers, 2)
	})

	t.Run("source overrides target for same key", func(t *testing.T) {
		target := &types.Config{ServerBindHTTP: "old"}
		source := &types.Config{ServerBindHTTP: "new"}

		mergeConfig(target, source)

		assert.Equal(t, "new", target.ServerBindHTTP)
	})

	t.Run("does not overwrite with empty string", func(t *testing.T) {
		target := &types.Config{ServerBindHTTP: "keep-me"}
		source := &types.Config{HistoryDir: "/var/history"}

		mergeConfig(target, source)

		assert.Equal(t, "keep-me", target.ServerBindHTTP)
		assert.Equal(t, "/var/history", target.HistoryDir)
	})
}

func TestApplyEnvOverridesFunction(t *testing.T) {
	t.Run("CONDUCTOR_BIND_HTTP overrides config", func(t *testing.T) {
		os.Setenv("CONDUCTOR_BIND_HTTP", "1.2.3.4:1")
		defer os.Unsetenv("CONDUCTOR_BIND_HTTP")

		cfg := &types.Config{ServerBindHTTP: "original"}
		applyEnvOverrides(cfg)

		assert.Equal(t, "1.2.3.4:1", cfg.ServerBindHTTP)
	})
}
