package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"

	"github.com/agentfleet/conductor/pkg/types"
)

// Load loads configuration from multiple sources, lowest to highest
// priority:
//  1. Global config (~/.config/conductor/conductor.json[c])
//  2. Project config (<directory>/.conductor/conductor.json[c])
//  3. Environment variables (including a .env file in directory, if present)
func Load(directory string) (*types.Config, error) {
	cfg := &types.Config{
		Providers: make(map[string]types.ProviderSpec),
		Parser:    types.DefaultParserDefaults(),
	}

	globalPath := GetPaths().Config
	_ = loadConfigFile(filepath.Join(globalPath, "conductor.json"), cfg)
	_ = loadConfigFile(filepath.Join(globalPath, "conductor.jsonc"), cfg)

	if directory != "" {
		_ = godotenv.Load(filepath.Join(directory, ".env"))
		_ = loadConfigFile(filepath.Join(directory, ".conductor", "conductor.json"), cfg)
		_ = loadConfigFile(filepath.Join(directory, ".conductor", "conductor.jsonc"), cfg)
	}

	applyEnvOverrides(cfg)

	if cfg.HistoryDir == "" {
		cfg.HistoryDir = GetPaths().HistoryPath()
	}
	if cfg.GraphWorkers == 0 {
		cfg.GraphWorkers = 4
	}

	return cfg, nil
}

func loadConfigFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = stripJSONComments(data)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(cfg, &fileConfig)
	return nil
}

// stripJSONComments removes // and /* */ comments from a JSONC document.
func stripJSONComments(data []byte) []byte {
	singleLine := regexp.MustCompile(`//.*$`)
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = singleLine.ReplaceAll(line, nil)
	}
	data = bytes.Join(lines, []byte("\n"))

	multiLine := regexp.MustCompile(`/\*[\s\S]*?\*/`)
	return multiLine.ReplaceAll(data, nil)
}

func mergeConfig(target, source *types.Config) {
	if source.ServerBindUnix != "" {
		target.ServerBindUnix = source.ServerBindUnix
	}
	if source.ServerBindTCP != "" {
		target.ServerBindTCP = source.ServerBindTCP
	}
	if source.ServerBindHTTP != "" {
		target.ServerBindHTTP = source.ServerBindHTTP
	}
	if source.HistoryDir != "" {
		target.HistoryDir = source.HistoryDir
	}
	if source.GraphWorkers != 0 {
		target.GraphWorkers = source.GraphWorkers
	}
	if source.DefaultBudget != (types.Budget{}) {
		target.DefaultBudget = source.DefaultBudget
	}
	if source.Parser != (types.ParserDefaults{}) {
		target.Parser = source.Parser
	}
	if source.Providers != nil {
		if target.Providers == nil {
			target.Providers = make(map[string]types.ProviderSpec)
		}
		for k, v := range source.Providers {
			target.Providers[k] = v
		}
	}
}

// applyEnvOverrides applies environment variable overrides on top of the
// merged file configuration.
func applyEnvOverrides(cfg *types.Config) {
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
	}

	for provider, envVar := range providerEnvMap {
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			continue
		}
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]types.ProviderSpec)
		}
		spec := cfg.Providers[provider]
		if spec.APIKey == "" {
			spec.APIKey = apiKey
			cfg.Providers[provider] = spec
		}
	}

	if bind := os.Getenv("CONDUCTOR_BIND_HTTP"); bind != "" {
		cfg.ServerBindHTTP = bind
	}
	if dir := os.Getenv("CONDUCTOR_HISTORY_DIR"); dir != "" {
		cfg.HistoryDir = dir
	}
}

// Save writes the configuration to path as indented JSON.
func Save(cfg *types.Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
