package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentfleet/conductor/pkg/types"
)

func TestValidateConfigAcceptsEmptyConfig(t *testing.T) {
	assert.NoError(t, validateConfig(&types.Config{}))
}

func TestValidateConfigRejectsNegativeGraphWorkers(t *testing.T) {
	err := validateConfig(&types.Config{GraphWorkers: -1})
	assert.Error(t, err)
}

func TestValidateConfigRejectsProviderWithoutBaseURL(t *testing.T) {
	cfg := &types.Config{Providers: map[string]types.ProviderSpec{
		"anthropic": {APIFormat: types.FormatAnthropic},
	}}
	err := validateConfig(cfg)
	assert.ErrorContains(t, err, "baseUrl")
}

func TestValidateConfigRejectsUnknownAPIFormat(t *testing.T) {
	cfg := &types.Config{Providers: map[string]types.ProviderSpec{
		"custom": {APIFormat: "weird", BaseURL: "http://localhost:9000"},
	}}
	err := validateConfig(cfg)
	assert.ErrorContains(t, err, "apiFormat")
}

func TestValidateConfigAcceptsWellFormedProvider(t *testing.T) {
	cfg := &types.Config{Providers: map[string]types.ProviderSpec{
		"anthropic": {APIFormat: types.FormatAnthropic, BaseURL: "https://api.anthropic.com"},
	}}
	assert.NoError(t, validateConfig(cfg))
}
