// Package config loads conductor's configuration: server bind addresses,
// the history directory, default budgets, parser tunables, and per-format
// LLM provider specs used by the proxy manager.
//
// Sources are merged in priority order, lowest first: the global config
// (~/.config/conductor/conductor.json[c]), the project config
// (<dir>/.conductor/conductor.json[c]), then environment variables and an
// optional .env file loaded via godotenv. JSONC files have // and /* */
// comments stripped before being unmarshalled as plain JSON.
package config
