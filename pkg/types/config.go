package types

// ProviderFormat tags the wire dialect a provider spec speaks.
type ProviderFormat string

const (
	FormatAnthropic ProviderFormat = "anthropic"
	FormatOpenAI    ProviderFormat = "openai"
)

// ProviderSpec configures a per-node LLM proxy: which upstream dialect it
// speaks, where the upstream lives, and an optional model rewrite.
type ProviderSpec struct {
	APIFormat ProviderFormat `json:"apiFormat"`
	BaseURL   string         `json:"baseUrl"`
	APIKey    string         `json:"apiKey"`
	Model     string         `json:"model,omitempty"`
}

// ParserDefaults configures the readiness-polling state machine shared by
// terminal nodes.
type ParserDefaults struct {
	PollIntervalSeconds    float64 `json:"pollIntervalSeconds"`
	ConsecutiveReadyChecks int     `json:"consecutiveReadyChecks"`
	SettleDelayMillis      int     `json:"settleDelayMillis"`
}

// Config is conductor's top-level, merged configuration: global file,
// project file, then environment overrides, in that priority order.
type Config struct {
	ServerBindUnix string                   `json:"serverBindUnix,omitempty"`
	ServerBindTCP  string                   `json:"serverBindTcp,omitempty"`
	ServerBindHTTP string                   `json:"serverBindHttp,omitempty"`
	HistoryDir     string                   `json:"historyDir,omitempty"`
	DefaultBudget  Budget                   `json:"defaultBudget,omitempty"`
	Parser         ParserDefaults           `json:"parser,omitempty"`
	Providers      map[string]ProviderSpec  `json:"providers,omitempty"`
	GraphWorkers   int                      `json:"graphWorkers,omitempty"`
}

// DefaultParserDefaults mirrors the spec's stated default constants.
func DefaultParserDefaults() ParserDefaults {
	return ParserDefaults{
		PollIntervalSeconds:    2.0,
		ConsecutiveReadyChecks: 2,
		SettleDelayMillis:      150,
	}
}
