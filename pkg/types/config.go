package types

import "time"

// HTTPConfig holds shared HTTP settings used by connectors and LLM clients.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// LLMProvider identifies the text-generation backend.
type LLMProvider string

const (
	ProviderGemini    LLMProvider = "gemini"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
)

// LLMConfig selects and configures the language model.
type LLMConfig struct {
	// Provider is gemini, openai, or anthropic.
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey authenticates against the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (openai-compatible servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxTokens caps generated tokens where the provider requires it.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig holds settings for the search aggregator and its connectors.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Sources lists the connectors queried when a call names none.
	Sources []string `json:"sources" yaml:"sources" mapstructure:"sources"`

	// MaxResults is the per-source result limit (default 10).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// Workers bounds the number of concurrent connector calls. Zero means
	// one worker per requested source.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// SerperAPIKey authenticates the web and scholar connectors.
	SerperAPIKey string `json:"serper_api_key,omitempty" yaml:"serper_api_key,omitempty" mapstructure:"serper_api_key"`

	// SemanticScholarAPIKey is an optional key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// OpenAlexEmail is sent as mailto for the OpenAlex polite pool.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty" mapstructure:"openalex_email"`
}

// MemoryBackend selects the memory bank implementation.
type MemoryBackend string

const (
	MemoryJSON   MemoryBackend = "json"
	MemorySQLite MemoryBackend = "sqlite"
	MemoryRedis  MemoryBackend = "redis"
)

// MemoryConfig configures the long-term memory bank.
type MemoryConfig struct {
	// Backend is json, sqlite, or redis.
	Backend MemoryBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Path is the JSON or SQLite file location.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// RedisAddr is the host:port of the Redis server.
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`

	// RedisDB selects the Redis logical database.
	RedisDB int `json:"redis_db,omitempty" yaml:"redis_db,omitempty" mapstructure:"redis_db"`

	// RedisKey is the hash that holds the bank.
	RedisKey string `json:"redis_key,omitempty" yaml:"redis_key,omitempty" mapstructure:"redis_key"`
}

// ObservabilityConfig configures counters, traces, and OpenTelemetry export.
type ObservabilityConfig struct {
	// ServiceName labels OpenTelemetry resources.
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`

	// TraceStdout exports spans to stdout.
	TraceStdout bool `json:"trace_stdout" yaml:"trace_stdout" mapstructure:"trace_stdout"`

	// ExportPath is where `report --json` writes the metrics snapshot.
	ExportPath string `json:"export_path" yaml:"export_path" mapstructure:"export_path"`
}

// Config groups all settings loaded by the CLI.
type Config struct {
	LLM           LLMConfig           `json:"llm" yaml:"llm" mapstructure:"llm"`
	Search        SearchConfig        `json:"search" yaml:"search" mapstructure:"search"`
	Memory        MemoryConfig        `json:"memory" yaml:"memory" mapstructure:"memory"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability" mapstructure:"observability"`

	// OutputsDir is where the file_write tool places research output.
	OutputsDir string `json:"outputs_dir" yaml:"outputs_dir" mapstructure:"outputs_dir"`

	// SessionPath is where chat sessions are saved.
	SessionPath string `json:"session_path" yaml:"session_path" mapstructure:"session_path"`
}

// DefaultConfig returns the settings used when no config file overrides them.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider:  ProviderGemini,
			Model:     "gemini-2.5-flash",
			MaxTokens: 4096,
		},
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "research-assistant/0.1",
			},
			Sources:    []string{SourceArxiv, SourceWeb},
			MaxResults: 10,
		},
		Memory: MemoryConfig{
			Backend:  MemoryJSON,
			Path:     "data/memory/long_term_memory.json",
			RedisKey: "research-assistant:memory",
		},
		Observability: ObservabilityConfig{
			ServiceName: "research-assistant",
			ExportPath:  "data/metrics.json",
		},
		OutputsDir:  "data/outputs",
		SessionPath: "data/sessions/session.json",
	}
}
