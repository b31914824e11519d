// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for the Elektron service.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// UsageBackend selects the store for activity counters and logs.
type UsageBackend string

const (
	UsageMemory   UsageBackend = "memory"
	UsageSQLite   UsageBackend = "sqlite"
	UsagePostgres UsageBackend = "postgres"
)

// IsValid reports whether b is a recognised backend.
func (b UsageBackend) IsValid() bool {
	switch b {
	case UsageMemory, UsageSQLite, UsagePostgres:
		return true
	}
	return false
}

// Config is the root configuration, usually loaded with [Load].
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Providers      ProvidersConfig      `yaml:"providers"`
	Synthesis      SynthesisConfig      `yaml:"synthesis"`
	Transcription  TranscriptionConfig  `yaml:"transcription"`
	Usage          UsageConfig          `yaml:"usage"`
	Events         EventsConfig         `yaml:"events"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds network, identity and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`

	// IdentityHeader carries the authenticated user's email, set by the
	// upstream auth gateway. Default "X-User-Email".
	IdentityHeader string `yaml:"identity_header"`

	// RoleHeader carries the user's role. Default "X-User-Role".
	RoleHeader string `yaml:"role_header"`

	// MaxUploadBytes caps audio uploads. Default 100 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// TLSConfig holds PEM file paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the generative and transcription backends. The
// fallback lists are tried in order when the primary's circuit is open or
// it fails.
type ProvidersConfig struct {
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
}

// ProviderEntry is the configuration block shared by all providers. Name
// selects the constructor in the [Registry].
type ProviderEntry struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// SynthesisConfig tunes the SOAP synthesis engine.
type SynthesisConfig struct {
	// SectionTimeout bounds each model call. Default 20s.
	SectionTimeout time.Duration `yaml:"section_timeout"`

	// MaxConcurrentCalls bounds in-flight model calls across requests.
	// Default 4.
	MaxConcurrentCalls int `yaml:"max_concurrent_calls"`

	// MinTranscriptChars is the minimum trimmed transcript length. Default 10.
	MinTranscriptChars int `yaml:"min_transcript_chars"`

	// RefineWithModel routes refinement through the model.
	RefineWithModel bool `yaml:"refine_with_model"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// TranscriptionConfig tunes audio transcription.
type TranscriptionConfig struct {
	// Languages lists the language codes offered to clients. Default
	// en, es, fr, de, it.
	Languages []string `yaml:"languages"`

	// Models lists the whisper model names offered to clients.
	Models []string `yaml:"models"`

	// Vocabulary adds terms to the built-in medication and procedure lists
	// used for vocabulary correction. Hot-reloadable.
	Vocabulary []string `yaml:"vocabulary"`

	// LowConfidenceLogProb flags segments for LLM review. Default -0.5.
	LowConfidenceLogProb float64 `yaml:"low_confidence_logprob"`
}

// UsageConfig selects the activity store.
type UsageConfig struct {
	// Backend is memory, sqlite or postgres. Default memory.
	Backend UsageBackend `yaml:"backend"`

	// DSN is the SQLite file path or the PostgreSQL connection string.
	DSN string `yaml:"dsn"`

	// MaxLogs caps the retained activity log. Default 1000.
	MaxLogs int `yaml:"max_logs"`
}

// EventsConfig enables Kafka activity events. Empty Brokers disables
// publishing; events are then only logged.
type EventsConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// CircuitBreakerConfig applies to every provider breaker.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.IdentityHeader == "" {
		c.Server.IdentityHeader = "X-User-Email"
	}
	if c.Server.RoleHeader == "" {
		c.Server.RoleHeader = "X-User-Role"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 100 << 20
	}
	if c.Synthesis.SectionTimeout == 0 {
		c.Synthesis.SectionTimeout = 20 * time.Second
	}
	if c.Synthesis.MaxConcurrentCalls == 0 {
		c.Synthesis.MaxConcurrentCalls = 4
	}
	if c.Synthesis.MinTranscriptChars == 0 {
		c.Synthesis.MinTranscriptChars = 10
	}
	if len(c.Transcription.Languages) == 0 {
		c.Transcription.Languages = []string{"en", "es", "fr", "de", "it"}
	}
	if len(c.Transcription.Models) == 0 {
		c.Transcription.Models = []string{"tiny", "base", "small", "medium", "large"}
	}
	if c.Transcription.LowConfidenceLogProb == 0 {
		c.Transcription.LowConfidenceLogProb = -0.5
	}
	if c.Usage.Backend == "" {
		c.Usage.Backend = UsageMemory
	}
	if c.Usage.MaxLogs == 0 {
		c.Usage.MaxLogs = 1000
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "elektron.activity"
	}
}
