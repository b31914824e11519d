package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per kind. [Validate] warns
// about names outside this list.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram", "whisper", "whisper-native"},
}

// Load reads, defaults and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, applies defaults and validates the
// result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg for coherence and returns all problems joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", cfg.Server.MaxUploadBytes))
	}

	errs = append(errs, validateEntries("llm", cfg.Providers.LLM, cfg.Providers.LLMFallbacks)...)
	errs = append(errs, validateEntries("stt", cfg.Providers.STT, cfg.Providers.STTFallbacks)...)
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; SOAP notes will be generated from templates only")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; audio transcription will be unavailable")
	}

	s := cfg.Synthesis
	if s.SectionTimeout < 0 {
		errs = append(errs, fmt.Errorf("synthesis.section_timeout %s must not be negative", s.SectionTimeout))
	}
	if s.MaxConcurrentCalls < 0 {
		errs = append(errs, fmt.Errorf("synthesis.max_concurrent_calls %d must not be negative", s.MaxConcurrentCalls))
	}
	if s.MinTranscriptChars < 0 {
		errs = append(errs, fmt.Errorf("synthesis.min_transcript_chars %d must not be negative", s.MinTranscriptChars))
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		errs = append(errs, fmt.Errorf("synthesis.temperature %.2f is out of range [0, 2]", s.Temperature))
	}
	if s.RefineWithModel && cfg.Providers.LLM.Name == "" {
		slog.Warn("synthesis.refine_with_model is set but no LLM is configured; refinement uses templates")
	}

	if lp := cfg.Transcription.LowConfidenceLogProb; lp > 0 {
		errs = append(errs, fmt.Errorf("transcription.low_confidence_logprob %.2f must be <= 0", lp))
	}

	if b := cfg.Usage.Backend; b != "" && !b.IsValid() {
		errs = append(errs, fmt.Errorf("usage.backend %q is invalid; valid values: memory, sqlite, postgres", b))
	}
	if (cfg.Usage.Backend == UsageSQLite || cfg.Usage.Backend == UsagePostgres) && cfg.Usage.DSN == "" {
		errs = append(errs, fmt.Errorf("usage.dsn is required for backend %q", cfg.Usage.Backend))
	}
	if cfg.Usage.MaxLogs < 0 {
		errs = append(errs, fmt.Errorf("usage.max_logs %d must not be negative", cfg.Usage.MaxLogs))
	}

	if len(cfg.Events.Brokers) > 0 && cfg.Events.Topic == "" {
		errs = append(errs, errors.New("events.topic is required when events.brokers is set"))
	}

	cb := cfg.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("circuit_breaker values must not be negative"))
	}

	return errors.Join(errs...)
}

func validateEntries(kind string, primary ProviderEntry, fallbacks []ProviderEntry) []error {
	var errs []error
	warnUnknownProvider(kind, primary.Name)
	if primary.Name == "" && len(fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("providers.%s_fallbacks requires providers.%s", kind, kind))
	}
	for i, fb := range fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s_fallbacks[%d].name is required", kind, i))
			continue
		}
		warnUnknownProvider(kind, fb.Name)
	}
	return errs
}

func warnUnknownProvider(kind, name string) {
	if name == "" || slices.Contains(ValidProviderNames[kind], name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", ValidProviderNames[kind],
	)
}
