package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/elektron/internal/config"
)

const fullYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  identity_header: X-Auth-Email
providers:
  llm:
    name: openai
    model: gpt-4o-mini
    api_key: sk-test
  llm_fallbacks:
    - name: ollama
      model: llama3.2
  stt:
    name: whisper
    base_url: http://localhost:8081
    options:
      language: en
synthesis:
  section_timeout: 15s
  max_concurrent_calls: 8
  refine_with_model: true
  temperature: 0.5
  max_tokens: 300
transcription:
  vocabulary: [metoprolol, echocardiogram]
usage:
  backend: sqlite
  dsn: /var/lib/elektron/usage.db
events:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  topic: clinic.activity
circuit_breaker:
  max_failures: 3
  reset_timeout: 1m
`

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.IdentityHeader != "X-Auth-Email" {
		t.Errorf("identity_header = %q", cfg.Server.IdentityHeader)
	}
	if cfg.Server.RoleHeader != "X-User-Role" {
		t.Errorf("role_header default not applied: %q", cfg.Server.RoleHeader)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("providers.llm = %+v", cfg.Providers.LLM)
	}
	if len(cfg.Providers.LLMFallbacks) != 1 || cfg.Providers.LLMFallbacks[0].Name != "ollama" {
		t.Errorf("providers.llm_fallbacks = %+v", cfg.Providers.LLMFallbacks)
	}
	if cfg.Providers.STT.OptionString("language") != "en" {
		t.Errorf("providers.stt.options = %v", cfg.Providers.STT.Options)
	}
	if cfg.Synthesis.SectionTimeout != 15*time.Second || cfg.Synthesis.MaxConcurrentCalls != 8 {
		t.Errorf("synthesis = %+v", cfg.Synthesis)
	}
	if !cfg.Synthesis.RefineWithModel || cfg.Synthesis.MaxTokens != 300 {
		t.Errorf("synthesis = %+v", cfg.Synthesis)
	}
	if len(cfg.Transcription.Vocabulary) != 2 {
		t.Errorf("vocabulary = %v", cfg.Transcription.Vocabulary)
	}
	if cfg.Usage.Backend != config.UsageSQLite {
		t.Errorf("usage.backend = %q", cfg.Usage.Backend)
	}
	if len(cfg.Events.Brokers) != 2 || cfg.Events.Topic != "clinic.activity" {
		t.Errorf("events = %+v", cfg.Events)
	}
	if cfg.CircuitBreaker.ResetTimeout != time.Minute {
		t.Errorf("circuit_breaker.reset_timeout = %s", cfg.CircuitBreaker.ResetTimeout)
	}
}

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config should load with defaults: %v", err)
	}
	if cfg.Usage.Backend != config.UsageMemory {
		t.Errorf("usage.backend = %q, want memory", cfg.Usage.Backend)
	}
}

func TestLoadFromReader_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "unknown key",
			yaml:    "server:\n  listen_port: 80\n",
			wantErr: []string{"listen_port"},
		},
		{
			name:    "bad log level",
			yaml:    "server:\n  log_level: bananas\n",
			wantErr: []string{"server.log_level"},
		},
		{
			name:    "tls missing key",
			yaml:    "server:\n  tls:\n    cert_file: cert.pem\n",
			wantErr: []string{"server.tls"},
		},
		{
			name:    "fallbacks without primary",
			yaml:    "providers:\n  stt_fallbacks:\n    - name: deepgram\n",
			wantErr: []string{"providers.stt_fallbacks requires providers.stt"},
		},
		{
			name:    "unnamed fallback",
			yaml:    "providers:\n  llm:\n    name: openai\n  llm_fallbacks:\n    - model: x\n",
			wantErr: []string{"providers.llm_fallbacks[0].name"},
		},
		{
			name:    "temperature out of range",
			yaml:    "synthesis:\n  temperature: 3\n",
			wantErr: []string{"synthesis.temperature"},
		},
		{
			name:    "negative concurrency",
			yaml:    "synthesis:\n  max_concurrent_calls: -1\n",
			wantErr: []string{"synthesis.max_concurrent_calls"},
		},
		{
			name:    "positive logprob",
			yaml:    "transcription:\n  low_confidence_logprob: 0.3\n",
			wantErr: []string{"transcription.low_confidence_logprob"},
		},
		{
			name:    "unknown usage backend",
			yaml:    "usage:\n  backend: redis\n",
			wantErr: []string{"usage.backend"},
		},
		{
			name:    "postgres without dsn",
			yaml:    "usage:\n  backend: postgres\n",
			wantErr: []string{"usage.dsn"},
		},
		{
			name:    "multiple problems joined",
			yaml:    "server:\n  log_level: loud\nusage:\n  backend: sqlite\n",
			wantErr: []string{"server.log_level", "usage.dsn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q should mention %q", err, want)
				}
			}
		})
	}
}

func TestValidate_UnknownProviderOnlyWarns(t *testing.T) {
	t.Parallel()

	yaml := "providers:\n  llm:\n    name: my-custom-llm\n  stt:\n    name: my-custom-stt\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unknown provider names should not fail validation: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "elektron.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
