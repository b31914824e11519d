package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/elektron/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		Server:        config.ServerConfig{LogLevel: config.LogInfo},
		Providers:     config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini"}},
		Transcription: config.TranscriptionConfig{Vocabulary: []string{"metoprolol"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	d := config.Diff(baseConfig(), baseConfig())
	if d.LogLevelChanged || d.VocabularyChanged || len(d.RestartRequired) != 0 {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantLevel   config.LogLevel
		wantVocab   []string
		wantRestart []string
	}{
		{
			name:      "log level is live",
			mutate:    func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			wantLevel: config.LogDebug,
		},
		{
			name:      "vocabulary is live",
			mutate:    func(c *config.Config) { c.Transcription.Vocabulary = []string{"metoprolol", "warfarin"} },
			wantVocab: []string{"metoprolol", "warfarin"},
		},
		{
			name:        "listen address needs restart",
			mutate:      func(c *config.Config) { c.Server.ListenAddr = ":1234" },
			wantRestart: []string{"server"},
		},
		{
			name:        "provider model needs restart",
			mutate:      func(c *config.Config) { c.Providers.LLM.Model = "gpt-4o" },
			wantRestart: []string{"providers"},
		},
		{
			name: "mixed",
			mutate: func(c *config.Config) {
				c.Server.LogLevel = config.LogWarn
				c.Synthesis.SectionTimeout = 5 * time.Second
				c.Usage.MaxLogs = 50
			},
			wantLevel:   config.LogWarn,
			wantRestart: []string{"synthesis", "usage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			next := baseConfig()
			tt.mutate(next)
			d := config.Diff(baseConfig(), next)

			if got := d.LogLevelChanged; got != (tt.wantLevel != "") {
				t.Errorf("LogLevelChanged = %v", got)
			}
			if d.NewLogLevel != tt.wantLevel {
				t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, tt.wantLevel)
			}
			if got := d.VocabularyChanged; got != (tt.wantVocab != nil) {
				t.Errorf("VocabularyChanged = %v", got)
			}
			if !slices.Equal(d.NewVocabulary, tt.wantVocab) {
				t.Errorf("NewVocabulary = %v, want %v", d.NewVocabulary, tt.wantVocab)
			}
			if !slices.Equal(d.RestartRequired, tt.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tt.wantRestart)
			}
		})
	}
}
