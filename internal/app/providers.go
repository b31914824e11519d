package app

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/elektron/internal/config"
	"github.com/MrWong99/elektron/internal/soap"
	"github.com/MrWong99/elektron/pkg/provider/llm"
	"github.com/MrWong99/elektron/pkg/provider/llm/anyllm"
	"github.com/MrWong99/elektron/pkg/provider/llm/openai"
	"github.com/MrWong99/elektron/pkg/provider/stt"
	"github.com/MrWong99/elektron/pkg/provider/stt/deepgram"
	"github.com/MrWong99/elektron/pkg/provider/stt/whisper"
)

// BuiltinProviders maps provider kinds to the implementations that ship with
// Elektron.
var BuiltinProviders = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram", "whisper", "whisper-native"},
}

// anyLLMVendors share one factory: optional APIKey plus optional BaseURL.
var anyLLMVendors = []string{"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// RegisterBuiltinProviders wires all built-in provider factories into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptionString("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, vendor := range anyLLMVendors {
		reg.RegisterLLM(vendor, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(vendor, entry.Model, opts...)
		})
	}

	// ollama is a local server addressed by BaseURL, never by key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []deepgram.Option{
			deepgram.WithKeyterms(append(soap.Terms(soap.Medications), entry.OptionStrings("keyterms")...)),
		}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptionString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	for kind, names := range BuiltinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// BuildProviders instantiates the primary and fallback providers named in
// cfg. Unregistered names are skipped with a warning.
//
// An LLM that fails to load is dropped and recorded in
// [Providers.LLMUnavailable]; the next configured LLM takes its place, and
// with none left the engine runs on templates only. An STT factory failure
// is returned as an error.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}
	p := cfg.Providers

	var (
		llms     []Named[llm.Provider]
		llmFails []error
	)
	for _, entry := range append([]config.ProviderEntry{p.LLM}, p.LLMFallbacks...) {
		n, err := create("llm", entry, reg.CreateLLM)
		if err != nil {
			err = fmt.Errorf("%w: %w", soap.ErrBackendUnavailable, err)
			slog.Warn("llm provider failed to load, skipping", "name", entry.Name, "err", err)
			llmFails = append(llmFails, err)
			continue
		}
		if n.Provider != nil {
			llms = append(llms, n)
		}
	}
	if len(llms) > 0 {
		ps.LLM, ps.LLMFallbacks = llms[0], llms[1:]
	}
	ps.LLMUnavailable = errors.Join(llmFails...)
	if ps.LLM.Provider == nil && ps.LLMUnavailable != nil {
		slog.Warn("no llm provider could be loaded, notes fall back to templates")
	}

	var err error
	if ps.STT, err = create("stt", p.STT, reg.CreateSTT); err != nil {
		return nil, err
	}
	for _, entry := range p.STTFallbacks {
		fb, err := create("stt", entry, reg.CreateSTT)
		if err != nil {
			return nil, err
		}
		if fb.Provider != nil {
			ps.STTFallbacks = append(ps.STTFallbacks, fb)
		}
	}
	return ps, nil
}

func create[T any](kind string, entry config.ProviderEntry, factory func(config.ProviderEntry) (T, error)) (Named[T], error) {
	if entry.Name == "" {
		return Named[T]{}, nil
	}
	p, err := factory(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("provider not implemented, skipping", "kind", kind, "name", entry.Name)
		return Named[T]{}, nil
	}
	if err != nil {
		return Named[T]{}, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
	}
	slog.Info("provider created", "kind", kind, "name", entry.Name, "model", entry.Model)
	return Named[T]{Name: entry.Name, Provider: p}, nil
}
