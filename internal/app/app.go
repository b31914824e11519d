// Package app wires all Elektron subsystems into a running service.
//
// The App struct owns the full lifecycle: New builds the provider fallback
// chains, the synthesis engine, the correction pipeline, the usage store and
// the event publisher; Run serves HTTP until the context is cancelled; and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithUsageStore,
// WithPublisher, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/elektron/internal/api"
	"github.com/MrWong99/elektron/internal/config"
	"github.com/MrWong99/elektron/internal/events"
	"github.com/MrWong99/elektron/internal/health"
	"github.com/MrWong99/elektron/internal/observe"
	"github.com/MrWong99/elektron/internal/resilience"
	"github.com/MrWong99/elektron/internal/soap"
	"github.com/MrWong99/elektron/internal/transcript"
	"github.com/MrWong99/elektron/internal/transcript/medcorrect"
	"github.com/MrWong99/elektron/internal/transcript/phonetic"
	"github.com/MrWong99/elektron/internal/usage"
	"github.com/MrWong99/elektron/internal/usage/postgres"
	"github.com/MrWong99/elektron/internal/usage/sqlite"
	"github.com/MrWong99/elektron/pkg/provider/llm"
	"github.com/MrWong99/elektron/pkg/provider/stt"
)

// correctionTemperature keeps vocabulary correction close to deterministic.
const correctionTemperature = 0.1

// Named pairs a provider with its configured name.
type Named[T any] struct {
	Name     string
	Provider T
}

// Providers holds the instantiated backends. A zero LLM or STT means the
// slot is not configured or could not be loaded. See [BuildProviders].
type Providers struct {
	LLM          Named[llm.Provider]
	LLMFallbacks []Named[llm.Provider]
	STT          Named[stt.Provider]
	STTFallbacks []Named[stt.Provider]

	// LLMUnavailable joins the load failures of configured LLMs. Each one
	// wraps soap.ErrBackendUnavailable.
	LLMUnavailable error
}

// Publisher is the event sink the app owns. *events.Publisher implements it.
type Publisher interface {
	api.Publisher
	Close() error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	logLevel       *slog.LevelVar
	watcher        *config.Watcher

	// Subsystems, initialised in New and torn down in Shutdown.
	llm        *resilience.LLMFallback
	stt        *resilience.STTFallback
	engine     *soap.Engine
	pipeline   transcript.Pipeline
	vocabulary atomic.Pointer[[]string]
	usage      usage.Store
	events     Publisher
	api        *api.Server
	health     *health.Handler
	server     *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithUsageStore injects a usage store instead of opening one from config.
func WithUsageStore(s usage.Store) Option {
	return func(a *App) { a.usage = s }
}

// WithPublisher injects an event publisher instead of creating one from
// config.
func WithPublisher(p Publisher) Option {
	return func(a *App) { a.events = p }
}

// WithMetrics sets the instrument set. Default observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLogLevel lets the app adjust the process log level on config reload.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithWatcher runs w alongside the HTTP server. Reloads go through
// [App.ApplyConfig].
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Provider fallback chains ──────────────────────────────────────
	a.initProviders()

	// ── 2. Synthesis engine ──────────────────────────────────────────────
	a.initEngine()

	// ── 3. Vocabulary correction ─────────────────────────────────────────
	a.initPipeline()

	// ── 4. Usage store ───────────────────────────────────────────────────
	if err := a.initUsage(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init usage: %w", err)
	}

	// ── 5. Event publisher ───────────────────────────────────────────────
	a.initEvents()

	// ── 6. HTTP surface ──────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) breakerConfig() resilience.FallbackConfig {
	cb := a.cfg.CircuitBreaker
	return resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		MaxFailures:  cb.MaxFailures,
		ResetTimeout: cb.ResetTimeout,
		HalfOpenMax:  cb.HalfOpenMax,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from, "to", to)
			a.metrics.RecordBreakerState(context.Background(), name, int64(to))
		},
	}}
}

// initProviders wraps the configured backends in circuit-breaking fallback
// groups. Breaker names are prefixed with the provider kind.
func (a *App) initProviders() {
	p := a.providers
	if p.LLM.Provider != nil {
		a.llm = resilience.NewLLMFallback(p.LLM.Provider, "llm/"+p.LLM.Name, a.breakerConfig())
		for _, fb := range p.LLMFallbacks {
			a.llm.AddFallback("llm/"+fb.Name, fb.Provider)
		}
	}
	if p.STT.Provider != nil {
		a.stt = resilience.NewSTTFallback(p.STT.Provider, "stt/"+p.STT.Name, a.breakerConfig())
		for _, fb := range p.STTFallbacks {
			a.stt.AddFallback("stt/"+fb.Name, fb.Provider)
		}
	}
	a.closers = append(a.closers, closersOf(p)...)
}

// closersOf collects Close methods of providers that hold native resources,
// such as a loaded whisper model.
func closersOf(p *Providers) []func() error {
	var out []func() error
	add := func(v any) {
		if c, ok := v.(interface{ Close() error }); ok {
			out = append(out, c.Close)
		}
	}
	add(p.STT.Provider)
	for _, fb := range p.STTFallbacks {
		add(fb.Provider)
	}
	add(p.LLM.Provider)
	for _, fb := range p.LLMFallbacks {
		add(fb.Provider)
	}
	return out
}

func (a *App) initEngine() {
	var model llm.Provider
	if a.llm != nil {
		model = a.llm
	}
	a.engine = NewEngine(a.cfg.Synthesis, model, a.metrics)
	slog.Info("synthesis engine ready", "strategy", a.engine.Strategy())
}

// NewEngine builds a synthesis engine from s. A nil model gives a
// template-only engine.
func NewEngine(s config.SynthesisConfig, model llm.Provider, m *observe.Metrics) *soap.Engine {
	opts := []soap.Option{
		soap.WithSectionTimeout(s.SectionTimeout),
		soap.WithMaxConcurrentCalls(s.MaxConcurrentCalls),
		soap.WithMinTranscriptChars(s.MinTranscriptChars),
		soap.WithRefineWithModel(s.RefineWithModel),
		soap.WithMetrics(m),
	}
	if model != nil {
		opts = append(opts, soap.WithModel(soap.NewModelStrategy(model,
			soap.WithTemperature(s.Temperature),
			soap.WithMaxTokens(s.MaxTokens),
		)))
	}
	return soap.New(opts...)
}

func (a *App) initPipeline() {
	a.setVocabulary(a.cfg.Transcription.Vocabulary)

	opts := []transcript.PipelineOption{
		transcript.WithPhoneticMatcher(phonetic.New()),
		transcript.WithLowConfidenceLogProb(a.cfg.Transcription.LowConfidenceLogProb),
	}
	if a.llm != nil {
		opts = append(opts, transcript.WithLLMCorrector(
			medcorrect.New(a.llm, medcorrect.WithTemperature(correctionTemperature))))
	}
	a.pipeline = transcript.NewPipeline(opts...)
}

// initUsage opens the configured activity store unless one was injected.
func (a *App) initUsage(ctx context.Context) error {
	if a.usage == nil {
		s, err := OpenUsageStore(ctx, a.cfg.Usage)
		if err != nil {
			return err
		}
		a.usage = s
	}
	a.closers = append(a.closers, a.usage.Close)
	return nil
}

// OpenUsageStore opens the activity store selected by u.Backend.
func OpenUsageStore(ctx context.Context, u config.UsageConfig) (usage.Store, error) {
	var (
		s   usage.Store
		err error
	)
	switch u.Backend {
	case config.UsageSQLite:
		s, err = sqlite.Open(ctx, u.DSN, sqlite.WithMaxLogs(u.MaxLogs))
	case config.UsagePostgres:
		s, err = postgres.NewStore(ctx, u.DSN, postgres.WithMaxLogs(u.MaxLogs))
	default:
		s = usage.NewMemoryStore(usage.WithMaxLogs(u.MaxLogs))
	}
	if err != nil {
		return nil, err
	}
	slog.Info("usage store opened", "backend", u.Backend)
	return s, nil
}

func (a *App) initEvents() {
	if a.events == nil {
		a.events = events.New(events.Config{
			Brokers: a.cfg.Events.Brokers,
			Topic:   a.cfg.Events.Topic,
		}, events.WithMetrics(a.metrics))
	}
	a.closers = append(a.closers, a.events.Close)
}

func (a *App) initHTTP() {
	srv := a.cfg.Server
	opts := []api.Option{
		api.WithCorrector(a.pipeline, a.Vocabulary),
		api.WithUsageStore(a.usage),
		api.WithPublisher(a.events),
		api.WithMetrics(a.metrics),
		api.WithIdentityHeaders(srv.IdentityHeader, srv.RoleHeader),
		api.WithMaxUploadBytes(srv.MaxUploadBytes),
		api.WithCatalog(a.cfg.Transcription.Models, a.cfg.Transcription.Languages),
	}
	if a.stt != nil {
		opts = append(opts, api.WithSTT(a.stt))
	}
	a.api = api.New(a.engine, opts...)
	a.health = health.New(a.checkers()...)

	a.server = &http.Server{
		Addr:              srv.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// checkers returns the readiness probes. The usage store is required; the
// providers are optional because synthesis degrades to templates and
// transcription reports 503 on its own.
func (a *App) checkers() []health.Checker {
	cs := []health.Checker{{Name: "usage", Check: a.usage.Ping}}
	if a.llm != nil {
		cs = append(cs, health.Checker{
			Name:     "llm",
			Optional: true,
			Check:    availability(a.llm.Available, a.llm.Status),
		})
	}
	if a.stt != nil {
		cs = append(cs, health.Checker{
			Name:     "stt",
			Optional: true,
			Check:    availability(a.stt.Available, a.stt.Status),
		})
	}
	return cs
}

func availability(available func() bool, status func() []resilience.BreakerStatus) func(context.Context) error {
	return func(context.Context) error {
		if available() {
			return nil
		}
		var names []string
		for _, s := range status() {
			names = append(names, s.Name+"="+s.State)
		}
		return fmt.Errorf("all circuits open: %s", strings.Join(names, ", "))
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the full HTTP surface: API routes, health probes and,
// when configured, /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.api.Register(mux)
	a.health.Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	return observe.Middleware(a.metrics)(mux)
}

// Engine returns the synthesis engine.
func (a *App) Engine() *soap.Engine { return a.engine }

// Vocabulary returns the current correction vocabulary: the built-in
// medication and procedure terms plus the configured extras.
func (a *App) Vocabulary() []string {
	if v := a.vocabulary.Load(); v != nil {
		return *v
	}
	return nil
}

func (a *App) setVocabulary(extra []string) {
	terms := append(soap.Terms(soap.Medications), soap.Terms(soap.Procedures)...)
	for _, t := range extra {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(terms, t) {
			terms = append(terms, t)
		}
	}
	a.vocabulary.Store(&terms)
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable parts of next and logs the fields
// that need a restart. Intended as the [config.Watcher] callback.
func (a *App) ApplyConfig(prev, next *config.Config) {
	d := config.Diff(prev, next)
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.VocabularyChanged {
		a.setVocabulary(d.NewVocabulary)
		slog.Info("correction vocabulary reloaded", "extra_terms", len(d.NewVocabulary))
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// SlogLevel maps a config log level to its slog equivalent.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP until ctx is cancelled or the server fails. The config
// watcher, if any, runs for the same lifetime.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.server.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		if a.server != nil {
			if serr := a.server.Shutdown(ctx); serr != nil {
				slog.Warn("http server shutdown error", "err", serr)
			}
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			a.closeAll()
		}()

		select {
		case <-done:
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded")
			err = ctx.Err()
		}
	})
	return err
}

func (a *App) closeAll() {
	for _, closer := range a.closers {
		if cerr := closer(); cerr != nil {
			slog.Warn("closer error", "err", cerr)
		}
	}
}
