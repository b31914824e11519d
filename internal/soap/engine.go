// Package soap synthesizes SOAP notes from clinical encounter transcripts.
//
// The [Engine] builds a shared [Context] from the transcript and optional
// patient metadata, then produces the four note sections independently. Each
// section goes through the model-backed [Strategy] when a generative backend
// is configured and drops to the deterministic [TemplateStrategy] when that
// call fails, times out or returns nothing usable. A failure in one section
// never affects the other three, so every returned note is complete.
//
// Section calls run concurrently. A weighted semaphore shared by all requests
// bounds the number of in-flight model calls, and every call carries its own
// timeout so a hung backend only degrades the affected section.
package soap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/elektron/internal/observe"
	"github.com/MrWong99/elektron/pkg/types"
)

const (
	defaultSectionTimeout     = 20 * time.Second
	defaultMaxConcurrentCalls = 4
	defaultMinTranscriptChars = 10
)

// Fallback reasons reported in logs and metrics.
const (
	reasonTimeout = "timeout"
	reasonEmpty   = "empty"
	reasonError   = "error"
)

// Engine is the SOAP synthesis service. It is constructed once at startup and
// is safe for concurrent use.
type Engine struct {
	model    Strategy // nil when no generative backend is configured
	template Strategy

	sem             *semaphore.Weighted
	maxCalls        int64
	sectionTimeout  time.Duration
	minChars        int
	refineWithModel bool

	metrics *observe.Metrics
	now     func() time.Time
}

// Option configures an [Engine].
type Option func(*Engine)

// WithModel sets the model-backed strategy. A nil strategy leaves the engine
// template-only.
func WithModel(s Strategy) Option {
	return func(e *Engine) { e.model = s }
}

// WithSectionTimeout bounds each model call. Default 20s.
func WithSectionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sectionTimeout = d
		}
	}
}

// WithMaxConcurrentCalls bounds in-flight model calls across all requests.
// Default 4.
func WithMaxConcurrentCalls(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxCalls = int64(n)
		}
	}
}

// WithMinTranscriptChars sets the minimum trimmed transcript length in
// characters. Default 10.
func WithMinTranscriptChars(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minChars = n
		}
	}
}

// WithRefineWithModel routes refinement through the model strategy when one
// is configured. By default refinement uses the template annotations.
func WithRefineWithModel(enabled bool) Option {
	return func(e *Engine) { e.refineWithModel = enabled }
}

// WithMetrics sets the metrics sink. Default [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source used to stamp notes.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine. Without [WithModel] every note comes from the
// template strategy.
func New(opts ...Option) *Engine {
	e := &Engine{
		template:       TemplateStrategy{},
		maxCalls:       defaultMaxConcurrentCalls,
		sectionTimeout: defaultSectionTimeout,
		minChars:       defaultMinTranscriptChars,
		now:            time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	e.sem = semaphore.NewWeighted(e.maxCalls)
	return e
}

// Strategy returns the name of the primary strategy.
func (e *Engine) Strategy() string {
	if e.model == nil {
		return StrategyTemplate
	}
	return e.model.Name()
}

// HasModel reports whether a generative backend is configured.
func (e *Engine) HasModel() bool { return e.model != nil }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.now() }

// ── Synthesis ────────────────────────────────────────────────────────────────

// Synthesize produces a complete note from transcript and patient.
//
// It fails with an InputError when the transcript is blank or shorter than
// the minimum length, and with the context error when ctx ends before all
// sections are done. Backend failures never surface here; the affected
// sections come from the template instead.
func (e *Engine) Synthesize(ctx context.Context, transcript string, patient PatientContext) (*Result, error) {
	if err := e.checkTranscript(transcript); err != nil {
		return nil, fmt.Errorf("soap: synthesize: %w", err)
	}

	start := time.Now()
	strategy := e.Strategy()
	ctx, span := observe.StartSpan(ctx, "soap.synthesize",
		trace.WithAttributes(attribute.String("strategy", strategy)))
	defer span.End()

	c := BuildContext(transcript, patient)
	texts, sources, err := e.run(ctx, e.model, func(ctx context.Context, st Strategy, s Section) (string, error) {
		return st.Generate(ctx, s, c)
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("soap: synthesize: %w", err)
	}

	res := &Result{
		Subjective: texts[Subjective],
		Objective:  texts[Objective],
		Assessment: texts[Assessment],
		Plan:       texts[Plan],
		Confidence: TemplateConfidence,
		Strategy:   strategy,
		Sources:    sources,
		Elapsed:    time.Since(start),
	}
	if e.model != nil {
		res.Confidence = ModelConfidence
	}

	attrs := metric.WithAttributes(observe.Attr("strategy", strategy))
	e.metrics.SynthesisDuration.Record(ctx, res.Elapsed.Seconds(), attrs)
	e.metrics.NotesGenerated.Add(ctx, 1, attrs)
	span.SetAttributes(attribute.Int("fallbacks", res.Fallbacks()))
	observe.Logger(ctx).Info("soap note synthesized",
		"strategy", strategy,
		"fallbacks", res.Fallbacks(),
		"elapsed", res.Elapsed,
	)
	return res, nil
}

func (e *Engine) checkTranscript(transcript string) error {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return types.NewInputError(types.ErrEmptyTranscript)
	}
	if n := utf8.RuneCountInString(trimmed); n < e.minChars {
		return types.NewInputError(fmt.Errorf("%w: %d characters, need %d", types.ErrTranscriptTooShort, n, e.minChars))
	}
	return nil
}

// ── Refinement ───────────────────────────────────────────────────────────────

// Refine returns a new note revised according to feedback. The input note is
// not modified. The result keeps the author and patient ID of note and gets
// a new ID and timestamp.
func (e *Engine) Refine(ctx context.Context, note Note, feedback string) (Note, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return Note{}, fmt.Errorf("soap: refine: %w", types.NewInputError(ErrEmptyFeedback))
	}
	if err := note.Validate(); err != nil {
		return Note{}, fmt.Errorf("soap: refine: %w", types.NewInputError(err))
	}

	var primary Strategy
	if e.refineWithModel {
		primary = e.model
	}
	strategy := StrategyTemplate
	if primary != nil {
		strategy = primary.Name()
	}

	ctx, span := observe.StartSpan(ctx, "soap.refine",
		trace.WithAttributes(attribute.String("strategy", strategy)))
	defer span.End()

	texts, _, err := e.run(ctx, primary, func(ctx context.Context, st Strategy, s Section) (string, error) {
		return st.Revise(ctx, s, note, feedback)
	})
	if err != nil {
		span.RecordError(err)
		return Note{}, fmt.Errorf("soap: refine: %w", err)
	}

	at := e.now()
	refined := Note{
		ID:          newID(at),
		GeneratedAt: at,
		Author:      note.Author,
		PatientID:   note.PatientID,
	}
	for _, s := range Sections {
		refined.setSection(s, texts[s])
	}
	e.metrics.NotesRefined.Add(ctx, 1, metric.WithAttributes(observe.Attr("strategy", strategy)))
	return refined, nil
}

// ── Section runner ───────────────────────────────────────────────────────────

type sectionFunc func(ctx context.Context, st Strategy, s Section) (string, error)

// run produces all four sections. With a nil primary the template is used
// directly; otherwise each section tries primary and falls back to the
// template on its own. The only error is the caller's context error.
func (e *Engine) run(ctx context.Context, primary Strategy, fn sectionFunc) ([4]string, map[Section]string, error) {
	var texts [4]string
	var sources [4]string

	if primary == nil {
		for _, s := range Sections {
			if err := ctx.Err(); err != nil {
				return texts, nil, err
			}
			text, err := fn(ctx, e.template, s)
			if err != nil {
				return texts, nil, err
			}
			texts[s], sources[s] = text, e.template.Name()
		}
		return texts, sourceMap(sources), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range Sections {
		g.Go(func() error {
			text, src, err := e.section(gctx, primary, s, fn)
			if err != nil {
				return err
			}
			texts[s], sources[s] = text, src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return texts, nil, err
	}
	return texts, sourceMap(sources), nil
}

// section runs one section through primary under the shared semaphore and
// the section timeout, falling back to the template on failure. It returns
// an error only when ctx itself is done.
func (e *Engine) section(ctx context.Context, primary Strategy, s Section, fn sectionFunc) (string, string, error) {
	start := time.Now()
	text, err := e.callPrimary(ctx, primary, s, fn)
	if err == nil {
		e.metrics.RecordSection(ctx, s.String(), primary.Name(), "", time.Since(start).Seconds())
		return text, primary.Name(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", "", ctxErr
	}

	reason := fallbackReason(err)
	observe.Logger(ctx).Warn("soap: section fell back to template",
		"section", s.String(), "reason", reason, "err", err)

	text, err = fn(ctx, e.template, s)
	if err != nil {
		return "", "", err
	}
	e.metrics.RecordSection(ctx, s.String(), e.template.Name(), reason, time.Since(start).Seconds())
	return text, e.template.Name(), nil
}

func (e *Engine) callPrimary(ctx context.Context, primary Strategy, s Section, fn sectionFunc) (string, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer e.sem.Release(1)

	sctx, cancel := context.WithTimeout(ctx, e.sectionTimeout)
	defer cancel()
	return fn(sctx, primary, s)
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(err, ErrEmptyGeneration):
		return reasonEmpty
	default:
		return reasonError
	}
}

func sourceMap(sources [4]string) map[Section]string {
	m := make(map[Section]string, len(sources))
	for _, s := range Sections {
		m[s] = sources[s]
	}
	return m
}
