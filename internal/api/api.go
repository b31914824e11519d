// Package api serves the Elektron HTTP interface: audio transcription, SOAP
// note generation, refinement and export, per-user statistics and the admin
// activity views.
//
// Identity comes from headers set by an upstream auth gateway. Requests
// without an identity get 401; admin routes additionally require the admin
// role and return 403 otherwise.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MrWong99/elektron/internal/events"
	"github.com/MrWong99/elektron/internal/observe"
	"github.com/MrWong99/elektron/internal/soap"
	"github.com/MrWong99/elektron/internal/transcript"
	"github.com/MrWong99/elektron/internal/usage"
	"github.com/MrWong99/elektron/pkg/provider/stt"
	"github.com/MrWong99/elektron/pkg/types"
)

// Synthesizer produces and refines SOAP notes. *soap.Engine implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, transcript string, patient soap.PatientContext) (*soap.Result, error)
	Refine(ctx context.Context, note soap.Note, feedback string) (soap.Note, error)
}

// Publisher emits activity events. *events.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

var (
	_ Synthesizer = (*soap.Engine)(nil)
	_ Publisher   = (*events.Publisher)(nil)
)

// Server holds the handlers' collaborators. Construct with [New].
type Server struct {
	engine     Synthesizer
	stt        stt.Provider
	corrector  transcript.Pipeline
	vocabulary func() []string
	usage      usage.Store
	events     Publisher
	metrics    *observe.Metrics
	now        func() time.Time

	identityHeader string
	roleHeader     string
	maxUpload      int64
	models         []string
	languages      []string
}

// Option configures a [Server].
type Option func(*Server)

// WithSTT enables /transcribe/audio. Without it the route returns 503.
func WithSTT(p stt.Provider) Option { return func(s *Server) { s.stt = p } }

// WithCorrector enables vocabulary correction for uploads sent with
// correct_terms=true. vocabulary is read per request, so it may change at
// runtime.
func WithCorrector(c transcript.Pipeline, vocabulary func() []string) Option {
	return func(s *Server) {
		s.corrector = c
		s.vocabulary = vocabulary
	}
}

// WithUsageStore replaces the default in-memory store.
func WithUsageStore(u usage.Store) Option { return func(s *Server) { s.usage = u } }

// WithPublisher sets the activity event sink.
func WithPublisher(p Publisher) Option { return func(s *Server) { s.events = p } }

// WithMetrics overrides observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithIdentityHeaders sets the headers carrying the user's email and role.
// Empty values keep the defaults X-User-Email and X-User-Role.
func WithIdentityHeaders(email, role string) Option {
	return func(s *Server) {
		if email != "" {
			s.identityHeader = email
		}
		if role != "" {
			s.roleHeader = role
		}
	}
}

// WithMaxUploadBytes caps audio upload size. Default 100 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithCatalog sets the whisper models and languages advertised by
// /transcribe/models.
func WithCatalog(models, languages []string) Option {
	return func(s *Server) {
		s.models = models
		s.languages = languages
	}
}

// New returns a [Server] around engine.
func New(engine Synthesizer, opts ...Option) *Server {
	s := &Server{
		engine:         engine,
		now:            time.Now,
		identityHeader: "X-User-Email",
		roleHeader:     "X-User-Role",
		maxUpload:      100 << 20,
		models:         []string{"tiny", "base", "small", "medium", "large"},
		languages:      []string{"en", "es", "fr", "de", "it"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.usage == nil {
		s.usage = usage.NewMemoryStore()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds all API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("POST /transcribe/audio", s.user(s.handleTranscribe))
	mux.Handle("GET /transcribe/models", s.user(s.handleModels))

	mux.Handle("POST /soap/generate", s.user(s.handleGenerate))
	mux.Handle("POST /soap/refine", s.user(s.handleRefine))
	mux.Handle("POST /soap/export", s.user(s.handleExport))
	mux.Handle("GET /soap/templates", s.user(s.handleTemplates))
	mux.Handle("GET /soap/statistics", s.user(s.handleStatistics))

	mux.Handle("GET /admin/stats", s.admin(s.handleAdminStats))
	mux.Handle("GET /admin/logs", s.admin(s.handleAdminLogs))
	mux.Handle("POST /admin/logs", s.admin(s.handleAddLog))
}

// Handler returns a mux with the API routes behind the observe middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// ── Responses ────────────────────────────────────────────────────────────────

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeFailure maps err to a status: input errors are 400, a cancelled
// request is 499-style silent, everything else is 500.
func writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case types.IsInputError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		observe.Logger(r.Context()).Info("request cancelled by client", "op", op)
	default:
		observe.Logger(r.Context()).Error("request failed", "op", op, "err", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
}

// ── Activity ─────────────────────────────────────────────────────────────────

// track records a as activity and publishes e. Failures are logged only:
// bookkeeping never fails a clinical request.
func (s *Server) track(ctx context.Context, a usage.Activity, e events.Event, message, source string) {
	log := observe.Logger(ctx)
	if err := s.usage.RecordActivity(ctx, a); err != nil {
		log.Warn("failed to record activity", "kind", a.Kind, "err", err)
	}
	if _, err := s.usage.AddLog(ctx, usage.LogEntry{
		Timestamp: a.At,
		Level:     usage.LevelInfo,
		Message:   message,
		UserEmail: a.User,
		Source:    source,
	}); err != nil {
		log.Warn("failed to append activity log", "err", err)
	}
	if s.events == nil {
		return
	}
	e.User = a.User
	e.OccurredAt = a.At
	e.ElapsedMS = a.Elapsed.Milliseconds()
	if err := s.events.Publish(ctx, e); err != nil {
		log.Warn("failed to publish activity event", "type", e.Type, "err", err)
	}
}
