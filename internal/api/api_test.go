package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/elektron/internal/api"
	"github.com/MrWong99/elektron/internal/events"
	"github.com/MrWong99/elektron/internal/observe"
	"github.com/MrWong99/elektron/internal/soap"
	"github.com/MrWong99/elektron/internal/transcript"
	"github.com/MrWong99/elektron/internal/usage"
	"github.com/MrWong99/elektron/pkg/provider/stt"
	sttmock "github.com/MrWong99/elektron/pkg/provider/stt/mock"
	"github.com/MrWong99/elektron/pkg/types"
)

const (
	doctor = "dr.house@clinic.test"
	admin  = "admin@clinic.test"
)

var fixedNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	handler http.Handler
	usage   *usage.MemoryStore
	events  *fakePublisher
	stt     *sttmock.Provider
}

func newFixture(t *testing.T, opts ...api.Option) *fixture {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		usage:  usage.NewMemoryStore(usage.WithClock(func() time.Time { return fixedNow })),
		events: &fakePublisher{},
		stt:    &sttmock.Provider{ModelName: "base.en"},
	}
	engine := soap.New(soap.WithMetrics(m), soap.WithClock(func() time.Time { return fixedNow }))
	base := []api.Option{
		api.WithMetrics(m),
		api.WithUsageStore(f.usage),
		api.WithPublisher(f.events),
		api.WithSTT(f.stt),
		api.WithClock(func() time.Time { return fixedNow }),
	}
	f.handler = api.New(engine, append(base, opts...)...).Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path, user, role string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		req.Header.Set("X-User-Email", user)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) postJSON(t *testing.T, path, user string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return f.do(t, http.MethodPost, path, user, "", bytes.NewReader(b), "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

// ── Identity ─────────────────────────────────────────────────────────────────

func TestIdentity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		role   string
		want   int
	}{
		{"anonymous user route", http.MethodGet, "/soap/templates", "", "", http.StatusUnauthorized},
		{"identified user route", http.MethodGet, "/soap/templates", doctor, "", http.StatusOK},
		{"anonymous admin route", http.MethodGet, "/admin/stats", "", "", http.StatusUnauthorized},
		{"doctor on admin route", http.MethodGet, "/admin/stats", doctor, "doctor", http.StatusForbidden},
		{"admin on admin route", http.MethodGet, "/admin/stats", admin, "Admin", http.StatusOK},
		{"doctor posting logs", http.MethodPost, "/admin/logs", doctor, "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := f.do(t, tt.method, tt.path, tt.user, tt.role, nil, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestIdentity_CustomHeaders(t *testing.T) {
	t.Parallel()
	f := newFixture(t, api.WithIdentityHeaders("X-Auth-Email", ""))

	req := httptest.NewRequest(http.MethodGet, "/soap/templates", nil)
	req.Header.Set("X-Auth-Email", doctor)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	if rec := f.do(t, http.MethodGet, "/soap/templates", doctor, "", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("default header accepted: status = %d", rec.Code)
	}
}

// ── SOAP ─────────────────────────────────────────────────────────────────────

type generateBody struct {
	Note       soap.Note         `json:"soap_note"`
	Confidence float64           `json:"confidence_score"`
	Strategy   string            `json:"strategy"`
	Sources    map[string]string `json:"sources"`
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.postJSON(t, "/soap/generate", doctor, map[string]any{
		"transcript":      "Patient reports fever and cough for three days.",
		"patient_age":     34,
		"patient_gender":  "female",
		"chief_complaint": "Persistent cough with fever since Monday",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decode[generateBody](t, rec)

	if err := body.Note.Validate(); err != nil {
		t.Errorf("note incomplete: %v", err)
	}
	if body.Note.Author != doctor {
		t.Errorf("doctor_email = %q", body.Note.Author)
	}
	if body.Note.PatientID != "Persistent cough wit" {
		t.Errorf("patient_id = %q, want first 20 chars of complaint", body.Note.PatientID)
	}
	if !body.Note.GeneratedAt.Equal(fixedNow) {
		t.Errorf("generated_at = %s", body.Note.GeneratedAt)
	}
	if body.Strategy != soap.StrategyTemplate || body.Confidence != soap.TemplateConfidence {
		t.Errorf("strategy/confidence = %s/%v", body.Strategy, body.Confidence)
	}
	if body.Sources["plan"] != soap.StrategyTemplate {
		t.Errorf("sources = %v", body.Sources)
	}

	st, _ := f.usage.UserStats(context.Background(), doctor, fixedNow)
	if st.TotalSOAPNotes != 1 {
		t.Errorf("usage notes = %d, want 1", st.TotalSOAPNotes)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != events.TypeSOAPGenerated {
		t.Errorf("events = %v", got)
	}
}

func TestGenerate_InputErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for name, transcript := range map[string]string{
		"empty":     "   ",
		"too short": "cough",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rec := f.postJSON(t, "/soap/generate", doctor, map[string]any{"transcript": transcript})
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	rec := f.do(t, http.MethodPost, "/soap/generate", doctor, "", strings.NewReader("{not json"), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want 400", rec.Code)
	}
}

func validNote() soap.Note {
	return soap.Note{
		ID:          "01J0000000000000000000000A",
		Subjective:  "Patient presents with cough.",
		Objective:   "Physical examination performed.",
		Assessment:  "Clinical assessment based on presenting symptoms.",
		Plan:        "Continue monitoring symptoms.",
		GeneratedAt: fixedNow.Add(-time.Hour),
		Author:      "someone@clinic.test",
		PatientID:   "cough",
	}
}

func TestRefine(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.postJSON(t, "/soap/refine", doctor, map[string]any{
		"soap_note":        validNote(),
		"refinement_notes": "add chest x-ray",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decode[struct {
		Note    soap.Note `json:"refined_soap_note"`
		Message string    `json:"message"`
	}](t, rec)

	if body.Message != "SOAP note refined successfully" {
		t.Errorf("message = %q", body.Message)
	}
	if body.Note.ID == validNote().ID {
		t.Error("refined note reused the original ID")
	}
	if body.Note.PatientID != "cough" || body.Note.Author != doctor {
		t.Errorf("refined note = %+v", body.Note)
	}
	if !strings.Contains(body.Note.Subjective, "add chest x-ray") {
		t.Errorf("subjective = %q, want feedback reference", body.Note.Subjective)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != events.TypeSOAPRefined {
		t.Errorf("events = %v", got)
	}

	// Refinements are announced but not counted as generated notes.
	ctx := context.Background()
	if st, _ := f.usage.UserStats(ctx, doctor, fixedNow); st.TotalSOAPNotes != 0 {
		t.Errorf("usage notes = %d after refine, want 0", st.TotalSOAPNotes)
	}
	if logs, _ := f.usage.Logs(ctx, usage.LogQuery{}); len(logs) != 0 {
		t.Errorf("refine appended %d log entries, want 0", len(logs))
	}
}

func TestRefine_FeedbackFromQuery(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.postJSON(t, "/soap/refine?refinement_notes=recheck+in+two+weeks", doctor, map[string]any{
		"soap_note": validNote(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestRefine_InputErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	incomplete := validNote()
	incomplete.Plan = ""
	for name, body := range map[string]any{
		"no feedback":  map[string]any{"soap_note": validNote()},
		"incomplete":   map[string]any{"soap_note": incomplete, "refinement_notes": "x"},
		"missing note": map[string]any{"refinement_notes": "x"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if rec := f.postJSON(t, "/soap/refine", doctor, body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestExport(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.postJSON(t, "/soap/export", doctor, validNote())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "soap_note_01J0000000000000000000000A.txt") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if want := soap.FormatText(validNote(), fixedNow); rec.Body.String() != want {
		t.Errorf("body =\n%s\nwant\n%s", rec.Body, want)
	}

	incomplete := validNote()
	incomplete.Objective = " "
	if rec := f.postJSON(t, "/soap/export", doctor, incomplete); rec.Code != http.StatusBadRequest {
		t.Errorf("incomplete note status = %d, want 400", rec.Code)
	}
}

func TestTemplates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/soap/templates", doctor, "", nil, "")
	body := decode[struct {
		Templates map[string]soap.SpecialtyTemplate `json:"templates"`
	}](t, rec)
	for _, name := range []string{"general_medicine", "pediatrics", "emergency"} {
		if body.Templates[name].Plan == "" {
			t.Errorf("template %q missing", name)
		}
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	for _, ago := range []time.Duration{time.Hour, 3 * 24 * time.Hour, 20 * 24 * time.Hour} {
		_ = f.usage.RecordActivity(ctx, usage.Activity{
			User: doctor, Kind: usage.KindSOAPGenerated, At: fixedNow.Add(-ago), Elapsed: 1500 * time.Millisecond,
		})
	}

	rec := f.do(t, http.MethodGet, "/soap/statistics", doctor, "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Statistics map[string]any `json:"statistics"`
		UserEmail  string         `json:"user_email"`
	}](t, rec)

	if body.UserEmail != doctor {
		t.Errorf("user_email = %q", body.UserEmail)
	}
	want := map[string]any{
		"total_generated":         float64(3),
		"this_week":               float64(2),
		"this_month":              float64(3),
		"average_processing_time": 1.5,
		"total_transcriptions":    float64(0),
		"last_activity":           "2026-04-02T09:00:00Z",
	}
	for k, v := range want {
		if body.Statistics[k] != v {
			t.Errorf("statistics[%s] = %v, want %v", k, body.Statistics[k], v)
		}
	}
}

// ── Transcription ────────────────────────────────────────────────────────────

func audioUpload(t *testing.T, contentType string, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio_file"; filename="visit.wav"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("RIFF....WAVEfmt "))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestTranscribe(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stt.Transcript = &types.Transcript{
		Text:     " Patient took ibuprofen for the headache. ",
		Language: "en",
		Duration: 12 * time.Second,
		Segments: []types.Segment{
			{Start: 0, End: 6 * time.Second, Text: "Patient took ibuprofen", AvgLogProb: types.Float64(-0.2)},
			{Start: 6 * time.Second, End: 12 * time.Second, Text: "for the headache.", AvgLogProb: types.Float64(-0.4)},
		},
	}

	body, ct := audioUpload(t, "audio/wav", map[string]string{"language": "en"})
	rec := f.do(t, http.MethodPost, "/transcribe/audio", doctor, "", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[struct {
		Transcript string   `json:"transcript"`
		Duration   float64  `json:"duration"`
		Confidence *float64 `json:"confidence"`
		Segments   []struct {
			Text       string   `json:"text"`
			AvgLogProb *float64 `json:"avg_logprob"`
		} `json:"segments"`
	}](t, rec)

	if resp.Transcript != "Patient took ibuprofen for the headache." {
		t.Errorf("transcript = %q", resp.Transcript)
	}
	if resp.Duration != 12 {
		t.Errorf("duration = %v", resp.Duration)
	}
	// Word-weighted: (3*0.8 + 3*0.6) / 6 = 0.7.
	if resp.Confidence == nil || *resp.Confidence < 0.699 || *resp.Confidence > 0.701 {
		t.Errorf("confidence = %v, want 0.7", resp.Confidence)
	}
	if len(resp.Segments) != 2 {
		t.Errorf("segments = %d", len(resp.Segments))
	}

	if calls := f.stt.TranscribeCalls; len(calls) != 1 || calls[0].Req.Language != "en" || calls[0].Req.ContentType != "audio/wav" {
		t.Errorf("stt calls = %+v", calls)
	}
	st, _ := f.usage.UserStats(context.Background(), doctor, fixedNow)
	if st.TotalTranscriptions != 1 {
		t.Errorf("usage transcriptions = %d", st.TotalTranscriptions)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != events.TypeTranscriptionCompleted {
		t.Errorf("events = %v", got)
	}
}

func TestTranscribe_ConfidenceUnavailable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stt.Transcript = &types.Transcript{Text: "Patient reports nausea."}

	body, ct := audioUpload(t, "audio/webm", nil)
	rec := f.do(t, http.MethodPost, "/transcribe/audio", doctor, "", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[map[string]any](t, rec)
	if v, ok := resp["confidence"]; !ok || v != nil {
		t.Errorf("confidence = %v (present %v), want explicit null", v, ok)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		setup       func(*sttmock.Provider)
		opts        []api.Option
		want        int
	}{
		{"unsupported type", "video/mp4", nil, nil, http.StatusBadRequest},
		{"no speech", "audio/wav", func(p *sttmock.Provider) { p.Transcript = &types.Transcript{Text: "  "} }, nil, http.StatusBadRequest},
		{"backend down", "audio/wav", func(p *sttmock.Provider) { p.TranscribeErr = errors.New("connection refused") }, nil, http.StatusServiceUnavailable},
		{"undecodable", "audio/ogg", func(p *sttmock.Provider) { p.TranscribeErr = stt.ErrUnsupportedFormat }, nil, http.StatusBadRequest},
		{"too large", "audio/wav", nil, []api.Option{api.WithMaxUploadBytes(256)}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tt.opts...)
			if tt.setup != nil {
				tt.setup(f.stt)
			}
			body, ct := audioUpload(t, tt.contentType, map[string]string{"padding": strings.Repeat("x", 1024)})
			rec := f.do(t, http.MethodPost, "/transcribe/audio", doctor, "", body, ct)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestTranscribe_NoSTT(t *testing.T) {
	t.Parallel()
	m, _ := observe.NewMetrics(noop.NewMeterProvider())
	h := api.New(soap.New(soap.WithMetrics(m)), api.WithMetrics(m)).Handler()

	body, ct := audioUpload(t, "audio/wav", nil)
	req := httptest.NewRequest(http.MethodPost, "/transcribe/audio", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-Email", doctor)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

type fakeCorrector struct{ err error }

func (c fakeCorrector) Correct(_ context.Context, t types.Transcript, vocab []string) (*transcript.Corrected, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &transcript.Corrected{
		Original:    t,
		Text:        strings.ReplaceAll(t.Text, "ibuprophen", vocab[0]),
		Corrections: []transcript.Correction{{Original: "ibuprophen", Corrected: vocab[0], Confidence: 0.95, Method: transcript.MethodPhonetic}},
	}, nil
}

func TestTranscribe_CorrectTerms(t *testing.T) {
	t.Parallel()

	vocab := func() []string { return []string{"ibuprofen"} }
	tests := []struct {
		name      string
		corrector fakeCorrector
		flag      string
		want      string
	}{
		{"enabled", fakeCorrector{}, "true", "Took ibuprofen."},
		{"disabled", fakeCorrector{}, "false", "Took ibuprophen."},
		{"corrector error keeps raw text", fakeCorrector{err: errors.New("llm down")}, "true", "Took ibuprophen."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, api.WithCorrector(tt.corrector, vocab))
			f.stt.Transcript = &types.Transcript{Text: "Took ibuprophen."}

			body, ct := audioUpload(t, "audio/mp3", map[string]string{"correct_terms": tt.flag})
			rec := f.do(t, http.MethodPost, "/transcribe/audio", doctor, "", body, ct)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			resp := decode[map[string]any](t, rec)
			if resp["transcript"] != tt.want {
				t.Errorf("transcript = %v, want %q", resp["transcript"], tt.want)
			}
		})
	}
}

func TestModels(t *testing.T) {
	t.Parallel()
	f := newFixture(t, api.WithCatalog([]string{"base", "small"}, []string{"en"}))

	rec := f.do(t, http.MethodGet, "/transcribe/models", doctor, "", nil, "")
	body := decode[map[string]any](t, rec)
	if body["current_model"] != "base.en" {
		t.Errorf("current_model = %v", body["current_model"])
	}
	if models, _ := body["available_models"].([]any); len(models) != 2 {
		t.Errorf("available_models = %v", body["available_models"])
	}
}

// ── Admin ────────────────────────────────────────────────────────────────────

func TestAdminStats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	_ = f.usage.RecordActivity(ctx, usage.Activity{User: doctor, Kind: usage.KindSOAPGenerated, At: fixedNow.Add(-time.Hour)})
	_ = f.usage.RecordActivity(ctx, usage.Activity{User: doctor, Kind: usage.KindTranscriptionCompleted, At: fixedNow.Add(-time.Hour)})
	_ = f.usage.RecordActivity(ctx, usage.Activity{User: "dr.wilson@clinic.test", Kind: usage.KindSOAPGenerated, At: fixedNow.Add(-48 * time.Hour)})

	rec := f.do(t, http.MethodGet, "/admin/stats", admin, "admin", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		TotalUsers       int `json:"total_users"`
		ActiveUsersToday int `json:"active_users_today"`
		TotalSOAPNotes   int `json:"total_soap_notes"`
		TopUsers         []struct {
			DoctorEmail string `json:"doctor_email"`
		} `json:"top_users"`
	}](t, rec)

	if body.TotalUsers != 2 || body.ActiveUsersToday != 1 || body.TotalSOAPNotes != 2 {
		t.Errorf("stats = %+v", body)
	}
	if len(body.TopUsers) != 2 || body.TopUsers[0].DoctorEmail != doctor {
		t.Errorf("top_users = %+v", body.TopUsers)
	}
}

func TestAdminLogs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	post := func(body string) *httptest.ResponseRecorder {
		return f.do(t, http.MethodPost, "/admin/logs", admin, "admin", strings.NewReader(body), "application/json")
	}
	if rec := post(`{"message":"maintenance window","level":"warning","source":"ops"}`); rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := post(`{"message":"backup done"}`); rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d", rec.Code)
	}
	if rec := post(`{"message":"x","level":"fatal"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid level status = %d, want 400", rec.Code)
	}
	if rec := post(`{"level":"info"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing message status = %d, want 400", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/admin/logs?level=warning", admin, "admin", nil, "")
	body := decode[struct {
		Logs  []usage.LogEntry `json:"logs"`
		Total int              `json:"total"`
	}](t, rec)
	if body.Total != 1 || body.Logs[0].Message != "maintenance window" || body.Logs[0].UserEmail != admin {
		t.Errorf("warning logs = %+v", body)
	}

	for _, q := range []string{"limit=0", "limit=abc", "limit=5000", "level=verbose"} {
		if rec := f.do(t, http.MethodGet, "/admin/logs?"+q, admin, "admin", nil, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("GET ?%s status = %d, want 400", q, rec.Code)
		}
	}
}
