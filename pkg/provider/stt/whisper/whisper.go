// Package whisper provides STT providers backed by whisper.cpp.
//
// Provider talks to a running whisper.cpp HTTP server (`whisper-server`) and
// uploads the recording as-is; start the server with --convert so it accepts
// MP3, M4A, OGG and WebM in addition to WAV. NativeProvider links the
// whisper.cpp library directly and accepts PCM WAV only.
//
// Both providers report per-segment average log-probabilities so the caller
// can estimate transcription confidence.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/elektron/pkg/provider/stt"
	"github.com/MrWong99/elektron/pkg/types"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 120 * time.Second
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel sets the model name forwarded to the server. The stock
// whisper.cpp server ignores it; OpenAI-compatible proxies use it to route.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default recognition language.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the default HTTP client (120s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Provider against a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider for the whisper.cpp server at serverURL
// (e.g. "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Model implements stt.Provider.
func (p *Provider) Model() string {
	if p.model == "" {
		return "whisper-server"
	}
	return p.model
}

// inferenceResponse is the verbose_json body returned by /inference.
type inferenceResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start      float64  `json:"start"`
		End        float64  `json:"end"`
		Text       string   `json:"text"`
		AvgLogProb *float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*types.Transcript, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("whisper: audio must not be empty")
	}
	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	body, contentType, err := p.buildForm(req, lang)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.toTranscript(lang), nil
}

func (p *Provider) buildForm(req stt.Request, lang string) (io.Reader, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", uploadName(req))
	if err != nil {
		return nil, "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("whisper: write audio: %w", err)
	}

	fields := [][2]string{{"response_format", "verbose_json"}, {"language", lang}}
	if p.model != "" {
		fields = append(fields, [2]string{"model", p.model})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

func (r inferenceResponse) toTranscript(lang string) *types.Transcript {
	t := &types.Transcript{
		Text:     strings.TrimSpace(r.Text),
		Language: r.Language,
		Duration: seconds(r.Duration),
	}
	if t.Language == "" {
		t.Language = lang
	}
	for _, s := range r.Segments {
		t.Segments = append(t.Segments, types.Segment{
			Start:      seconds(s.Start),
			End:        seconds(s.End),
			Text:       strings.TrimSpace(s.Text),
			AvgLogProb: s.AvgLogProb,
		})
	}
	if len(t.Segments) == 0 && t.Text != "" {
		t.Segments = []types.Segment{{Text: t.Text, End: t.Duration}}
	}
	if t.Duration == 0 && len(t.Segments) > 0 {
		t.Duration = t.Segments[len(t.Segments)-1].End
	}
	return t
}

// uploadName picks a filename whose extension matches the content type so
// the server's converter can detect the container.
func uploadName(req stt.Request) string {
	if req.Filename != "" && filepath.Ext(req.Filename) != "" {
		return filepath.Base(req.Filename)
	}
	ext := ".wav"
	switch strings.ToLower(req.ContentType) {
	case "audio/mp3", "audio/mpeg":
		ext = ".mp3"
	case "audio/m4a", "audio/mp4", "audio/x-m4a":
		ext = ".m4a"
	case "audio/ogg":
		ext = ".ogg"
	case "audio/webm":
		ext = ".webm"
	}
	return "audio" + ext
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
