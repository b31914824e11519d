// Package deepgram provides an STT provider backed by Deepgram's
// pre-recorded audio API.
//
// Deepgram reports a confidence in [0, 1] per word rather than a token
// log-probability. Each utterance is therefore given the mean of ln(word
// confidence) as its average log-probability, which keeps transcripts from
// both engines on the same confidence scale.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/elektron/pkg/provider/stt"
	"github.com/MrWong99/elektron/pkg/types"
)

const (
	defaultEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel    = "nova-3-medical"
	defaultLanguage = "en"

	// minWordConfidence keeps ln(c) finite.
	minWordConfidence = 1e-6
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel selects the Deepgram model (default "nova-3-medical").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default recognition language.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithKeyterms boosts recognition of domain vocabulary such as drug names.
func WithKeyterms(terms []string) Option {
	return func(p *Provider) { p.keyterms = terms }
}

// WithEndpoint overrides the API endpoint. Used by tests and proxies.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithHTTPClient replaces the default HTTP client (120s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Provider using Deepgram.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	keyterms   []string
	httpClient *http.Client
}

// New creates a Deepgram provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Model implements stt.Provider.
func (p *Provider) Model() string { return p.model }

func (p *Provider) buildURL(language string) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("utterances", "true")
	for _, kt := range p.keyterms {
		q.Add("keyterm", kt)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

type listenResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string `json:"transcript"`
				Words      []word `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
			Words      []word  `json:"words"`
		} `json:"utterances"`
	} `json:"results"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*types.Transcript, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("deepgram: audio must not be empty")
	}
	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	endpoint, err := p.buildURL(lang)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, fmt.Errorf("deepgram: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+p.apiKey)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("deepgram: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var body listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("deepgram: parse response: %w", err)
	}
	return parseListenResponse(body, lang), nil
}

func parseListenResponse(r listenResponse, lang string) *types.Transcript {
	t := &types.Transcript{
		Language: lang,
		Duration: seconds(r.Metadata.Duration),
	}
	if len(r.Results.Channels) > 0 {
		ch := r.Results.Channels[0]
		if ch.DetectedLanguage != "" {
			t.Language = ch.DetectedLanguage
		}
		if len(ch.Alternatives) > 0 {
			t.Text = strings.TrimSpace(ch.Alternatives[0].Transcript)
		}
	}
	for _, u := range r.Results.Utterances {
		text := strings.TrimSpace(u.Transcript)
		if text == "" {
			continue
		}
		t.Segments = append(t.Segments, types.Segment{
			Start:      seconds(u.Start),
			End:        seconds(u.End),
			Text:       text,
			AvgLogProb: meanLogConfidence(u.Words),
		})
	}
	return t
}

func meanLogConfidence(words []word) *float64 {
	if len(words) == 0 {
		return nil
	}
	var sum float64
	for _, w := range words {
		sum += math.Log(math.Max(w.Confidence, minWordConfidence))
	}
	return types.Float64(sum / float64(len(words)))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
