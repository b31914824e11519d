// Package medcorrect asks a language model to fix misheard clinical terms in
// a transcript.
//
// The [Corrector] sends the transcript and the canonical vocabulary to an
// [llm.Provider] with a conservative system prompt and expects a JSON reply
// carrying the corrected text and the list of substitutions. Any change in
// the returned text that is not backed by a declared substitution is
// reverted, so the model cannot rewrite clinical content. Output that does
// not parse leaves the text unchanged.
package medcorrect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/elektron/pkg/provider/llm"
)

const defaultTemperature = 0.1

const systemPromptTemplate = `You correct speech-to-text errors in clinical encounter transcripts.

Fix ONLY words that are misheard versions of the terms listed below (drug names, procedures, tests).
Do not change any other word, number, dosage, negation, grammar or punctuation.
If you are not sure a word is a misheard term, leave it unchanged.
Use the canonical spelling from the list.

Known terms:
%s
Respond with ONLY a JSON object, no markdown:
{
  "corrected_text": "<full corrected transcript>",
  "corrections": [
    {"original": "<word as heard>", "corrected": "<canonical term>", "confidence": <0.0-1.0>}
  ]
}

If nothing needs correcting, return an empty corrections array and the input text unchanged.`

// Correction is one substitution reported by the model and confirmed
// against the text.
type Correction struct {
	Original   string
	Corrected  string
	Confidence float64
}

type llmResponse struct {
	CorrectedText string `json:"corrected_text"`
	Corrections   []struct {
		Original   string  `json:"original"`
		Corrected  string  `json:"corrected"`
		Confidence float64 `json:"confidence"`
	} `json:"corrections"`
}

// Option configures a [Corrector].
type Option func(*Corrector)

// WithTemperature sets the sampling temperature. Default 0.1.
func WithTemperature(temp float64) Option {
	return func(c *Corrector) { c.temperature = temp }
}

// Corrector is safe for concurrent use.
type Corrector struct {
	llm         llm.Provider
	temperature float64
}

// New returns a Corrector backed by provider.
func New(provider llm.Provider, opts ...Option) *Corrector {
	c := &Corrector{llm: provider, temperature: defaultTemperature}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct returns text with misheard vocabulary terms fixed. lowConfidence
// lists transcript spans the STT engine was unsure about; they are pointed
// out to the model.
//
// Provider errors are returned. An unparseable reply returns text unchanged
// with a nil error.
func (c *Corrector) Correct(ctx context.Context, text string, vocabulary, lowConfidence []string) (string, []Correction, error) {
	if len(vocabulary) == 0 || strings.TrimSpace(text) == "" {
		return text, nil, nil
	}

	user := "Transcript: " + text
	if len(lowConfidence) > 0 {
		user += "\n\nLow-confidence spans that may be misheard:\n- " + strings.Join(lowConfidence, "\n- ")
	}

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(vocabulary),
		Temperature:  c.temperature,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: user}},
	})
	if err != nil {
		return text, nil, fmt.Errorf("medcorrect: complete: %w", err)
	}
	if resp == nil {
		return text, nil, nil
	}

	corrected, corrections, err := parseResponse(resp.Content)
	if err != nil || corrected == "" {
		return text, nil, nil //nolint:nilerr // unparseable output keeps the original
	}
	out, verified := verifyCorrectedText(text, corrected, corrections)
	return out, verified, nil
}

func buildSystemPrompt(vocabulary []string) string {
	var sb strings.Builder
	for _, v := range vocabulary {
		sb.WriteString("- ")
		sb.WriteString(v)
		sb.WriteByte('\n')
	}
	return fmt.Sprintf(systemPromptTemplate, sb.String())
}

func parseResponse(content string) (string, []Correction, error) {
	var r llmResponse
	if err := json.Unmarshal([]byte(stripFences(content)), &r); err != nil {
		return "", nil, fmt.Errorf("medcorrect: parse response: %w", err)
	}
	corrections := make([]Correction, 0, len(r.Corrections))
	for _, c := range r.Corrections {
		if c.Original == "" || c.Original == c.Corrected {
			continue
		}
		corrections = append(corrections, Correction{
			Original:   c.Original,
			Corrected:  c.Corrected,
			Confidence: c.Confidence,
		})
	}
	return r.CorrectedText, corrections, nil
}

// stripFences removes a surrounding ```json ... ``` block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	s, _ = strings.CutSuffix(s, "```")
	return strings.TrimSpace(s)
}
