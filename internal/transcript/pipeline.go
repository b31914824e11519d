package transcript

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/MrWong99/elektron/internal/transcript/medcorrect"
	"github.com/MrWong99/elektron/pkg/types"
)

// defaultLowLogProb is the segment average log-probability below which a
// segment is flagged for LLM review.
const defaultLowLogProb = -0.5

// PipelineOption configures a [CorrectionPipeline].
type PipelineOption func(*CorrectionPipeline)

// WithPhoneticMatcher enables the phonetic stage.
func WithPhoneticMatcher(m PhoneticMatcher) PipelineOption {
	return func(p *CorrectionPipeline) { p.phonetic = m }
}

// WithLLMCorrector enables the LLM stage.
func WithLLMCorrector(c *medcorrect.Corrector) PipelineOption {
	return func(p *CorrectionPipeline) { p.llm = c }
}

// WithLowConfidenceLogProb sets the segment log-probability below which a
// segment is sent to the LLM as a low-confidence span. Default -0.5.
func WithLowConfidenceLogProb(threshold float64) PipelineOption {
	return func(p *CorrectionPipeline) { p.lowLogProb = threshold }
}

// CorrectionPipeline is the two-stage [Pipeline]. Both stages are optional.
type CorrectionPipeline struct {
	phonetic   PhoneticMatcher
	llm        *medcorrect.Corrector
	lowLogProb float64
}

var _ Pipeline = (*CorrectionPipeline)(nil)

// NewPipeline returns a pipeline with no stages enabled unless options say
// otherwise.
func NewPipeline(opts ...PipelineOption) *CorrectionPipeline {
	p := &CorrectionPipeline{lowLogProb: defaultLowLogProb}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Correct applies the phonetic stage to every word window, then runs the LLM
// stage when the transcript has no log-probability data or has at least one
// low-confidence segment. LLM errors are returned; the caller keeps the raw
// transcript.
func (p *CorrectionPipeline) Correct(ctx context.Context, t types.Transcript, vocabulary []string) (*Corrected, error) {
	out := &Corrected{Original: t, Text: t.Text, Corrections: []Correction{}}
	if len(vocabulary) == 0 {
		return out, nil
	}

	if p.phonetic != nil {
		text, corrections := p.applyPhonetic(out.Text, vocabulary)
		out.Text = text
		out.Corrections = append(out.Corrections, corrections...)
	}

	if p.llm != nil {
		spans, hasData := p.lowConfidenceSpans(t.Segments)
		if !hasData || len(spans) > 0 {
			text, corrections, err := p.llm.Correct(ctx, out.Text, vocabulary, spans)
			if err != nil {
				return nil, fmt.Errorf("transcript: correct: %w", err)
			}
			out.Text = text
			for _, c := range corrections {
				out.Corrections = append(out.Corrections, Correction{
					Original:   c.Original,
					Corrected:  c.Corrected,
					Confidence: c.Confidence,
					Method:     MethodLLM,
				})
			}
		}
	}
	return out, nil
}

// applyPhonetic walks the tokens and tries the longest window first so
// multi-word terms win over partial single-word matches. Trailing
// punctuation is kept outside the match.
func (p *CorrectionPipeline) applyPhonetic(text string, vocabulary []string) (string, []Correction) {
	tokens := strings.Fields(text)
	maxWords := 1
	for _, v := range vocabulary {
		maxWords = max(maxWords, len(strings.Fields(v)))
	}

	var output []string
	var corrections []Correction
	for i := 0; i < len(tokens); {
		matched := false
		for n := min(maxWords, len(tokens)-i); n >= 1; n-- {
			window, punct := splitTrailingPunct(strings.Join(tokens[i:i+n], " "))
			term, conf, ok := p.phonetic.Match(window, vocabulary)
			if !ok {
				continue
			}
			output = append(output, strings.Fields(term+punct)...)
			corrections = append(corrections, Correction{
				Original:   window,
				Corrected:  term,
				Confidence: conf,
				Method:     MethodPhonetic,
			})
			i += n
			matched = true
			break
		}
		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}
	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(output, " "), corrections
}

// lowConfidenceSpans returns the text of segments below the log-probability
// threshold. hasData is false when no segment reports a log-probability.
func (p *CorrectionPipeline) lowConfidenceSpans(segs []types.Segment) (spans []string, hasData bool) {
	for _, s := range segs {
		if s.AvgLogProb == nil {
			continue
		}
		hasData = true
		if *s.AvgLogProb < p.lowLogProb && strings.TrimSpace(s.Text) != "" {
			spans = append(spans, strings.TrimSpace(s.Text))
		}
	}
	return spans, hasData
}

func splitTrailingPunct(s string) (string, string) {
	trimmed := strings.TrimRightFunc(s, unicode.IsPunct)
	return trimmed, s[len(trimmed):]
}
