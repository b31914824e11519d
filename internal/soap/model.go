package soap

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/MrWong99/elektron/pkg/provider/llm"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 200

	// excerptLimit is the number of transcript bytes embedded in the
	// subjective and objective prompts.
	excerptLimit = 500
)

const systemPrompt = "You are a clinical documentation assistant. Write concise, factual SOAP note " +
	"sections in plain prose. Do not invent findings that are not supported by the input."

// ModelStrategy generates sections with one LLM completion per section.
type ModelStrategy struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

var _ Strategy = (*ModelStrategy)(nil)

// ModelOption configures a [ModelStrategy].
type ModelOption func(*ModelStrategy)

// WithTemperature sets the sampling temperature. Default 0.7.
func WithTemperature(t float64) ModelOption {
	return func(m *ModelStrategy) { m.temperature = t }
}

// WithMaxTokens caps the completion length per section. Default 200,
// clamped to the model's output limit.
func WithMaxTokens(n int) ModelOption {
	return func(m *ModelStrategy) { m.maxTokens = n }
}

// NewModelStrategy returns a strategy backed by p.
func NewModelStrategy(p llm.Provider, opts ...ModelOption) *ModelStrategy {
	m := &ModelStrategy{llm: p, temperature: defaultTemperature, maxTokens: defaultMaxTokens}
	for _, o := range opts {
		o(m)
	}
	m.maxTokens = p.Capabilities().ClampMaxTokens(m.maxTokens)
	return m
}

// Name implements [Strategy].
func (m *ModelStrategy) Name() string { return StrategyModel }

// Generate implements [Strategy].
func (m *ModelStrategy) Generate(ctx context.Context, s Section, c *Context) (string, error) {
	return m.complete(ctx, s, sectionPrompt(s, c))
}

// Revise implements [Strategy].
func (m *ModelStrategy) Revise(ctx context.Context, s Section, note Note, feedback string) (string, error) {
	return m.complete(ctx, s, revisionPrompt(s, note, feedback))
}

func (m *ModelStrategy) complete(ctx context.Context, s Section, prompt string) (string, error) {
	resp, err := m.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature:  m.temperature,
		MaxTokens:    m.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("soap: generate %s: %w", s, err)
	}
	if resp == nil {
		return "", fmt.Errorf("soap: generate %s: %w", s, ErrEmptyGeneration)
	}
	text := CleanSection(s, resp.Content)
	if text == "" {
		return "", fmt.Errorf("soap: generate %s: %w", s, ErrEmptyGeneration)
	}
	return text, nil
}

// ── Prompts ──────────────────────────────────────────────────────────────────

func sectionPrompt(s Section, c *Context) string {
	var b strings.Builder
	switch s {
	case Subjective:
		b.WriteString("Based on this patient conversation transcript, write the Subjective section of a SOAP note.\n")
		b.WriteString("Focus on the patient's reported symptoms, concerns, and history.\n\n")
		fmt.Fprintf(&b, "Patient age: %s\nPatient gender: %s\nChief complaint: %s\n\n",
			c.Age(), c.Gender(), c.Complaint(UnspecifiedPrompt))
		fmt.Fprintf(&b, "Transcript: %s...\n", excerpt(c.Transcript))
		writeDoctorNotes(&b, c)
	case Objective:
		b.WriteString("Based on this medical transcript, write the Objective section of a SOAP note.\n")
		b.WriteString("Include vital signs, physical examination findings, and observable data.\n\n")
		fmt.Fprintf(&b, "Transcript: %s...\n", excerpt(c.Transcript))
	case Assessment:
		b.WriteString("Based on this medical information, write the Assessment section of a SOAP note.\n")
		b.WriteString("Provide the most likely diagnosis and clinical reasoning.\n\n")
		fmt.Fprintf(&b, "Chief complaint: %s\nKey symptoms: %s\n",
			c.Complaint(UnspecifiedPrompt), strings.Join(c.Symptoms(), ", "))
	default:
		b.WriteString("Based on this medical assessment, write the Plan section of a SOAP note.\n")
		b.WriteString("Include treatment recommendations, follow-up, and patient education.\n\n")
		fmt.Fprintf(&b, "Chief complaint: %s\nPatient age: %s\n", c.Complaint(UnspecifiedPrompt), c.Age())
		writeDoctorNotes(&b, c)
	}
	fmt.Fprintf(&b, "\n%s:", s.Label())
	return b.String()
}

func writeDoctorNotes(b *strings.Builder, c *Context) {
	if c.Patient.DoctorNotes != "" {
		fmt.Fprintf(b, "Doctor notes: %s\n", c.Patient.DoctorNotes)
	}
}

func revisionPrompt(s Section, note Note, feedback string) string {
	return fmt.Sprintf("Revise the %s section of this SOAP note according to the physician's feedback.\n"+
		"Keep everything that the feedback does not contradict.\n\n"+
		"Current %s: %s\n\nPhysician feedback: %s\n\n%s:",
		s.Label(), s.Label(), note.Section(s), feedback, s.Label())
}

// excerpt returns at most excerptLimit bytes of s without splitting a rune.
func excerpt(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	cut := excerptLimit
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

// ── Post-processing ──────────────────────────────────────────────────────────

// CleanSection extracts section s from raw model output: the text after the
// last "<Label>:" (or all of raw when the label is missing), with whitespace
// runs collapsed, leading non-alphanumeric characters removed and the first
// letter upper-cased. An empty return value means the output is unusable.
func CleanSection(s Section, raw string) string {
	label := s.Label() + ":"
	if i := strings.LastIndex(raw, label); i >= 0 {
		raw = raw[i+len(label):]
	}
	text := strings.Join(strings.Fields(raw), " ")
	text = strings.TrimLeftFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return upperFirst(text)
}
