package soap

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxReportedSymptoms = 3

	examPerformed = "Physical examination performed."
	vitalsNoted   = " Vital signs documented."
	findingsNoted = " Physical examination findings noted."

	furtherEvaluation = "Further evaluation needed to determine underlying cause."

	boilerplatePlan = "1. Continue current treatment regimen\n" +
		"2. Follow-up appointment in 1-2 weeks\n" +
		"3. Patient education provided\n" +
		"4. Return if symptoms worsen"

	refinedSubjective = " [Refined based on: %s]"
	refinedPlan       = "\n5. Additional considerations per physician review"
)

var (
	vitalKeywords = []string{"vital signs", "blood pressure", "heart rate"}
	examKeywords  = []string{"examination", "exam", "physical"}
)

// TemplateStrategy builds sections from fixed sentence frames and the
// lexicon scan. Output depends only on its input.
type TemplateStrategy struct{}

var _ Strategy = TemplateStrategy{}

// Name implements [Strategy].
func (TemplateStrategy) Name() string { return StrategyTemplate }

// Generate implements [Strategy]. It never fails.
func (TemplateStrategy) Generate(_ context.Context, s Section, c *Context) (string, error) {
	switch s {
	case Subjective:
		return templateSubjective(c), nil
	case Objective:
		return templateObjective(c), nil
	case Assessment:
		return templateAssessment(c), nil
	default:
		return boilerplatePlan, nil
	}
}

// Revise implements [Strategy]. Subjective is annotated with the feedback
// and Plan gains a review item; the other sections pass through.
func (TemplateStrategy) Revise(_ context.Context, s Section, note Note, feedback string) (string, error) {
	switch s {
	case Subjective:
		return note.Subjective + fmt.Sprintf(refinedSubjective, feedback), nil
	case Plan:
		return note.Plan + refinedPlan, nil
	default:
		return note.Section(s), nil
	}
}

func templateSubjective(c *Context) string {
	parts := make([]string, 0, 4)
	if c.AgeKnown() {
		parts = append(parts, c.Age()+" year old")
	}
	if c.Patient.Gender != "" {
		parts = append(parts, c.Patient.Gender)
	}
	parts = append(parts, "patient presents with "+c.Complaint(UnspecifiedTemplate)+".")

	out := upperFirst(strings.Join(parts, " "))
	if sym := c.Symptoms(); len(sym) > 0 {
		out += " Patient reports " + strings.Join(sym[:min(len(sym), maxReportedSymptoms)], ", ") + "."
	}
	return out
}

func templateObjective(c *Context) string {
	text := strings.ToLower(c.Transcript)
	out := examPerformed
	if containsAny(text, vitalKeywords) {
		out += vitalsNoted
	}
	if containsAny(text, examKeywords) {
		out += findingsNoted
	}
	return out
}

func templateAssessment(c *Context) string {
	primary := c.Complaint(UnspecifiedTemplate)
	if sym := c.Symptoms(); len(sym) > 0 {
		primary = sym[0]
	}
	return "Patient presents with " + primary + ". " + furtherEvaluation
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
