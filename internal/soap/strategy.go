package soap

import "context"

// Strategy names reported in results and metrics.
const (
	StrategyModel    = "model"
	StrategyTemplate = "template"
)

// Fixed strategy-level confidence. A model-backed result keeps
// [ModelConfidence] even when individual sections fell back.
const (
	ModelConfidence    = 0.85
	TemplateConfidence = 0.75
)

// Strategy generates and revises single note sections. The engine picks a
// strategy per section at call time: the model strategy when one is
// configured, and the template strategy when the model strategy is absent
// or fails for that section.
//
// Implementations must be safe for concurrent use; the engine calls
// Generate for all four sections in parallel.
type Strategy interface {
	// Name returns a short identifier such as [StrategyModel].
	Name() string

	// Generate produces the text of section s from the shared context.
	Generate(ctx context.Context, s Section, c *Context) (string, error)

	// Revise returns section s of note rewritten to account for feedback.
	Revise(ctx context.Context, s Section, note Note, feedback string) (string, error)
}
