package llm

// Message is a single prompt message.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	Content string
}

// Roles accepted in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ModelCapabilities describes limits of an LLM model.
type ModelCapabilities struct {
	// Model is the backend-specific model identifier (e.g. "gpt-4o-mini").
	Model string

	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion. Callers clamp CompletionRequest.MaxTokens to this value.
	MaxOutputTokens int
}

// ClampMaxTokens returns n limited to MaxOutputTokens. A zero n or an unknown
// limit leaves n untouched.
func (c ModelCapabilities) ClampMaxTokens(n int) int {
	if n <= 0 || c.MaxOutputTokens <= 0 || n <= c.MaxOutputTokens {
		return n
	}
	return c.MaxOutputTokens
}
