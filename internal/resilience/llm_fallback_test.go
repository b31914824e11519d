package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/elektron/pkg/provider/llm"
	llmmock "github.com/MrWong99/elektron/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Plan: rest"},
	}
	fb := NewLLMFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("ollama", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "Plan: rest" {
		t.Fatalf("content = %q", resp.Content)
	}
	if len(primary.Calls()) != 1 || len(secondary.Calls()) != 1 {
		t.Errorf("calls primary=%d secondary=%d, want 1/1", len(primary.Calls()), len(secondary.Calls()))
	}
}

func TestLLMFallback_AllFail(t *testing.T) {
	t.Parallel()

	fb := NewLLMFallback(&llmmock.Provider{CompleteErr: errors.New("down")}, "a", FallbackConfig{})
	fb.AddFallback("b", &llmmock.Provider{CompleteErr: errors.New("down too")})

	if _, err := fb.Complete(context.Background(), llm.CompletionRequest{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_CapabilitiesAndStatus(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{Model: "gpt-4o-mini", MaxOutputTokens: 16_384}}
	fb := NewLLMFallback(primary, "openai", FallbackConfig{})
	fb.AddFallback("ollama", &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{Model: "llama3"}})

	if got := fb.Capabilities().Model; got != "gpt-4o-mini" {
		t.Errorf("Capabilities().Model = %q", got)
	}
	st := fb.Status()
	if len(st) != 2 || st[0].Name != "openai" || st[1].Name != "ollama" {
		t.Errorf("Status() = %+v", st)
	}
	if !fb.Available() {
		t.Error("expected available")
	}
}
