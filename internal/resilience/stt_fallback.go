package resilience

import (
	"context"

	"github.com/MrWong99/elektron/pkg/provider/stt"
	"github.com/MrWong99/elektron/pkg/types"
)

// STTFallback implements [stt.Provider] with failover across several
// transcription backends, each guarded by its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional STT provider.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends the audio to the first healthy provider. An unsupported
// format on one backend moves on to the next, which may accept it.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (*types.Transcript, error) {
	return ExecuteWithResult(ctx, f.group, func(p stt.Provider) (*types.Transcript, error) {
		return p.Transcribe(ctx, req)
	})
}

// Model returns the primary's model.
func (f *STTFallback) Model() string { return f.group.Primary().Model() }

// Status returns the breaker state of every backend.
func (f *STTFallback) Status() []BreakerStatus { return f.group.Status() }

// Available reports whether any backend can currently take calls.
func (f *STTFallback) Available() bool { return f.group.Available() }
