// Package mock provides a test double for the stt.Provider interface.
//
// Example:
//
//	p := &mock.Provider{
//	    Transcript: &types.Transcript{Text: "Patient reports headache."},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/elektron/pkg/provider/stt"
	"github.com/MrWong99/elektron/pkg/types"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	Ctx context.Context
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by Transcribe. A nil value returns an empty
	// transcript.
	Transcript *types.Transcript

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// ModelName is returned by Model.
	ModelName string

	// TranscribeCalls records every invocation of Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns Transcript, TranscribeErr.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*types.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	if p.TranscribeErr != nil {
		return nil, p.TranscribeErr
	}
	if p.Transcript == nil {
		return &types.Transcript{}, nil
	}
	t := *p.Transcript
	return &t, nil
}

// Model returns ModelName.
func (p *Provider) Model() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelName
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

var _ stt.Provider = (*Provider)(nil)
