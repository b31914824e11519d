// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider turns one recorded clinical encounter (an uploaded audio
// file) into a types.Transcript with segment-level statistics. Providers that
// report per-segment log-probabilities let the confidence estimator score the
// transcript; the others still produce usable text.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/elektron/pkg/types"
)

// ErrUnsupportedFormat is returned when a provider cannot decode the audio
// container it was given.
var ErrUnsupportedFormat = errors.New("stt: unsupported audio format")

// Request describes one batch transcription.
type Request struct {
	// Audio is the raw file content as uploaded (WAV, MP3, M4A, OGG, WebM).
	Audio []byte

	// ContentType is the MIME type of Audio, e.g. "audio/wav".
	ContentType string

	// Filename is the original upload name. Used as a format hint only.
	Filename string

	// Language is an ISO-639-1 code (e.g. "en"). Empty selects the
	// provider's configured default.
	Language string
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe converts req.Audio to text. It returns an error if the
	// backend is unreachable or rejects the audio. A recording without
	// speech yields a Transcript with empty Text and a nil error.
	Transcribe(ctx context.Context, req Request) (*types.Transcript, error)

	// Model returns the model identifier in use (e.g. "base.en").
	Model() string
}
