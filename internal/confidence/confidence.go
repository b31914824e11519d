// Package confidence turns speech-to-text segment statistics into a single
// transcription confidence value.
//
// The estimate is a word-count-weighted mean of the segments' average
// log-probabilities, rescaled with clamp(p+1, 0, 1). Long segments therefore
// weigh in proportion to the speech they carry. When no segment carries both
// words and a log-probability the estimate is unavailable, which callers must
// keep distinct from a zero confidence.
package confidence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/elektron/pkg/types"
)

// ErrUnavailable is returned when the segments carry no usable signal.
var ErrUnavailable = errors.New("confidence: unavailable")

// Estimate returns the confidence in [0, 1] for segs, or [ErrUnavailable].
// Segments without a log-probability or without words are ignored.
func Estimate(segs []types.Segment) (float64, error) {
	var sum float64
	var weight int
	for _, s := range segs {
		if s.AvgLogProb == nil {
			continue
		}
		w := s.Words()
		sum += *s.AvgLogProb * float64(w)
		weight += w
	}
	if weight == 0 {
		return 0, ErrUnavailable
	}
	return rescale(sum / float64(weight)), nil
}

// ForTranscript estimates the confidence of t. It fails with an
// [*types.InputError] wrapping [types.ErrEmptyTranscript] when t has no
// speech. A nil result with a nil error means the confidence is unavailable.
func ForTranscript(t types.Transcript) (*float64, error) {
	if strings.TrimSpace(t.Text) == "" {
		return nil, fmt.Errorf("confidence: %w", types.NewInputError(types.ErrEmptyTranscript))
	}
	c, err := Estimate(t.Segments)
	if errors.Is(err, ErrUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// rescale maps a mean log-probability onto [0, 1]. Values below -1 or above
// 0 saturate.
func rescale(p float64) float64 {
	return min(max((p+1)/1, 0), 1)
}
