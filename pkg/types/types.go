// Package types defines the shared types used across Elektron packages.
//
// Transcripts are produced by STT providers and consumed by the confidence
// estimator, the vocabulary corrector and the SOAP synthesis engine. Keeping
// them here avoids import cycles between providers and the core.
package types

import (
	"strings"
	"time"
)

// Transcript is the result of transcribing one recorded encounter. It is
// produced once per audio file and read-only afterwards.
type Transcript struct {
	// Text is the full transcribed speech content.
	Text string

	// Segments are the engine's utterance-level slices of Text, in order.
	// Providers that do not segment return a single segment or none.
	Segments []Segment

	// Language is the detected or requested language code (e.g. "en").
	Language string

	// Duration is the length of the source audio.
	Duration time.Duration
}

// Segment is a contiguous slice of a transcript with engine-reported
// statistics.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string

	// AvgLogProb is the engine's mean log-probability over the segment's
	// tokens, typically in [-1, 0]. Nil when the engine reports none.
	AvgLogProb *float64
}

// Words returns the number of whitespace-separated words in the segment.
func (s Segment) Words() int {
	return len(strings.Fields(s.Text))
}

// Float64 returns a pointer to v. Convenience for building segments.
func Float64(v float64) *float64 { return &v }
