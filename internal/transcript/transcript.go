// Package transcript corrects clinical vocabulary in speech-to-text output
// before it reaches note synthesis.
//
// Drug names and procedures are the words general-purpose STT models mishear
// most often. The [CorrectionPipeline] runs two optional stages:
//
//  1. Phonetic matching ([PhoneticMatcher]): in-process alignment of
//     transcript words against the vocabulary by pronunciation and spelling
//     similarity.
//  2. LLM correction ([medcorrect.Corrector]): a language model reviews the
//     text, focusing on spans the STT engine was unsure about. Every change
//     it makes is checked against its own list of declared corrections.
//
// Each [Correction] records the stage that produced it so callers can audit
// or roll back substitutions.
package transcript

import (
	"context"

	"github.com/MrWong99/elektron/pkg/types"
)

// Methods reported in [Correction.Method].
const (
	MethodPhonetic = "phonetic"
	MethodLLM      = "llm"
)

// Correction is a single substitution made by the pipeline.
type Correction struct {
	Original   string  `json:"original"`
	Corrected  string  `json:"corrected"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Corrected is the output of [Pipeline.Correct].
type Corrected struct {
	// Original is the transcript as produced by the STT provider.
	Original types.Transcript

	// Text is the transcript text with all substitutions applied.
	Text string

	// Corrections lists the applied substitutions in order. Empty, not nil,
	// when nothing changed.
	Corrections []Correction
}

// Pipeline corrects domain vocabulary in a transcript. Implementations must
// be safe for concurrent use.
type Pipeline interface {
	// Correct returns the corrected transcript text. vocabulary is the list
	// of canonical terms to recognise.
	Correct(ctx context.Context, t types.Transcript, vocabulary []string) (*Corrected, error)
}

// PhoneticMatcher resolves a word or phrase to a vocabulary term without
// network calls. When matched is false, corrected equals word and
// confidence is 0.
type PhoneticMatcher interface {
	Match(word string, vocabulary []string) (corrected string, confidence float64, matched bool)
}
