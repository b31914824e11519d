package soap

import "errors"

var (
	// ErrEmptyGeneration is returned by [ModelStrategy] when the model's
	// output is empty after [CleanSection]. The engine recovers by falling
	// back to the template for that section.
	ErrEmptyGeneration = errors.New("soap: model produced no usable text")

	// ErrBackendUnavailable marks a generative backend that failed to load.
	// Startup logs it and continues with templates only; synthesis never
	// returns it.
	ErrBackendUnavailable = errors.New("soap: generative backend unavailable")

	// ErrEmptyFeedback is returned by [Engine.Refine] when the refinement
	// notes are blank. It is wrapped in an InputError.
	ErrEmptyFeedback = errors.New("refinement notes are empty")
)
