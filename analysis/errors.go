package analysis

import "errors"

var (
	// ErrMissingInput is returned when a required media file does not exist.
	ErrMissingInput = errors.New("missing input")
	// ErrAnalyzerUnavailable marks a collaborator that was never configured.
	ErrAnalyzerUnavailable = errors.New("analyzer unavailable")
)
