package engine

import "errors"

var (
	// ErrConfiguration is returned when the requested pipeline is missing or
	// malformed. It is raised before any step runs.
	ErrConfiguration = errors.New("pipeline configuration error")

	// ErrExtraction reports a response that could not be parsed for
	// extraction. The executor logs it and continues with the next step.
	ErrExtraction = errors.New("extraction failed")
)
