package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownModel is returned when a tier key has no registered backend.
	ErrUnknownModel = errors.New("unknown model")
	// ErrMalformedResponse is returned when a backend answers with something
	// that is not a JSON document.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrEmptyResponse is returned when a backend answers without content.
	ErrEmptyResponse = errors.New("empty response")
)

// GenerationError is the only error kind produced by this package.
// Transport failures, timeouts, open breakers and malformed output are all
// wrapped in it.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (model %s): %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
