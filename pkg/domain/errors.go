package domain

import (
	"errors"
	"fmt"
)

// ErrBlobNotFound is returned when a key cannot be found in the blob store.
var ErrBlobNotFound = errors.New("blob not found")

// ErrTextDecoding marks a persisted text response that could not be decoded.
var ErrTextDecoding = errors.New("text decoding error")

// ErrImageDecoding marks a persisted image response that could not be decoded.
var ErrImageDecoding = errors.New("image data decoding error")

// ErrPrecondition is matched by every PreconditionError.
var ErrPrecondition = errors.New("precondition violated")

// PreconditionError reports an intent that references state which must exist.
// The reducer panics with it; the store recovers and returns it.
type PreconditionError struct {
	Intent IntentType
	ID     string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violated: %s references unknown id %q", e.Intent, e.ID)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }
