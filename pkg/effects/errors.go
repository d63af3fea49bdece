package effects

import (
	"errors"
	"fmt"
)

// Code classifies a side-effect failure.
type Code string

const (
	CodeGeneral            Code = "general"
	CodeResponse           Code = "response"
	CodeModerationResponse Code = "moderation_response"
	CodeFlaggedPrompt      Code = "flagged_prompt"
	CodeChatResponse       Code = "chat_response"
	CodeImageResponse      Code = "image_response"
	CodeEmptyResponse      Code = "empty_response"
	CodeNoImages           Code = "no_images"
)

// Error is the typed failure of a side effect.
// Status is set for CodeResponse only. Cause is the underlying error, if any.
type Error struct {
	Code   Code
	Status int
	Cause  error
}

// Sentinels for errors.Is. They match any *Error with the same Code.
var (
	ErrGeneral            = &Error{Code: CodeGeneral}
	ErrResponse           = &Error{Code: CodeResponse}
	ErrModerationResponse = &Error{Code: CodeModerationResponse}
	ErrFlaggedPrompt      = &Error{Code: CodeFlaggedPrompt}
	ErrChatResponse       = &Error{Code: CodeChatResponse}
	ErrImageResponse      = &Error{Code: CodeImageResponse}
	ErrEmptyResponse      = &Error{Code: CodeEmptyResponse}
	ErrNoImages           = &Error{Code: CodeNoImages}
)

// ErrAlreadyInFlight is returned when an effect for the same entry is still running.
var ErrAlreadyInFlight = errors.New("side effect already in flight for entry")

func (e *Error) Error() string {
	var msg string
	switch e.Code {
	case CodeGeneral:
		msg = "general error"
	case CodeResponse:
		msg = fmt.Sprintf("response error: %d", e.Status)
	case CodeModerationResponse:
		msg = "moderation response extraction error"
	case CodeFlaggedPrompt:
		msg = "flagged prompt error"
	case CodeChatResponse:
		msg = "chat response extraction error"
	case CodeImageResponse:
		msg = "image response extraction error"
	case CodeEmptyResponse:
		msg = "empty chat response error"
	case CodeNoImages:
		msg = "no image could be downloaded"
	default:
		msg = string(e.Code)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Status == 0 || t.Status == e.Status)
}

func newError(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}
