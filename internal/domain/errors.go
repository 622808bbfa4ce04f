package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ErrorKind classifies terminal failures of an enhancement attempt.
type ErrorKind string

const (
	KindConflict            ErrorKind = "conflict"
	KindInsufficientCredits ErrorKind = "insufficient_credits"
	KindAIService           ErrorKind = "ai_service"
	KindStorageUnavailable  ErrorKind = "storage_unavailable"
	KindValidation          ErrorKind = "validation"
)

// Stable lastError texts. They are persisted verbatim and must not carry
// provider messages, credentials, or stack traces.
const (
	MsgInsufficientCredits   = "insufficient credits"
	MsgResultNotAccessible   = "result not accessible"
	MsgNoImageProduced       = "ai service: no image produced"
	MsgAITimeout             = "ai service: timed out"
	MsgAIFailure             = "ai service: request failed"
	MsgStorageReadFailed     = "storage unavailable: original could not be read"
	MsgStorageWriteFailed    = "storage unavailable: result could not be written"
	MsgProcessingInterrupted = "processing interrupted"
	MsgPersistFailed         = "result could not be recorded"
	MsgCreditCheckFailed     = "credit balance could not be checked"
)

// PipelineError is the single error type for the enhancement failure
// taxonomy. Message is safe to show to users and to store as lastError.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// CodeNoImageProduced is the response code for an AI call that returned no
// image. Retrying it right away rarely helps.
const CodeNoImageProduced = "ai_no_image"

// Code is the machine-readable code for responses: the kind, narrowed for
// outcomes that callers handle differently.
func (e *PipelineError) Code() string {
	if e.Kind == KindAIService && e.Message == MsgNoImageProduced {
		return CodeNoImageProduced
	}
	return string(e.Kind)
}

// Is matches another *PipelineError by kind so callers can write
// errors.Is(err, domain.ErrConflict).
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is comparisons.
var (
	ErrConflict            = &PipelineError{Kind: KindConflict, Message: "photo is not in an enhanceable state"}
	ErrInsufficientCredits = &PipelineError{Kind: KindInsufficientCredits, Message: MsgInsufficientCredits}
	ErrAIService           = &PipelineError{Kind: KindAIService, Message: MsgAIFailure}
	ErrStorageUnavailable  = &PipelineError{Kind: KindStorageUnavailable, Message: "storage unavailable"}
	ErrValidation          = &PipelineError{Kind: KindValidation, Message: MsgResultNotAccessible}
)

// NewPipelineError builds a PipelineError for kind with a stable message.
func NewPipelineError(kind ErrorKind, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the taxonomy kind of err, or "" when err is not a PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
