// Package fault carries the stable error kinds the chat core reports.
// Handlers map kinds to HTTP statuses; clients branch on Kind, humans
// read Message/Hint.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidCommand        Kind = "INVALID_COMMAND"
	KindRAGNotEnabled         Kind = "RAG_NOT_ENABLED"
	KindGenerationUnavailable Kind = "GENERATION_UNAVAILABLE"
	KindIngestionFailed       Kind = "INGESTION_FAILED"
	KindSessionBusy           Kind = "SESSION_BUSY"
	KindNotFound              Kind = "NOT_FOUND"
	KindValidation            Kind = "VALIDATION"
	KindInternal              Kind = "INTERNAL"
)

type Error struct {
	Kind      Kind
	Message   string
	Hint      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

func (e *Error) AsRetryable() *Error {
	e.Retryable = true
	return e
}

// KindOf extracts the kind from anywhere in the chain. Unlabelled errors
// report KindInternal so no failure leaves the boundary without a kind.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// IsRetryable reports whether the caller may safely resubmit the same
// operation. Generation and embedding timeouts are retryable; command
// and state errors are not.
func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}
