// Package apperr carries the error taxonomy shared by services and handlers.
// Every error that crosses a service boundary is tagged with a Kind so the
// HTTP layer can map it to a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation: bad input, user-fixable, never retried.
	KindValidation Kind = "validation"
	// KindExtraction: corrupt or unreadable file content, never retried.
	KindExtraction Kind = "extraction"
	// KindEmbeddingProvider: transient embedding failure after retries.
	KindEmbeddingProvider Kind = "embedding_provider"
	// KindLLMProvider: transient generation failure after retries.
	KindLLMProvider Kind = "llm_provider"
	// KindVectorStore: vector collection unavailable; recoverable via Reset.
	KindVectorStore Kind = "vector_store"
	// KindSessionLimit: active-conversation cap reached, user-fixable.
	KindSessionLimit Kind = "session_limit"
	// KindArchiveWrite: archival to blob storage failed.
	KindArchiveWrite Kind = "archive_write"
	// KindConflict: concurrent state transition lost the race.
	KindConflict Kind = "conflict"
	KindNotFound Kind = "not_found"
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
