package model

import (
	"context"
	"errors"
)

// error taxonomy shared by adapters, the orchestrator and the entity store,
// errors are wrapped with fmt.Errorf("...: %w", ErrX) and classified with Classify.
var (
	// ErrTransient is a network level failure that may succeed when retried.
	ErrTransient = errors.New("transient network error")
	// ErrNotFound means the handle does not resolve on the source, it is never retried.
	ErrNotFound = errors.New("handle not found")
	// ErrParse means the page or response no longer has the expected shape.
	ErrParse = errors.New("unexpected response shape")
	// ErrResource is a failure to launch or drive a browser session.
	ErrResource = errors.New("resource failure")
	// ErrPersistence is a failed read or write against the entity store.
	ErrPersistence = errors.New("persistence failure")
)

type ErrorKind string

const (
	KindTransient   ErrorKind = "transient"
	KindNotFound    ErrorKind = "not_found"
	KindParse       ErrorKind = "parse"
	KindResource    ErrorKind = "resource"
	KindPersistence ErrorKind = "persistence"
	KindUnknown     ErrorKind = "unknown"
)

func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrResource):
		return KindResource
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrTransient),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	}
	return KindUnknown
}

// Retryable reports whether an operation that failed with err is worth
// attempting again.
func Retryable(err error) bool {
	return Classify(err) == KindTransient && !errors.Is(err, context.Canceled)
}
