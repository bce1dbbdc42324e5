// Package syncerr defines the failure taxonomy shared by every stage of the
// synchronization pipeline.
package syncerr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindTransientFetch  Kind = "TRANSIENT_FETCH_FAILURE"
	KindNotFound        Kind = "NOT_FOUND"
	KindMalformed       Kind = "MALFORMED_DOCUMENT"
	KindValidation      Kind = "VALIDATION_ERROR"
	KindDangling        Kind = "DANGLING_REFERENCE"
	KindRender          Kind = "RENDER_FAILURE"
	KindWriteConflict   Kind = "STORE_WRITE_CONFLICT"
	KindStaleRevision   Kind = "STALE_REVISION"
	KindUnknown         Kind = "UNKNOWN"
	KindContextCanceled Kind = "CONTEXT_CANCELED"
)

var (
	// ErrNotFound reports that a document or entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleRevision reports that a newer revision is already stored.
	ErrStaleRevision = errors.New("stale revision")
)

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind    Kind
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(e.Kind)))
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) and errors.Is(err, ErrStaleRevision)
// match typed errors of the corresponding kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrStaleRevision:
		return e.Kind == KindStaleRevision
	}
	return false
}

// New builds a typed error.
func New(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// Newf builds a typed error with a formatted message.
func Newf(kind Kind, path string, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Issue describes one violated field.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated field of a document.
type ValidationError struct {
	Path   string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		field := issue.Field
		if field == "" {
			field = "#"
		}
		parts = append(parts, field+": "+issue.Message)
	}
	prefix := "validation error"
	if e.Path != "" {
		prefix += " " + e.Path
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// DanglingReferenceError reports an unresolved cross-entity reference.
type DanglingReferenceError struct {
	Field string
	Kind  string
	Slug  string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling reference: %s -> %s %q does not exist", e.Field, e.Kind, e.Slug)
}

// Transient wraps an error that may succeed on retry. RetryAfter carries a
// server supplied hint when one was given.
type Transient struct {
	Err        error
	RetryAfter time.Duration
}

func (e *Transient) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *Transient) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var t *Transient
	return errors.As(err, &t)
}

// KindOf maps any pipeline error to its Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return KindValidation
	}
	var dangling *DanglingReferenceError
	if errors.As(err, &dangling) {
		return KindDangling
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStaleRevision):
		return KindStaleRevision
	case IsTransient(err):
		return KindTransientFetch
	case isContextErr(err):
		return KindContextCanceled
	}
	return KindUnknown
}

// Code returns the textual code recorded in ledgers and summaries.
func Code(err error) string {
	return string(KindOf(err))
}

// Issues extracts field issues from a validation failure.
func Issues(err error) []Issue {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Issues
	}
	return nil
}
