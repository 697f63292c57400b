package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyChapter is returned when a session is started on a chapter without questions.
	ErrEmptyChapter = errors.New("chapter has no questions")
	// ErrInvalidState indicates a session method was called out of sequence.
	ErrInvalidState = errors.New("invalid quiz session state")
	// ErrChapterNotFound indicates no chapter matches the requested name.
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrSessionActive is returned when a second session is started while one is running.
	ErrSessionActive = errors.New("a quiz session is already active")
	// ErrNoActiveSession is returned when a session operation is issued without a session.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
)

// LoadMessage is the user-facing text for a fatal content load failure.
const LoadMessage = "could not load quiz content; ensure the chapter index and chapter files exist and are valid"

// LoadError is a fatal content load failure: the index was unreachable or
// malformed, or the custom ledger could not be decoded.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UserMessage returns the single message shown to the user.
func (e *LoadError) UserMessage() string { return LoadMessage }

// PartialLoadWarning reports a chapter file that was dropped during load.
type PartialLoadWarning struct {
	File string
	Err  error
}

func (w PartialLoadWarning) Error() string {
	return fmt.Sprintf("chapter file %q skipped: %v", w.File, w.Err)
}

func (w PartialLoadWarning) Unwrap() error { return w.Err }

// ValidationError describes malformed question or bulk-import input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// WithPrefix returns a copy whose field is qualified by prefix, e.g. "chapters[1].questions[0]".
func (e *ValidationError) WithPrefix(prefix string) *ValidationError {
	field := prefix
	if e.Field != "" {
		field = prefix + "." + e.Field
	}
	return &ValidationError{Field: field, Reason: e.Reason}
}
