package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures for reporting
type ErrorKind string

const (
	KindDiscovery     ErrorKind = "DiscoveryError"
	KindRelocation    ErrorKind = "RelocationError"
	KindTranscription ErrorKind = "TranscriptionError"
	KindSummarization ErrorKind = "SummarizationError"
	KindRender        ErrorKind = "RenderError"
	KindPersistence   ErrorKind = "PersistenceError"
	KindConfig        ErrorKind = "ConfigError"
)

// Error is a classified pipeline error
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error) error {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func NewDiscoveryError(op string, err error) error     { return newError(KindDiscovery, op, err) }
func NewRelocationError(op string, err error) error    { return newError(KindRelocation, op, err) }
func NewTranscriptionError(op string, err error) error { return newError(KindTranscription, op, err) }
func NewSummarizationError(op string, err error) error { return newError(KindSummarization, op, err) }
func NewRenderError(op string, err error) error        { return newError(KindRender, op, err) }
func NewPersistenceError(op string, err error) error   { return newError(KindPersistence, op, err) }
func NewConfigError(op string, err error) error        { return newError(KindConfig, op, err) }

// KindOf returns the kind of the first classified error in the chain, or "" if none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
