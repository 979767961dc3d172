package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the outermost handler can render them.
type ErrorKind string

const (
	KindExtraction        ErrorKind = "EXTRACTION"
	KindDuplicateDocument ErrorKind = "DUPLICATE_DOCUMENT"
	KindIndexUnavailable  ErrorKind = "INDEX_UNAVAILABLE"
	KindRetrievalEmpty    ErrorKind = "RETRIEVAL_EMPTY"
	KindGeneration        ErrorKind = "GENERATION"
	KindPersistence       ErrorKind = "PERSISTENCE"
	KindTimestampParse    ErrorKind = "TIMESTAMP_PARSE"
	KindSourceMissing     ErrorKind = "SOURCE_MISSING"
	KindFileTooLarge      ErrorKind = "FILE_TOO_LARGE"
	KindLastConversation  ErrorKind = "LAST_CONVERSATION"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindEmbedding         ErrorKind = "EMBEDDING"
	KindValidation        ErrorKind = "VALIDATION"
)

// ErrDimensionMismatch is returned when two indexes or a query vector disagree on dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Error is a tagged failure carrying the operation and subject it concerns.
type Error struct {
	Kind    ErrorKind
	Op      string
	Subject string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Subject != "" {
		msg = e.Subject + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Op, msg, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a tagged error.
func NewError(kind ErrorKind, op, subject, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first tagged error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsSoft reports whether err is a warning rather than a failure.
func IsSoft(err error) bool {
	switch KindOf(err) {
	case KindDuplicateDocument, KindTimestampParse, KindSourceMissing, KindLastConversation:
		return true
	}
	return false
}
