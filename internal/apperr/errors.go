// Package apperr defines the error taxonomy shared across the generation pipeline.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class. Codes are stable and returned to clients.
type Code string

const (
	CodeValidation           Code = "validation_error"
	CodeQuotaExhausted       Code = "quota_exhausted"
	CodeInvalidUnlockToken   Code = "invalid_unlock_token"
	CodeConversationNotFound Code = "conversation_not_found"
	CodeCharacterNotFound    Code = "character_not_found"
	CodeIncompleteCharacter  Code = "incomplete_character_data"
	CodeRetrieval            Code = "retrieval_error"
	CodeEmbeddingProvider    Code = "embedding_provider_error"
	CodeCompletionProvider   Code = "completion_provider_error"
	CodePersistence          Code = "persistence_error"
	CodeVectorDimension      Code = "vector_dimension_mismatch"
	CodeInternal             Code = "internal_error"
)

// Error carries a code, a client-safe message and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping a cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the Code from an error chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf extracts the client-safe message from an error chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps a code to the status returned at the API boundary.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeQuotaExhausted:
		return http.StatusPaymentRequired
	case CodeInvalidUnlockToken:
		return http.StatusForbidden
	case CodeConversationNotFound, CodeCharacterNotFound:
		return http.StatusNotFound
	case CodeIncompleteCharacter:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
