package weather

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// APIError means the provider answered with a non-2xx status. Message is
// taken verbatim from the response body when one is present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NetworkError means no response was received at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("error making request: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means a response arrived but did not match the expected shape.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAPI        ErrorKind = "api"
	KindNetwork    ErrorKind = "network"
	KindParse      ErrorKind = "parse"
	KindUnknown    ErrorKind = "unknown"
)

func Kind(err error) ErrorKind {
	var (
		ve *ValidationError
		ae *APIError
		ne *NetworkError
		pe *ParseError
	)
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &ae):
		return KindAPI
	case errors.As(err, &ne):
		return KindNetwork
	case errors.As(err, &pe):
		return KindParse
	default:
		return KindUnknown
	}
}
