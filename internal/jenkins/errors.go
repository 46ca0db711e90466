package jenkins

import (
	"errors"
	"fmt"
)

var (
	errMissing  = errors.New("field is missing")
	errNegative = errors.New("value is negative")
	errTooLarge = errors.New("response body too large")
)

// FetchError is returned when the load document could not be retrieved:
// transport failure, timeout or a non-2xx response
type FetchError struct {
	URL        string
	StatusCode int    // zero when no response was received
	Status     string // e.g. "503 Service Unavailable"
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("can't retrieve %s: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("can't retrieve %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError is returned when the response body is not the expected document
type ParseError struct {
	URL   string
	Field string // dotted path of the offending field, if known
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("can't parse response from %s: %s: %v", e.URL, e.Field, e.Err)
	}
	return fmt.Sprintf("can't parse response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
