package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks a failed model invocation: network, auth, rate limit, timeout.
	ErrTransport = errors.New("llm: transport failure")
	// ErrUnexpectedShape marks a response without any text content.
	ErrUnexpectedShape = errors.New("llm: unexpected response shape")
	// ErrParse marks response text that did not decode as structured data.
	ErrParse = errors.New("llm: no valid structured payload")
	// ErrValidation marks a decoded payload that is well-formed but semantically wrong.
	ErrValidation = errors.New("llm: payload failed validation")
	// ErrMissingCredentials is returned by Validate when a client cannot be used.
	ErrMissingCredentials = errors.New("llm: incomplete client configuration")
)

// TransportError carries the HTTP status and body (when there was a response)
// or the underlying network error.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm: HTTP %d: %s", e.Status, clip(e.Body, 300))
	}
	if e.Err != nil {
		return "llm: " + e.Err.Error()
	}
	return ErrTransport.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ParseError keeps the head of the offending response for diagnosis.
type ParseError struct {
	Reason    string
	RawPrefix string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm: %s (raw: %s)", e.Reason, e.RawPrefix)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// clip truncates s to at most n runes, appending "…" if trimmed.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
