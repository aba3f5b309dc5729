// Package gatewayerr defines the typed error taxonomy surfaced to clients
// as reply error blocks. Each kind is its own struct so the dispatch layer
// never hand-formats an error_code string.
package gatewayerr

import "fmt"

// Code is one of the wire error_code values.
type Code string

const (
	CodeInvalidCommand    Code = "INVALID_COMMAND"
	CodeAuthFailed        Code = "AUTH_FAILED"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeUnsafeInput       Code = "UNSAFE_INPUT"
	CodeSessionNotFound   Code = "SESSION_NOT_FOUND"
	CodeSessionNotOwned   Code = "SESSION_NOT_OWNED"
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"
	CodeElementNotFound   Code = "ELEMENT_NOT_FOUND"
	CodeElementNotVisible Code = "ELEMENT_NOT_VISIBLE"
	CodeElementNotInteractable Code = "ELEMENT_NOT_INTERACTABLE"
	CodeTimeout           Code = "TIMEOUT"
	CodeNavigationFailed  Code = "NAVIGATION_FAILED"
	CodeExtractionFailed  Code = "EXTRACTION_FAILED"
	CodeInternal          Code = "INTERNAL"
)

// GatewayError is implemented by every typed error in this package.
type GatewayError interface {
	error
	ErrorCode() Code
	ErrorType() string
	// ClientMessage is the text safe to place on the wire. Unlike Error,
	// it never includes a wrapped cause, which may carry internal detail
	// (a raw engine exception, a driver-level error string) that must
	// stay server-side.
	ClientMessage() string
	Details() map[string]any
}

type baseError struct {
	code    Code
	kind    string
	msg     string
	details map[string]any
	cause   error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) ErrorCode() Code { return e.code }

// ErrorType returns a stable taxonomy string for the wire's error_type
// field. It is fixed per error kind at construction, independent of the
// concrete Go type name.
func (e *baseError) ErrorType() string { return e.kind }

func (e *baseError) ClientMessage() string { return e.msg }

func (e *baseError) Details() map[string]any {
	if e.details == nil {
		return map[string]any{}
	}
	return e.details
}

// InvalidCommand reports a malformed frame or schema validation failure.
type InvalidCommand struct{ baseError }

func NewInvalidCommand(reason string) *InvalidCommand {
	return &InvalidCommand{baseError{code: CodeInvalidCommand, kind: "invalid_command", msg: "invalid command: " + reason}}
}

// AuthFailed reports a missing or wrong shared secret.
type AuthFailed struct{ baseError }

func NewAuthFailed() *AuthFailed {
	return &AuthFailed{baseError{code: CodeAuthFailed, kind: "auth_failed", msg: "authentication failed"}}
}

// RateLimited reports a client over its admission quota.
type RateLimited struct{ baseError }

func NewRateLimited(clientID string) *RateLimited {
	return &RateLimited{baseError{
		code: CodeRateLimited,
		kind: "rate_limited",
		msg:  "rate limit exceeded",
		details: map[string]any{"client_id": clientID},
	}}
}

// UnsafeInput reports a sanitizer rejection. The offending substring is
// never placed in details — only the pattern category.
type UnsafeInput struct{ baseError }

func NewUnsafeInput(category string) *UnsafeInput {
	return &UnsafeInput{baseError{
		code: CodeUnsafeInput,
		kind: "unsafe_input",
		msg:  "input rejected by sanitizer",
		details: map[string]any{"category": category},
	}}
}

// SessionNotFound reports a session id with no live session.
type SessionNotFound struct{ baseError }

func NewSessionNotFound(sessionID string) *SessionNotFound {
	return &SessionNotFound{baseError{
		code: CodeSessionNotFound,
		kind: "session_not_found",
		msg:  "session not found",
		details: map[string]any{"session_id": sessionID},
	}}
}

// SessionNotOwned reports a session accessed by a client that does not own it.
type SessionNotOwned struct{ baseError }

func NewSessionNotOwned(sessionID string) *SessionNotOwned {
	return &SessionNotOwned{baseError{
		code: CodeSessionNotOwned,
		kind: "session_not_owned",
		msg:  "session not owned by this client",
		details: map[string]any{"session_id": sessionID},
	}}
}

// ResourceExhausted reports the browser context pool's hard ceiling being reached.
type ResourceExhausted struct{ baseError }

func NewResourceExhausted(resource string) *ResourceExhausted {
	return &ResourceExhausted{baseError{
		code: CodeResourceExhausted,
		kind: "resource_exhausted",
		msg:  "resource exhausted: " + resource,
	}}
}

// ElementNotFound reports a selector matching no element.
type ElementNotFound struct{ baseError }

func NewElementNotFound(selector string) *ElementNotFound {
	return &ElementNotFound{baseError{
		code: CodeElementNotFound,
		kind: "element_not_found",
		msg:  "element not found",
		details: map[string]any{"selector": selector},
	}}
}

// ElementNotVisible reports a matched element that is not interactable.
type ElementNotVisible struct{ baseError }

func NewElementNotVisible(selector, reason string) *ElementNotVisible {
	return &ElementNotVisible{baseError{
		code: CodeElementNotVisible,
		kind: "element_not_visible",
		msg:  "element not visible",
		details: map[string]any{"selector": selector, "reason": reason},
	}}
}

// ElementNotInteractable reports a fill target that is not an input-like element.
type ElementNotInteractable struct{ baseError }

func NewElementNotInteractable(selector, reason string) *ElementNotInteractable {
	return &ElementNotInteractable{baseError{
		code: CodeElementNotInteractable,
		kind: "element_not_interactable",
		msg:  "element not interactable",
		details: map[string]any{"selector": selector, "reason": reason},
	}}
}

// Timeout reports a command deadline expiry.
type Timeout struct{ baseError }

func NewTimeout(op string, cause error) *Timeout {
	return &Timeout{baseError{
		code:    CodeTimeout,
		kind:    "timeout",
		msg:     "timed out: " + op,
		cause:   cause,
		details: map[string]any{"op": op},
	}}
}

// NavigationFailed reports a navigate primitive failure.
type NavigationFailed struct{ baseError }

func NewNavigationFailed(url string, cause error) *NavigationFailed {
	return &NavigationFailed{baseError{
		code:    CodeNavigationFailed,
		kind:    "navigation_failed",
		msg:     "navigation failed",
		cause:   cause,
		details: map[string]any{"url": url},
	}}
}

// ExtractionFailed reports an extract primitive failure.
type ExtractionFailed struct{ baseError }

func NewExtractionFailed(selector string, cause error) *ExtractionFailed {
	return &ExtractionFailed{baseError{
		code:    CodeExtractionFailed,
		kind:    "extraction_failed",
		msg:     "extraction failed",
		cause:   cause,
		details: map[string]any{"selector": selector},
	}}
}

// Internal wraps an unexpected executor exception. The cause travels in
// Error() for server-side logs, but ClientMessage() omits it — the wire
// only ever sees the generic message.
type Internal struct{ baseError }

func NewInternal(cause error) *Internal {
	return &Internal{baseError{code: CodeInternal, kind: "internal", msg: "internal error", cause: cause}}
}

// AsGatewayError extracts a GatewayError from err, wrapping it as Internal
// if it isn't already one of the typed kinds above.
func AsGatewayError(err error) GatewayError {
	if err == nil {
		return nil
	}
	var ge GatewayError
	if as(err, &ge) {
		return ge
	}
	return NewInternal(err)
}

// as is a tiny errors.As shim kept local to avoid importing errors just for
// this one call site.
func as(err error, target *GatewayError) bool {
	for err != nil {
		if ge, ok := err.(GatewayError); ok {
			*target = ge
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
