package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Kind classifies every failure this package reports. Call sites switch on
// Kind to pick a transport response.
type Kind int

const (
	// KindUnexpected covers failures outside the closed taxonomy, such as
	// claim data that cannot be processed.
	KindUnexpected Kind = iota
	// KindConfiguration means signing metadata could not be resolved.
	KindConfiguration
	// KindAuthentication means the token is missing or not trustworthy.
	KindAuthentication
	// KindAuthorization means the token is valid but policy is not satisfied.
	KindAuthorization
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	default:
		return "unexpected"
	}
}

// Sentinel errors matched by errors.Is against any *Error of the
// corresponding Kind.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrAuthentication = errors.New("unauthenticated")
	ErrAuthorization  = errors.New("unauthorized")
	ErrUnexpected     = errors.New("unexpected error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindAuthentication:
		return ErrAuthentication
	case KindAuthorization:
		return ErrAuthorization
	default:
		return ErrUnexpected
	}
}

// Reason pinpoints the failure within its Kind. Reasons are stable strings
// suitable for logs and metrics labels.
type Reason string

const (
	ReasonMissingToken     Reason = "missing_token"
	ReasonInvalidRequest   Reason = "invalid_request"
	ReasonMalformedToken   Reason = "malformed_token"
	ReasonSignatureInvalid Reason = "signature_invalid"
	ReasonIssuerMismatch   Reason = "issuer_mismatch"
	ReasonAudienceMismatch Reason = "audience_mismatch"
	ReasonExpired          Reason = "expired"
	ReasonNotYetValid      Reason = "not_yet_valid"

	ReasonInsufficientScope Reason = "insufficient_scope"
	ReasonMissingRole       Reason = "missing_role"

	ReasonDiscoveryFailed Reason = "discovery_failed"
	ReasonNoSigningKey    Reason = "no_signing_key"
	ReasonInvalidConfig   Reason = "invalid_config"

	ReasonInternal Reason = "internal"
)

var defaultMessages = map[Reason]string{
	ReasonMissingToken:      "bearer token is required",
	ReasonInvalidRequest:    "authorization header is not a bearer credential",
	ReasonMalformedToken:    "bearer token is malformed",
	ReasonSignatureInvalid:  "token signature is invalid",
	ReasonIssuerMismatch:    "token issuer is not trusted",
	ReasonAudienceMismatch:  "token audience does not match",
	ReasonExpired:           "token has expired",
	ReasonNotYetValid:       "token is not yet valid",
	ReasonInsufficientScope: "token lacks a required scope",
	ReasonMissingRole:       "token lacks a required role",
	ReasonDiscoveryFailed:   "signing metadata could not be resolved",
	ReasonNoSigningKey:      "no usable signing key was published",
	ReasonInvalidConfig:     "authorization is misconfigured",
	ReasonInternal:          "token could not be processed",
}

// Error is the only error type surfaced by validation and authorization.
// Its message is safe to show to end users; the underlying cause is only
// reachable through structured logging.
type Error struct {
	kind      Kind
	reason    Reason
	msg       string
	expiredAt time.Time
	required  []string
	cause     error
}

// NewError builds an *Error. An empty message selects the default message
// for reason.
func NewError(kind Kind, reason Reason, message string) *Error {
	if message == "" {
		message = defaultMessages[reason]
	}
	if message == "" {
		message = kind.sentinel().Error()
	}
	return &Error{kind: kind, reason: reason, msg: message}
}

func newError(kind Kind, reason Reason, cause error) *Error {
	e := NewError(kind, reason, "")
	e.cause = cause
	return e
}

func (e *Error) Error() string { return e.msg }

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool { return target == e.kind.sentinel() }

func (e *Error) Kind() Kind     { return e.kind }
func (e *Error) Reason() Reason { return e.reason }

// ExpiredAt returns the token expiry for ReasonExpired errors.
func (e *Error) ExpiredAt() (time.Time, bool) {
	return e.expiredAt, !e.expiredAt.IsZero()
}

// Required returns the scopes or roles an authorization failure was
// evaluated against.
func (e *Error) Required() []string { return append([]string(nil), e.required...) }

// LogValue implements slog.LogValuer. The cause is included here and nowhere
// else so that library detail stays out of client-facing messages.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", e.kind.String()),
		slog.String("reason", string(e.reason)),
		slog.String("msg", e.msg),
	}
	if !e.expiredAt.IsZero() {
		attrs = append(attrs, slog.Time("expired_at", e.expiredAt))
	}
	if len(e.required) > 0 {
		attrs = append(attrs, slog.Any("required", e.required))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	return slog.GroupValue(attrs...)
}

// KindOf returns the Kind of err. Errors that did not originate in this
// package are KindUnexpected. KindOf must not be called with a nil error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	switch {
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrAuthorization):
		return KindAuthorization
	}
	return KindUnexpected
}

// asError normalizes any error into an *Error, classifying foreign errors
// as unexpected.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(KindUnexpected, ReasonInternal, err)
}

func expiredError(at time.Time, cause error) *Error {
	e := newError(KindAuthentication, ReasonExpired, cause)
	if !at.IsZero() {
		e.expiredAt = at
		e.msg = fmt.Sprintf("token expired at %s", at.UTC().Format(time.RFC3339))
	}
	return e
}
