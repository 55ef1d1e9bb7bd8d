// Package errors defines the structured error taxonomy for the
// authentication core. Credential-level failures (AuthError) propagate to the
// caller unchanged; unexpected internal failures are logged in full and
// re-surfaced as a generic technical AuthError so internals never leak.
package errors

import (
	"errors"
	"fmt"
)

// AuthKind categorizes a user-facing authentication failure.
type AuthKind string

const (
	// KindBlank indicates missing credentials.
	KindBlank AuthKind = "blank"
	// KindInvalid indicates credentials that failed verification.
	KindInvalid AuthKind = "invalid"
	// KindTechnical indicates a backend or internal failure, reported to the
	// user without detail.
	KindTechnical AuthKind = "technical"
	// KindAdmin indicates a server-side misconfiguration visible at login
	// time (e.g. an IdP that asserted no username).
	KindAdmin AuthKind = "admin"
	// KindDenied indicates the backend authenticated the user but refused
	// access (e.g. a required attribute did not match).
	KindDenied AuthKind = "denied"
	// KindInProgress indicates a multi-step flow awaiting completion (e.g.
	// an email login link has been sent).
	KindInProgress AuthKind = "in_progress"
	// KindEmailNotVerified indicates login blocked pending email
	// verification.
	KindEmailNotVerified AuthKind = "email_not_verified"
)

// AuthError is a credential/flow-level failure safe to report to the caller.
type AuthError struct {
	Kind    AuthKind
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Cause }

// NewAuth creates an AuthError of the given kind.
func NewAuth(kind AuthKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// Blank reports missing credentials.
func Blank() *AuthError { return NewAuth(KindBlank, "credentials must not be blank") }

// Invalid reports failed credential verification.
func Invalid() *AuthError { return NewAuth(KindInvalid, "invalid credentials") }

// Technical reports a backend failure with a non-leaking message.
func Technical(cause error) *AuthError {
	return &AuthError{Kind: KindTechnical, Message: "authentication failed due to a technical problem", Cause: cause}
}

// Adminf reports a server misconfiguration surfaced during login.
func Adminf(format string, args ...any) *AuthError {
	return NewAuth(KindAdmin, fmt.Sprintf(format, args...))
}

// Denied reports access refused by backend policy.
func Denied(message string) *AuthError { return NewAuth(KindDenied, message) }

// EmailNotVerified reports login blocked pending verification.
func EmailNotVerified(email string) *AuthError {
	return &AuthError{Kind: KindEmailNotVerified, Message: "email address has not been verified: " + email}
}

// InProgress reports a pending multi-step authentication flow.
func InProgress(message string) *AuthError { return NewAuth(KindInProgress, message) }

// IsAuth reports whether err is an AuthError of any kind.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// AuthKindOf returns the kind of an AuthError, or "" for other errors.
func AuthKindOf(err error) AuthKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsCredential reports whether err is a credential-level failure (blank or
// invalid), the class a chained-fallback strategy may recover from.
func IsCredential(err error) bool {
	k := AuthKindOf(err)
	return k == KindBlank || k == KindInvalid
}

// PolicyReason categorizes a credential policy violation.
type PolicyReason string

const (
	ReasonTooShort        PolicyReason = "too_short"
	ReasonTooLong         PolicyReason = "too_long"
	ReasonPatternMismatch PolicyReason = "pattern_mismatch"
)

// PolicyError reports a configuration-driven rejection of a submitted
// credential field.
type PolicyError struct {
	Reason PolicyReason
	Field  string
	Limit  int
}

func (e *PolicyError) Error() string {
	switch e.Reason {
	case ReasonTooShort:
		return fmt.Sprintf("%s must be at least %d characters", e.Field, e.Limit)
	case ReasonTooLong:
		return fmt.Sprintf("%s must be at most %d characters", e.Field, e.Limit)
	default:
		return fmt.Sprintf("%s does not match the required pattern", e.Field)
	}
}

// TooShort creates a minimum-length policy violation.
func TooShort(field string, limit int) *PolicyError {
	return &PolicyError{Reason: ReasonTooShort, Field: field, Limit: limit}
}

// TooLong creates a maximum-length policy violation.
func TooLong(field string, limit int) *PolicyError {
	return &PolicyError{Reason: ReasonTooLong, Field: field, Limit: limit}
}

// PatternMismatch creates a pattern policy violation.
func PatternMismatch(field string) *PolicyError {
	return &PolicyError{Reason: ReasonPatternMismatch, Field: field}
}

// IsPolicy reports whether err is a PolicyError.
func IsPolicy(err error) bool {
	var pe *PolicyError
	return errors.As(err, &pe)
}

// ConfigError is a server misconfiguration (missing strategy settings,
// invalid policy regex). Never shown raw to the end user.
type ConfigError struct {
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Config creates a ConfigError.
func Config(message string) *ConfigError { return &ConfigError{Message: message} }

// Configf creates a ConfigError with a formatted message.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// WrapConfig wraps an underlying error as a ConfigError.
func WrapConfig(err error, message string) *ConfigError {
	return &ConfigError{Message: message, Cause: err}
}

// IsConfig reports whether err is a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// TokenError reports a persistent-login token reuse/mismatch. It carries the
// owning user id so the theft response (purge all tokens and sessions, queue
// a warning) can run even though the presented secret was wrong.
type TokenError struct {
	UserID  int64
	Series  string
	Message string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("login token failure for user %d series %s: %s", e.UserID, e.Series, e.Message)
}

// NewToken creates a TokenError.
func NewToken(userID int64, series, message string) *TokenError {
	return &TokenError{UserID: userID, Series: series, Message: message}
}

// IsToken reports whether err is a TokenError.
func IsToken(err error) bool {
	var te *TokenError
	return errors.As(err, &te)
}

// UnsupportedError reports that a strategy does not implement an optional
// capability.
type UnsupportedError struct {
	Strategy  string
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s not supported by %s", e.Operation, e.Strategy)
}

// Unsupported creates an UnsupportedError.
func Unsupported(strategy, operation string) *UnsupportedError {
	return &UnsupportedError{Strategy: strategy, Operation: operation}
}

// IsUnsupported reports whether err is an UnsupportedError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}
