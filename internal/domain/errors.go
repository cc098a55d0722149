package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind enumerates the domain failure taxonomy. Handlers map kinds to
// HTTP responses; services never surface raw internal faults.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindAccountInactive    ErrorKind = "account_inactive"
	KindLockedOut          ErrorKind = "locked_out"
	KindWrongPassword      ErrorKind = "wrong_password"
	KindInvalidClient      ErrorKind = "invalid_client"
	KindNoCompanyAccess    ErrorKind = "no_company_access"
	KindNotFound           ErrorKind = "not_found"
	KindCryptoFailure      ErrorKind = "crypto_failure"
	KindConflict           ErrorKind = "conflict"
	KindValidation         ErrorKind = "validation"
	KindInternal           ErrorKind = "internal"
)

// Error is a typed domain failure returned to the calling layer.
type Error struct {
	Kind    ErrorKind
	Message string
	// CorrelationID links an internal failure to its log record. Only set
	// for KindInternal; the underlying cause is never exposed.
	CorrelationID string
	// Remaining is the time left on an active lockout (KindLockedOut).
	Remaining time.Duration
	// AttemptsRemaining is the number of attempts left before a lockout
	// starts (KindWrongPassword).
	AttemptsRemaining int
}

func (e *Error) Error() string { return e.Message }

// Is makes errors.Is match on kind so callers can compare against the
// exported sentinels below.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return e.Kind == de.Kind
	}
	return false
}

var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "Incorrect username or password."}
	ErrAccountInactive    = &Error{Kind: KindAccountInactive, Message: "The user account is not active."}
	ErrInvalidClient      = &Error{Kind: KindInvalidClient, Message: "The client_id is not valid."}
	ErrNoCompanyAccess    = &Error{Kind: KindNoCompanyAccess, Message: "No access to the company or no principal company assigned."}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "We could not find your account."}
	ErrCryptoFailure      = &Error{Kind: KindCryptoFailure, Message: "An error occurred reading the cookies."}
	ErrConflict           = &Error{Kind: KindConflict, Message: "The user already exists."}
)

// NewLockedOut builds the lockout failure carrying the remaining duration,
// rendered as minutes and seconds.
func NewLockedOut(remaining time.Duration) *Error {
	return &Error{
		Kind:      KindLockedOut,
		Message:   fmt.Sprintf("The account is locked. %s remaining.", FormatRemaining(remaining)),
		Remaining: remaining,
	}
}

// NewWrongPassword builds the failure reporting how many attempts remain
// before the account locks.
func NewWrongPassword(attemptsRemaining int) *Error {
	return &Error{
		Kind:              KindWrongPassword,
		Message:           fmt.Sprintf("Incorrect password. %d attempt(s) remaining.", attemptsRemaining),
		AttemptsRemaining: attemptsRemaining,
	}
}

// NewValidation reports a rejected input with the rule that failed.
func NewValidation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewInternal wraps an unexpected fault. The correlation id is the only
// detail surfaced to the caller; the cause must already be logged.
func NewInternal(correlationID string) *Error {
	return &Error{
		Kind:          KindInternal,
		Message:       "An unexpected error occurred.",
		CorrelationID: correlationID,
	}
}

// FormatRemaining renders a duration as "MMm SSs".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02dm %02ds", total/60, total%60)
}
