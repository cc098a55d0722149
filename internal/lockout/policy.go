// Package lockout holds the failed-login lockout state machine. The policy
// only computes the next counter state; persisting it and signaling the
// caller-facing failure is the authenticator's job.
package lockout

import (
	"time"

	"github.com/juanmaabanto/ms-identity/internal/domain"
)

const (
	DefaultMaxFailedAttempts = 4
	DefaultDuration          = 5 * time.Minute
)

// Policy decides whether login attempts are allowed and how the failure
// counters evolve.
type Policy struct {
	MaxFailedAttempts int
	Duration          time.Duration
}

// NewPolicy applies defaults for zero values.
func NewPolicy(maxFailedAttempts int, duration time.Duration) Policy {
	if maxFailedAttempts <= 0 {
		maxFailedAttempts = DefaultMaxFailedAttempts
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return Policy{MaxFailedAttempts: maxFailedAttempts, Duration: duration}
}

// FailureOutcome is the advisory result of recording a failed attempt.
type FailureOutcome struct {
	NextCount         int
	NextLockoutEnd    *time.Time
	AttemptsRemaining int
	JustLocked        bool
}

// IsLockedOut reports whether a lockout is in effect for the user at now.
func (p Policy) IsLockedOut(user *domain.User, now time.Time) bool {
	return user.IsLockedOut(now)
}

// OnFailure computes the counter state after a wrong-password attempt.
//
// When the stored counter has already drifted to or past the threshold
// without a lockout having been set, the attempt is treated as the first
// failure of a fresh window: the counter resets to zero before the
// increment. The drift can only happen through concurrent counter updates;
// the reset is kept as documented behavior pending product confirmation.
func (p Policy) OnFailure(user *domain.User, now time.Time) FailureOutcome {
	count := user.AccessFailedCount
	if p.MaxFailedAttempts-count <= 0 {
		count = 0
	}
	count++

	if count >= p.MaxFailedAttempts {
		end := now.Add(p.Duration)
		return FailureOutcome{NextCount: count, NextLockoutEnd: &end, JustLocked: true}
	}
	return FailureOutcome{
		NextCount:         count,
		AttemptsRemaining: p.MaxFailedAttempts - count,
	}
}

// OnSuccess resets the failure counter after a correct password.
func (p Policy) OnSuccess(user *domain.User) int {
	return 0
}
