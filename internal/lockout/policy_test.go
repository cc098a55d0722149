package lockout_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/juanmaabanto/ms-identity/internal/domain"
	"github.com/juanmaabanto/ms-identity/internal/lockout"
)

func TestOnFailureCountsDownToLockout(t *testing.T) {
	policy := lockout.NewPolicy(4, 5*time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := domain.User{LockoutEnabled: true}

	wantRemaining := []int{3, 2, 1}
	for attempt, want := range wantRemaining {
		outcome := policy.OnFailure(&user, now)
		require.False(t, outcome.JustLocked, "attempt %d", attempt+1)
		require.Equal(t, want, outcome.AttemptsRemaining, "attempt %d", attempt+1)
		require.Nil(t, outcome.NextLockoutEnd)
		user.AccessFailedCount = outcome.NextCount
	}

	outcome := policy.OnFailure(&user, now)
	require.True(t, outcome.JustLocked)
	require.Equal(t, 4, outcome.NextCount)
	require.NotNil(t, outcome.NextLockoutEnd)
	require.Equal(t, now.Add(5*time.Minute), *outcome.NextLockoutEnd)
}

func TestOnFailureResetsDriftedCounter(t *testing.T) {
	policy := lockout.NewPolicy(4, 5*time.Minute)
	now := time.Now().UTC()

	// A counter at or past the threshold without an active lockout means
	// concurrent updates drifted it. The attempt counts as the first of a
	// fresh window.
	user := domain.User{LockoutEnabled: true, AccessFailedCount: 7}
	outcome := policy.OnFailure(&user, now)
	require.False(t, outcome.JustLocked)
	require.Equal(t, 1, outcome.NextCount)
	require.Equal(t, 3, outcome.AttemptsRemaining)
}

func TestIsLockedOutRespectsWindow(t *testing.T) {
	policy := lockout.NewPolicy(4, 5*time.Minute)
	now := time.Now().UTC()
	end := now.Add(time.Minute)

	locked := domain.User{LockoutEnabled: true, LockoutEnd: &end}
	require.True(t, policy.IsLockedOut(&locked, now))
	require.True(t, policy.IsLockedOut(&locked, end))
	require.False(t, policy.IsLockedOut(&locked, end.Add(time.Second)))

	disabled := domain.User{LockoutEnabled: false, LockoutEnd: &end}
	require.False(t, policy.IsLockedOut(&disabled, now))
}

func TestOnSuccessResetsCounter(t *testing.T) {
	policy := lockout.NewPolicy(4, 5*time.Minute)
	user := domain.User{LockoutEnabled: true, AccessFailedCount: 3}
	require.Equal(t, 0, policy.OnSuccess(&user))
}

func TestNewPolicyAppliesDefaults(t *testing.T) {
	policy := lockout.NewPolicy(0, 0)
	require.Equal(t, lockout.DefaultMaxFailedAttempts, policy.MaxFailedAttempts)
	require.Equal(t, lockout.DefaultDuration, policy.Duration)
}
