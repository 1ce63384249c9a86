package auth

import (
	"fmt"
	"math"
	"time"

	"github.com/BradenHooton/carepoint/internal/models"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 2 * time.Hour
)

// LockoutPolicy is the failed-login state machine. It is pure: callers pass the
// current state and clock and persist the returned state.
//
//	Unlocked(n) --failure, n+1 < threshold--> Unlocked(n+1)
//	Unlocked(n) --failure, n+1 >= threshold--> Locked(now+duration)
//	Locked(t)   --now >= t--> treated as Unlocked(0)
//	any         --success--> Unlocked(0)
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockedError reports an account that is locked at the time of the attempt.
type LockedError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for %d more minutes", e.RemainingMinutes())
}

func (e *LockedError) Unwrap() error {
	return models.ErrAccountLocked
}

// RemainingMinutes rounds up so a lock with seconds left reports one minute.
func (e *LockedError) RemainingMinutes() int {
	return int(math.Ceil(e.Remaining.Minutes()))
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

// Check returns a *LockedError while a lock is in force.
func (p LockoutPolicy) Check(s models.LockoutState, now time.Time) error {
	if s.IsLocked(now) {
		return &LockedError{Until: *s.LockedUntil, Remaining: s.LockedUntil.Sub(now)}
	}
	return nil
}

// RegisterFailure returns the state after one more failed attempt and whether
// that attempt engaged the lock. An expired lock restarts the count.
func (p LockoutPolicy) RegisterFailure(s models.LockoutState, now time.Time) (models.LockoutState, bool) {
	if s.LockedUntil != nil && !s.IsLocked(now) {
		s = models.LockoutState{}
	}

	next := models.LockoutState{FailedAttempts: s.FailedAttempts + 1, LockedUntil: s.LockedUntil}
	if next.FailedAttempts >= p.Threshold {
		until := now.Add(p.Duration)
		next.LockedUntil = &until
		return next, true
	}
	return next, false
}

func (p LockoutPolicy) RegisterSuccess() models.LockoutState {
	return models.LockoutState{}
}
