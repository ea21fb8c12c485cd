// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Lockout State Machine
//
//	Active --(threshold consecutive failures)--> Locked
//	Locked --(lockEndsAt elapsed, next attempt)--> Active (counter reset to 0)
//
// Locked is always recoverable by time. Counting failures and clearing them
// on success are repository operations (see [AccountRepository]) so that
// concurrent attempts cannot lose increments.

// LockoutPolicy configures when an account locks and for how long.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockState is the outcome of gating a login attempt.
type LockState int

const (
	// LockOpen means the account is not locked.
	LockOpen LockState = iota
	// LockActive means the lock window has not elapsed; reject without verifying.
	LockActive
	// LockExpired means the lock has elapsed and must be released before verifying.
	LockExpired
)

// Gate classifies account for a login attempt at now.
func (policy LockoutPolicy) Gate(account *Account, now time.Time) LockState {
	if account.Status != StatusLocked {
		return LockOpen
	}
	if account.IsLocked(now) {
		return LockActive
	}
	return LockExpired
}

// IsLocked reports whether the account is locked and the lock has not elapsed.
func (account *Account) IsLocked(now time.Time) bool {
	return account.Status == StatusLocked && account.LockEndsAt != nil && account.LockEndsAt.After(now)
}

// LockRemaining returns how long the current lock still lasts, or zero.
func (account *Account) LockRemaining(now time.Time) time.Duration {
	if !account.IsLocked(now) {
		return 0
	}
	return account.LockEndsAt.Sub(now)
}

// ReleaseLock returns a locked account to Active and clears the failure state.
func (account *Account) ReleaseLock() {
	if account.Status == StatusLocked {
		account.Status = StatusActive
	}
	account.FailedLogins = 0
	account.LockEndsAt = nil
}
