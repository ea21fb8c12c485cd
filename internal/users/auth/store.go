// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # Account Data Access

// AccountRepository defines the data access contract for accounts.
//
// Lookups return [ErrAccountNotFound] when nothing matches. Username and email
// lookups are case-insensitive. Storage outages surface as 503 errors.
type AccountRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - ctx: context.Context
		  - id: string

		Returns:
		  - *Account: Hydrated entity
		  - error: ErrAccountNotFound or storage failures
	*/
	FindByID(ctx context.Context, id string) (*Account, error)

	// FindByUsername returns the account whose username matches case-insensitively.
	FindByUsername(ctx context.Context, username string) (*Account, error)

	// FindByEmail returns the account whose email matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByResetToken returns the account holding the given reset-token digest.
	FindByResetToken(ctx context.Context, tokenHash string) (*Account, error)

	// FindByVerificationToken returns the account holding the given verification-token digest.
	FindByVerificationToken(ctx context.Context, tokenHash string) (*Account, error)

	/*
		Create persists a brand-new account.

		Parameters:
		  - ctx: context.Context
		  - account: *Account (Version is set to 1 on success)

		Returns:
		  - error: ErrDuplicateUsername / ErrDuplicateEmail when a concurrent
		    registration won the unique index, or storage failures
	*/
	Create(ctx context.Context, account *Account) error

	/*
		Save writes every mutable field of account, guarded by its Version.

		Parameters:
		  - ctx: context.Context
		  - account: *Account (Version and UpdatedAt advance on success)

		Returns:
		  - error: ErrStaleAccount if the stored version moved on
	*/
	Save(ctx context.Context, account *Account) error

	/*
		RecordFailedLogin atomically increments the failure counter and applies
		the lock when the counter reaches policy.Threshold.

		Parameters:
		  - ctx: context.Context
		  - id: string
		  - policy: LockoutPolicy
		  - at: time.Time (lock window starts here)

		Returns:
		  - *Account: The account after the update
		  - error: Storage failures
	*/
	RecordFailedLogin(ctx context.Context, id string, policy LockoutPolicy, at time.Time) (*Account, error)

	/*
		RecordSuccessfulLogin atomically clears the failure state and stamps
		lastLoginAt, unless a lock that is still active was applied concurrently.

		Returns:
		  - *Account: The account after the update (still locked if the guard held)
		  - error: Storage failures
	*/
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) (*Account, error)

	/*
		ReleaseExpiredLock returns a Locked account whose lock has elapsed by
		at to Active, resetting the counter. It is a no-op otherwise.

		Returns:
		  - *Account: The current account
		  - error: Storage failures
	*/
	ReleaseExpiredLock(ctx context.Context, id string, at time.Time) (*Account, error)
}

// # Session Data Access

// Session is an informational record of a successful login.
//
// Sessions are an audit trail only; authorization relies on the bearer token.
type Session struct {
	ID        string
	AccountID string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	EndedAt   *time.Time
}

// SessionRepository defines the data access contract for login sessions.
type SessionRepository interface {

	/*
		Create persists a new session that expires after ttl.

		Parameters:
		  - ctx: context.Context
		  - session: *Session
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Create(ctx context.Context, session *Session, ttl time.Duration) error

	// FindByID returns the session or [ErrSessionNotFound].
	FindByID(ctx context.Context, id string) (*Session, error)

	// End stamps the end time once. Ending an unknown or ended session is not an error.
	End(ctx context.Context, id string, at time.Time) error
}
