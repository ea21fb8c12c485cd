// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"math"
	"net/http"
	"time"

	"github.com/taibuivan/counsel/internal/platform/apperr"
)

// # Domain Errors
//
// Sentinels are compared with errors.Is, which matches on Code, so copies
// carrying a cause or Retry-After still match.

var (
	// ErrInvalidCredentials covers both an unknown identifier and a wrong
	// password; the two must be indistinguishable.
	ErrInvalidCredentials = apperr.New("INVALID_CREDENTIALS", "Invalid credentials", http.StatusUnauthorized)

	// ErrAccountLocked is returned while a lockout window is active.
	ErrAccountLocked = apperr.New("ACCOUNT_LOCKED", "Account is temporarily locked due to too many failed login attempts", http.StatusLocked)

	// ErrAccountNotActive is returned when the account status disallows login.
	ErrAccountNotActive = apperr.New("ACCOUNT_NOT_ACTIVE", "Account is not active", http.StatusForbidden)

	// ErrInvalidToken is the refresh failure; it never says which check failed.
	ErrInvalidToken = apperr.New("INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized)

	// ErrInvalidOrExpiredToken is the reset/verification failure.
	ErrInvalidOrExpiredToken = apperr.New("INVALID_OR_EXPIRED_TOKEN", "Invalid or expired token", http.StatusBadRequest)

	ErrDuplicateUsername = apperr.New("DUPLICATE_USERNAME", "Username is already taken", http.StatusBadRequest)
	ErrDuplicateEmail    = apperr.New("DUPLICATE_EMAIL", "Email is already registered", http.StatusBadRequest)

	// ErrAccountNotFound is returned when an id no longer resolves.
	ErrAccountNotFound = apperr.NotFound("Account")

	// ErrSessionNotFound is returned by the session store for unknown ids.
	ErrSessionNotFound = apperr.NotFound("Session")

	// ErrStaleAccount is returned by Save when another write got there first.
	ErrStaleAccount = apperr.Conflict("Account was modified concurrently, please retry")
)

// lockedError builds an [ErrAccountLocked] carrying the remaining lock time.
func lockedError(account *Account, now time.Time) error {
	remaining := account.LockRemaining(now)
	if remaining <= 0 {
		return ErrAccountLocked
	}
	return ErrAccountLocked.WithRetryAfter(time.Duration(math.Ceil(remaining.Seconds())) * time.Second)
}

// passwordReusedError rejects a new password found in the recent history.
func passwordReusedError() error {
	return apperr.ValidationError(FieldNewPassword+": Must differ from your recent passwords", apperr.FieldError{
		Field:   FieldNewPassword,
		Message: "Must differ from your recent passwords",
	})
}
