// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/counsel/internal/platform/apperr"
	"github.com/taibuivan/counsel/internal/platform/dberr"
	"github.com/taibuivan/counsel/internal/platform/sec"
	"github.com/taibuivan/counsel/internal/users/auth"
)

func login(f *fixture, username, password string) (*auth.AuthResult, error) {
	return f.service.Login(context.Background(), auth.LoginInput{
		Username:  username,
		Password:  password,
		IPAddress: "203.0.113.7",
		UserAgent: "go-test",
	})
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	appErr := apperr.As(err)
	require.NotNil(t, appErr, "expected an AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

// # Registration

func TestRegister(t *testing.T) {
	t.Run("creates an active unverified user and issues tokens", func(t *testing.T) {
		f := newFixture(t)
		result := f.registerAlice(t)

		require.NotNil(t, result.User)
		assert.Equal(t, "alice", result.User.Username)
		assert.Equal(t, auth.StatusActive, result.User.Status)
		assert.False(t, result.User.IsVerified)
		assert.Equal(t, []string{sec.RoleUser}, result.User.Roles)
		assert.Empty(t, result.SessionID)

		claims, err := f.tokens.VerifyAccessToken(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, claims.UserID)
		assert.Equal(t, "alice@x.com", claims.Email)

		_, err = f.tokens.VerifyRefreshToken(result.RefreshToken)
		require.NoError(t, err)

		stored := f.accounts.stored(t, result.User.ID)
		assert.NotEqual(t, alicePassword, stored.PasswordHash)
		assert.True(t, f.hasher.Verify(alicePassword, stored.PasswordHash))
		assert.Zero(t, stored.FailedLogins)
		require.NotNil(t, stored.PasswordExpiresAt)
		assert.Equal(t, f.clock.Now().Add(auth.DefaultPasswordLifetime), *stored.PasswordExpiresAt)
	})

	t.Run("folds username and email to lower case", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.service.Register(context.Background(), auth.RegisterInput{
			Username: "  Alice ",
			Email:    "Alice@X.com",
			Password: alicePassword,
		})
		require.NoError(t, err)
		assert.Equal(t, "alice", result.User.Username)
		assert.Equal(t, "alice@x.com", result.User.Email)
	})

	t.Run("stores only the digest of the verification token", func(t *testing.T) {
		f := newFixture(t)
		result := f.registerAlice(t)

		token := f.notifier.verificationFor("alice@x.com")
		require.NotEmpty(t, token)

		stored := f.accounts.stored(t, result.User.ID)
		assert.Equal(t, sec.HashToken(token), stored.VerificationTokenHash)
		require.NotNil(t, stored.VerificationTokenExpiresAt)
		assert.Equal(t, f.clock.Now().Add(auth.DefaultVerificationTokenTTL), *stored.VerificationTokenExpiresAt)
	})

	t.Run("rejects weak passwords", func(t *testing.T) {
		weak := []string{"", "Ab1!", "abcdef1!", "ABCDEF1!", "Abcdefg!", "Abcdefg1", "Abc def1"}
		for _, password := range weak {
			f := newFixture(t)
			_, err := f.service.Register(context.Background(), auth.RegisterInput{
				Username: "alice",
				Email:    "alice@x.com",
				Password: password,
			})
			assertCode(t, err, "VALIDATION_ERROR")
		}
	})

	t.Run("rejects bad usernames and emails", func(t *testing.T) {
		cases := []auth.RegisterInput{
			{Username: "al", Email: "alice@x.com", Password: alicePassword},
			{Username: string(make([]byte, 51)), Email: "alice@x.com", Password: alicePassword},
			{Username: "alice", Email: "not-an-email", Password: alicePassword},
			{Username: "alice", Email: "", Password: alicePassword},
		}
		for _, input := range cases {
			f := newFixture(t)
			_, err := f.service.Register(context.Background(), input)
			assertCode(t, err, "VALIDATION_ERROR")
		}
	})
}

func TestRegisterUniqueness(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)

	_, err := f.service.Register(context.Background(), auth.RegisterInput{
		Username: "ALICE",
		Email:    "other@x.com",
		Password: alicePassword,
	})
	assert.ErrorIs(t, err, auth.ErrDuplicateUsername)

	_, err = f.service.Register(context.Background(), auth.RegisterInput{
		Username: "bob",
		Email:    "ALICE@X.COM",
		Password: alicePassword,
	})
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)

	// Username is checked first when both collide.
	_, err = f.service.Register(context.Background(), auth.RegisterInput{
		Username: "Alice",
		Email:    "Alice@x.com",
		Password: alicePassword,
	})
	assertCode(t, err, "DUPLICATE_USERNAME")
}

func TestRegisterStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.accounts.failNext = dberr.ErrUnavailable

	_, err := f.service.Register(context.Background(), auth.RegisterInput{
		Username: "alice",
		Email:    "alice@x.com",
		Password: alicePassword,
	})

	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 503, appErr.HTTPStatus)
}

// # Login

func TestLogin(t *testing.T) {
	t.Run("by username or email", func(t *testing.T) {
		f := newFixture(t)
		f.registerAlice(t)

		byUsername, err := login(f, "Alice", alicePassword)
		require.NoError(t, err)
		assert.NotEmpty(t, byUsername.SessionID)
		assert.NotEmpty(t, byUsername.AccessToken)

		byEmail, err := f.service.Login(context.Background(), auth.LoginInput{Email: "ALICE@x.com", Password: alicePassword})
		require.NoError(t, err)
		assert.NotEqual(t, byUsername.SessionID, byEmail.SessionID)
	})

	t.Run("records the session and last login", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)

		result, err := login(f, "alice", alicePassword)
		require.NoError(t, err)

		session, err := f.sessions.FindByID(context.Background(), result.SessionID)
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, session.AccountID)
		assert.Equal(t, "203.0.113.7", session.IPAddress)
		assert.Equal(t, "go-test", session.UserAgent)
		assert.Equal(t, 7*24*time.Hour, f.sessions.ttls[result.SessionID])

		require.NotNil(t, result.User.LastLoginAt)
		assert.Equal(t, f.clock.Now(), *result.User.LastLoginAt)
	})

	t.Run("requires exactly one identifier", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Login(context.Background(), auth.LoginInput{Password: alicePassword})
		assertCode(t, err, "VALIDATION_ERROR")

		_, err = f.service.Login(context.Background(), auth.LoginInput{Username: "alice", Email: "alice@x.com", Password: alicePassword})
		assertCode(t, err, "VALIDATION_ERROR")
	})

	t.Run("rejects inactive and suspended accounts", func(t *testing.T) {
		for _, status := range []auth.Status{auth.StatusInactive, auth.StatusSuspended} {
			f := newFixture(t)
			registered := f.registerAlice(t)
			_, err := f.service.SetStatus(context.Background(), registered.User.ID, status)
			require.NoError(t, err)

			_, err = login(f, "alice", alicePassword)
			assert.ErrorIs(t, err, auth.ErrAccountNotActive)
		}
	})

	t.Run("unknown account and wrong password are the same error", func(t *testing.T) {
		f := newFixture(t)
		f.registerAlice(t)

		_, unknownErr := login(f, "mallory", alicePassword)
		_, wrongErr := login(f, "alice", wrongPassword)

		assert.Equal(t, auth.ErrInvalidCredentials, unknownErr)
		assert.Equal(t, auth.ErrInvalidCredentials, wrongErr)
	})

	t.Run("advisory ip lists do not change the outcome", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)

		stored := f.accounts.stored(t, registered.User.ID)
		stored.BlockedIPs = []string{"203.0.113.7"}
		require.NoError(t, f.accounts.Save(context.Background(), stored))

		_, err := login(f, "alice", alicePassword)
		assert.NoError(t, err)
	})
}

// # Lockout

func TestLockoutThreshold(t *testing.T) {
	f := newFixture(t)
	registered := f.registerAlice(t)

	for attempt := 1; attempt < auth.DefaultLockoutThreshold; attempt++ {
		_, err := login(f, "alice", wrongPassword)
		require.ErrorIs(t, err, auth.ErrInvalidCredentials, "attempt %d", attempt)
	}

	// The threshold-th failure locks and says so.
	_, err := login(f, "alice", wrongPassword)
	require.ErrorIs(t, err, auth.ErrAccountLocked)

	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 423, appErr.HTTPStatus)
	assert.Equal(t, auth.DefaultLockoutDuration, appErr.RetryAfter)

	stored := f.accounts.stored(t, registered.User.ID)
	assert.Equal(t, auth.StatusLocked, stored.Status)
	assert.Equal(t, auth.DefaultLockoutThreshold, stored.FailedLogins)
	require.NotNil(t, stored.LockEndsAt)
	assert.True(t, stored.LockEndsAt.After(f.clock.Now()))

	// The correct password does not get verified while locked.
	before := f.hasher.verifications.Load()
	_, err = login(f, "alice", alicePassword)
	assert.ErrorIs(t, err, auth.ErrAccountLocked)
	assert.Equal(t, before, f.hasher.verifications.Load())
}

func TestLockoutExpiry(t *testing.T) {
	t.Run("correct password after expiry succeeds and resets the counter", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)
		for i := 0; i < auth.DefaultLockoutThreshold; i++ {
			_, _ = login(f, "alice", wrongPassword)
		}

		f.clock.Advance(auth.DefaultLockoutDuration)

		result, err := login(f, "alice", alicePassword)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusActive, result.User.Status)

		stored := f.accounts.stored(t, registered.User.ID)
		assert.Zero(t, stored.FailedLogins)
		assert.Nil(t, stored.LockEndsAt)
	})

	t.Run("wrong password after expiry counts from zero", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)
		for i := 0; i < auth.DefaultLockoutThreshold; i++ {
			_, _ = login(f, "alice", wrongPassword)
		}

		f.clock.Advance(auth.DefaultLockoutDuration + time.Second)

		_, err := login(f, "alice", wrongPassword)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

		stored := f.accounts.stored(t, registered.User.ID)
		assert.Equal(t, 1, stored.FailedLogins)
		assert.Equal(t, auth.StatusActive, stored.Status)
	})

	t.Run("retry after shrinks as the lock runs down", func(t *testing.T) {
		f := newFixture(t)
		f.registerAlice(t)
		for i := 0; i < auth.DefaultLockoutThreshold; i++ {
			_, _ = login(f, "alice", wrongPassword)
		}

		f.clock.Advance(10*time.Minute + 500*time.Millisecond)

		_, err := login(f, "alice", alicePassword)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, 5*time.Minute, appErr.RetryAfter)
	})
}

func TestLockoutCustomPolicy(t *testing.T) {
	f := newFixture(t, func(policy *auth.Policy) {
		policy.Lockout = auth.LockoutPolicy{Threshold: 2, Duration: time.Minute}
	})
	f.registerAlice(t)

	_, err := login(f, "alice", wrongPassword)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = login(f, "alice", wrongPassword)
	assert.ErrorIs(t, err, auth.ErrAccountLocked)

	f.clock.Advance(time.Minute)
	_, err = login(f, "alice", alicePassword)
	assert.NoError(t, err)
}

func TestSuccessfulLoginResetsCounter(t *testing.T) {
	f := newFixture(t)
	registered := f.registerAlice(t)

	for i := 0; i < auth.DefaultLockoutThreshold - 1; i++ {
		_, _ = login(f, "alice", wrongPassword)
	}
	_, err := login(f, "alice", alicePassword)
	require.NoError(t, err)
	assert.Zero(t, f.accounts.stored(t, registered.User.ID).FailedLogins)

	// A fresh run of failures is needed to lock again.
	_, err = login(f, "alice", wrongPassword)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

// Scenario: register, login, lock out with five wrong passwords, stay locked.
func TestLockoutScenario(t *testing.T) {
	f := newFixture(t)

	registered := f.registerAlice(t)
	assert.NotEmpty(t, registered.AccessToken)
	assert.NotEmpty(t, registered.RefreshToken)

	loggedIn, err := login(f, "alice", alicePassword)
	require.NoError(t, err)
	assert.NotEmpty(t, loggedIn.SessionID)
	assert.NotEqual(t, registered.AccessToken, loggedIn.AccessToken)

	var last error
	for i := 0; i < 5; i++ {
		_, last = login(f, "alice", wrongPassword)
	}
	assert.ErrorIs(t, last, auth.ErrAccountLocked)
	assert.Equal(t, 423, apperr.As(last).HTTPStatus)

	_, err = login(f, "alice", alicePassword)
	assert.ErrorIs(t, err, auth.ErrAccountLocked)
}

// # Logout & Refresh

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	result, err := login(f, "alice", alicePassword)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, f.service.Logout(ctx, result.User.ID, result.SessionID))

	session, err := f.sessions.FindByID(ctx, result.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session.EndedAt)
	endedAt := *session.EndedAt

	// Idempotent
	f.clock.Advance(time.Minute)
	require.NoError(t, f.service.Logout(ctx, result.User.ID, result.SessionID))
	session, _ = f.sessions.FindByID(ctx, result.SessionID)
	assert.Equal(t, endedAt, *session.EndedAt)

	assert.NoError(t, f.service.Logout(ctx, result.User.ID, "unknown-session"))
	assert.NoError(t, f.service.Logout(ctx, result.User.ID, ""))
}

func TestLogoutForeignSession(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	result, err := login(f, "alice", alicePassword)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(context.Background(), "someone-else", result.SessionID))

	session, err := f.sessions.FindByID(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Nil(t, session.EndedAt)
}

func TestRefresh(t *testing.T) {
	t.Run("mints a new access token and keeps the refresh token", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)

		f.clock.Advance(time.Minute)
		pair, err := f.service.Refresh(context.Background(), registered.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, registered.RefreshToken, pair.RefreshToken)
		assert.NotEqual(t, registered.AccessToken, pair.AccessToken)

		claims, err := f.tokens.VerifyAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, claims.UserID)
	})

	t.Run("rejects an access token", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)

		_, err := f.service.Refresh(context.Background(), registered.AccessToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("rejects expired and garbage tokens", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)

		_, err := f.service.Refresh(context.Background(), "garbage")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)

		_, err = f.service.Refresh(context.Background(), "")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)

		f.clock.Advance(8 * 24 * time.Hour)
		_, err = f.service.Refresh(context.Background(), registered.RefreshToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("hides non-active account state behind invalid token", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)
		for i := 0; i < auth.DefaultLockoutThreshold; i++ {
			_, _ = login(f, "alice", wrongPassword)
		}

		_, err := f.service.Refresh(context.Background(), registered.RefreshToken)
		assert.Equal(t, auth.ErrInvalidToken, err)
	})
}

// # Profile & Sanitization

func TestMe(t *testing.T) {
	f := newFixture(t)
	registered := f.registerAlice(t)

	user, err := f.service.Me(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, user.ID)
	assert.False(t, user.MustChangePassword)

	f.clock.Advance(auth.DefaultPasswordLifetime)
	user, err = f.service.Me(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.True(t, user.MustChangePassword)

	_, err = f.service.Me(context.Background(), "missing")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	assert.Equal(t, 404, apperr.As(err).HTTPStatus)
}

// # Password Management

func TestChangePassword(t *testing.T) {
	const newPassword = "Xyz789$abc"

	t.Run("replaces the hash and keeps history", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)
		oldHash := f.accounts.stored(t, registered.User.ID).PasswordHash

		err := f.service.ChangePassword(context.Background(), auth.ChangePasswordInput{
			AccountID:       registered.User.ID,
			CurrentPassword: alicePassword,
			NewPassword:     newPassword,
			ConfirmPassword: newPassword,
		})
		require.NoError(t, err)

		stored := f.accounts.stored(t, registered.User.ID)
		assert.Equal(t, []string{oldHash}, stored.PasswordHistory)
		assert.False(t, stored.MustChangePassword)

		_, err = login(f, "alice", newPassword)
		assert.NoError(t, err)
		_, err = login(f, "alice", alicePassword)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("wrong current password", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)

		err := f.service.ChangePassword(context.Background(), auth.ChangePasswordInput{
			AccountID:       registered.User.ID,
			CurrentPassword: wrongPassword,
			NewPassword:     newPassword,
			ConfirmPassword: newPassword,
		})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("mismatched confirmation and weak password", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)

		err := f.service.ChangePassword(context.Background(), auth.ChangePasswordInput{
			AccountID:       registered.User.ID,
			CurrentPassword: alicePassword,
			NewPassword:     newPassword,
			ConfirmPassword: newPassword + "x",
		})
		assertCode(t, err, "VALIDATION_ERROR")

		err = f.service.ChangePassword(context.Background(), auth.ChangePasswordInput{
			AccountID:       registered.User.ID,
			CurrentPassword: alicePassword,
			NewPassword:     "weakpass",
			ConfirmPassword: "weakpass",
		})
		assertCode(t, err, "VALIDATION_ERROR")
	})

	t.Run("rejects reuse of current and recent passwords", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)

		change := func(current, next string) error {
			return f.service.ChangePassword(context.Background(), auth.ChangePasswordInput{
				AccountID:       registered.User.ID,
				CurrentPassword: current,
				NewPassword:     next,
				ConfirmPassword: next,
			})
		}

		assertCode(t, change(alicePassword, alicePassword), "VALIDATION_ERROR")

		require.NoError(t, change(alicePassword, newPassword))
		assertCode(t, change(newPassword, alicePassword), "VALIDATION_ERROR")
	})

	t.Run("history is bounded", func(t *testing.T) {
		f := newFixture(t, func(policy *auth.Policy) { policy.PasswordHistoryDepth = 2 })
		registered := f.registerAlice(t)

		passwords := []string{alicePassword, "Second2@", "Third3#x", "Fourth4$"}
		for i := 1; i < len(passwords); i++ {
			require.NoError(t, f.service.ChangePassword(context.Background(), auth.ChangePasswordInput{
				AccountID:       registered.User.ID,
				CurrentPassword: passwords[i-1],
				NewPassword:     passwords[i],
				ConfirmPassword: passwords[i],
			}))
		}

		assert.Len(t, f.accounts.stored(t, registered.User.ID).PasswordHistory, 2)

		// The first password fell out of the window.
		assert.NoError(t, f.service.ChangePassword(context.Background(), auth.ChangePasswordInput{
			AccountID:       registered.User.ID,
			CurrentPassword: passwords[3],
			NewPassword:     alicePassword,
			ConfirmPassword: alicePassword,
		}))
	})
}

func TestRequestPasswordReset(t *testing.T) {
	t.Run("known and unknown emails look the same", func(t *testing.T) {
		f := newFixture(t)
		f.registerAlice(t)

		known, err := f.service.RequestPasswordReset(context.Background(), "alice@x.com")
		require.NoError(t, err)
		unknown, err := f.service.RequestPasswordReset(context.Background(), "nobody@x.com")
		require.NoError(t, err)

		assert.Empty(t, known)
		assert.Empty(t, unknown)
		assert.NotEmpty(t, f.notifier.resetFor("alice@x.com"))
	})

	t.Run("exposes the token when configured", func(t *testing.T) {
		f := newFixture(t, func(policy *auth.Policy) { policy.ExposeResetToken = true })
		registered := f.registerAlice(t)

		token, err := f.service.RequestPasswordReset(context.Background(), "ALICE@x.com")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		stored := f.accounts.stored(t, registered.User.ID)
		assert.Equal(t, sec.HashToken(token), stored.ResetTokenHash)
		assert.NotEqual(t, token, stored.ResetTokenHash)
		require.NotNil(t, stored.ResetTokenExpiresAt)
		assert.Equal(t, f.clock.Now().Add(time.Hour), *stored.ResetTokenExpiresAt)
	})

	t.Run("retries once after a concurrent write", func(t *testing.T) {
		f := newFixture(t, func(policy *auth.Policy) { policy.ExposeResetToken = true })
		registered := f.registerAlice(t)
		f.accounts.contendSaves = 1

		token, err := f.service.RequestPasswordReset(context.Background(), "alice@x.com")
		require.NoError(t, err)
		require.NotEmpty(t, token)
		assert.Equal(t, sec.HashToken(token), f.accounts.stored(t, registered.User.ID).ResetTokenHash)
	})

	t.Run("persistent contention still answers like an unknown email", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)
		f.accounts.contendSaves = 2

		known, err := f.service.RequestPasswordReset(context.Background(), "alice@x.com")
		require.NoError(t, err)
		assert.Empty(t, known)
		assert.Empty(t, f.accounts.stored(t, registered.User.ID).ResetTokenHash)
		assert.Empty(t, f.notifier.resetFor("alice@x.com"))
	})

	t.Run("validates the email shape", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.RequestPasswordReset(context.Background(), "nope")
		assertCode(t, err, "VALIDATION_ERROR")
	})
}

func TestResetPassword(t *testing.T) {
	const newPassword = "Reset9^pw"

	requestToken := func(t *testing.T, f *fixture) string {
		t.Helper()
		_, err := f.service.RequestPasswordReset(context.Background(), "alice@x.com")
		require.NoError(t, err)
		token := f.notifier.resetFor("alice@x.com")
		require.NotEmpty(t, token)
		return token
	}

	reset := func(f *fixture, token string) error {
		return f.service.ResetPassword(context.Background(), auth.ResetPasswordInput{
			Token:           token,
			NewPassword:     newPassword,
			ConfirmPassword: newPassword,
		})
	}

	t.Run("is single use", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)
		token := requestToken(t, f)

		require.NoError(t, reset(f, token))

		stored := f.accounts.stored(t, registered.User.ID)
		assert.Empty(t, stored.ResetTokenHash)
		assert.Nil(t, stored.ResetTokenExpiresAt)
		assert.False(t, stored.MustChangePassword)

		_, err := login(f, "alice", newPassword)
		assert.NoError(t, err)

		assert.ErrorIs(t, reset(f, token), auth.ErrInvalidOrExpiredToken)
	})

	t.Run("expired token is rejected and cleared", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)
		token := requestToken(t, f)

		f.clock.Advance(time.Hour)
		assert.ErrorIs(t, reset(f, token), auth.ErrInvalidOrExpiredToken)

		stored := f.accounts.stored(t, registered.User.ID)
		assert.Empty(t, stored.ResetTokenHash)
		assert.True(t, f.hasher.Verify(alicePassword, stored.PasswordHash))
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newFixture(t)
		f.registerAlice(t)
		err := reset(f, "not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
		assert.Equal(t, 400, apperr.As(err).HTTPStatus)
	})

	t.Run("weak password leaves the token redeemable", func(t *testing.T) {
		f := newFixture(t)
		f.registerAlice(t)
		token := requestToken(t, f)

		err := f.service.ResetPassword(context.Background(), auth.ResetPasswordInput{
			Token:           token,
			NewPassword:     "short",
			ConfirmPassword: "short",
		})
		assertCode(t, err, "VALIDATION_ERROR")

		assert.NoError(t, reset(f, token))
	})
}

// # Email Verification

func TestVerifyEmail(t *testing.T) {
	t.Run("marks the account verified once", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)
		token := f.notifier.verificationFor("alice@x.com")

		require.NoError(t, f.service.VerifyEmail(context.Background(), token))

		stored := f.accounts.stored(t, registered.User.ID)
		assert.True(t, stored.IsVerified)
		assert.Empty(t, stored.VerificationTokenHash)

		assert.ErrorIs(t, f.service.VerifyEmail(context.Background(), token), auth.ErrInvalidOrExpiredToken)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t)
		registered := f.registerAlice(t)
		token := f.notifier.verificationFor("alice@x.com")

		f.clock.Advance(auth.DefaultVerificationTokenTTL)
		assert.ErrorIs(t, f.service.VerifyEmail(context.Background(), token), auth.ErrInvalidOrExpiredToken)
		assert.False(t, f.accounts.stored(t, registered.User.ID).IsVerified)
	})

	t.Run("resend issues a new token", func(t *testing.T) {
		f := newFixture(t)
		f.registerAlice(t)
		first := f.notifier.verificationFor("alice@x.com")

		require.NoError(t, f.service.ResendVerification(context.Background(), "alice@x.com"))
		second := f.notifier.verificationFor("alice@x.com")
		assert.NotEqual(t, first, second)

		assert.ErrorIs(t, f.service.VerifyEmail(context.Background(), first), auth.ErrInvalidOrExpiredToken)
		assert.NoError(t, f.service.VerifyEmail(context.Background(), second))

		assert.NoError(t, f.service.ResendVerification(context.Background(), "nobody@x.com"))
	})
}

// # Administration

func TestUnlock(t *testing.T) {
	f := newFixture(t)
	registered := f.registerAlice(t)
	for i := 0; i < auth.DefaultLockoutThreshold; i++ {
		_, _ = login(f, "alice", wrongPassword)
	}

	user, err := f.service.Unlock(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusActive, user.Status)

	_, err = login(f, "alice", alicePassword)
	assert.NoError(t, err)
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	registered := f.registerAlice(t)

	_, err := f.service.SetStatus(context.Background(), registered.User.ID, auth.StatusLocked)
	assertCode(t, err, "VALIDATION_ERROR")

	_, err = f.service.SetStatus(context.Background(), registered.User.ID, "deleted")
	assertCode(t, err, "VALIDATION_ERROR")

	user, err := f.service.SetStatus(context.Background(), registered.User.ID, auth.StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusSuspended, user.Status)

	user, err = f.service.SetStatus(context.Background(), registered.User.ID, auth.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusActive, user.Status)
}

func TestStaleSaveSurfaces(t *testing.T) {
	f := newFixture(t)
	registered := f.registerAlice(t)

	stale := f.accounts.stored(t, registered.User.ID)
	require.NoError(t, f.accounts.Save(context.Background(), f.accounts.stored(t, registered.User.ID)))

	err := f.accounts.Save(context.Background(), stale)
	assert.True(t, errors.Is(err, auth.ErrStaleAccount))
	assert.Equal(t, 409, apperr.As(err).HTTPStatus)
}
