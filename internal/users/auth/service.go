// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/counsel/internal/platform/ctxutil"
	"github.com/taibuivan/counsel/internal/platform/sec"
	"github.com/taibuivan/counsel/pkg/normalize"
	"github.com/taibuivan/counsel/pkg/uuid"
)

// # Contracts & Types

// PasswordHasher is the one-way hashing contract; [sec.PasswordHasher] satisfies it.
type PasswordHasher interface {
	Hash(plainTextPassword string) (string, error)
	Verify(plainTextPassword, existingHash string) bool
	Equalize(plainTextPassword string)
}

// TokenIssuer mints and checks bearer tokens; [sec.TokenService] satisfies it.
type TokenIssuer interface {
	IssueAccessToken(subject sec.Subject) (string, error)
	IssueRefreshToken(userID string) (string, error)
	VerifyRefreshToken(tokenString string) (*sec.RefreshClaims, error)
	RefreshTTL() time.Duration
}

// Policy is the explicit configuration injected into the [Service].
type Policy struct {
	Lockout              LockoutPolicy
	ResetTokenTTL        time.Duration
	VerificationTokenTTL time.Duration
	PasswordLifetime     time.Duration
	PasswordHistoryDepth int

	// ExposeResetToken returns the reset token from RequestPasswordReset.
	// Never set in production.
	ExposeResetToken bool

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		Lockout:              LockoutPolicy{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration},
		ResetTokenTTL:        DefaultResetTokenTTL,
		VerificationTokenTTL: DefaultVerificationTokenTTL,
		PasswordLifetime:     DefaultPasswordLifetime,
		PasswordHistoryDepth: DefaultPasswordHistoryDepth,
	}
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User         *User  `json:"user"`
	SessionID    string `json:"sessionId,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenPair is returned by Refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service implements the account authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, lockout,
// or token logic must be reviewed by the security team.
type Service struct {
	accounts AccountRepository
	sessions SessionRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier Notifier
	policy   Policy
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	accounts AccountRepository,
	sessions SessionRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	notifier Notifier,
	policy Policy,
) *Service {
	if policy.Now == nil {
		policy.Now = time.Now
	}
	if policy.Lockout.Threshold < 1 {
		policy.Lockout.Threshold = DefaultLockoutThreshold
	}
	if policy.Lockout.Duration <= 0 {
		policy.Lockout.Duration = DefaultLockoutDuration
	}
	if policy.ResetTokenTTL <= 0 {
		policy.ResetTokenTTL = DefaultResetTokenTTL
	}
	if policy.VerificationTokenTTL <= 0 {
		policy.VerificationTokenTTL = DefaultVerificationTokenTTL
	}

	return &Service{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		policy:   policy,
	}
}

// # Registration Flow

/*
Register validates, hashes, and persists a brand new account, then signs it in.

Description: Username is checked before email. The pre-checks give the
common case a precise error; the unique indexes catch the race between them
and the insert. Tokens are issued straight away, verification is not a gate.

Parameters:
  - ctx: context.Context
  - input: RegisterInput

Returns:
  - *AuthResult: Sanitized user and a token pair (no session)
  - error: ValidationError, ErrDuplicateUsername, ErrDuplicateEmail or storage errors
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	username := normalize.Identifier(input.Username)
	email := normalize.Identifier(input.Email)

	// Verify username uniqueness first, then email
	if err := service.ensureAbsent(service.accounts.FindByUsername(ctx, username)); err != nil {
		if errors.Is(err, errTaken) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	if err := service.ensureAbsent(service.accounts.FindByEmail(ctx, email)); err != nil {
		if errors.Is(err, errTaken) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	passwordHash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	now := service.policy.Now()

	account := &Account{
		ID:          uuid.New(),
		Username:    username,
		Email:       email,
		Profile:     input.Profile,
		Roles:       []string{sec.RoleUser},
		Permissions: []string{},
		Status:      StatusActive,
		CreatedAt:   now,
	}
	account.SetPassword(passwordHash, now, service.policy.PasswordLifetime, 0)

	verificationToken, err := sec.GenerateSecureToken(VerificationTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_failed: %w", err)
	}
	account.IssueVerificationToken(sec.HashToken(verificationToken), now.Add(service.policy.VerificationTokenTTL))

	if err := service.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	logger := ctxutil.GetLogger(ctx)
	logger.InfoContext(ctx, "auth_account_registered", slog.String("account_id", account.ID))

	// Delivery failures never undo a registration; the user can ask for a resend.
	if err := service.notifier.SendVerification(ctx, account, verificationToken); err != nil {
		logger.WarnContext(ctx, "auth_verification_dispatch_failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}

	accessToken, refreshToken, err := service.issueTokens(account)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         account.Sanitize(now),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// # Authentication Flow

/*
Login verifies credentials under the lockout policy and opens a session.

Description: The decision order is fixed. Lookup, then the lock gate (an
active lock rejects without hashing), then release of an elapsed lock, then
the status gate, then password verification. A failure that reaches the
threshold answers ErrAccountLocked straight away.

Parameters:
  - ctx: context.Context
  - input: LoginInput

Returns:
  - *AuthResult: Sanitized user, session id and a token pair
  - error: ValidationError, ErrInvalidCredentials, ErrAccountLocked,
    ErrAccountNotActive or storage errors
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	logger := ctxutil.GetLogger(ctx)

	account, err := service.lookup(ctx, input)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Same cost as a wrong password, so timing does not reveal the miss.
			service.hasher.Equalize(input.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := service.policy.Now()

	switch service.policy.Lockout.Gate(account, now) {
	case LockActive:
		logger.WarnContext(ctx, "auth_login_locked",
			slog.String("account_id", account.ID),
			slog.Duration("remaining", account.LockRemaining(now)),
		)
		return nil, lockedError(account, now)

	case LockExpired:
		account, err = service.accounts.ReleaseExpiredLock(ctx, account.ID, now)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "auth_lock_released", slog.String("account_id", account.ID))
		if account.IsLocked(now) {
			return nil, lockedError(account, now)
		}
	}

	if !account.CanLogin() {
		logger.WarnContext(ctx, "auth_login_inactive",
			slog.String("account_id", account.ID),
			slog.String("status", string(account.Status)),
		)
		return nil, ErrAccountNotActive
	}

	// IP lists are advisory only
	if reason := account.IPAdvisory(input.IPAddress); reason != "" {
		logger.WarnContext(ctx, "auth_login_ip_advisory",
			slog.String("account_id", account.ID),
			slog.String("ip", input.IPAddress),
			slog.String("reason", reason),
		)
	}

	if !service.hasher.Verify(input.Password, account.PasswordHash) {
		updated, err := service.accounts.RecordFailedLogin(ctx, account.ID, service.policy.Lockout, now)
		if err != nil {
			return nil, err
		}

		if updated.IsLocked(now) {
			logger.WarnContext(ctx, "auth_account_locked",
				slog.String("account_id", updated.ID),
				slog.Int("failed_logins", updated.FailedLogins),
				slog.Time("lock_ends_at", *updated.LockEndsAt),
			)
			return nil, lockedError(updated, now)
		}

		logger.InfoContext(ctx, "auth_login_failed",
			slog.String("account_id", updated.ID),
			slog.Int("failed_logins", updated.FailedLogins),
		)
		return nil, ErrInvalidCredentials
	}

	account, err = service.accounts.RecordSuccessfulLogin(ctx, account.ID, now)
	if err != nil {
		return nil, err
	}

	// A concurrent failure locked the account after our gate.
	if account.IsLocked(now) {
		return nil, lockedError(account, now)
	}

	session := &Session{
		ID:        uuid.New(),
		AccountID: account.ID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		CreatedAt: now,
	}
	if err := service.sessions.Create(ctx, session, service.tokens.RefreshTTL()); err != nil {
		return nil, err
	}

	accessToken, refreshToken, err := service.issueTokens(account)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "auth_login_succeeded",
		slog.String("account_id", account.ID),
		slog.String("session_id", session.ID),
	)

	return &AuthResult{
		User:         account.Sanitize(now),
		SessionID:    session.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

/*
Logout ends the named session of the authenticated account.

Description: Idempotent. An empty, unknown, already-ended or foreign
session id is not an error.

Parameters:
  - ctx: context.Context
  - accountID: string (from the verified access token)
  - sessionID: string

Returns:
  - error: Storage errors only
*/
func (service *Service) Logout(ctx context.Context, accountID, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	session, err := service.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}

	if session.AccountID != accountID {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "auth_logout_foreign_session",
			slog.String("account_id", accountID),
			slog.String("session_id", sessionID),
		)
		return nil
	}

	if err := service.sessions.End(ctx, sessionID, service.policy.Now()); err != nil {
		return err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_logout",
		slog.String("account_id", accountID),
		slog.String("session_id", sessionID),
	)
	return nil
}

/*
Refresh mints a new access token from a refresh token.

Description: The refresh token is returned unchanged. Every failure,
including an account that is no longer Active, is reported as ErrInvalidToken.

Parameters:
  - ctx: context.Context
  - refreshToken: string

Returns:
  - *TokenPair: New access token and the same refresh token
  - error: ErrInvalidToken or storage errors
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}

	claims, err := service.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	account, err := service.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if account.Status != StatusActive {
		return nil, ErrInvalidToken
	}

	accessToken, err := service.tokens.IssueAccessToken(subjectOf(account))
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// # Profile

// Me returns the sanitized profile of accountID, or [ErrAccountNotFound].
func (service *Service) Me(ctx context.Context, accountID string) (*User, error) {
	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account.Sanitize(service.policy.Now()), nil
}

// # Password Management

/*
ChangePassword replaces the password of an authenticated account.

Parameters:
  - ctx: context.Context
  - input: ChangePasswordInput

Returns:
  - error: ValidationError, ErrInvalidCredentials (wrong current password),
    ErrAccountNotFound, ErrStaleAccount or storage errors
*/
func (service *Service) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	account, err := service.accounts.FindByID(ctx, input.AccountID)
	if err != nil {
		return err
	}

	if !service.hasher.Verify(input.CurrentPassword, account.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := service.replacePassword(account, input.NewPassword); err != nil {
		return err
	}

	if err := service.accounts.Save(ctx, account); err != nil {
		return err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_password_changed", slog.String("account_id", account.ID))
	return nil
}

/*
RequestPasswordReset issues a reset token for the account owning email.

Description: The outcome is the same whether or not the email is known.
The plaintext token is returned only when the policy exposes it; otherwise
it leaves the service through the Notifier alone.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - string: The reset token when exposed, "" otherwise
  - error: ValidationError or storage errors (never a write conflict)
*/
func (service *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if err := validateEmail(email); err != nil {
		return "", err
	}

	logger := ctxutil.GetLogger(ctx)

	account, err := service.accounts.FindByEmail(ctx, normalize.Identifier(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			logger.DebugContext(ctx, "auth_password_reset_unknown_email")
			return "", nil
		}
		return "", err
	}

	token, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return "", fmt.Errorf("auth_service_token_failed: %w", err)
	}

	account, err = service.storeResetToken(ctx, account, sec.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrStaleAccount) {
			// Known and unknown emails must answer alike; the user can simply retry.
			logger.WarnContext(ctx, "auth_password_reset_contended", slog.String("account_id", account.ID))
			return "", nil
		}
		return "", err
	}

	logger.InfoContext(ctx, "auth_password_reset_requested", slog.String("account_id", account.ID))

	if err := service.notifier.SendPasswordReset(ctx, account, token); err != nil {
		logger.WarnContext(ctx, "auth_password_reset_dispatch_failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}

	if service.policy.ExposeResetToken {
		return token, nil
	}
	return "", nil
}

/*
ResetPassword redeems a reset token for a new password.

Description: The token is single use. An expired token is cleared before the
rejection so it can never be redeemed later; a lost write race is reported
as an invalid token because the winner consumed it.

Parameters:
  - ctx: context.Context
  - input: ResetPasswordInput

Returns:
  - error: ValidationError, ErrInvalidOrExpiredToken or storage errors
*/
func (service *Service) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	account, err := service.accounts.FindByResetToken(ctx, sec.HashToken(input.Token))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	now := service.policy.Now()

	if !account.ResetTokenValid(now) {
		account.ClearResetToken()
		if err := service.accounts.Save(ctx, account); err != nil && !errors.Is(err, ErrStaleAccount) {
			return err
		}
		return ErrInvalidOrExpiredToken
	}

	if err := service.replacePassword(account, input.NewPassword); err != nil {
		return err
	}
	account.ClearResetToken()

	if err := service.accounts.Save(ctx, account); err != nil {
		if errors.Is(err, ErrStaleAccount) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_password_reset_completed", slog.String("account_id", account.ID))
	return nil
}

// # Email Verification

/*
VerifyEmail redeems a verification token.

Parameters:
  - ctx: context.Context
  - token: string

Returns:
  - error: ErrInvalidOrExpiredToken or storage errors
*/
func (service *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	account, err := service.accounts.FindByVerificationToken(ctx, sec.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	if !account.VerificationTokenValid(service.policy.Now()) {
		account.ClearVerificationToken()
		if err := service.accounts.Save(ctx, account); err != nil && !errors.Is(err, ErrStaleAccount) {
			return err
		}
		return ErrInvalidOrExpiredToken
	}

	account.IsVerified = true
	account.ClearVerificationToken()

	if err := service.accounts.Save(ctx, account); err != nil {
		if errors.Is(err, ErrStaleAccount) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_email_verified", slog.String("account_id", account.ID))
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account. Unknown and already-verified emails succeed silently.
func (service *Service) ResendVerification(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	account, err := service.accounts.FindByEmail(ctx, normalize.Identifier(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}

	if account.IsVerified {
		return nil
	}

	token, err := sec.GenerateSecureToken(VerificationTokenLength)
	if err != nil {
		return fmt.Errorf("auth_service_token_failed: %w", err)
	}
	account.IssueVerificationToken(sec.HashToken(token), service.policy.Now().Add(service.policy.VerificationTokenTTL))

	if err := service.accounts.Save(ctx, account); err != nil {
		return err
	}

	if err := service.notifier.SendVerification(ctx, account, token); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "auth_verification_dispatch_failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}
	return nil
}

// # Administration

/*
SetStatus moves an account to Active, Inactive or Suspended.

Description: Deactivation is a status change, never a delete. Activating
also clears any lockout state.

Parameters:
  - ctx: context.Context
  - accountID: string
  - status: Status

Returns:
  - *User: The updated, sanitized account
  - error: ValidationError, ErrAccountNotFound, ErrStaleAccount or storage errors
*/
func (service *Service) SetStatus(ctx context.Context, accountID string, status Status) (*User, error) {
	if err := validateStatus(status); err != nil {
		return nil, err
	}

	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	previous := account.Status
	account.ReleaseLock()
	account.Status = status

	if err := service.accounts.Save(ctx, account); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_account_status_changed",
		slog.String("account_id", account.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(status)),
	)
	return account.Sanitize(service.policy.Now()), nil
}

// Unlock lifts a lockout ahead of its expiry and resets the failure counter.
func (service *Service) Unlock(ctx context.Context, accountID string) (*User, error) {
	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	account.ReleaseLock()

	if err := service.accounts.Save(ctx, account); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_account_unlocked", slog.String("account_id", account.ID))
	return account.Sanitize(service.policy.Now()), nil
}

// # Helpers

// errTaken marks a uniqueness pre-check that found an existing account.
var errTaken = errors.New("auth: identifier taken")

// ensureAbsent turns a lookup result into nil (free), errTaken, or the storage error.
func (service *Service) ensureAbsent(_ *Account, err error) error {
	if err == nil {
		return errTaken
	}
	if errors.Is(err, ErrAccountNotFound) {
		return nil
	}
	return err
}

// lookup resolves the login identifier.
func (service *Service) lookup(ctx context.Context, input LoginInput) (*Account, error) {
	if input.Username != "" {
		return service.accounts.FindByUsername(ctx, normalize.Identifier(input.Username))
	}
	return service.accounts.FindByEmail(ctx, normalize.Identifier(input.Email))
}

// replacePassword rejects reuse of the current or a retained hash, then installs the new one.
func (service *Service) replacePassword(account *Account, newPassword string) error {
	if service.hasher.Verify(newPassword, account.PasswordHash) {
		return passwordReusedError()
	}
	for _, previous := range account.PasswordHistory {
		if service.hasher.Verify(newPassword, previous) {
			return passwordReusedError()
		}
	}

	passwordHash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	account.SetPassword(passwordHash, service.policy.Now(), service.policy.PasswordLifetime, service.policy.PasswordHistoryDepth)
	return nil
}

// storeResetToken saves the token digest, re-reading and retrying once when a
// concurrent write (a failed login, say) moved the version on.
func (service *Service) storeResetToken(ctx context.Context, account *Account, tokenHash string) (*Account, error) {
	for attempt := 0; ; attempt++ {
		account.IssueResetToken(tokenHash, service.policy.Now().Add(service.policy.ResetTokenTTL))

		err := service.accounts.Save(ctx, account)
		if err == nil || !errors.Is(err, ErrStaleAccount) || attempt > 0 {
			return account, err
		}

		fresh, findErr := service.accounts.FindByID(ctx, account.ID)
		if findErr != nil {
			return account, findErr
		}
		account = fresh
	}
}

// issueTokens mints the access/refresh pair for account.
func (service *Service) issueTokens(account *Account) (string, string, error) {
	accessToken, err := service.tokens.IssueAccessToken(subjectOf(account))
	if err != nil {
		return "", "", fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	refreshToken, err := service.tokens.IssueRefreshToken(account.ID)
	if err != nil {
		return "", "", fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	return accessToken, refreshToken, nil
}

func subjectOf(account *Account) sec.Subject {
	return sec.Subject{
		ID:          account.ID,
		Username:    account.Username,
		Email:       account.Email,
		Roles:       account.Roles,
		Permissions: account.Permissions,
	}
}
