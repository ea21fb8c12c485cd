// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/counsel/internal/platform/sec"
	"github.com/taibuivan/counsel/internal/users/auth"
)

// # Clock

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(d)
}

// # Account Store

// memoryAccounts is an in-memory AccountRepository with the same
// case-insensitive uniqueness and version guard as the Postgres one.
type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]*auth.Account

	// failNext, when set, is returned by the next call instead of running it.
	failNext error

	// contendSaves makes that many upcoming Saves lose to a concurrent write.
	contendSaves int
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{accounts: map[string]*auth.Account{}}
}

func cloneAccount(account *auth.Account) *auth.Account {
	copied := *account
	copied.Roles = slices.Clone(account.Roles)
	copied.Permissions = slices.Clone(account.Permissions)
	copied.PasswordHistory = slices.Clone(account.PasswordHistory)
	copied.MFABackupCodes = slices.Clone(account.MFABackupCodes)
	copied.AllowedIPs = slices.Clone(account.AllowedIPs)
	copied.BlockedIPs = slices.Clone(account.BlockedIPs)
	return &copied
}

func (store *memoryAccounts) takeFailure() error {
	err := store.failNext
	store.failNext = nil
	return err
}

func (store *memoryAccounts) find(match func(*auth.Account) bool) (*auth.Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.takeFailure(); err != nil {
		return nil, err
	}
	for _, account := range store.accounts {
		if match(account) {
			return cloneAccount(account), nil
		}
	}
	return nil, auth.ErrAccountNotFound
}

func (store *memoryAccounts) FindByID(_ context.Context, id string) (*auth.Account, error) {
	return store.find(func(a *auth.Account) bool { return a.ID == id })
}

func (store *memoryAccounts) FindByUsername(_ context.Context, username string) (*auth.Account, error) {
	return store.find(func(a *auth.Account) bool { return strings.EqualFold(a.Username, username) })
}

func (store *memoryAccounts) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	return store.find(func(a *auth.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (store *memoryAccounts) FindByResetToken(_ context.Context, tokenHash string) (*auth.Account, error) {
	return store.find(func(a *auth.Account) bool { return tokenHash != "" && a.ResetTokenHash == tokenHash })
}

func (store *memoryAccounts) FindByVerificationToken(_ context.Context, tokenHash string) (*auth.Account, error) {
	return store.find(func(a *auth.Account) bool { return tokenHash != "" && a.VerificationTokenHash == tokenHash })
}

func (store *memoryAccounts) Create(_ context.Context, account *auth.Account) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.takeFailure(); err != nil {
		return err
	}
	for _, existing := range store.accounts {
		if strings.EqualFold(existing.Username, account.Username) {
			return auth.ErrDuplicateUsername
		}
		if strings.EqualFold(existing.Email, account.Email) {
			return auth.ErrDuplicateEmail
		}
	}
	account.Version = 1
	account.UpdatedAt = account.CreatedAt
	store.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (store *memoryAccounts) Save(_ context.Context, account *auth.Account) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.takeFailure(); err != nil {
		return err
	}
	existing, ok := store.accounts[account.ID]
	if ok && store.contendSaves > 0 {
		store.contendSaves--
		existing.Version++
	}
	if !ok || existing.Version != account.Version {
		return auth.ErrStaleAccount
	}
	account.Version++
	store.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (store *memoryAccounts) update(id string, mutate func(*auth.Account)) (*auth.Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.takeFailure(); err != nil {
		return nil, err
	}
	account, ok := store.accounts[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	mutate(account)
	return cloneAccount(account), nil
}

func (store *memoryAccounts) RecordFailedLogin(_ context.Context, id string, policy auth.LockoutPolicy, at time.Time) (*auth.Account, error) {
	return store.update(id, func(account *auth.Account) {
		account.FailedLogins++
		if account.FailedLogins >= policy.Threshold {
			lockEndsAt := at.Add(policy.Duration)
			account.Status = auth.StatusLocked
			account.LockEndsAt = &lockEndsAt
		}
		account.Version++
	})
}

func (store *memoryAccounts) RecordSuccessfulLogin(_ context.Context, id string, at time.Time) (*auth.Account, error) {
	return store.update(id, func(account *auth.Account) {
		if account.IsLocked(at) {
			return
		}
		account.ReleaseLock()
		account.LastLoginAt = &at
		account.Version++
	})
}

func (store *memoryAccounts) ReleaseExpiredLock(_ context.Context, id string, at time.Time) (*auth.Account, error) {
	return store.update(id, func(account *auth.Account) {
		if account.Status == auth.StatusLocked && !account.IsLocked(at) {
			account.ReleaseLock()
			account.Version++
		}
	})
}

// stored returns the current persisted copy, failing the test if absent.
func (store *memoryAccounts) stored(t *testing.T, id string) *auth.Account {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[id]
	require.True(t, ok, "account %s not stored", id)
	return cloneAccount(account)
}

// # Session Store

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session
	ttls     map[string]time.Duration
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]*auth.Session{}, ttls: map[string]time.Duration{}}
}

func (store *memorySessions) Create(_ context.Context, session *auth.Session, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	copied := *session
	store.sessions[session.ID] = &copied
	store.ttls[session.ID] = ttl
	return nil
}

func (store *memorySessions) FindByID(_ context.Context, id string) (*auth.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	session, ok := store.sessions[id]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (store *memorySessions) End(_ context.Context, id string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if session, ok := store.sessions[id]; ok && session.EndedAt == nil {
		session.EndedAt = &at
	}
	return nil
}

// # Hasher

// countingHasher records how many verifications reached bcrypt.
type countingHasher struct {
	*sec.PasswordHasher
	verifications atomic.Int32
}

func (hasher *countingHasher) Verify(plainTextPassword, existingHash string) bool {
	hasher.verifications.Add(1)
	return hasher.PasswordHasher.Verify(plainTextPassword, existingHash)
}

// # Notifier

type recordingNotifier struct {
	mu            sync.Mutex
	verifications map[string]string
	resets        map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{verifications: map[string]string{}, resets: map[string]string{}}
}

func (notifier *recordingNotifier) SendVerification(_ context.Context, account *auth.Account, token string) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.verifications[account.Email] = token
	return nil
}

func (notifier *recordingNotifier) SendPasswordReset(_ context.Context, account *auth.Account, token string) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.resets[account.Email] = token
	return nil
}

func (notifier *recordingNotifier) verificationFor(email string) string {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return notifier.verifications[email]
}

func (notifier *recordingNotifier) resetFor(email string) string {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return notifier.resets[email]
}

// # Fixture

type fixture struct {
	service  *auth.Service
	accounts *memoryAccounts
	sessions *memorySessions
	hasher   *countingHasher
	tokens   *sec.TokenService
	notifier *recordingNotifier
	clock    *fakeClock
}

func newFixture(t *testing.T, tweak ...func(*auth.Policy)) *fixture {
	t.Helper()

	clock := newFakeClock()

	bcryptHasher, err := sec.NewPasswordHasher(4)
	require.NoError(t, err)

	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "counsel.test",
		Now:           clock.Now,
	})
	require.NoError(t, err)

	policy := auth.DefaultPolicy()
	policy.Now = clock.Now
	for _, apply := range tweak {
		apply(&policy)
	}

	f := &fixture{
		accounts: newMemoryAccounts(),
		sessions: newMemorySessions(),
		hasher:   &countingHasher{PasswordHasher: bcryptHasher},
		tokens:   tokens,
		notifier: newRecordingNotifier(),
		clock:    clock,
	}
	f.service = auth.NewService(f.accounts, f.sessions, f.hasher, f.tokens, f.notifier, policy)
	return f
}

const (
	alicePassword = "Abcdef1!"
	wrongPassword = "Wrong-pass1"
)

// registerAlice creates the account used across the scenarios.
func (f *fixture) registerAlice(t *testing.T) *auth.AuthResult {
	t.Helper()
	result, err := f.service.Register(context.Background(), auth.RegisterInput{
		Username: "alice",
		Email:    "alice@x.com",
		Password: alicePassword,
	})
	require.NoError(t, err)
	return result
}
