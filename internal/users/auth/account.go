// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements account authentication and the session lifecycle.

It defines the Account entity, the lockout state machine, the repository
contracts, and the [Service] that orchestrates register, login, logout,
refresh, password change and recovery, and email verification.

# Architecture

  - Entities (this file): Account carries every stored field; User is the
    sanitized view that is allowed to leave the service.
  - Service: pure use cases over the repository, hasher and token interfaces.
  - Handler: a thin chi adapter mapping use cases to JSON and status codes.
*/
package auth

import (
	"slices"
	"time"

	"github.com/taibuivan/counsel/pkg/normalize"
)

// # Lifecycle Status

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusLocked    Status = "locked"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusLocked, StatusSuspended:
		return true
	}
	return false
}

// # Domain Entities

// Profile holds the optional personal fields captured at registration.
type Profile struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	JobTitle    string `json:"jobTitle,omitempty"`
	Department  string `json:"department,omitempty"`
}

// Account is the persisted authenticatable identity.
//
// It is never serialized directly; handlers only ever see [User].
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string

	Profile

	Roles       []string
	Permissions []string
	Status      Status
	IsVerified  bool

	FailedLogins int
	LockEndsAt   *time.Time

	PasswordExpiresAt  *time.Time
	PasswordHistory    []string
	MustChangePassword bool

	ResetTokenHash             string
	ResetTokenExpiresAt        *time.Time
	VerificationTokenHash      string
	VerificationTokenExpiresAt *time.Time

	MFAEnabled     bool
	MFASecret      string
	MFABackupCodes []string

	AllowedIPs []string
	BlockedIPs []string

	LastLoginAt *time.Time
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is the sanitized account view returned by every endpoint.
//
// Password hash, password history, MFA material and one-time tokens have no
// field here, so they cannot be serialized by accident.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`

	Profile

	Roles              []string   `json:"roles"`
	Permissions        []string   `json:"permissions"`
	Status             Status     `json:"status"`
	IsVerified         bool       `json:"isVerified"`
	MFAEnabled         bool       `json:"mfaEnabled"`
	MustChangePassword bool       `json:"mustChangePassword"`
	PasswordExpiresAt  *time.Time `json:"passwordExpiresAt,omitempty"`
	LastLoginAt        *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Sanitize returns the client-safe view of the account as of now.
func (account *Account) Sanitize(now time.Time) *User {
	return &User{
		ID:                 account.ID,
		Username:           account.Username,
		Email:              account.Email,
		Profile:            account.Profile,
		Roles:              nonNil(account.Roles),
		Permissions:        nonNil(account.Permissions),
		Status:             account.Status,
		IsVerified:         account.IsVerified,
		MFAEnabled:         account.MFAEnabled,
		MustChangePassword: account.MustChangePassword || account.PasswordExpired(now),
		PasswordExpiresAt:  account.PasswordExpiresAt,
		LastLoginAt:        account.LastLoginAt,
		CreatedAt:          account.CreatedAt,
		UpdatedAt:          account.UpdatedAt,
	}
}

// # State Queries

// CanLogin reports whether the status admits a login attempt at all.
// Locked is admissible here; the lock gate decides separately.
func (account *Account) CanLogin() bool {
	return account.Status == StatusActive || account.Status == StatusLocked
}

// PasswordExpired reports whether the password lifetime has elapsed.
func (account *Account) PasswordExpired(now time.Time) bool {
	return account.PasswordExpiresAt != nil && !account.PasswordExpiresAt.After(now)
}

// ResetTokenValid reports whether a stored reset token is still redeemable.
func (account *Account) ResetTokenValid(now time.Time) bool {
	return account.ResetTokenHash != "" && account.ResetTokenExpiresAt != nil && account.ResetTokenExpiresAt.After(now)
}

// VerificationTokenValid reports whether a stored verification token is still redeemable.
func (account *Account) VerificationTokenValid(now time.Time) bool {
	return account.VerificationTokenHash != "" && account.VerificationTokenExpiresAt != nil && account.VerificationTokenExpiresAt.After(now)
}

// IPAdvisory returns a non-empty reason when ip violates the account's IP lists.
// The lists are advisory: callers log the reason and carry on.
func (account *Account) IPAdvisory(ip string) string {
	ip = normalize.IP(ip)
	if ip == "" {
		return ""
	}
	if slices.ContainsFunc(account.BlockedIPs, func(blocked string) bool { return normalize.IP(blocked) == ip }) {
		return "ip_blocked"
	}
	if len(account.AllowedIPs) > 0 && !slices.ContainsFunc(account.AllowedIPs, func(allowed string) bool { return normalize.IP(allowed) == ip }) {
		return "ip_not_allowed"
	}
	return ""
}

// # Mutations

// SetPassword installs a new hash, pushing the old one onto the bounded history.
func (account *Account) SetPassword(newHash string, now time.Time, lifetime time.Duration, historyDepth int) {
	if account.PasswordHash != "" && historyDepth > 0 {
		history := append([]string{account.PasswordHash}, account.PasswordHistory...)
		if len(history) > historyDepth {
			history = history[:historyDepth]
		}
		account.PasswordHistory = history
	}

	account.PasswordHash = newHash
	account.MustChangePassword = false

	if lifetime > 0 {
		expiresAt := now.Add(lifetime)
		account.PasswordExpiresAt = &expiresAt
	}
}

// IssueResetToken stores the digest of a freshly generated reset token.
func (account *Account) IssueResetToken(tokenHash string, expiresAt time.Time) {
	account.ResetTokenHash = tokenHash
	account.ResetTokenExpiresAt = &expiresAt
}

// ClearResetToken forgets the reset token so it can never be redeemed again.
func (account *Account) ClearResetToken() {
	account.ResetTokenHash = ""
	account.ResetTokenExpiresAt = nil
}

// IssueVerificationToken stores the digest of a freshly generated verification token.
func (account *Account) IssueVerificationToken(tokenHash string, expiresAt time.Time) {
	account.VerificationTokenHash = tokenHash
	account.VerificationTokenExpiresAt = &expiresAt
}

// ClearVerificationToken forgets the verification token.
func (account *Account) ClearVerificationToken() {
	account.VerificationTokenHash = ""
	account.VerificationTokenExpiresAt = nil
}

// nonNil keeps JSON arrays as [] rather than null.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
