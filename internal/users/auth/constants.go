// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Authentication Constraints

const (
	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32

	// VerificationTokenLength is the byte length of the random verification token.
	VerificationTokenLength = 32

	// DefaultResetTokenTTL is how long a password reset token stays redeemable.
	DefaultResetTokenTTL = 1 * time.Hour

	// DefaultVerificationTokenTTL gives users a day to open the verification mail.
	DefaultVerificationTokenTTL = 24 * time.Hour

	// DefaultPasswordLifetime is how long a password stays valid before the
	// profile reports mustChangePassword.
	DefaultPasswordLifetime = 90 * 24 * time.Hour

	// DefaultPasswordHistoryDepth is how many previous hashes are kept for reuse checks.
	DefaultPasswordHistoryDepth = 5

	// DefaultLockoutThreshold is the number of consecutive failures that locks an account.
	DefaultLockoutThreshold = 5

	// DefaultLockoutDuration is how long a lock lasts once applied.
	DefaultLockoutDuration = 15 * time.Minute
)

// # Input Limits

const (
	UsernameMinLength = 3
	UsernameMaxLength = 50
	EmailMaxLength    = 254
	ProfileMaxLength  = 100
)

// # Field Identifiers

// JSON field names used in requests, responses and validation details.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldPhoneNumber     = "phoneNumber"
	FieldJobTitle        = "jobTitle"
	FieldDepartment      = "department"
	FieldCurrentPassword = "currentPassword"
	FieldNewPassword     = "newPassword"
	FieldConfirmPassword = "confirmPassword"
	FieldToken           = "token"
	FieldRefreshToken    = "refreshToken"
	FieldSessionID       = "sessionId"
	FieldStatus          = "status"
	FieldAccountID       = "id"
)
