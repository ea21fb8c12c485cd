// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"strings"

	"github.com/taibuivan/counsel/internal/platform/validate"
)

// # Operation Inputs
//
// Every use case takes one typed input and validates it before touching a
// store. Validate returns a VALIDATION_ERROR [apperr.AppError] carrying one
// detail per broken rule, or nil.

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Profile
}

// Validate checks lengths, email format and password complexity.
func (input RegisterInput) Validate() error {
	validator := &validate.Validator{}

	validator.Required(FieldUsername, input.Username).
		MinLen(FieldUsername, strings.TrimSpace(input.Username), UsernameMinLength).
		MaxLen(FieldUsername, strings.TrimSpace(input.Username), UsernameMaxLength).
		Email(FieldEmail, strings.TrimSpace(input.Email)).
		MaxLen(FieldEmail, input.Email, EmailMaxLength).
		Required(FieldPassword, input.Password).
		StrongPassword(FieldPassword, input.Password)

	validator.MaxLen(FieldFirstName, input.FirstName, ProfileMaxLength).
		MaxLen(FieldLastName, input.LastName, ProfileMaxLength).
		MaxLen(FieldPhoneNumber, input.PhoneNumber, ProfileMaxLength).
		MaxLen(FieldJobTitle, input.JobTitle, ProfileMaxLength).
		MaxLen(FieldDepartment, input.Department, ProfileMaxLength)

	return validator.Err()
}

// LoginInput defines credentials for an authentication attempt.
//
// Exactly one of Username or Email identifies the account.
type LoginInput struct {
	Username  string
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// Validate enforces the username/email exclusive-or and a present password.
func (input LoginInput) Validate() error {
	hasUsername := strings.TrimSpace(input.Username) != ""
	hasEmail := strings.TrimSpace(input.Email) != ""

	validator := &validate.Validator{}
	validator.Custom(FieldUsername, hasUsername == hasEmail, "Provide exactly one of username or email").
		MaxLen(FieldUsername, input.Username, UsernameMaxLength).
		MaxLen(FieldEmail, input.Email, EmailMaxLength).
		Required(FieldPassword, input.Password)

	return validator.Err()
}

// ChangePasswordInput carries an authenticated password change.
type ChangePasswordInput struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// Validate checks the confirmation and the complexity of the new password.
func (input ChangePasswordInput) Validate() error {
	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		StrongPassword(FieldNewPassword, input.NewPassword).
		Matches(FieldConfirmPassword, input.ConfirmPassword, input.NewPassword, "Passwords do not match")

	return validator.Err()
}

// ResetPasswordInput redeems a reset token for a new password.
type ResetPasswordInput struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// Validate checks the token presence, the confirmation and the new password's complexity.
func (input ResetPasswordInput) Validate() error {
	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).
		Required(FieldNewPassword, input.NewPassword).
		StrongPassword(FieldNewPassword, input.NewPassword).
		Matches(FieldConfirmPassword, input.ConfirmPassword, input.NewPassword, "Passwords do not match")

	return validator.Err()
}

// validateEmail is the single-field check used by the recovery endpoints.
func validateEmail(email string) error {
	validator := &validate.Validator{}
	validator.Email(FieldEmail, strings.TrimSpace(email)).
		MaxLen(FieldEmail, email, EmailMaxLength)
	return validator.Err()
}

// validateStatus admits the statuses an administrator may set.
// Locked is reserved for the lockout machinery.
func validateStatus(status Status) error {
	validator := &validate.Validator{}
	validator.OneOf(FieldStatus, string(status), string(StatusActive), string(StatusInactive), string(StatusSuspended))
	return validator.Err()
}
