// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns of the relational store, so
// repositories build their SQL from one definition instead of repeating literals.
package schema

import "strings"

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table string

	ID           string
	Username     string
	Email        string
	PasswordHash string

	FirstName   string
	LastName    string
	PhoneNumber string
	JobTitle    string
	Department  string

	Roles       string
	Permissions string
	Status      string
	IsVerified  string

	FailedLogins string
	LockEndsAt   string

	PasswordExpiresAt  string
	PasswordHistory    string
	MustChangePassword string

	ResetTokenHash             string
	ResetTokenExpiresAt        string
	VerificationTokenHash      string
	VerificationTokenExpiresAt string

	MFAEnabled     string
	MFASecret      string
	MFABackupCodes string

	AllowedIPs string
	BlockedIPs string

	LastLoginAt string
	Version     string
	CreatedAt   string
	UpdatedAt   string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table: "users.account",

	ID:           "id",
	Username:     "username",
	Email:        "email",
	PasswordHash: "passwordhash",

	FirstName:   "firstname",
	LastName:    "lastname",
	PhoneNumber: "phonenumber",
	JobTitle:    "jobtitle",
	Department:  "department",

	Roles:       "roles",
	Permissions: "permissions",
	Status:      "status",
	IsVerified:  "isverified",

	FailedLogins: "failedlogins",
	LockEndsAt:   "lockendsat",

	PasswordExpiresAt:  "passwordexpiresat",
	PasswordHistory:    "passwordhistory",
	MustChangePassword: "mustchangepassword",

	ResetTokenHash:             "resettokenhash",
	ResetTokenExpiresAt:        "resettokenexpiresat",
	VerificationTokenHash:      "verificationtokenhash",
	VerificationTokenExpiresAt: "verificationtokenexpiresat",

	MFAEnabled:     "mfaenabled",
	MFASecret:      "mfasecret",
	MFABackupCodes: "mfabackupcodes",

	AllowedIPs: "allowedips",
	BlockedIPs: "blockedips",

	LastLoginAt: "lastloginat",
	Version:     "version",
	CreatedAt:   "createdat",
	UpdatedAt:   "updatedat",
}

// Unique indexes whose violations map to domain errors.
const (
	IndexAccountUsername = "uq_account_username"
	IndexAccountEmail    = "uq_account_email"
)

// Columns returns every column in scan order.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Email, t.PasswordHash,
		t.FirstName, t.LastName, t.PhoneNumber, t.JobTitle, t.Department,
		t.Roles, t.Permissions, t.Status, t.IsVerified,
		t.FailedLogins, t.LockEndsAt,
		t.PasswordExpiresAt, t.PasswordHistory, t.MustChangePassword,
		t.ResetTokenHash, t.ResetTokenExpiresAt, t.VerificationTokenHash, t.VerificationTokenExpiresAt,
		t.MFAEnabled, t.MFASecret, t.MFABackupCodes,
		t.AllowedIPs, t.BlockedIPs,
		t.LastLoginAt, t.Version, t.CreatedAt, t.UpdatedAt,
	}
}

// SelectList returns [UserAccountTable.Columns] joined for a SELECT or RETURNING clause.
func (t UserAccountTable) SelectList() string {
	return strings.Join(t.Columns(), ", ")
}
