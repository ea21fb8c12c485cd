// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/counsel/internal/platform/database/schema"
	"github.com/taibuivan/counsel/internal/platform/dberr"
	"github.com/taibuivan/counsel/pkg/normalize"
	"github.com/taibuivan/counsel/pkg/pointer"
)

// # Account Repository

// PostgresAccountRepository implements [AccountRepository] using pgx.
//
// # err Mapping
//
// pgx.ErrNoRows becomes [ErrAccountNotFound]; unique-index violations become
// [ErrDuplicateUsername] / [ErrDuplicateEmail]; everything else goes through
// [dberr.Wrap], which turns connectivity failures into 503 responses.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

var (
	accountTable = schema.UserAccount

	selectAccount = fmt.Sprintf(`SELECT %s FROM %s`, accountTable.SelectList(), accountTable.Table)
)

/*
FindByID retrieves an account by its primary key.

Parameters:
  - ctx: context.Context
  - id: string (UUIDv7)

Returns:
  - *Account: Hydrated account entity
  - error: ErrAccountNotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	query := selectAccount + fmt.Sprintf(` WHERE %s = $1`, accountTable.ID)
	return repository.findOne(ctx, "postgres_account_find_by_id_failed", query, id)
}

// FindByUsername resolves an account through the LOWER(username) unique index.
func (repository *PostgresAccountRepository) FindByUsername(ctx context.Context, username string) (*Account, error) {
	query := selectAccount + fmt.Sprintf(` WHERE LOWER(%s) = LOWER($1)`, accountTable.Username)
	return repository.findOne(ctx, "postgres_account_find_by_username_failed", query, normalize.Identifier(username))
}

// FindByEmail resolves an account through the LOWER(email) unique index.
func (repository *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := selectAccount + fmt.Sprintf(` WHERE LOWER(%s) = LOWER($1)`, accountTable.Email)
	return repository.findOne(ctx, "postgres_account_find_by_email_failed", query, normalize.Identifier(email))
}

// FindByResetToken resolves an account by the digest of its reset token.
func (repository *PostgresAccountRepository) FindByResetToken(ctx context.Context, tokenHash string) (*Account, error) {
	query := selectAccount + fmt.Sprintf(` WHERE %s = $1`, accountTable.ResetTokenHash)
	return repository.findOne(ctx, "postgres_account_find_by_reset_token_failed", query, tokenHash)
}

// FindByVerificationToken resolves an account by the digest of its verification token.
func (repository *PostgresAccountRepository) FindByVerificationToken(ctx context.Context, tokenHash string) (*Account, error) {
	query := selectAccount + fmt.Sprintf(` WHERE %s = $1`, accountTable.VerificationTokenHash)
	return repository.findOne(ctx, "postgres_account_find_by_verification_token_failed", query, tokenHash)
}

/*
Create persists a new account record into the users.account table.

Description: Usernames and emails are folded to lower case here as well as in
the service, so the stored form is canonical whoever calls.

Parameters:
  - ctx: context.Context
  - acc: *Account (Entity to persist)

Returns:
  - error: Duplicate errors or connectivity errors
*/
func (repository *PostgresAccountRepository) Create(ctx context.Context, acc *Account) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)`,
		accountTable.Table, accountTable.SelectList())

	now := time.Now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = acc.CreatedAt
	acc.Version = 1
	acc.Username = normalize.Identifier(acc.Username)
	acc.Email = normalize.Identifier(acc.Email)

	_, err := repository.pool.Exec(ctx, query,
		acc.ID, acc.Username, acc.Email, acc.PasswordHash,
		acc.FirstName, acc.LastName, acc.PhoneNumber, acc.JobTitle, acc.Department,
		nonNil(acc.Roles), nonNil(acc.Permissions), string(acc.Status), acc.IsVerified,
		acc.FailedLogins, acc.LockEndsAt,
		acc.PasswordExpiresAt, nonNil(acc.PasswordHistory), acc.MustChangePassword,
		pointer.NonZero(acc.ResetTokenHash), acc.ResetTokenExpiresAt, pointer.NonZero(acc.VerificationTokenHash), acc.VerificationTokenExpiresAt,
		acc.MFAEnabled, pointer.NonZero(acc.MFASecret), nonNil(acc.MFABackupCodes),
		nonNil(acc.AllowedIPs), nonNil(acc.BlockedIPs),
		acc.LastLoginAt, acc.Version, acc.CreatedAt, acc.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := dberr.UniqueViolation(err); ok {
			switch constraint {
			case schema.IndexAccountUsername:
				return ErrDuplicateUsername
			case schema.IndexAccountEmail:
				return ErrDuplicateEmail
			}
		}
		return dberr.Wrap(err, "postgres_account_create_failed")
	}

	return nil
}

/*
Save overwrites every mutable column of the account.

Description: Optimistic concurrency. The update only applies when the stored
version still equals acc.Version; otherwise nothing is written and
ErrStaleAccount is returned so the caller can re-read.

Parameters:
  - ctx: context.Context
  - acc: *Account

Returns:
  - error: ErrStaleAccount, duplicate errors, or connectivity errors
*/
func (repository *PostgresAccountRepository) Save(ctx context.Context, acc *Account) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			%s = $3, %s = $4, %s = $5,
			%s = $6, %s = $7, %s = $8, %s = $9, %s = $10,
			%s = $11, %s = $12, %s = $13, %s = $14,
			%s = $15, %s = $16,
			%s = $17, %s = $18, %s = $19,
			%s = $20, %s = $21, %s = $22, %s = $23,
			%s = $24, %s = $25, %s = $26,
			%s = $27, %s = $28,
			%s = $29,
			%s = %s + 1, %s = $30
		WHERE %s = $1 AND %s = $2`,
		accountTable.Table,
		accountTable.Username, accountTable.Email, accountTable.PasswordHash,
		accountTable.FirstName, accountTable.LastName, accountTable.PhoneNumber, accountTable.JobTitle, accountTable.Department,
		accountTable.Roles, accountTable.Permissions, accountTable.Status, accountTable.IsVerified,
		accountTable.FailedLogins, accountTable.LockEndsAt,
		accountTable.PasswordExpiresAt, accountTable.PasswordHistory, accountTable.MustChangePassword,
		accountTable.ResetTokenHash, accountTable.ResetTokenExpiresAt, accountTable.VerificationTokenHash, accountTable.VerificationTokenExpiresAt,
		accountTable.MFAEnabled, accountTable.MFASecret, accountTable.MFABackupCodes,
		accountTable.AllowedIPs, accountTable.BlockedIPs,
		accountTable.LastLoginAt,
		accountTable.Version, accountTable.Version, accountTable.UpdatedAt,
		accountTable.ID, accountTable.Version,
	)

	now := time.Now()
	acc.Username = normalize.Identifier(acc.Username)
	acc.Email = normalize.Identifier(acc.Email)

	tag, err := repository.pool.Exec(ctx, query,
		acc.ID, acc.Version,
		acc.Username, acc.Email, acc.PasswordHash,
		acc.FirstName, acc.LastName, acc.PhoneNumber, acc.JobTitle, acc.Department,
		nonNil(acc.Roles), nonNil(acc.Permissions), string(acc.Status), acc.IsVerified,
		acc.FailedLogins, acc.LockEndsAt,
		acc.PasswordExpiresAt, nonNil(acc.PasswordHistory), acc.MustChangePassword,
		pointer.NonZero(acc.ResetTokenHash), acc.ResetTokenExpiresAt, pointer.NonZero(acc.VerificationTokenHash), acc.VerificationTokenExpiresAt,
		acc.MFAEnabled, pointer.NonZero(acc.MFASecret), nonNil(acc.MFABackupCodes),
		nonNil(acc.AllowedIPs), nonNil(acc.BlockedIPs),
		acc.LastLoginAt,
		now,
	)
	if err != nil {
		if constraint, ok := dberr.UniqueViolation(err); ok {
			switch constraint {
			case schema.IndexAccountUsername:
				return ErrDuplicateUsername
			case schema.IndexAccountEmail:
				return ErrDuplicateEmail
			}
		}
		return dberr.Wrap(err, "postgres_account_save_failed")
	}

	if tag.RowsAffected() == 0 {
		return ErrStaleAccount
	}

	acc.Version++
	acc.UpdatedAt = now
	return nil
}

/*
RecordFailedLogin increments the failure counter in one statement.

Description: Every expression on the right-hand side sees the pre-update
row, so "failedlogins + 1" is the new count in both CASE arms. Concurrent
failures serialize on the row lock and none are lost.

Parameters:
  - ctx: context.Context
  - id: string
  - policy: LockoutPolicy
  - at: time.Time

Returns:
  - *Account: The updated row
  - error: ErrAccountNotFound or connectivity errors
*/
func (repository *PostgresAccountRepository) RecordFailedLogin(ctx context.Context, id string, policy LockoutPolicy, at time.Time) (*Account, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s SET
			%[2]s = %[2]s + 1,
			%[3]s = CASE WHEN %[2]s + 1 >= $2 THEN '%[7]s' ELSE %[3]s END,
			%[4]s = CASE WHEN %[2]s + 1 >= $2 THEN $3::timestamptz ELSE %[4]s END,
			%[5]s = %[5]s + 1,
			%[6]s = $4
		WHERE %[8]s = $1
		RETURNING %[9]s`,
		accountTable.Table,
		accountTable.FailedLogins,
		accountTable.Status,
		accountTable.LockEndsAt,
		accountTable.Version,
		accountTable.UpdatedAt,
		StatusLocked,
		accountTable.ID,
		accountTable.SelectList(),
	)

	threshold := policy.Threshold
	if threshold < 1 {
		threshold = DefaultLockoutThreshold
	}

	return repository.findOne(ctx, "postgres_account_record_failed_login_failed", query,
		id, threshold, at.Add(policy.Duration), time.Now())
}

/*
RecordSuccessfulLogin clears the failure state and stamps the login time.

Description: The WHERE clause refuses to lift a lock that is still running,
which can only happen if a concurrent failure locked the account after the
caller's gate. In that case the current row is returned unchanged.

Parameters:
  - ctx: context.Context
  - id: string
  - at: time.Time

Returns:
  - *Account: The current row
  - error: ErrAccountNotFound or connectivity errors
*/
func (repository *PostgresAccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) (*Account, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s SET
			%[2]s = 0,
			%[3]s = CASE WHEN %[3]s = '%[8]s' THEN '%[9]s' ELSE %[3]s END,
			%[4]s = NULL,
			%[5]s = $2,
			%[6]s = %[6]s + 1,
			%[7]s = $3
		WHERE %[10]s = $1 AND NOT (%[3]s = '%[8]s' AND %[4]s > $2)
		RETURNING %[11]s`,
		accountTable.Table,
		accountTable.FailedLogins,
		accountTable.Status,
		accountTable.LockEndsAt,
		accountTable.LastLoginAt,
		accountTable.Version,
		accountTable.UpdatedAt,
		StatusLocked,
		StatusActive,
		accountTable.ID,
		accountTable.SelectList(),
	)

	updated, err := repository.findOne(ctx, "postgres_account_record_successful_login_failed", query, id, at, time.Now())
	if errors.Is(err, ErrAccountNotFound) {
		return repository.FindByID(ctx, id)
	}
	return updated, err
}

/*
ReleaseExpiredLock lifts an elapsed lock and resets the counter.

Description: Conditional on the lock having elapsed, so two requests racing
past an expired lock both end up with the same Active row.

Parameters:
  - ctx: context.Context
  - id: string
  - at: time.Time

Returns:
  - *Account: The current row
  - error: ErrAccountNotFound or connectivity errors
*/
func (repository *PostgresAccountRepository) ReleaseExpiredLock(ctx context.Context, id string, at time.Time) (*Account, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s SET
			%[2]s = '%[7]s',
			%[3]s = 0,
			%[4]s = NULL,
			%[5]s = %[5]s + 1,
			%[6]s = $3
		WHERE %[9]s = $1 AND %[2]s = '%[8]s' AND %[4]s <= $2
		RETURNING %[10]s`,
		accountTable.Table,
		accountTable.Status,
		accountTable.FailedLogins,
		accountTable.LockEndsAt,
		accountTable.Version,
		accountTable.UpdatedAt,
		StatusActive,
		StatusLocked,
		accountTable.ID,
		accountTable.SelectList(),
	)

	released, err := repository.findOne(ctx, "postgres_account_release_lock_failed", query, id, at, time.Now())
	if errors.Is(err, ErrAccountNotFound) {
		return repository.FindByID(ctx, id)
	}
	return released, err
}

// # Scanning

// findOne runs a single-row query and scans it into an Account.
func (repository *PostgresAccountRepository) findOne(ctx context.Context, action, query string, args ...any) (*Account, error) {
	found, err := scanAccount(repository.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, dberr.Wrap(err, action)
	}
	return found, nil
}

// scanAccount reads a row in [schema.UserAccountTable.Columns] order.
func scanAccount(row pgx.Row) (*Account, error) {
	var (
		found            Account
		status           string
		resetHash        *string
		verificationHash *string
		mfaSecret        *string
	)

	err := row.Scan(
		&found.ID, &found.Username, &found.Email, &found.PasswordHash,
		&found.FirstName, &found.LastName, &found.PhoneNumber, &found.JobTitle, &found.Department,
		&found.Roles, &found.Permissions, &status, &found.IsVerified,
		&found.FailedLogins, &found.LockEndsAt,
		&found.PasswordExpiresAt, &found.PasswordHistory, &found.MustChangePassword,
		&resetHash, &found.ResetTokenExpiresAt, &verificationHash, &found.VerificationTokenExpiresAt,
		&found.MFAEnabled, &mfaSecret, &found.MFABackupCodes,
		&found.AllowedIPs, &found.BlockedIPs,
		&found.LastLoginAt, &found.Version, &found.CreatedAt, &found.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	found.Status = Status(status)
	found.ResetTokenHash = pointer.Val(resetHash)
	found.VerificationTokenHash = pointer.Val(verificationHash)
	found.MFASecret = pointer.Val(mfaSecret)

	return &found, nil
}
