// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level storage errors and
// higher-level application errors.
//
// # Classification
//
//   - pgx.ErrNoRows            -> [ErrNotFound] (404)
//   - connection failures      -> [ErrUnavailable] (503 "Database not connected")
//   - everything else          -> apperr.Internal (500)
//
// Unique violations are not mapped here: only the repository knows which
// constraint means which domain error, so it asks [UniqueViolation] first.
package dberr

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/counsel/internal/platform/apperr"
)

// SQLSTATE codes the repositories branch on.
const (
	CodeUniqueViolation = "23505"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")

	// ErrUnavailable short-circuits requests when a backing store cannot be reached.
	ErrUnavailable = apperr.ServiceUnavailable("Database not connected", nil)
)

// Wrap inspects a storage error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// # Parameters
//   - err: The raw driver error (may be nil).
//   - action: snake_case label of the failed operation, kept in the cause for logs.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, redis.Nil) {
		return ErrNotFound
	}

	cause := fmt.Errorf("%s: %w", action, err)

	// 2. Store unreachable
	if IsUnavailable(err) {
		return ErrUnavailable.WithCause(cause)
	}

	// 3. Unknown query errors become Internal Server Errors
	return apperr.Internal(cause)
}

// UniqueViolation reports whether err is a Postgres unique violation and, if so,
// which constraint (or unique index) fired.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsUnavailable reports whether err means the store could not be reached at all,
// as opposed to a query that reached it and failed.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	if errors.Is(err, redis.ErrClosed) {
		return true
	}

	// Dial/read failures surface as net.Error from both drivers.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// A deadline hit before any server response, e.g. while waiting for a pooled connection.
	return errors.Is(err, context.DeadlineExceeded) && pgconn.SafeToRetry(err)
}
