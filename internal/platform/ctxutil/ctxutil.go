// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
//
// # Safety
//
// Keys use an unexported type so they cannot collide with values stored by
// third-party packages, even when the string spelling is the same.
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/counsel/internal/platform/sec"
)

type key string

const (
	keyRequestID key = "request_id"
	keyClaims    key = "claims"
	keyLogger    key = "logger"
	keyClientIP  key = "client_ip"
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(keyRequestID).(string)
	return id
}

// WithClientIP returns a new context carrying the resolved client address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

// GetClientIP retrieves the resolved client address, or "" if none was stored.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(keyClientIP).(string)
	return ip
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, keyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(keyLogger).(*slog.Logger)
	if !ok || logger == nil {
		return slog.Default()
	}
	return logger
}

// # Identity & Access

// WithClaims returns a new context carrying verified access-token claims.
func WithClaims(ctx context.Context, claims *sec.AccessClaims) context.Context {
	return context.WithValue(ctx, keyClaims, claims)
}

// GetClaims retrieves the [*sec.AccessClaims] from the [context.Context].
// Returns nil for anonymous requests.
func GetClaims(ctx context.Context) *sec.AccessClaims {
	claims, ok := ctx.Value(keyClaims).(*sec.AccessClaims)
	if !ok {
		return nil
	}
	return claims
}
