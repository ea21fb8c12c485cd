// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"

	"github.com/taibuivan/counsel/internal/platform/ctxutil"
)

// # Out-of-band Delivery

// Notifier delivers one-time tokens to the account owner.
//
// Implementations receive the plaintext token; only its digest is stored.
type Notifier interface {
	SendVerification(ctx context.Context, account *Account, token string) error
	SendPasswordReset(ctx context.Context, account *Account, token string) error
}

// LogNotifier writes a structured log line instead of sending mail.
//
// The token itself is logged only when includeToken is set, which the
// entry point allows for non-production debug runs.
type LogNotifier struct {
	includeToken bool
}

// NewLogNotifier creates a log-backed Notifier.
func NewLogNotifier(includeToken bool) *LogNotifier {
	return &LogNotifier{includeToken: includeToken}
}

// SendVerification logs the verification dispatch.
func (notifier *LogNotifier) SendVerification(ctx context.Context, account *Account, token string) error {
	notifier.log(ctx, "notification_verification_dispatched", account, token)
	return nil
}

// SendPasswordReset logs the reset dispatch.
func (notifier *LogNotifier) SendPasswordReset(ctx context.Context, account *Account, token string) error {
	notifier.log(ctx, "notification_password_reset_dispatched", account, token)
	return nil
}

func (notifier *LogNotifier) log(ctx context.Context, event string, account *Account, token string) {
	attrs := []any{
		slog.String("account_id", account.ID),
		slog.String("email", account.Email),
	}
	if notifier.includeToken {
		attrs = append(attrs, slog.String("token", token))
	}
	ctxutil.GetLogger(ctx).InfoContext(ctx, event, attrs...)
}
