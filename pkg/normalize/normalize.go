// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package normalize folds user-supplied identifiers into their canonical stored form.
//
// # Usage
//
// Usernames and emails are unique case-insensitively. Every value is folded
// through [Identifier] before it is written or looked up, so "Alice@X.com"
// and "alice@x.com" resolve to the same account.
package normalize

import (
	"net/netip"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Identifier canonicalises a username or email.
//
// # Transformation Pipeline
//
// 1. Trims surrounding whitespace.
// 2. Normalizes to NFC so visually identical input compares equal.
// 3. Lowercases with language-neutral rules.
func Identifier(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}

	// Casers are stateful; one per call keeps this safe for concurrent use.
	return cases.Lower(language.Und).String(norm.NFC.String(trimmed))
}

// IP returns the canonical text form of an address taken from a header or
// list, so "2001:DB8:0::1" and "2001:db8::1" compare equal. Unparseable input
// is only trimmed and lowercased.
func IP(s string) string {
	trimmed := strings.TrimSpace(s)
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		return addr.Unmap().String()
	}
	return strings.ToLower(trimmed)
}
