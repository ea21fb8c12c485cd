// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// # Password Complexity

const (
	// MinPasswordLength is the minimum number of characters in a password.
	MinPasswordLength = 8

	// MaxPasswordBytes is bcrypt's input limit; longer inputs are rejected
	// instead of being silently truncated.
	MaxPasswordBytes = 72

	// SpecialCharacters is the set a password must draw at least one character from.
	SpecialCharacters = "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~"
)

// PasswordPolicyViolations lists every complexity rule the password breaks.
// An empty result means the password is acceptable.
func PasswordPolicyViolations(password string) []string {
	var violations []string

	if utf8.RuneCountInString(password) < MinPasswordLength {
		violations = append(violations, fmt.Sprintf("Minimum %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		violations = append(violations, fmt.Sprintf("Maximum %d bytes", MaxPasswordBytes))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(SpecialCharacters, r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		violations = append(violations, "Must contain an uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "Must contain a lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "Must contain a digit")
	}
	if !hasSpecial {
		violations = append(violations, "Must contain a special character ("+SpecialCharacters+")")
	}

	return violations
}
