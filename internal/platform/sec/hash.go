// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used in production (2^10 rounds).
const DefaultHashCost = bcrypt.DefaultCost

// equalizerPassword is hashed once at construction so that lookups for unknown
// accounts spend the same bcrypt work as a wrong password on a real account.
const equalizerPassword = "counsel::no-such-account"

// PasswordHasher performs one-way salted hashing and constant-time verification.
//
// bcrypt embeds a random salt in every digest, so hashing the same plaintext
// twice yields two different strings.
type PasswordHasher struct {
	cost      int
	dummyHash []byte
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// Costs outside bcrypt's accepted range fall back to [DefaultHashCost].
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(equalizerPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to prepare hasher: %w", err)
	}

	return &PasswordHasher{cost: cost, dummyHash: dummy}, nil
}

// Hash returns the bcrypt digest of plainTextPassword.
func (hasher *PasswordHasher) Hash(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), hasher.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("sec: password exceeds %d bytes: %w", MaxPasswordBytes, err)
		}
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plain-text password with a stored digest.
// The comparison inside bcrypt is constant-time.
func (hasher *PasswordHasher) Verify(plainTextPassword, existingHash string) bool {
	if existingHash == "" {
		hasher.Equalize(plainTextPassword)
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// Equalize burns one bcrypt comparison against a throwaway digest.
//
// Callers use it on paths that reject before verifying (unknown account) so
// the response time does not reveal which branch was taken.
func (hasher *PasswordHasher) Equalize(plainTextPassword string) {
	_ = bcrypt.CompareHashAndPassword(hasher.dummyHash, []byte(plainTextPassword))
}
