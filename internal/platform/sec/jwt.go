// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via the auth package's TokenIssuer interface.
package sec

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "typ" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned for any signature, expiry, issuer or type failure.
// The cause is wrapped for logging but callers must not branch on it.
var ErrInvalidToken = errors.New("sec: invalid token")

// AccessClaims represents the payload embedded inside a JWT Access Token.
//
// # Why custom claims?
//
// By embedding identity, roles and permissions directly inside the JWT, the
// [middleware.Authenticate] can reconstruct the caller WITHOUT querying the
// database on every request. The snapshot is allowed to go stale until expiry.
type AccessClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID      string   `json:"uid"`
	Username    string   `json:"unm"`
	Email       string   `json:"eml"`
	Roles       []string `json:"rol"`
	Permissions []string `json:"prm"`
	Type        string   `json:"typ"`
}

// RefreshClaims is the minimal payload of a refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims

	UserID string `json:"uid"`
	Type   string `json:"typ"`
}

// HasRole reports whether the claims carry the given role.
func (claims *AccessClaims) HasRole(role string) bool {
	return slices.Contains(claims.Roles, role)
}

// HasPermission reports whether the claims grant permission, honouring the "*" wildcard.
func (claims *AccessClaims) HasPermission(permission string) bool {
	return Grants(claims.Permissions, permission)
}

// Subject is the identity snapshot an access token is minted from.
type Subject struct {
	ID          string
	Username    string
	Email       string
	Roles       []string
	Permissions []string
}

// TokenConfig holds the signing material and lifetimes for [TokenService].
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// TokenService mints and verifies HS256 access and refresh tokens.
//
// Each kind is signed with its own secret, so a leaked refresh token cannot be
// presented as an access token and vice versa.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenService validates cfg and returns a ready TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("sec: access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("sec: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("sec: token lifetimes must be positive")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenService{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           now,
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (service *TokenService) AccessTTL() time.Duration { return service.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (service *TokenService) RefreshTTL() time.Duration { return service.refreshTTL }

// IssueAccessToken creates a signed access token for subject.
func (service *TokenService) IssueAccessToken(subject Subject) (string, error) {
	issuedAt := service.now()
	claims := AccessClaims{
		RegisteredClaims: service.registered(subject.ID, issuedAt, service.accessTTL),
		UserID:           subject.ID,
		Username:         subject.Username,
		Email:            subject.Email,
		Roles:            subject.Roles,
		Permissions:      subject.Permissions,
		Type:             TokenTypeAccess,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken creates a signed refresh token carrying only the account id.
func (service *TokenService) IssueRefreshToken(userID string) (string, error) {
	issuedAt := service.now()
	claims := RefreshClaims{
		RegisteredClaims: service.registered(userID, issuedAt, service.refreshTTL),
		UserID:           userID,
		Type:             TokenTypeRefresh,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature, expiry, issuer and kind of an access token.
func (service *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := service.parse(tokenString, claims, service.accessSecret); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess || claims.UserID == "" {
		return nil, fmt.Errorf("%w: unexpected token kind", ErrInvalidToken)
	}
	return claims, nil
}

// VerifyToken satisfies [middleware.TokenVerifier].
func (service *TokenService) VerifyToken(tokenString string) (*AccessClaims, error) {
	return service.VerifyAccessToken(tokenString)
}

// VerifyRefreshToken checks signature, expiry, issuer and kind of a refresh token.
func (service *TokenService) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := service.parse(tokenString, claims, service.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh || claims.UserID == "" {
		return nil, fmt.Errorf("%w: unexpected token kind", ErrInvalidToken)
	}
	return claims, nil
}

// registered builds the standard claim block shared by both token kinds.
func (service *TokenService) registered(subject string, issuedAt time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    service.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
}

// parse verifies tokenString into claims using secret.
func (service *TokenService) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	}
	if service.issuer != "" {
		options = append(options, jwt.WithIssuer(service.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, options...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
