// Package auth verifies bearer tokens and resolves the request principal.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Claims are the custom claims embedded in every access token.
type Claims struct {
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens constructs a token codec.
func NewTokens(secret, issuer string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for the principal. Used by the operator CLI and tests.
func (t *Tokens) Issue(p shared.Principal) (string, error) {
	if p.UserID == uuid.Nil || p.OrgID == uuid.Nil {
		return "", errors.New("auth: principal requires user and org")
	}
	role := strings.ToLower(strings.TrimSpace(p.Role))
	if role != shared.RoleAdmin && role != shared.RoleUser {
		return "", fmt.Errorf("auth: unknown role %q", p.Role)
	}
	now := t.now()
	claims := Claims{
		OrgID: p.OrgID.String(),
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses a signed token and returns its principal.
func (t *Tokens) Verify(raw string) (shared.Principal, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now)}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return shared.Principal{}, fmt.Errorf("%w: %v", shared.ErrUnauthenticated, err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: invalid subject", shared.ErrUnauthenticated)
	}
	orgID, err := uuid.Parse(claims.OrgID)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: invalid org", shared.ErrUnauthenticated)
	}
	return shared.Principal{UserID: userID, OrgID: orgID, Role: claims.Role}, nil
}
