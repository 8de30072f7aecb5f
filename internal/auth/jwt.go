// Package auth issues and checks bearer tokens and hashes passwords.
//
// Tokens are compact JWTs (HEADER.PAYLOAD.SIGNATURE, each part base64url)
// signed with HMAC-SHA256. The payload carries the user's UUID in a "uuid"
// claim and, for standard tooling, in "sub" as well:
//
//	{"uuid":"1b4e28ba-2fa1-11d2-883f-0016d3cca427","sub":"1b4e…","iat":…,"exp":…,"jti":"…"}
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/sakif/usuarios-api/internal/clock"
)

// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
const MinSecretLength = 16

var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// TokenService signs and verifies HS256 tokens with a shared secret.
type TokenService struct {
	secret []byte
	clock  clock.Clock
}

// NewTokenService creates a TokenService. Generate one with
// `openssl rand -hex 32`.
func NewTokenService(secret string, clk clock.Clock) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	return &TokenService{secret: []byte(secret), clock: clk}, nil
}

// Claims is the token payload.
type Claims struct {
	UUID string `json:"uuid,omitempty"`
	jwt.RegisteredClaims
}

// UserUUID returns the "uuid" claim, or "sub" when "uuid" is absent.
func (c *Claims) UserUUID() string {
	if c.UUID != "" {
		return c.UUID
	}
	return c.Subject
}

// Generate signs a token for the user. A zero ttl produces a token without
// an expiry.
func (s *TokenService) Generate(userUUID string, ttl time.Duration) (string, error) {
	now := s.clock.Now()

	c := Claims{
		UUID: userUUID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userUUID,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       xid.New().String(),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token and returns its claims.
//
// Checks, all done by the jwt library:
//   - three dot-separated base64url segments with JSON header and payload
//   - header alg is exactly HS256; "none", HS512 and RS256 are refused
//   - the HMAC signature matches, compared in constant time
//   - exp, when present, is after the clock's now
func (s *TokenService) Parse(tokenStr string) (*Claims, error) {
	c := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return c, nil
}
