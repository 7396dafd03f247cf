// Package auth is the request gate: it turns the Authorization header into
// a verified Caller.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
)

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

const bearerPrefix = "bearer "

// Claims carried by identity tokens. The identity service puts the user
// document id in "_id".
type Claims struct {
	UserID string `json:"_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Caller is the authenticated identity resolved by the gate.
type Caller struct {
	ID    string
	Email string
	Token string
}

// Verifier validates HS256 identity tokens.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithIssuer requires the iss claim to match.
func WithIssuer(iss string) Option {
	return func(v *Verifier) { v.issuer = strings.TrimSpace(iss) }
}

// WithClock overrides time for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier builds a verifier for the shared signing secret.
func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth secret is not configured")
	}
	v := &Verifier{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Authenticate resolves the caller from a raw Authorization header value.
// The header may hold the bare token or "Bearer <token>". Every failure maps
// to UserNotAuthenticatedError.
func (v *Verifier) Authenticate(header string) (Caller, error) {
	token := extractToken(header)
	if token == "" {
		return Caller{}, apierr.NotAuthenticated("")
	}
	claims, err := v.Parse(token)
	if err != nil {
		return Caller{}, apierr.NotAuthenticated("").Wrap(err)
	}
	return Caller{ID: claims.UserID, Email: claims.Email, Token: token}, nil
}

// Parse verifies signature and required claims.
func (v *Verifier) Parse(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := v.validateClaims(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (v *Verifier) validateClaims(claims *Claims) error {
	claims.UserID = strings.TrimSpace(claims.UserID)
	if claims.UserID == "" {
		return errors.New("_id claim missing")
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	return nil
}

// IssueToken signs a token for userID. The identity service is the real
// issuer; this is used by tests and the smoke tool.
func IssueToken(secret, userID, email string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("userID is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("auth secret is not configured")
	}
	now := time.Now().UTC()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(secret)))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func extractToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		header = strings.TrimSpace(header[len(bearerPrefix):])
	}
	return header
}
