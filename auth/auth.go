// Package auth verifies organiser credentials and issues admin sessions.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrNotConfigured      = errors.New("admin login is not configured")
)

const issuer = "symposium"

// Admin is an authenticated organiser.
type Admin struct {
	Email string
}

// CredentialVerifier checks an email/password pair.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (Admin, error)
}

// BcryptVerifier accepts a single admin account whose password is stored as a
// bcrypt hash.
type BcryptVerifier struct {
	email string
	hash  []byte
}

func NewBcryptVerifier(email, passwordHash string) *BcryptVerifier {
	return &BcryptVerifier{
		email: strings.ToLower(strings.TrimSpace(email)),
		hash:  []byte(strings.TrimSpace(passwordHash)),
	}
}

func (v *BcryptVerifier) Verify(ctx context.Context, email, password string) (Admin, error) {
	if err := ctx.Err(); err != nil {
		return Admin{}, err
	}
	if v.email == "" || len(v.hash) == 0 {
		return Admin{}, ErrNotConfigured
	}
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(v.email)) == 1
	// always run bcrypt so unknown emails cost the same as wrong passwords
	passwordErr := bcrypt.CompareHashAndPassword(v.hash, []byte(password))
	if !emailOK || passwordErr != nil {
		return Admin{}, ErrInvalidCredentials
	}
	return Admin{Email: v.email}, nil
}

// HashPassword produces a hash suitable for NewBcryptVerifier.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// SessionIssuer signs and checks HS256 admin session tokens.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret string, ttl time.Duration) (*SessionIssuer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("session secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &SessionIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for admin and its expiry time.
func (s *SessionIssuer) Issue(admin Admin) (string, time.Time, error) {
	now := s.now().UTC()
	expires := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   admin.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: admin.Email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Parse validates a token and returns its claims.
func (s *SessionIssuer) Parse(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidSession
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return claims, nil
}
