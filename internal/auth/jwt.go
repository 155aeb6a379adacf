package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"echoes/internal/entity"
)

// ErrTokenExpired marks a structurally valid token past its expiry. The API
// layer maps it to a session-expired response instead of a generic 401.
var ErrTokenExpired = errors.New("session token expired")

const defaultSessionLifetime = 24 * time.Hour

// clockLeeway absorbs small clock drift between the issuing and the
// verifying process.
const clockLeeway = 30 * time.Second

// SessionClaims is the payload carried by a session token. The credit
// balance is deliberately absent: it changes between requests, so handlers
// read it from the user row.
type SessionClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 session tokens.
type Manager struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	parser   *jwt.Parser
}

// NewManager builds a token manager. The secret is required; issuer and
// lifetime fall back to sane defaults.
func NewManager(secret, issuer string, lifetime time.Duration) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		issuer = "echoes"
	}
	if lifetime <= 0 {
		lifetime = defaultSessionLifetime
	}
	return &Manager{
		secret:   []byte(secret),
		issuer:   issuer,
		lifetime: lifetime,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithLeeway(clockLeeway),
		),
	}, nil
}

// GenerateToken issues a session token for the account and returns it with
// its expiry time.
func (m *Manager) GenerateToken(user *entity.DbUser) (string, time.Time, error) {
	if m == nil {
		return "", time.Time{}, errors.New("token manager not initialised")
	}
	if user == nil || user.ID == 0 {
		return "", time.Time{}, errors.New("cannot issue a token without a persisted user")
	}

	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(m.lifetime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken verifies a session token. An expired-but-otherwise-valid token
// returns ErrTokenExpired.
func (m *Manager) ParseToken(tokenString string) (*SessionClaims, error) {
	if m == nil {
		return nil, errors.New("token manager not initialised")
	}

	token, err := m.parser.ParseWithClaims(tokenString, &SessionClaims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("verify session token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, errors.New("malformed session claims")
	}
	return claims, nil
}
