package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ledgerscan/ledgerscan-backend/pkg/config"
	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
)

// Claims represents a workspace session token
type Claims struct {
	jwt.RegisteredClaims
	WorkspaceID string `json:"workspace_id"`
}

// Manager handles workspace session token operations
type Manager struct {
	config *config.JWTConfig
}

// NewManager creates a new token manager
func NewManager(cfg *config.JWTConfig) *Manager {
	return &Manager{config: cfg}
}

// Issue generates a session token bound to the given workspace
func (m *Manager) Issue(workspaceID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.SessionExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   workspaceID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		WorkspaceID: workspaceID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses a session token and returns its claims
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.TokenInvalid()
		}
		return []byte(m.config.Secret), nil
	})

	if err != nil {
		if err.Error() == "token has invalid claims: token is expired" {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.WorkspaceID == "" {
		return nil, errors.TokenInvalid()
	}

	return claims, nil
}

// SessionExpiry returns the configured session token lifetime
func (m *Manager) SessionExpiry() time.Duration {
	return m.config.SessionExpiry
}
