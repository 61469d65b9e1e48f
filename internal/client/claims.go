package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a backend access token
type Claims struct {
	UserID    string
	TokenType string
	JTI       string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// ParseClaims decodes an access token without verifying its signature.
// The backend is the only party that verifies tokens; this is for display.
func ParseClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrNoCredential
	}

	parsed, _, err := new(jwt.Parser).ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	c := &Claims{}
	// simplejwt emits user_id as a number, other issuers as a string
	switch v := mc["user_id"].(type) {
	case string:
		c.UserID = v
	case float64:
		c.UserID = fmt.Sprintf("%.0f", v)
	}
	if v, ok := mc["token_type"].(string); ok {
		c.TokenType = v
	}
	if v, ok := mc["jti"].(string); ok {
		c.JTI = v
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.UTC()
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.UTC()
	}
	return c, nil
}

// Claims decodes the current access token
func (m *TokenManager) Claims() (*Claims, error) {
	return ParseClaims(m.AccessToken())
}
