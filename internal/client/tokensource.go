package client

import (
	"context"
	"strings"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx context.Context
	m   *TokenManager
}

// TokenSource adapts the coordinated header path to oauth2.TokenSource, so
// the manager can back an oauth2.NewClient transport. Stale tokens are
// refreshed through the shared refresh call.
func (m *TokenManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	auth := s.m.AuthHeaderContext(s.ctx).Get("Authorization")
	access, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || access == "" {
		return nil, ErrNoCredential
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: s.m.RefreshToken(),
	}
	if expiry, err := ParseExpiry(s.m.ExpiresAt()); err == nil {
		// oauth2 applies its own skew on top of Expiry
		tok.Expiry = expiry.Add(-ExpirySkew)
	}
	return tok, nil
}
