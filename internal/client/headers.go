package client

import (
	"context"
	"net/http"
)

func bearer(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}

func newHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", bearer(token))
	return h
}

// AuthHeader returns request headers for the current token without ever
// refreshing. Authorization is empty when the token is absent or expired.
func (m *TokenManager) AuthHeader() http.Header {
	token := m.AccessToken()
	if token == "" || m.IsExpired() {
		return newHeader("")
	}
	return newHeader(token)
}

// AuthHeaderContext returns request headers for the current token,
// refreshing it first if it has expired. Authorization is empty when there
// is no token or the refresh failed.
func (m *TokenManager) AuthHeaderContext(ctx context.Context) http.Header {
	h, _ := m.authorize(ctx)
	return h
}

// authorize is AuthHeaderContext that also reports whether it refreshed
func (m *TokenManager) authorize(ctx context.Context) (http.Header, bool) {
	token := m.AccessToken()
	if token == "" {
		return newHeader(""), false
	}
	if !m.IsExpired() {
		return newHeader(token), false
	}
	if !m.Refresh(ctx) {
		return newHeader(""), true
	}
	return newHeader(m.AccessToken()), true
}
