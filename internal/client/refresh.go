package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/devilmonastery/taskboard/internal/pkg/metrics"
)

// refreshCall is one in-flight refresh. done is closed once ok is final.
type refreshCall struct {
	done chan struct{}
	ok   bool
}

// refreshState holds at most one in-flight refresh. Callers that arrive while
// a call is in flight wait on the same done channel instead of starting
// their own request.
type refreshState struct {
	mu      sync.Mutex
	call    *refreshCall
	joiners int
}

func (m *TokenManager) refreshInFlight() bool {
	m.refresh.mu.Lock()
	defer m.refresh.mu.Unlock()
	return m.refresh.call != nil
}

// refreshJoiners reports how many callers are waiting on the in-flight refresh
func (m *TokenManager) refreshJoiners() int {
	m.refresh.mu.Lock()
	defer m.refresh.mu.Unlock()
	return m.refresh.joiners
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers share a single backend call and all observe its result.
//
// The backend call is not cancelled by ctx; it is bounded by the refresh
// timeout instead. A caller whose ctx ends while waiting gets false.
func (m *TokenManager) Refresh(ctx context.Context) bool {
	s := &m.refresh

	s.mu.Lock()
	if call := s.call; call != nil {
		s.joiners++
		s.mu.Unlock()
		metrics.TokenRefreshJoined.Inc()
		defer func() {
			s.mu.Lock()
			s.joiners--
			s.mu.Unlock()
		}()

		select {
		case <-call.done:
			return call.ok
		case <-ctx.Done():
			m.log.Debug("gave up waiting for refresh", slog.String("error", ctx.Err().Error()))
			return false
		}
	}

	gen := m.currentGeneration()
	refreshToken := m.RefreshToken()
	if refreshToken == "" {
		s.mu.Unlock()
		m.log.Info("no refresh token available")
		metrics.RecordRefresh("no_refresh_token")
		m.markInvalidSince(gen)
		return false
	}

	call := &refreshCall{done: make(chan struct{})}
	s.call = call
	s.mu.Unlock()

	call.ok = m.exchange(ctx, refreshToken, gen)

	s.mu.Lock()
	s.call = nil
	s.mu.Unlock()
	close(call.done)

	return call.ok
}

// exchange performs the refresh round trip and updates the primary cache.
// Nothing is written unless the backend returned a new access token and
// the credential is still the one the refresh started from (gen).
func (m *TokenManager) exchange(ctx context.Context, refreshToken string, gen uint64) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
	defer cancel()

	resp, err := m.backend.Refresh(ctx, refreshToken)
	if err != nil {
		m.log.Info("token refresh failed",
			slog.Int("status", StatusCode(err)),
			slog.String("error", err.Error()))
		metrics.RecordRefresh("failure")
		m.markInvalidSince(gen)
		return false
	}
	if resp.AccessToken == "" {
		m.log.Warn("refresh response missing access_token")
		metrics.RecordRefresh("malformed")
		m.markInvalidSince(gen)
		return false
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		m.log.Info("credential changed during refresh, discarding result")
		metrics.RecordRefresh("discarded")
		return false
	}
	err = m.cache.Set(resp.fields())
	m.mu.Unlock()
	if err != nil {
		m.log.Error("failed to cache refreshed token", slog.String("error", err.Error()))
		metrics.RecordRefresh("cache_error")
		return false
	}

	metrics.RecordRefresh("success")
	m.logToken("token refreshed")
	return true
}
