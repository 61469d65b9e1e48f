package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devilmonastery/taskboard/internal/client"
)

// Store opens per-request sessions wired to the backend
type Store struct {
	manager    *Manager
	backendURL string
	transport  http.RoundTripper
	timeout    time.Duration
	redis      redis.Cmdable
	redisTTL   time.Duration
	tokenOpts  []client.Option
	log        *slog.Logger
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithRedis keeps credentials in Redis instead of the session cookie
func WithRedis(rdb redis.Cmdable, ttl time.Duration) StoreOption {
	return func(st *Store) {
		st.redis = rdb
		st.redisTTL = ttl
	}
}

// WithTransport sets the round tripper used for backend calls
func WithTransport(rt http.RoundTripper) StoreOption {
	return func(st *Store) { st.transport = rt }
}

// WithTimeout bounds each backend call
func WithTimeout(d time.Duration) StoreOption {
	return func(st *Store) { st.timeout = d }
}

// WithTokenOptions passes options to every TokenManager the store creates
func WithTokenOptions(opts ...client.Option) StoreOption {
	return func(st *Store) { st.tokenOpts = append(st.tokenOpts, opts...) }
}

// NewStore creates a store for sessions talking to backendURL
func NewStore(manager *Manager, backendURL string, log *slog.Logger, opts ...StoreOption) *Store {
	st := &Store{
		manager:    manager,
		backendURL: backendURL,
		timeout:    30 * time.Second,
		log:        log,
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// BackendURL returns the API base URL sessions talk to
func (st *Store) BackendURL() string {
	return st.backendURL
}

// Open binds the browser session of r to a TokenManager and API client.
// Sessions are per request, so concurrent refreshes are only shared within
// one request.
func (st *Store) Open(w http.ResponseWriter, r *http.Request) (*Session, error) {
	s := st.manager.get(w, r, st.log)

	jar, err := NewJar(s, st.backendURL)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{
		Jar:       jar,
		Transport: st.transport,
		Timeout:   st.timeout,
	}
	c, err := client.NewClient(st.backendURL, httpClient)
	if err != nil {
		return nil, err
	}
	fallback, err := client.NewCookieFallback(jar, st.backendURL)
	if err != nil {
		return nil, err
	}

	var cache client.Cache = NewCookieCache(s)
	if st.redis != nil {
		// Outlives the request so a refresh shared past a client disconnect is still cached
		cache = NewRedisCache(context.WithoutCancel(r.Context()), st.redis, s, st.redisTTL)
	}

	opts := append([]client.Option{client.WithLogger(st.log)}, st.tokenOpts...)
	s.Tokens = client.NewTokenManager(cache, fallback, c, opts...)
	s.API = client.NewAPI(c, s.Tokens)
	return s, nil
}
