package cli

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/devilmonastery/taskboard/internal/client"
)

// errNotLoggedIn is returned by commands that need a session when none exists
var errNotLoggedIn = errors.New("not logged in\nPlease run 'taskboard auth login' first")

// Session bundles the REST client and the token manager for one context
type Session struct {
	Client *client.Client
	Tokens *client.TokenManager
	API    *client.API
	Cache  *FileCache
}

// NewSession builds the client stack for the current context of config
func NewSession(config *Config) (*Session, error) {
	serverURL, err := config.ServerURL()
	if err != nil {
		return nil, fmt.Errorf("failed to get server URL: %w", err)
	}

	// The jar only lives as long as the process; it mirrors the cookies the
	// backend sets on login and refresh responses.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	rest, err := client.NewClient(serverURL, &http.Client{
		Jar:     jar,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	fallback, err := client.NewCookieFallback(jar, rest.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie fallback: %w", err)
	}

	path, err := credentialsPath(config.CurrentContext)
	if err != nil {
		return nil, err
	}
	cache := NewFileCache(path)

	tokens := client.NewTokenManager(cache, fallback, rest)
	return &Session{
		Client: rest,
		Tokens: tokens,
		API:    client.NewAPI(rest, tokens),
		Cache:  cache,
	}, nil
}

// RequireCredential fails with a login hint when there is no stored token
func (s *Session) RequireCredential() error {
	if s.Tokens.AccessToken() == "" && s.Tokens.RefreshToken() == "" {
		return errNotLoggedIn
	}
	return nil
}

// apiError turns an expired session into a login hint
func apiError(err error) error {
	if errors.Is(err, client.ErrSessionExpired) {
		return fmt.Errorf("%w\nPlease run 'taskboard auth login' again", err)
	}
	return err
}
