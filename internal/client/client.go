package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devilmonastery/taskboard/internal/pkg/idgen"
	"github.com/devilmonastery/taskboard/internal/pkg/logger"
	"github.com/devilmonastery/taskboard/internal/pkg/metrics"
	"github.com/devilmonastery/taskboard/internal/pkg/urlutil"
)

// DefaultBaseURL is the API root of a local development backend
const DefaultBaseURL = "http://localhost:8000/api"

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 4 << 20

// Client talks JSON to the task board REST API. It implements AuthBackend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a REST client for baseURL.
// If httpClient is nil, a client with a 30 second timeout and no cookie jar is used.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        logger.Component("backend_client"),
	}, nil
}

// BaseURL returns the API root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client (and its cookie jar)
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// request describes one backend call
type request struct {
	endpoint string // metrics label
	method   string
	path     string
	query    url.Values
	header   http.Header
	body     any
}

// do performs the request and decodes a 2xx JSON body into out.
// The returned status is 0 when no response was received.
func (c *Client) do(ctx context.Context, req request, out any) (int, error) {
	target, err := urlutil.BuildAPIURL(c.baseURL, req.path)
	if err != nil {
		return 0, fmt.Errorf("failed to build URL for %s: %w", req.path, err)
	}
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode %s request: %w", req.endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s request: %w", req.endpoint, err)
	}
	for key, values := range req.header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	requestID := idgen.RequestID()
	httpReq.Header.Set("X-Request-ID", requestID)

	log := c.log.With(slog.String("endpoint", req.endpoint), slog.String("request_id", requestID))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordBackendRequest(req.endpoint, 0, time.Since(start), err)
		log.Debug("backend request failed", slog.String("error", err.Error()))
		return 0, fmt.Errorf("%s request failed: %w", req.endpoint, err)
	}
	defer resp.Body.Close()
	metrics.RecordBackendRequest(req.endpoint, resp.StatusCode, time.Since(start), nil)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read %s response: %w", req.endpoint, err)
	}

	log.Debug("backend response",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, decodeAPIError(resp.StatusCode, data)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", req.endpoint, err)
		}
	}
	return resp.StatusCode, nil
}

// Login authenticates with email and password
func (c *Client) Login(ctx context.Context, in LoginRequest) (*AuthResponse, error) {
	if in.ExtraMetadata == nil {
		in.ExtraMetadata = map[string]any{}
	}
	var out AuthResponse
	if _, err := c.do(ctx, request{
		endpoint: "login",
		method:   http.MethodPost,
		path:     "/accounts/login/",
		body:     in,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and signs it in
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if _, err := c.do(ctx, request{
		endpoint: "register",
		method:   http.MethodPost,
		path:     "/accounts/register/",
		body:     in,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var out AuthResponse
	if _, err := c.do(ctx, request{
		endpoint: "refresh",
		method:   http.MethodPost,
		path:     "/accounts/token/refresh/",
		body:     map[string]string{"refresh_token": refreshToken},
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout tells the backend to end the session and blacklist the refresh token
func (c *Client) Logout(ctx context.Context, header http.Header, refreshToken string) error {
	_, err := c.do(ctx, request{
		endpoint: "logout",
		method:   http.MethodPost,
		path:     "/accounts/logout/",
		header:   header,
		body:     map[string]string{"refresh_token": refreshToken},
	}, nil)
	return err
}

// Profile fetches the authenticated user's profile
func (c *Client) Profile(ctx context.Context, header http.Header) (*Profile, error) {
	var out Profile
	if _, err := c.do(ctx, request{
		endpoint: "profile",
		method:   http.MethodGet,
		path:     "/accounts/profile/",
		header:   header,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
