package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/publicsuffix"
)

// recordedRequest is what the fake server saw
type recordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
	Body          map[string]any
}

// fakeServer is an httptest backend that records requests and replays
// canned responses keyed by "METHOD path".
type fakeServer struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string][]cannedResponse
}

type cannedResponse struct {
	status  int
	body    string
	cookies []*http.Cookie
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{responses: make(map[string][]cannedResponse)}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) on(method, path string, status int, body string, cookies ...*http.Cookie) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	key := method + " " + path
	fs.responses[key] = append(fs.responses[key], cannedResponse{status: status, body: body, cookies: cookies})
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	rec := recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-ID"),
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}

	fs.mu.Lock()
	fs.requests = append(fs.requests, rec)
	key := r.Method + " " + r.URL.Path
	queue := fs.responses[key]
	var resp cannedResponse
	switch {
	case len(queue) == 0:
		resp = cannedResponse{status: http.StatusNotFound, body: `{"detail":"Not found."}`}
	case len(queue) == 1:
		resp = queue[0]
	default:
		resp = queue[0]
		fs.responses[key] = queue[1:]
	}
	fs.mu.Unlock()

	for _, c := range resp.cookies {
		http.SetCookie(w, c)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, resp.body)
}

func (fs *fakeServer) recorded() []recordedRequest {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]recordedRequest(nil), fs.requests...)
}

func (fs *fakeServer) count(method, path string) int {
	n := 0
	for _, r := range fs.recorded() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, fs *fakeServer) *Client {
	t.Helper()
	c, err := NewClient(fs.URL+"/api", nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", nil)
	assert.Error(t, err)

	c, err := NewClient("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestClient_Login(t *testing.T) {
	fs := newFakeServer(t)
	fs.on(http.MethodPost, "/api/accounts/login/", http.StatusOK,
		`{"access_token":"a","refresh_token":"r","expires_at":"2026-01-05T22:58:02+00:00","user":{"id":7,"email":"ada@example.com","role_name":"user"}}`)
	c := newTestClient(t, fs)

	resp, err := c.Login(context.Background(), LoginRequest{
		Email:      "ada@example.com",
		Password:   "pw",
		ScreenSize: "1920x1080",
		Timezone:   "Europe/Moscow",
		Language:   "en",
	})
	require.NoError(t, err)
	assert.Equal(t, "a", resp.AccessToken)
	assert.Equal(t, "ada@example.com", resp.EmailAddress())
	assert.Equal(t, int64(7), resp.User.ID)

	reqs := fs.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "ada@example.com", reqs[0].Body["email"])
	assert.Equal(t, "1920x1080", reqs[0].Body["screen_size"])
	assert.Equal(t, "Europe/Moscow", reqs[0].Body["timezone"])
	assert.Equal(t, map[string]any{}, reqs[0].Body["extra_metadata"])
	assert.NotEmpty(t, reqs[0].RequestID)
}

func TestClient_ErrorDecoding(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error string", http.StatusUnauthorized, `{"error":"Invalid email or password"}`, "Invalid email or password"},
		{"error object", http.StatusBadRequest, `{"error":{"password":["Too short"],"email":["Taken"]}}`, "Taken, Too short"},
		{"message", http.StatusForbidden, `{"message":"Forbidden for role"}`, "Forbidden for role"},
		{"detail", http.StatusUnauthorized, `{"detail":"Given token not valid for any token type"}`, "Given token not valid for any token type"},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeServer(t)
			fs.on(http.MethodPost, "/api/accounts/login/", tt.status, tt.body)
			c := newTestClient(t, fs)

			_, err := c.Login(context.Background(), LoginRequest{})
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Message)
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestClient_RefreshAndLogoutBodies(t *testing.T) {
	fs := newFakeServer(t)
	fs.on(http.MethodPost, "/api/accounts/token/refresh/", http.StatusOK, `{"access_token":"new"}`)
	fs.on(http.MethodPost, "/api/accounts/logout/", http.StatusOK, `{"message":"Logged out"}`)
	c := newTestClient(t, fs)

	resp, err := c.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "new", resp.AccessToken)

	header := http.Header{}
	header.Set("Authorization", "Bearer a1")
	require.NoError(t, c.Logout(context.Background(), header, "r1"))

	reqs := fs.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, map[string]any{"refresh_token": "r1"}, reqs[0].Body)
	assert.Equal(t, "Bearer a1", reqs[1].Authorization)
	assert.Equal(t, map[string]any{"refresh_token": "r1"}, reqs[1].Body)
}

func TestCookieFallback(t *testing.T) {
	fs := newFakeServer(t)
	fs.on(http.MethodPost, "/api/accounts/login/", http.StatusOK, `{"access_token":"a"}`,
		&http.Cookie{Name: CookieAccessToken, Value: "cookie-access", Path: "/", HttpOnly: true},
		&http.Cookie{Name: CookieRefreshToken, Value: "cookie-refresh", Path: "/", HttpOnly: true},
		&http.Cookie{Name: CookieExpiresAt, Value: "2026-01-05T22:58:02+00:00", Path: "/"},
	)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	require.NoError(t, err)
	c, err := NewClient(fs.URL+"/api", &http.Client{Jar: jar})
	require.NoError(t, err)

	_, err = c.Login(context.Background(), LoginRequest{})
	require.NoError(t, err)

	fallback, err := NewCookieFallback(jar, c.BaseURL())
	require.NoError(t, err)
	assert.Equal(t, "cookie-access", fallback.Get(FieldAccessToken))
	assert.Equal(t, "cookie-refresh", fallback.Get(FieldRefreshToken))
	assert.Equal(t, "2026-01-05T22:58:02+00:00", fallback.Get(FieldExpiresAt))
	assert.Equal(t, "", fallback.Get(FieldEmail))

	fallback.Clear()
	for _, f := range Fields {
		assert.Equal(t, "", fallback.Get(f), f)
	}
}

// apiFixture wires a fake server, REST client, token manager and API
func apiFixture(t *testing.T, fields map[Field]string) (*fakeServer, *API, *TokenManager) {
	t.Helper()
	fs := newFakeServer(t)
	c := newTestClient(t, fs)
	cache := NewMemoryCache()
	if fields != nil {
		require.NoError(t, cache.Set(fields))
	}
	m := NewTokenManager(cache, nil, c, WithClock(func() time.Time { return testNow }))
	return fs, NewAPI(c, m), m
}

func TestAPI_Tasks(t *testing.T) {
	fs, api, _ := apiFixture(t, map[Field]string{
		FieldAccessToken: "a1",
		FieldExpiresAt:   expiry(time.Hour),
	})
	fs.on(http.MethodGet, "/api/tasks/", http.StatusOK,
		`[{"id":1,"title":"Root","status":"pending","user_info":{"email":"ada@example.com"},"subtasks":[{"id":2,"title":"Child","parent_id":1,"status":"done","subtasks":[]}]}]`)

	tasks, err := api.Tasks(context.Background(), TaskDone)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Root", tasks[0].Title)
	require.Len(t, tasks[0].Subtasks, 1)
	require.NotNil(t, tasks[0].Subtasks[0].ParentID)
	assert.Equal(t, int64(1), *tasks[0].Subtasks[0].ParentID)

	_, err = api.Tasks(context.Background(), "all")
	require.NoError(t, err)

	reqs := fs.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer a1", reqs[0].Authorization)
	assert.Equal(t, "group=done", reqs[0].Query)
	assert.Equal(t, "", reqs[1].Query)
}

func TestAPI_TaskMutations(t *testing.T) {
	fs, api, _ := apiFixture(t, map[Field]string{
		FieldAccessToken: "a1",
		FieldExpiresAt:   expiry(time.Hour),
	})
	fs.on(http.MethodPost, "/api/tasks/", http.StatusCreated, `{"id":5,"title":"New","status":"pending"}`)
	fs.on(http.MethodPatch, "/api/tasks/5/", http.StatusOK, `{"id":5,"title":"New","status":"in_progress"}`)
	fs.on(http.MethodDelete, "/api/tasks/5/delete/", http.StatusNoContent, ``)

	parent := int64(3)
	created, err := api.CreateTask(context.Background(), TaskInput{Title: "New", ParentID: &parent})
	require.NoError(t, err)
	assert.Equal(t, int64(5), created.ID)

	status := TaskInProgress
	updated, err := api.UpdateTask(context.Background(), 5, TaskPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, TaskInProgress, updated.Status)

	require.NoError(t, api.DeleteTask(context.Background(), 5))

	reqs := fs.recorded()
	require.Len(t, reqs, 3)
	assert.Equal(t, map[string]any{"title": "New", "parent_id": float64(3)}, reqs[0].Body)
	assert.Equal(t, map[string]any{"status": "in_progress"}, reqs[1].Body)
}

func TestAPI_PublicTasksSendNoToken(t *testing.T) {
	fs, api, _ := apiFixture(t, map[Field]string{
		FieldAccessToken: "a1",
		FieldExpiresAt:   expiry(time.Hour),
	})
	fs.on(http.MethodGet, "/api/tasks/public/", http.StatusOK, `[]`)

	tasks, err := api.PublicTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, "", fs.recorded()[0].Authorization)
}

func TestAPI_RetriesOnceAfterUnauthorized(t *testing.T) {
	fs, api, m := apiFixture(t, map[Field]string{
		FieldAccessToken:  "revoked",
		FieldRefreshToken: "r1",
		FieldExpiresAt:    expiry(time.Hour),
	})
	fs.on(http.MethodGet, "/api/users/", http.StatusUnauthorized, `{"detail":"Token is blacklisted"}`)
	fs.on(http.MethodGet, "/api/users/", http.StatusOK, `[{"id":1,"email":"ada@example.com","role_name":"administrator"}]`)
	fs.on(http.MethodPost, "/api/accounts/token/refresh/", http.StatusOK,
		`{"access_token":"fresh","expires_at":"`+expiry(time.Hour)+`"}`)

	users, err := api.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)

	reqs := fs.recorded()
	require.Len(t, reqs, 3)
	assert.Equal(t, "Bearer revoked", reqs[0].Authorization)
	assert.Equal(t, "/api/accounts/token/refresh/", reqs[1].Path)
	assert.Equal(t, "Bearer fresh", reqs[2].Authorization)
	assert.Equal(t, "fresh", m.AccessToken())
}

func TestAPI_NoSecondRetry(t *testing.T) {
	fs, api, _ := apiFixture(t, map[Field]string{
		FieldAccessToken:  "revoked",
		FieldRefreshToken: "r1",
		FieldExpiresAt:    expiry(time.Hour),
	})
	fs.on(http.MethodGet, "/api/users/", http.StatusUnauthorized, `{"detail":"Token is blacklisted"}`)
	fs.on(http.MethodPost, "/api/accounts/token/refresh/", http.StatusOK, `{"access_token":"fresh"}`)

	_, err := api.Users(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, 2, fs.count(http.MethodGet, "/api/users/"))
	assert.Equal(t, 1, fs.count(http.MethodPost, "/api/accounts/token/refresh/"))
}

func TestAPI_NoRetryWhenHeaderPathRefreshed(t *testing.T) {
	fs, api, _ := apiFixture(t, map[Field]string{
		FieldAccessToken:  "stale",
		FieldRefreshToken: "r1",
		FieldExpiresAt:    expiry(-time.Hour),
	})
	fs.on(http.MethodPost, "/api/accounts/token/refresh/", http.StatusOK,
		`{"access_token":"fresh","expires_at":"`+expiry(time.Hour)+`"}`)
	fs.on(http.MethodGet, "/api/tasks/1/", http.StatusUnauthorized, `{"detail":"User is inactive"}`)

	_, err := api.Task(context.Background(), 1)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, fs.count(http.MethodGet, "/api/tasks/1/"))
	assert.Equal(t, 1, fs.count(http.MethodPost, "/api/accounts/token/refresh/"))
}

func TestAPI_ForbiddenIsNotRetried(t *testing.T) {
	fs, api, _ := apiFixture(t, map[Field]string{
		FieldAccessToken:  "a1",
		FieldRefreshToken: "r1",
		FieldExpiresAt:    expiry(time.Hour),
	})
	fs.on(http.MethodPost, "/api/users/9/promote/", http.StatusForbidden, `{"error":"Only administrators can change roles"}`)

	_, err := api.PromoteUser(context.Background(), 9)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
	assert.Equal(t, 0, fs.count(http.MethodPost, "/api/accounts/token/refresh/"))
}

func TestAPI_RoleChange(t *testing.T) {
	fs, api, _ := apiFixture(t, map[Field]string{
		FieldAccessToken: "a1",
		FieldExpiresAt:   expiry(time.Hour),
	})
	fs.on(http.MethodPost, "/api/users/9/demote/", http.StatusOK,
		`{"message":"User demoted to user","user":{"id":9,"email":"bob@example.com","role_name":"user"}}`)

	resp, err := api.DemoteUser(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "User demoted to user", resp.Message)
	assert.Equal(t, RoleUser, resp.User.RoleName)
}

func TestAPI_ChangeEmailUpdatesCache(t *testing.T) {
	fs, api, m := apiFixture(t, map[Field]string{
		FieldAccessToken: "a1",
		FieldExpiresAt:   expiry(time.Hour),
		FieldEmail:       "old@example.com",
	})
	fs.on(http.MethodPost, "/api/accounts/change-email/", http.StatusOK,
		`{"message":"Email changed","old_email":"old@example.com","new_email":"new@example.com"}`)

	resp, err := api.ChangeEmail(context.Background(), ChangeEmailRequest{NewEmail: "new@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "old@example.com", resp.OldEmail)
	assert.Equal(t, "new@example.com", m.Email())
	assert.Equal(t, map[string]any{"new_email": "new@example.com", "password": "pw"}, fs.recorded()[0].Body)
}

func TestAPI_DeleteAccountForgetsCredential(t *testing.T) {
	fs, api, m := apiFixture(t, map[Field]string{
		FieldAccessToken:  "a1",
		FieldRefreshToken: "r1",
		FieldExpiresAt:    expiry(time.Hour),
	})
	fs.on(http.MethodPost, "/api/accounts/delete/", http.StatusOK, `{"message":"Account deleted"}`)

	msg, err := api.DeleteAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Account deleted", msg)
	assert.Equal(t, NoCredential, m.State())
}

func TestAPI_UpdateProfile(t *testing.T) {
	fs, api, _ := apiFixture(t, map[Field]string{
		FieldAccessToken: "a1",
		FieldExpiresAt:   expiry(time.Hour),
	})
	fs.on(http.MethodPatch, "/api/accounts/profile/", http.StatusOK,
		`{"message":"Profile updated","user":{"id":1,"email":"ada@example.com","name":"Ada"}}`)

	name := "Ada"
	p, err := api.UpdateProfile(context.Background(), ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, map[string]any{"name": "Ada"}, fs.recorded()[0].Body)
}

func TestTokenManager_EndToEnd(t *testing.T) {
	fs := newFakeServer(t)
	fs.on(http.MethodPost, "/api/accounts/login/", http.StatusOK,
		`{"access_token":"a1","refresh_token":"r1","expires_at":"`+expiry(time.Hour)+`","email":"ada@example.com"}`)
	fs.on(http.MethodGet, "/api/accounts/profile/", http.StatusOK, `{"id":1,"email":"ada@example.com"}`)
	fs.on(http.MethodPost, "/api/accounts/logout/", http.StatusInternalServerError, `{"error":"boom"}`)

	c := newTestClient(t, fs)
	m := NewTokenManager(nil, nil, c, WithClock(func() time.Time { return testNow }))

	_, err := m.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, Fresh, m.State())

	profile, ok := m.ValidateProfile(context.Background())
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", profile.Email)

	assert.False(t, m.Logout(context.Background()))
	assert.Equal(t, NoCredential, m.State())
}
