package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/taskboard/internal/client"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// browser carries the session cookie from one request to the next
type browser struct {
	cookies []*http.Cookie
}

func (b *browser) request() *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range b.cookies {
		r.AddCookie(c)
	}
	return r
}

func (b *browser) keep(rec *httptest.ResponseRecorder) {
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		b.cookies = cookies
	}
}

func openSession(t *testing.T, m *Manager, b *browser) (*Session, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	return m.get(rec, b.request(), slog.Default()), rec
}

func TestCookieCache_PersistsAcrossRequests(t *testing.T) {
	m := NewManager(testKey, false, 0)
	b := &browser{}

	s, rec := openSession(t, m, b)
	cache := NewCookieCache(s)
	require.NoError(t, cache.Set(map[client.Field]string{
		client.FieldAccessToken: "a1",
		client.FieldExpiresAt:   "2026-01-05T22:58:02+00:00",
	}))
	require.NoError(t, cache.Set(map[client.Field]string{client.FieldEmail: "ada@example.com"}))
	assert.Len(t, rec.Header().Values("Set-Cookie"), 1, "repeated saves replace the queued cookie")
	b.keep(rec)

	s, rec = openSession(t, m, b)
	cache = NewCookieCache(s)
	v, err := cache.Get(client.FieldAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a1", v)
	v, _ = cache.Get(client.FieldEmail)
	assert.Equal(t, "ada@example.com", v)
	v, _ = cache.Get(client.FieldRefreshToken)
	assert.Equal(t, "", v)

	require.NoError(t, cache.Clear())
	b.keep(rec)

	s, _ = openSession(t, m, b)
	v, _ = NewCookieCache(s).Get(client.FieldAccessToken)
	assert.Equal(t, "", v)
}

// signedToken builds a token about the size the backend issues
func signedToken(t *testing.T, kind string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token_type": kind,
		"exp":        time.Now().Add(time.Hour).Unix(),
		"jti":        strings.Repeat("7f3c9a", 6),
		"user_id":    42,
		"email":      "ada@example.com",
		"role_name":  "administrator",
		"groups":     strings.Repeat("board-editors,", 40),
	}).SignedString(testKey)
	require.NoError(t, err)
	return token
}

func TestCookieSession_HoldsJWTSizedCredential(t *testing.T) {
	m := NewManager(testKey, false, 0)
	b := &browser{}
	backend := "http://api.example.com:8000/api"
	site, _ := url.Parse("http://api.example.com:8000/")
	access, refresh := signedToken(t, "access"), signedToken(t, "refresh")
	require.Greater(t, len(access)+len(refresh), 1500)

	s, rec := openSession(t, m, b)
	require.NoError(t, NewCookieCache(s).Set(map[client.Field]string{
		client.FieldAccessToken:  access,
		client.FieldRefreshToken: refresh,
	}))
	jar, err := NewJar(s, backend)
	require.NoError(t, err)
	jar.SetCookies(site, []*http.Cookie{
		{Name: client.CookieAccessToken, Value: access, Path: "/"},
		{Name: client.CookieRefreshToken, Value: refresh, Path: "/", HttpOnly: true},
	})
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Greater(t, len(rec.Result().Cookies()[0].Value), 4096)
	b.keep(rec)

	s, _ = openSession(t, m, b)
	cache := NewCookieCache(s)
	v, err := cache.Get(client.FieldAccessToken)
	require.NoError(t, err)
	assert.Equal(t, access, v)
	v, err = cache.Get(client.FieldRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, refresh, v)

	jar, err = NewJar(s, backend)
	require.NoError(t, err)
	fallback, err := client.NewCookieFallback(jar, backend)
	require.NoError(t, err)
	assert.Equal(t, refresh, fallback.Get(client.FieldRefreshToken))
}

func TestManager_TamperedCookieStartsFresh(t *testing.T) {
	m := NewManager(testKey, false, 0)
	b := &browser{cookies: []*http.Cookie{{Name: SessionName, Value: "garbage"}}}

	s, _ := openSession(t, m, b)
	v, err := NewCookieCache(s).Get(client.FieldAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := NewManager(testKey, false, 0)
	b := &browser{}
	ctx := context.Background()

	s, rec := openSession(t, m, b)
	cache := NewRedisCache(ctx, rdb, s, time.Hour)

	v, err := cache.Get(client.FieldAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "", v, "no id yet")
	require.NoError(t, cache.Clear())

	require.NoError(t, cache.Set(map[client.Field]string{
		client.FieldAccessToken:  "a1",
		client.FieldRefreshToken: "r1",
	}))
	b.keep(rec)

	id := s.getString(redisKeyValue)
	require.NotEmpty(t, id)
	key := redisKeyPrefix + id
	assert.True(t, mr.Exists(key))
	assert.Equal(t, "r1", mr.HGet(key, "refresh_token"))
	assert.Equal(t, time.Hour, mr.TTL(key))

	// The next request finds the hash through the id in the cookie
	s, _ = openSession(t, m, b)
	cache = NewRedisCache(ctx, rdb, s, time.Hour)
	v, err = cache.Get(client.FieldAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a1", v)

	require.NoError(t, cache.Set(map[client.Field]string{client.FieldAccessToken: "a2"}))
	assert.Equal(t, id, s.getString(redisKeyValue), "id is stable")
	assert.Equal(t, "a2", mr.HGet(key, "access_token"))
	assert.Equal(t, "r1", mr.HGet(key, "refresh_token"))

	require.NoError(t, cache.Clear())
	assert.False(t, mr.Exists(key))
}

func TestRedisCache_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	m := NewManager(testKey, false, 0)
	s, _ := openSession(t, m, &browser{})
	s.raw.Values[redisKeyValue] = "abc"
	cache := NewRedisCache(context.Background(), rdb, s, time.Hour)

	mr.Close()
	_, err := cache.Get(client.FieldAccessToken)
	assert.Error(t, err)
}

func TestStore_RedisCacheOutlivesRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := NewStore(NewManager(testKey, false, 0), "http://localhost:8000/api", slog.Default(),
		WithRedis(rdb, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	s, err := st.Open(httptest.NewRecorder(), req)
	require.NoError(t, err)

	// The browser went away while a shared refresh was still finishing
	cancel()
	s.Tokens.SetEmail("ada@example.com")

	id := s.getString(redisKeyValue)
	require.NotEmpty(t, id)
	assert.Equal(t, "ada@example.com", mr.HGet(redisKeyPrefix+id, "email"))
}

func TestJar_PersistsBackendCookies(t *testing.T) {
	m := NewManager(testKey, false, 0)
	b := &browser{}
	backend := "http://api.example.com:8000/api"
	site, _ := url.Parse("http://api.example.com:8000/")

	s, rec := openSession(t, m, b)
	jar, err := NewJar(s, backend)
	require.NoError(t, err)
	jar.SetCookies(site, []*http.Cookie{
		{Name: client.CookieRefreshToken, Value: "r1", Path: "/", HttpOnly: true},
		{Name: client.CookieAccessToken, Value: "a1", Path: "/"},
	})
	b.keep(rec)

	s, rec = openSession(t, m, b)
	jar, err = NewJar(s, backend)
	require.NoError(t, err)
	fallback, err := client.NewCookieFallback(jar, backend)
	require.NoError(t, err)
	assert.Equal(t, "r1", fallback.Get(client.FieldRefreshToken))
	assert.Equal(t, "a1", fallback.Get(client.FieldAccessToken))

	fallback.Clear()
	b.keep(rec)

	s, _ = openSession(t, m, b)
	jar, err = NewJar(s, backend)
	require.NoError(t, err)
	assert.Empty(t, jar.Cookies(site))
}

func TestFlashes(t *testing.T) {
	m := NewManager(testKey, false, 0)
	b := &browser{}

	s, rec := openSession(t, m, b)
	s.AddFlash("Task created")
	b.keep(rec)

	s, rec = openSession(t, m, b)
	assert.Equal(t, []string{"Task created"}, s.Flashes())
	b.keep(rec)

	s, _ = openSession(t, m, b)
	assert.Empty(t, s.Flashes())
}

func TestDropSetCookie(t *testing.T) {
	h := http.Header{}
	h.Add("Set-Cookie", "other=1")
	h.Add("Set-Cookie", SessionName+"=old")
	dropSetCookie(h, SessionName)
	assert.Equal(t, []string{"other=1"}, h.Values("Set-Cookie"))
}

func TestStore_Open(t *testing.T) {
	st := NewStore(NewManager(testKey, false, 0), "http://localhost:8000/api", slog.Default())
	rec := httptest.NewRecorder()
	s, err := st.Open(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotNil(t, s.Tokens)
	require.NotNil(t, s.API)
	assert.Equal(t, client.NoCredential, s.Tokens.State())

	ctx := NewContext(context.Background(), s)
	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, s, got)
}
