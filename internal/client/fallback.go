package client

import (
	"net/http"
	"net/url"
	"time"
)

// Cookie names the backend sets on login, registration and refresh responses.
const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
	CookieExpiresAt    = "access_token_expires_at"
)

// cookieNames maps credential fields to the backend cookie that mirrors them.
// There is no email cookie.
var cookieNames = map[Field]string{
	FieldAccessToken:  CookieAccessToken,
	FieldRefreshToken: CookieRefreshToken,
	FieldExpiresAt:    CookieExpiresAt,
}

// CookieFallback reads credential fields from the cookies the backend stored
// in an http.CookieJar.
type CookieFallback struct {
	jar  http.CookieJar
	site *url.URL
}

// NewCookieFallback creates a fallback over jar for cookies scoped to baseURL
func NewCookieFallback(jar http.CookieJar, baseURL string) (*CookieFallback, error) {
	site, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	// Backend cookies are set with path=/
	site = &url.URL{Scheme: site.Scheme, Host: site.Host, Path: "/"}
	return &CookieFallback{jar: jar, site: site}, nil
}

func (f *CookieFallback) Get(field Field) string {
	name, ok := cookieNames[field]
	if !ok || f.jar == nil {
		return ""
	}
	for _, c := range f.jar.Cookies(f.site) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Clear expires the local copies of the backend cookies.
func (f *CookieFallback) Clear() {
	if f.jar == nil {
		return
	}
	expired := make([]*http.Cookie, 0, len(cookieNames))
	for _, name := range []string{CookieAccessToken, CookieExpiresAt, CookieRefreshToken} {
		expired = append(expired, &http.Cookie{
			Name:    name,
			Value:   "",
			Path:    "/",
			Expires: time.Unix(0, 0),
			MaxAge:  -1,
		})
	}
	f.jar.SetCookies(f.site, expired)
}

// NoFallback is used where no cookie mirror exists.
type NoFallback struct{}

func (NoFallback) Get(Field) string { return "" }
func (NoFallback) Clear()           {}
