package urlutil

import (
	"net/url"
	"strings"
)

// LoginPath is where unauthenticated visitors of protected pages are sent.
const LoginPath = "/login"

// BuildLoginRedirectURL builds the login URL carrying the page the visitor wanted.
// Returns a URL like: /login?next={path}%3F{query}
func BuildLoginRedirectURL(path, rawQuery string) string {
	next := path
	if rawQuery != "" {
		next += "?" + rawQuery
	}
	if !IsSafeNext(next) {
		return LoginPath
	}

	q := url.Values{}
	q.Set("next", next)
	return LoginPath + "?" + q.Encode()
}

// SafeNext returns next when it is a same-site relative path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if IsSafeNext(next) {
		return next
	}
	return fallback
}

// IsSafeNext reports whether next is a relative path on this site.
// Absolute URLs, protocol-relative URLs and backslash tricks are rejected.
func IsSafeNext(next string) bool {
	if next == "" || !strings.HasPrefix(next, "/") {
		return false
	}
	if strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return false
	}
	u, err := url.Parse(next)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// BuildAPIURL joins an API base URL such as http://host/api with an endpoint path.
func BuildAPIURL(baseURL, endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	u.Path = u.Path + "/" + strings.TrimLeft(endpoint, "/")
	return u.String(), nil
}
