package session

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// jarKey is the session key holding the backend cookies
const jarKey = "backend_cookies"

type storedCookie struct {
	Name  string `json:"n"`
	Value string `json:"v"`
}

// Jar is an http.CookieJar whose backend cookies live in the browser
// session, so each visitor gets the cookies the backend issued to them.
type Jar struct {
	s     *Session
	inner *cookiejar.Jar
	site  *url.URL
}

// NewJar loads the backend cookies for backendURL from the session
func NewJar(s *Session, backendURL string) (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(backendURL)
	if err != nil {
		return nil, err
	}
	j := &Jar{
		s:     s,
		inner: inner,
		site:  &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"},
	}

	if raw := s.getString(jarKey); raw != "" {
		var stored []storedCookie
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			s.log.Debug("dropping unreadable backend cookies", slog.String("error", err.Error()))
		} else {
			cookies := make([]*http.Cookie, 0, len(stored))
			for _, c := range stored {
				cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
			}
			inner.SetCookies(j.site, cookies)
		}
	}
	return j, nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)
	j.persist()
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

func (j *Jar) persist() {
	cookies := j.inner.Cookies(j.site)
	var encoded string
	if len(cookies) > 0 {
		stored := make([]storedCookie, 0, len(cookies))
		for _, c := range cookies {
			stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
		}
		data, err := json.Marshal(stored)
		if err != nil {
			j.s.log.Warn("failed to encode backend cookies", slog.String("error", err.Error()))
			return
		}
		encoded = string(data)
	}

	err := j.s.update(func(values map[interface{}]interface{}) {
		if encoded == "" {
			delete(values, jarKey)
			return
		}
		values[jarKey] = encoded
	})
	if err != nil {
		j.s.log.Warn("failed to save backend cookies", slog.String("error", err.Error()))
	}
}
