package session

import (
	"github.com/devilmonastery/taskboard/internal/client"
)

const credentialPrefix = "credential."

func credentialKey(f client.Field) string {
	return credentialPrefix + string(f)
}

// CookieCache keeps the credential inside the encrypted session cookie
type CookieCache struct {
	s *Session
}

// NewCookieCache creates a cache over the session's cookie
func NewCookieCache(s *Session) *CookieCache {
	return &CookieCache{s: s}
}

func (c *CookieCache) Get(f client.Field) (string, error) {
	return c.s.getString(credentialKey(f)), nil
}

func (c *CookieCache) Set(fields map[client.Field]string) error {
	return c.s.update(func(values map[interface{}]interface{}) {
		for f, v := range fields {
			values[credentialKey(f)] = v
		}
	})
}

func (c *CookieCache) Clear() error {
	return c.s.update(func(values map[interface{}]interface{}) {
		for _, f := range client.Fields {
			delete(values, credentialKey(f))
		}
	})
}
