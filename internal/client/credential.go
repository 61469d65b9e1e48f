package client

import (
	"maps"
	"strings"
	"sync"
	"time"
)

// Field names one piece of stored credential material.
type Field string

const (
	FieldAccessToken  Field = "access_token"
	FieldRefreshToken Field = "refresh_token"
	FieldExpiresAt    Field = "expires_at"
	FieldEmail        Field = "email"
)

// Fields lists every credential field in a stable order.
var Fields = []Field{FieldAccessToken, FieldRefreshToken, FieldExpiresAt, FieldEmail}

// Credential is a snapshot of the current credential as seen through the
// primary cache and the fallback store.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"` // ISO-8601 with UTC offset, kept verbatim
	Email        string `json:"email"`
}

// Get returns the value of a single field
func (c *Credential) Get(f Field) string {
	switch f {
	case FieldAccessToken:
		return c.AccessToken
	case FieldRefreshToken:
		return c.RefreshToken
	case FieldExpiresAt:
		return c.ExpiresAt
	case FieldEmail:
		return c.Email
	}
	return ""
}

// Set assigns a single field
func (c *Credential) Set(f Field, v string) {
	switch f {
	case FieldAccessToken:
		c.AccessToken = v
	case FieldRefreshToken:
		c.RefreshToken = v
	case FieldExpiresAt:
		c.ExpiresAt = v
	case FieldEmail:
		c.Email = v
	}
}

// Cache is the primary, session-scoped credential store. It is authoritative
// over the fallback whenever it holds a value.
//
// Set only touches the fields present in the map; fields that are not
// mentioned keep their previous value.
type Cache interface {
	Get(f Field) (string, error)
	Set(fields map[Field]string) error
	Clear() error
}

// Fallback is the backend-managed cookie mirror. The token manager reads and
// clears it but never writes it.
type Fallback interface {
	Get(f Field) string
	Clear()
}

// MemoryCache keeps the credential for the lifetime of the process.
type MemoryCache struct {
	mu     sync.RWMutex
	values map[Field]string
}

// NewMemoryCache creates an empty process-scoped cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[Field]string)}
}

func (c *MemoryCache) Get(f Field) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[f], nil
}

func (c *MemoryCache) Set(fields map[Field]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	maps.Copy(c.values, fields)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.values)
	return nil
}

// expiryLayouts are the timestamp shapes the backend has been seen to emit.
// RFC 3339 parsing also accepts fractional seconds.
var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
}

// ParseExpiry parses an expires_at value. Values without an explicit offset
// are rejected, since they cannot be placed on the UTC timeline.
func ParseExpiry(raw string) (time.Time, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)

	var lastErr error
	for _, layout := range expiryLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
