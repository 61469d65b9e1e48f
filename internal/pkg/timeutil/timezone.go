package timeutil

import (
	"os"
	"time"
)

// DetectTimezone attempts to detect the system's IANA timezone name
func DetectTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}

	now := time.Now()
	if loc := now.Location(); loc != nil && loc.String() != "Local" {
		return loc.String()
	}

	// Fallback to zone abbreviation (not ideal but better than nothing)
	if zone, _ := now.Zone(); zone != "" {
		return zone
	}

	return "UTC"
}

// InZone converts t into the given timezone.
// If timezone is empty or invalid, falls back to UTC
func InZone(t time.Time, timezone string) time.Time {
	if timezone == "" {
		return t.UTC()
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return t.UTC()
	}

	return t.In(loc)
}

// FormatExpiry renders an ISO-8601 expiry timestamp in the user's timezone.
// Unparsable values are returned unchanged.
func FormatExpiry(raw, timezone string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return InZone(t, timezone).Format("2006-01-02 15:04:05 MST")
}
