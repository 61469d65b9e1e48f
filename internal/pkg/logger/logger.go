package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Level         slog.Level
	LogFile       string
	LogToStderr   bool
	AlsoLogStderr bool
	Format        string // "json" or "text"

	// Output overrides the file/stderr selection; used by tests
	Output io.Writer
}

// credentialKeys are attribute keys whose values are shortened by TokenPreview
var credentialKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"authorization": true,
	"password":      true,
	"new_password":  true,
	"old_password":  true,
}

// SetupLogger creates a configured slog logger. Credential attributes are
// redacted at the handler so a stray slog.String("access_token", t) never
// reaches the log.
func SetupLogger(cfg Config) (*slog.Logger, error) {
	writer, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   true,
		ReplaceAttr: redactCredentials,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler), nil
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}

	var writers []io.Writer
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}
	if cfg.LogToStderr || cfg.AlsoLogStderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}
	return io.MultiWriter(writers...), nil
}

func redactCredentials(groups []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString && credentialKeys[strings.ToLower(a.Key)] {
		v := strings.TrimPrefix(a.Value.String(), "Bearer ")
		return slog.String(a.Key, TokenPreview(v))
	}
	return a
}

// ParseLevel converts a string to slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns the default logger tagged with a component name
func Component(name string) *slog.Logger {
	return slog.Default().With(slog.String("component", name))
}

func WithRequest(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

func WithHTTPRequest(logger *slog.Logger, method, path string) *slog.Logger {
	return logger.With("http_method", method, "http_path", path)
}

func WithDuration(logger *slog.Logger, duration time.Duration) *slog.Logger {
	return logger.With("duration_ms", duration.Milliseconds())
}

// TokenPreview returns a loggable prefix of a bearer token. Full tokens are never logged.
func TokenPreview(token string) string {
	if len(token) > 12 {
		return token[:12] + "..."
	}
	if token == "" {
		return "<none>"
	}
	return "***"
}
