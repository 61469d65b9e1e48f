package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/devilmonastery/taskboard/internal/client"
	"github.com/devilmonastery/taskboard/internal/pkg/logger"
)

// FileCache is the CLI's primary credential cache: one JSON file per
// configuration context, readable only by the owner.
type FileCache struct {
	path string
	mu   sync.Mutex
	log  *slog.Logger
}

// NewFileCache creates a cache stored at path
func NewFileCache(path string) *FileCache {
	return &FileCache{
		path: path,
		log:  logger.Component("cli-creds"),
	}
}

// Path returns the credentials file location
func (f *FileCache) Path() string {
	return f.path
}

func (f *FileCache) Get(field client.Field) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		return "", err
	}
	return creds.Get(field), nil
}

func (f *FileCache) Set(fields map[client.Field]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds, err := f.load()
	if err != nil {
		// A corrupt file is replaced rather than blocking login
		f.log.Warn("discarding unreadable credentials", slog.String("error", err.Error()))
		creds = &client.Credential{}
	}
	for field, v := range fields {
		creds.Set(field, v)
	}
	return f.save(creds)
}

func (f *FileCache) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

// load reads the credentials file. A missing file is an empty credential.
func (f *FileCache) load() (*client.Credential, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &client.Credential{}, nil
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds client.Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &creds, nil
}

func (f *FileCache) save(creds *client.Credential) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// Write with restricted permissions (read/write for owner only)
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// credentialsPath returns the credentials file for a context
func credentialsPath(contextName string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	filename := fmt.Sprintf("credentials-%s.json", contextName)
	return filepath.Join(homeDir, ".config", "taskboard", filename), nil
}
