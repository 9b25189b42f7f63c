// Package state persists the expiry store and the update cursor
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mallocator/domain-mon/pkg/config"
	"github.com/mallocator/domain-mon/pkg/logger"
)

// Backend reads and writes the expiry store and the cursor wholesale.
// LoadCursor returns "" when no cursor has been saved yet.
type Backend interface {
	LoadStore(ctx context.Context) (*Store, error)
	SaveStore(ctx context.Context, store *Store) error
	LoadCursor(ctx context.Context) (string, error)
	SaveCursor(ctx context.Context, domain string) error
	Close() error
}

// New creates the backend selected by the configuration
func New(cfg *config.Config, log *logger.Logger) (Backend, error) {
	switch cfg.Store {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Protocol: 2,
		})
		log.Debugf("Using Redis store at %s (prefix %q)", cfg.RedisAddr, cfg.RedisPrefix)
		return NewRedis(client, cfg.RedisPrefix, log), nil
	case config.StoreFile, "":
		log.Debugf("Using file store %s, cursor %s", cfg.Path(cfg.ExpiriesFile), cfg.Path(cfg.HeadFile))
		return NewManager(cfg.Path(cfg.ExpiriesFile), cfg.Path(cfg.HeadFile), log), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

// Manager keeps the store in a JSON file and the cursor in a text file
type Manager struct {
	storePath  string
	cursorPath string
	log        *logger.Logger
}

// NewManager creates a file backed state manager
func NewManager(storePath, cursorPath string, log *logger.Logger) *Manager {
	return &Manager{
		storePath:  storePath,
		cursorPath: cursorPath,
		log:        log,
	}
}

// LoadStore reads the expiry store, returning an empty store on first run
func (m *Manager) LoadStore(_ context.Context) (*Store, error) {
	data, err := os.ReadFile(m.storePath)
	if errors.Is(err, os.ErrNotExist) {
		m.log.Debugf("No expiry store at %s yet", m.storePath)
		return NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.storePath, err)
	}

	store := NewStore()
	if err := json.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("file '%s' is invalid, please verify the JSON syntax: %w", m.storePath, err)
	}
	return store, nil
}

// SaveStore writes the expiry store
func (m *Manager) SaveStore(_ context.Context, store *Store) error {
	data, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("encoding expiry store: %w", err)
	}
	if err := os.WriteFile(m.storePath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", m.storePath, err)
	}
	return nil
}

// LoadCursor reads the domain name stored as the cursor
func (m *Manager) LoadCursor(_ context.Context) (string, error) {
	data, err := os.ReadFile(m.cursorPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", m.cursorPath, err)
	}
	return strings.TrimRight(string(data), " \t\r\n"), nil
}

// SaveCursor writes the cursor domain name
func (m *Manager) SaveCursor(_ context.Context, domain string) error {
	if err := os.WriteFile(m.cursorPath, []byte(domain), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", m.cursorPath, err)
	}
	return nil
}

// Close is a no-op, files are not kept open between calls
func (m *Manager) Close() error {
	return nil
}
