// Package storage is the local persistence adapter: a small key/value
// contract with in-memory, SQL and Redis backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys used by the ordering app. They match the keys the web client wrote
// so existing snapshots stay readable.
const (
	KeyCart          = "reztau-cart"
	KeyFavorites     = "reztau-favorites"
	KeyTheme         = "reztau-theme"
	KeyNotifications = "reztau-notifications"
	KeyProfile       = "reztau-user-profile"
	KeySession       = "nhost-session"
)

var (
	// ErrCorrupt is returned when a stored value cannot be decoded.
	ErrCorrupt = errors.New("stored value is corrupt")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Store is a string key/value store. Implementations need not be
// transactional.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ScopedKey namespaces key by session. An empty session keeps the bare key.
func ScopedKey(key, sessionID string) string {
	if sessionID == "" {
		return key
	}
	return key + ":" + sessionID
}

// LoadJSON decodes the value stored under key into v. found is false when
// the key is absent or empty. A value that is not valid JSON yields an error
// wrapping ErrCorrupt.
func LoadJSON(ctx context.Context, s Store, key string, v any) (found bool, err error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
