// Package preferences stores per-device settings: theme, notification
// opt-in and the delivery profile used to pre-fill checkout.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"restaurant-ordering/storage"
)

// Theme is the UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var ErrUnknownTheme = errors.New("unknown theme")

// Profile holds the saved delivery details of the user.
type Profile struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	AvatarURL string `json:"avatarUrl"`
}

// Store reads and writes preferences through the local store.
type Store struct {
	kv        storage.Store
	sessionID string
	logger    *slog.Logger
}

func New(kv storage.Store, sessionID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, sessionID: sessionID, logger: logger}
}

func (s *Store) key(k string) string {
	return storage.ScopedKey(k, s.sessionID)
}

// Theme returns the saved theme, light when unset or unrecognised.
func (s *Store) Theme(ctx context.Context) (Theme, error) {
	v, ok, err := s.kv.Get(ctx, s.key(storage.KeyTheme))
	if err != nil {
		return ThemeLight, fmt.Errorf("load theme: %w", err)
	}
	if !ok {
		return ThemeLight, nil
	}
	switch Theme(v) {
	case ThemeLight, ThemeDark:
		return Theme(v), nil
	default:
		s.logger.Warn("Ignoring unknown theme", "value", v)
		return ThemeLight, nil
	}
}

func (s *Store) SetTheme(ctx context.Context, t Theme) error {
	if t != ThemeLight && t != ThemeDark {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, t)
	}
	return s.kv.Set(ctx, s.key(storage.KeyTheme), string(t))
}

// Notifications reports whether order notifications are enabled. Defaults to true.
func (s *Store) Notifications(ctx context.Context) (bool, error) {
	v, ok, err := s.kv.Get(ctx, s.key(storage.KeyNotifications))
	if err != nil {
		return true, fmt.Errorf("load notifications: %w", err)
	}
	if !ok {
		return true, nil
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		s.logger.Warn("Ignoring malformed notification setting", "value", v)
		return true, nil
	}
	return enabled, nil
}

func (s *Store) SetNotifications(ctx context.Context, enabled bool) error {
	return s.kv.Set(ctx, s.key(storage.KeyNotifications), strconv.FormatBool(enabled))
}

// Profile returns the saved profile, or a zero Profile when absent or corrupt.
func (s *Store) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	_, err := storage.LoadJSON(ctx, s.kv, s.key(storage.KeyProfile), &p)
	if errors.Is(err, storage.ErrCorrupt) {
		s.logger.Warn("Discarding corrupt profile", "error", err)
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p Profile) error {
	return storage.SaveJSON(ctx, s.kv, s.key(storage.KeyProfile), p)
}
