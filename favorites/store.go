// Package favorites keeps the set of liked menu items.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"restaurant-ordering/models"
	"restaurant-ordering/storage"
)

var ErrInvalidItem = errors.New("menu item has no id")

// Store is a set of menu items keyed by ID, kept in the order they were liked.
type Store struct {
	mu     sync.Mutex
	kv     storage.Store
	key    string
	logger *slog.Logger
	items  []models.MenuItem
	index  map[string]struct{}
}

func New(kv storage.Store, sessionID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     kv,
		key:    storage.ScopedKey(storage.KeyFavorites, sessionID),
		logger: logger,
		index:  map[string]struct{}{},
	}
}

// Open creates the store and loads the saved set.
func Open(ctx context.Context, kv storage.Store, sessionID string, logger *slog.Logger) (*Store, error) {
	s := New(kv, sessionID, logger)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Init loads the saved favorites. Corrupt data yields an empty set.
// Duplicate IDs in the snapshot keep their first occurrence.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saved []models.MenuItem
	_, err := storage.LoadJSON(ctx, s.kv, s.key, &saved)
	if errors.Is(err, storage.ErrCorrupt) {
		s.logger.Warn("Discarding corrupt favorites snapshot", "key", s.key, "error", err)
		saved = nil
	} else if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}

	s.items = s.items[:0]
	s.index = make(map[string]struct{}, len(saved))
	for _, it := range saved {
		if it.ID == "" {
			continue
		}
		if _, ok := s.index[it.ID]; ok {
			continue
		}
		s.index[it.ID] = struct{}{}
		s.items = append(s.items, it)
	}
	return nil
}

// ToggleItem adds the item if absent and removes it if present. It reports
// whether the item is a favorite afterwards.
func (s *Store) ToggleItem(ctx context.Context, item models.MenuItem) (bool, error) {
	if item.ID == "" {
		return false, ErrInvalidItem
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, liked := s.index[item.ID]
	var next []models.MenuItem
	if liked {
		next = slices.DeleteFunc(slices.Clone(s.items), func(it models.MenuItem) bool {
			return it.ID == item.ID
		})
	} else {
		next = append(slices.Clone(s.items), item)
	}

	if err := storage.SaveJSON(ctx, s.kv, s.key, nonNil(next)); err != nil {
		return liked, fmt.Errorf("save favorites: %w", err)
	}

	s.items = next
	if liked {
		delete(s.index, item.ID)
	} else {
		s.index[item.ID] = struct{}{}
	}
	return !liked, nil
}

func (s *Store) IsFavorite(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[itemID]
	return ok
}

// Favorites returns a copy of the liked items.
func (s *Store) Favorites() []models.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func nonNil(items []models.MenuItem) []models.MenuItem {
	if items == nil {
		return []models.MenuItem{}
	}
	return items
}
