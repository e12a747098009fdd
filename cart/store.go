// Package cart holds the shopping cart: an ordered list of lines, unique by
// item ID, written through to the local store on every change.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"restaurant-ordering/models"
	"restaurant-ordering/pricing"
	"restaurant-ordering/storage"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidItem  = errors.New("menu item has no id")
	ErrInvalidPrice = errors.New("menu item price is negative")
)

// Store is the single source of truth for one session's cart.
type Store struct {
	mu     sync.Mutex
	kv     storage.Store
	key    string
	logger *slog.Logger
	lines  []models.CartLine
}

// New returns an empty cart bound to the session's key. Call Init to load
// the saved snapshot.
func New(kv storage.Store, sessionID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     kv,
		key:    storage.ScopedKey(storage.KeyCart, sessionID),
		logger: logger,
	}
}

// Open creates the cart and loads its snapshot.
func Open(ctx context.Context, kv storage.Store, sessionID string, logger *slog.Logger) (*Store, error) {
	s := New(kv, sessionID, logger)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Init replaces the in-memory cart with the saved snapshot. A missing or
// corrupt snapshot leaves the cart empty; only storage failures are returned.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saved []models.CartLine
	found, err := storage.LoadJSON(ctx, s.kv, s.key, &saved)
	switch {
	case errors.Is(err, storage.ErrCorrupt):
		s.logger.Warn("Discarding corrupt cart snapshot", "key", s.key, "error", err)
		s.lines = nil
		return nil
	case err != nil:
		return fmt.Errorf("load cart: %w", err)
	case !found:
		s.lines = nil
		return nil
	}

	if err := validLines(saved); err != nil {
		s.logger.Warn("Discarding invalid cart snapshot", "key", s.key, "error", err)
		s.lines = nil
		return nil
	}
	s.lines = saved
	return nil
}

// AddItem increments the quantity of an existing line or appends a new
// line with quantity 1.
func (s *Store) AddItem(ctx context.Context, item models.MenuItem) error {
	if item.ID == "" {
		return ErrInvalidItem
	}
	if item.Price.IsNegative() {
		return ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(s.lines)
	if i := indexOf(next, item.ID); i >= 0 {
		next[i].Quantity++
	} else {
		next = append(next, models.CartLine{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  1,
			ImageRef:  item.ImageRef,
		})
	}
	return s.commit(ctx, next)
}

// UpdateQuantity sets the quantity of a line exactly. A quantity of zero or
// less removes the line. Unknown item IDs are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.lines, itemID)
	if i < 0 {
		return nil
	}
	next := slices.Clone(s.lines)
	next[i].Quantity = quantity
	return s.commit(ctx, next)
}

// RemoveItem drops the line if present.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(s.lines), func(l models.CartLine) bool {
		return l.ItemID == itemID
	})
	return s.commit(ctx, next)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, nil)
}

// Items returns a copy of the cart lines in display order.
func (s *Store) Items() []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines)
}

// Total is the unrounded sum of unit price times quantity.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Subtotal(s.lines)
}

// ItemCount is the sum of quantities, shown on the cart badge.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// commit persists next and only then makes it the live cart.
// Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []models.CartLine) error {
	snapshot := next
	if snapshot == nil {
		snapshot = []models.CartLine{}
	}
	if err := storage.SaveJSON(ctx, s.kv, s.key, snapshot); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	s.lines = next
	return nil
}

func indexOf(lines []models.CartLine, itemID string) int {
	return slices.IndexFunc(lines, func(l models.CartLine) bool {
		return l.ItemID == itemID
	})
}

func validLines(lines []models.CartLine) error {
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if l.ItemID == "" {
			return ErrInvalidItem
		}
		if l.Quantity < 1 {
			return fmt.Errorf("line %s has quantity %d", l.ItemID, l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return fmt.Errorf("line %s: %w", l.ItemID, ErrInvalidPrice)
		}
		if _, dup := seen[l.ItemID]; dup {
			return fmt.Errorf("duplicate line %s", l.ItemID)
		}
		seen[l.ItemID] = struct{}{}
	}
	return nil
}
