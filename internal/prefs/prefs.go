// Package prefs stores per-user conveniences: recent searches and favorite machines.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cmms-backend/internal/model"
	"cmms-backend/internal/store"
)

const (
	historyDocument   = "search_history.json"
	favoritesDocument = "favorites.json"
)

var (
	ErrFavoritesFull = errors.New("favorites limit reached")
	ErrInvalidKey    = errors.New("invalid favorite key")
)

// History is the shared list of recent searches, newest first.
type History struct {
	mu    sync.Mutex
	store store.Store
	size  int
	now   func() time.Time
}

// NewHistory creates a history keeping at most size entries.
func NewHistory(s store.Store, size int) *History {
	return &History{store: s, size: size, now: time.Now}
}

// Record prepends criteria searched by user. Empty criteria are not recorded.
func (h *History) Record(ctx context.Context, user string, criteria model.SearchCriteria) error {
	if criteria.Empty() {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	list, err := h.load(ctx)
	if err != nil {
		return err
	}
	entry := model.SearchHistoryEntry{SearchCriteria: criteria, Timestamp: h.now().UTC(), User: user}
	list = append([]model.SearchHistoryEntry{entry}, list...)
	if h.size > 0 && len(list) > h.size {
		list = list[:h.size]
	}
	return store.SaveJSON(ctx, h.store, historyDocument, list)
}

// List returns the recorded searches, newest first.
func (h *History) List(ctx context.Context) ([]model.SearchHistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx)
}

func (h *History) load(ctx context.Context) ([]model.SearchHistoryEntry, error) {
	var list []model.SearchHistoryEntry
	err := store.LoadJSON(ctx, h.store, historyDocument, &list)
	if err != nil && !errors.Is(err, store.ErrNotExist) {
		return nil, fmt.Errorf("failed to load search history: %w", err)
	}
	return list, nil
}

// Key builds the favorite key of a machine.
func Key(typeID, machineID string) string {
	return typeID + ":" + machineID
}

// SplitKey is the inverse of Key.
func SplitKey(key string) (typeID, machineID string, err error) {
	typeID, machineID, ok := strings.Cut(key, ":")
	if !ok || typeID == "" || machineID == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return typeID, machineID, nil
}

// Favorites maps each user to an ordered list of favorite keys.
type Favorites struct {
	mu    sync.Mutex
	store store.Store
	limit int
}

// NewFavorites creates a favorites store allowing limit entries per user.
func NewFavorites(s store.Store, limit int) *Favorites {
	return &Favorites{store: s, limit: limit}
}

// Add appends a favorite. Adding an existing favorite is a no-op.
func (f *Favorites) Add(ctx context.Context, user, typeID, machineID string) error {
	key := Key(typeID, machineID)
	if _, _, err := SplitKey(key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load(ctx)
	if err != nil {
		return err
	}
	list := all[user]
	if indexOf(list, key) >= 0 {
		return nil
	}
	if f.limit > 0 && len(list) >= f.limit {
		return fmt.Errorf("%d favorites: %w", len(list), ErrFavoritesFull)
	}
	all[user] = append(list, key)
	return store.SaveJSON(ctx, f.store, favoritesDocument, all)
}

// Remove deletes a favorite. Removing a missing favorite is a no-op.
func (f *Favorites) Remove(ctx context.Context, user, typeID, machineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load(ctx)
	if err != nil {
		return err
	}
	list := all[user]
	i := indexOf(list, Key(typeID, machineID))
	if i < 0 {
		return nil
	}
	all[user] = append(list[:i], list[i+1:]...)
	return store.SaveJSON(ctx, f.store, favoritesDocument, all)
}

// Toggle adds the favorite when absent and removes it otherwise. It reports
// whether the machine is a favorite afterwards.
func (f *Favorites) Toggle(ctx context.Context, user, typeID, machineID string) (bool, error) {
	ok, err := f.Contains(ctx, user, typeID, machineID)
	if err != nil {
		return false, err
	}
	if ok {
		return false, f.Remove(ctx, user, typeID, machineID)
	}
	return true, f.Add(ctx, user, typeID, machineID)
}

// Contains reports whether the machine is one of user's favorites.
func (f *Favorites) Contains(ctx context.Context, user, typeID, machineID string) (bool, error) {
	list, err := f.List(ctx, user)
	if err != nil {
		return false, err
	}
	return indexOf(list, Key(typeID, machineID)) >= 0, nil
}

// List returns user's favorite keys in the order they were added, never nil.
func (f *Favorites) List(ctx context.Context, user string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string{}, all[user]...), nil
}

func (f *Favorites) load(ctx context.Context) (map[string][]string, error) {
	all := make(map[string][]string)
	err := store.LoadJSON(ctx, f.store, favoritesDocument, &all)
	if err != nil && !errors.Is(err, store.ErrNotExist) {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	return all, nil
}

func indexOf(list []string, key string) int {
	for i, k := range list {
		if k == key {
			return i
		}
	}
	return -1
}
