// Package notification records changes made by non-privileged users for admin
// review and pushes them to subscribed browsers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cmms-backend/internal/model"
	"cmms-backend/internal/store"
)

const documentName = "notifications.json"

var ErrNotFound = errors.New("notification not found")

// Log is the notification list, newest first, trimmed to a maximum length.
type Log struct {
	mu       sync.Mutex
	store    store.Store
	maxKept  int
	now      func() time.Time
	newID    func() string
	dispatch func(model.Notification)
}

// NewLog creates a log keeping at most maxKept entries. maxKept <= 0 keeps everything.
func NewLog(s store.Store, maxKept int) *Log {
	return &Log{
		store:   s,
		maxKept: maxKept,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// SetDispatcher registers fn to receive every added notification after it is saved.
func (l *Log) SetDispatcher(fn func(model.Notification)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dispatch = fn
}

// Add assigns an id and timestamp to n and stores it at the front of the list.
func (l *Log) Add(ctx context.Context, n model.Notification) (model.Notification, error) {
	l.mu.Lock()
	list, err := l.load(ctx)
	if err != nil {
		l.mu.Unlock()
		return model.Notification{}, err
	}

	n.ID = l.newID()
	n.Timestamp = l.now().UTC()
	n.ReadByAdmin = false
	list = append([]model.Notification{n}, list...)
	if l.maxKept > 0 && len(list) > l.maxKept {
		list = list[:l.maxKept]
	}
	if err := store.SaveJSON(ctx, l.store, documentName, list); err != nil {
		l.mu.Unlock()
		return model.Notification{}, fmt.Errorf("failed to save notifications: %w", err)
	}
	dispatch := l.dispatch
	l.mu.Unlock()

	if dispatch != nil {
		dispatch(n)
	}
	return n, nil
}

// List returns the notifications newest first, optionally only the unread ones.
func (l *Log) List(ctx context.Context, unreadOnly bool) ([]model.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	if !unreadOnly {
		return list, nil
	}
	unread := list[:0]
	for _, n := range list {
		if !n.ReadByAdmin {
			unread = append(unread, n)
		}
	}
	return unread, nil
}

// UnreadCount returns the number of notifications not yet marked read.
func (l *Log) UnreadCount(ctx context.Context) (int, error) {
	unread, err := l.List(ctx, true)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// MarkRead flags one notification as reviewed.
func (l *Log) MarkRead(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	list, err := l.load(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == id {
			if list[i].ReadByAdmin {
				return nil
			}
			list[i].ReadByAdmin = true
			return store.SaveJSON(ctx, l.store, documentName, list)
		}
	}
	return fmt.Errorf("%q: %w", id, ErrNotFound)
}

func (l *Log) load(ctx context.Context) ([]model.Notification, error) {
	var list []model.Notification
	err := store.LoadJSON(ctx, l.store, documentName, &list)
	if err != nil && !errors.Is(err, store.ErrNotExist) {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	return list, nil
}
