// Package session enforces the concurrent-session capacity and the session lifetime.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cmms-backend/internal/auth"
	"cmms-backend/internal/model"
	"cmms-backend/internal/store"
)

const documentName = "sessions.json"

var (
	ErrInvalidCredentials = auth.ErrInvalidCredentials
	ErrAlreadyActive      = errors.New("user already has an active session")
	ErrCapacityExceeded   = errors.New("maximum number of active sessions reached")
	ErrExpired            = errors.New("session expired")
	ErrNotActive          = errors.New("no active session")
	ErrPersist            = errors.New("failed to persist sessions")
)

// Authenticator checks a username and password.
type Authenticator interface {
	Verify(ctx context.Context, username, password string) (model.User, error)
}

// Options is the capacity policy.
type Options struct {
	MaxActive int
	Duration  time.Duration
	// AdminUser is exempt from the capacity and already-active checks.
	AdminUser string
	Now       func() time.Time
}

// Controller owns the session table. The table is read from the store on every
// call and written back before a call returns.
type Controller struct {
	mu    sync.Mutex
	store store.Store
	auth  Authenticator
	opts  Options
}

// NewController creates a controller.
func NewController(s store.Store, a Authenticator, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{store: s, auth: a, opts: opts}
}

// Login verifies the credentials and activates the user's session.
func (c *Controller) Login(ctx context.Context, username, password string) (model.Session, model.User, error) {
	user, err := c.auth.Verify(ctx, username, password)
	if err != nil {
		return model.Session{}, model.User{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sessions, err := c.load(ctx)
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	now := c.opts.Now()
	if expired := Cleanup(sessions, now, c.opts.Duration); len(expired) > 0 {
		if err := c.save(ctx, sessions); err != nil {
			return model.Session{}, model.User{}, err
		}
	}

	if username != c.opts.AdminUser {
		if s, ok := sessions[username]; ok && s.Active {
			return model.Session{}, model.User{}, fmt.Errorf("%q: %w", username, ErrAlreadyActive)
		}
		// Check-then-act: two simultaneous logins from separate processes may both pass.
		if n := c.activeCount(sessions); n >= c.opts.MaxActive {
			return model.Session{}, model.User{}, fmt.Errorf("%d of %d sessions in use: %w", n, c.opts.MaxActive, ErrCapacityExceeded)
		}
	}

	t := now
	s := model.Session{Username: username, Active: true, LoginTime: &t}
	sessions[username] = s
	if err := c.save(ctx, sessions); err != nil {
		return model.Session{}, model.User{}, err
	}
	return s, user, nil
}

// Remaining returns the time left in the user's session. It does not deactivate
// an expired session; the caller logs it out.
func (c *Controller) Remaining(ctx context.Context, username string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions, err := c.load(ctx)
	if err != nil {
		return 0, err
	}
	s, ok := sessions[username]
	if !ok || !s.Active {
		return 0, fmt.Errorf("%q: %w", username, ErrNotActive)
	}
	if s.LoginTime == nil {
		return 0, fmt.Errorf("%q: %w", username, ErrExpired)
	}
	left := c.opts.Duration - c.opts.Now().Sub(*s.LoginTime)
	if left <= 0 {
		return 0, fmt.Errorf("%q: %w", username, ErrExpired)
	}
	return left, nil
}

// Logout deactivates the user's session. Logging out an inactive user is not an error.
func (c *Controller) Logout(ctx context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions, err := c.load(ctx)
	if err != nil {
		return err
	}
	sessions[username] = model.Session{Username: username}
	return c.save(ctx, sessions)
}

// Sweep deactivates every expired session and returns the affected usernames.
func (c *Controller) Sweep(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	expired := Cleanup(sessions, c.opts.Now(), c.opts.Duration)
	if len(expired) == 0 {
		return nil, nil
	}
	if err := c.save(ctx, sessions); err != nil {
		return nil, err
	}
	return expired, nil
}

// Active returns the active sessions sorted by username.
func (c *Controller) Active(ctx context.Context) ([]model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Session
	for _, s := range sessions {
		if s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Cleanup flips every active session older than d to inactive, in place, and
// returns the affected usernames sorted.
func Cleanup(sessions map[string]model.Session, now time.Time, d time.Duration) []string {
	var expired []string
	for name, s := range sessions {
		if !s.Active {
			continue
		}
		if s.LoginTime != nil && now.Sub(*s.LoginTime) < d {
			continue
		}
		s.Active = false
		s.LoginTime = nil
		sessions[name] = s
		expired = append(expired, name)
	}
	sort.Strings(expired)
	return expired
}

func (c *Controller) activeCount(sessions map[string]model.Session) int {
	n := 0
	for name, s := range sessions {
		if s.Active && name != c.opts.AdminUser {
			n++
		}
	}
	return n
}

func (c *Controller) load(ctx context.Context) (map[string]model.Session, error) {
	sessions := make(map[string]model.Session)
	err := store.LoadJSON(ctx, c.store, documentName, &sessions)
	if err != nil && !errors.Is(err, store.ErrNotExist) {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	for name, s := range sessions {
		s.Username = name
		sessions[name] = s
	}
	return sessions, nil
}

func (c *Controller) save(ctx context.Context, sessions map[string]model.Session) error {
	if err := store.SaveJSON(ctx, c.store, documentName, sessions); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
