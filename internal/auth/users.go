// Package auth holds the user accounts and the bearer tokens issued at login.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cmms-backend/internal/model"
	"cmms-backend/internal/store"
)

const documentName = "users.json"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("user already exists")
	ErrNotFound           = errors.New("user not found")
	ErrInvalid            = errors.New("invalid user")
)

// Users is the account table, persisted as one document on every change.
type Users struct {
	mu    sync.RWMutex
	store store.Store
	users map[string]model.User
	now   func() time.Time
}

// NewUsers loads the users document. When none exists a default admin account
// is created with adminPassword and persisted.
func NewUsers(ctx context.Context, s store.Store, adminUser, adminPassword string) (*Users, error) {
	u := &Users{store: s, users: make(map[string]model.User), now: time.Now}

	err := store.LoadJSON(ctx, s, documentName, &u.users)
	if err == nil {
		for name, user := range u.users {
			user.Username = name
			u.users[name] = user
		}
		return u, nil
	}
	if !errors.Is(err, store.ErrNotExist) {
		return nil, err
	}

	log.Printf("No users document found; creating default admin %q", adminUser)
	hash, err := hashPassword(adminPassword)
	if err != nil {
		return nil, err
	}
	u.users[adminUser] = model.User{
		Username:  adminUser,
		Password:  hash,
		Role:      model.RoleAdmin,
		FullName:  "Administrator",
		CreatedAt: u.now().UTC(),
	}
	if err := u.persist(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

// Register creates an account. profile supplies role, permissions and contact fields;
// a viewer with the view permission is created when no role is given.
func (u *Users) Register(ctx context.Context, username, password string, profile model.User) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, fmt.Errorf("%w: username and password are required", ErrInvalid)
	}
	switch profile.Role {
	case "":
		profile.Role = model.RoleViewer
		if len(profile.Permissions) == 0 {
			profile.Permissions = []model.Permission{model.PermView}
		}
	case model.RoleAdmin, model.RoleEditor, model.RoleViewer:
	default:
		return model.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalid, profile.Role)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.users[username]; exists {
		return model.User{}, fmt.Errorf("%q: %w", username, ErrUserExists)
	}

	profile.Username = username
	profile.Password = hash
	profile.CreatedAt = u.now().UTC()
	u.users[username] = profile
	if err := u.persist(ctx); err != nil {
		delete(u.users, username)
		return model.User{}, err
	}
	return redact(profile), nil
}

// Verify checks a password. A legacy unsalted SHA-256 hash is accepted once and
// replaced by a bcrypt hash.
func (u *Users) Verify(ctx context.Context, username, password string) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[username]
	if !ok {
		return model.User{}, ErrInvalidCredentials
	}

	if isLegacyHash(user.Password) {
		sum := sha256.Sum256([]byte(password))
		if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(strings.ToLower(user.Password))) != 1 {
			return model.User{}, ErrInvalidCredentials
		}
		hash, err := hashPassword(password)
		if err != nil {
			return model.User{}, err
		}
		old := user.Password
		user.Password = hash
		u.users[username] = user
		if err := u.persist(ctx); err != nil {
			log.Printf("Failed to upgrade password hash for %q: %v", username, err)
			user.Password = old
			u.users[username] = user
		}
		return redact(user), nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}
	return redact(user), nil
}

// Get returns the account without its password hash.
func (u *Users) Get(username string) (model.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.users[username]
	if !ok {
		return model.User{}, fmt.Errorf("%q: %w", username, ErrNotFound)
	}
	return redact(user), nil
}

// List returns every account sorted by username, without password hashes.
func (u *Users) List() []model.User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]model.User, 0, len(u.users))
	for _, user := range u.users {
		out = append(out, redact(user))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (u *Users) persist(ctx context.Context) error {
	return store.SaveJSON(ctx, u.store, documentName, u.users)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func isLegacyHash(h string) bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

func redact(u model.User) model.User {
	u.Password = ""
	u.Permissions = append([]model.Permission(nil), u.Permissions...)
	return u
}
