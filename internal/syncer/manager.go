// Package syncer keeps the local workbook file in step with the remote copy and
// owns the parsed in-memory workbook that every read goes through.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"cmms-backend/internal/remote"
	"cmms-backend/internal/store"
	"cmms-backend/internal/workbook"
)

// State is the synchronization state of the workbook resource.
type State string

const (
	Unloaded   State = "unloaded"
	LocalOnly  State = "local_only"
	Synced     State = "synced"
	Stale      State = "stale"
	SyncFailed State = "sync_failed"
)

var (
	ErrRemoteUnavailable = errors.New("remote workbook unavailable")
	ErrPushFailed        = errors.New("remote commit failed")
	ErrPersist           = errors.New("failed to write local workbook")
)

// Fetcher retrieves the bytes of a remote path.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Committer writes a remote path. Update returns remote.ErrNotFound when the path
// does not exist yet.
type Committer interface {
	Update(ctx context.Context, path string, data []byte, message string) error
	Create(ctx context.Context, path string, data []byte, message string) error
}

// Options configures a Manager.
type Options struct {
	RemotePath      string
	LocalPath       string
	RefreshInterval time.Duration
	// API is the authenticated retrieval path, nil without a credential.
	API Fetcher
	// Raw is the direct-download fallback.
	Raw Fetcher
	// Committer is nil without a credential; pushes are then local only.
	Committer Committer
	Schemas   workbook.Schemas
	Now       func() time.Time
}

// PushResult tells the caller where a pushed workbook ended up.
type PushResult struct {
	RemoteUpdated bool  `json:"remote_updated"`
	State         State `json:"state"`
}

// Status is a point-in-time view of the manager.
type Status struct {
	State    State      `json:"state"`
	LastSync *time.Time `json:"last_sync,omitempty"`
	Cached   bool       `json:"cached"`
	Remote   bool       `json:"remote_writable"`
}

// Manager serializes fetches, pushes and cache rebuilds behind one mutex.
// Remote commits are last-write-wins: nothing is compared before a commit.
type Manager struct {
	opts Options

	mu           sync.Mutex
	state        State
	lastSync     time.Time
	cached       *workbook.Workbook
	onInvalidate []func()
}

// NewManager creates a manager in the Unloaded state. The first read fetches.
func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{opts: opts, state: Unloaded}
}

// OnInvalidate registers fn to run every time the parsed cache is dropped.
func (m *Manager) OnInvalidate(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInvalidate = append(m.onInvalidate, fn)
}

// Status returns the current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{State: m.currentState(), Cached: m.cached != nil, Remote: m.opts.Committer != nil}
	if !m.lastSync.IsZero() {
		t := m.lastSync
		st.LastSync = &t
	}
	return st
}

// Fetch replaces the local file with the current remote bytes and drops the
// parsed cache.
func (m *Manager) Fetch(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchLocked(ctx)
}

// Workbook returns a private copy of the current workbook, reloading the local
// file after any invalidation and refetching when the copy is unloaded or stale.
// A missing local file with an unreachable remote yields an empty workbook.
func (m *Manager) Workbook(ctx context.Context) (*workbook.Workbook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.currentState() {
	case Unloaded, Stale:
		if err := m.fetchLocked(ctx); err != nil {
			log.Printf("Workbook refresh failed, using local copy: %v", err)
		}
	}
	if m.cached == nil {
		wb, err := m.loadLocal()
		if err != nil {
			return nil, err
		}
		m.cached = wb
	}
	return m.cached.Clone(), nil
}

// RowCount reports the number of rows of table; an absent table has none.
func (m *Manager) RowCount(ctx context.Context, table string) (int, error) {
	wb, err := m.Workbook(ctx)
	if err != nil {
		return 0, err
	}
	return wb.Len(table), nil
}

// Push serializes wb to the local file, drops the parsed cache and commits the
// bytes to the remote: update first, create when the path does not exist yet.
// Without a committer the push succeeds locally with RemoteUpdated false. A failed
// commit returns ErrPushFailed; the local file already holds wb at that point.
func (m *Manager) Push(ctx context.Context, wb *workbook.Workbook, message string) (PushResult, error) {
	data, err := wb.Serialize()
	if err != nil {
		return PushResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := store.WriteFileAtomic(m.opts.LocalPath, data); err != nil {
		return PushResult{State: m.currentState()}, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	m.invalidateLocked()

	if m.opts.Committer == nil {
		m.state = LocalOnly
		log.Printf("No remote credential configured; workbook saved locally only")
		return PushResult{State: LocalOnly}, nil
	}

	err = m.opts.Committer.Update(ctx, m.opts.RemotePath, data, message)
	if errors.Is(err, remote.ErrNotFound) {
		log.Printf("Remote %s does not exist, creating it", m.opts.RemotePath)
		err = m.opts.Committer.Create(ctx, m.opts.RemotePath, data, message)
	}
	if err != nil {
		m.state = SyncFailed
		return PushResult{State: SyncFailed}, fmt.Errorf("%w: %v", ErrPushFailed, err)
	}

	m.state = Synced
	m.lastSync = m.opts.Now()
	return PushResult{RemoteUpdated: true, State: Synced}, nil
}

func (m *Manager) fetchLocked(ctx context.Context) error {
	data, err := m.retrieve(ctx)
	if err != nil {
		if _, statErr := os.Stat(m.opts.LocalPath); statErr == nil {
			m.state = LocalOnly
		} else {
			m.state = SyncFailed
		}
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	if err := store.WriteFileAtomic(m.opts.LocalPath, data); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	m.invalidateLocked()
	m.state = Synced
	m.lastSync = m.opts.Now()
	return nil
}

// retrieve tries the authenticated path first and falls back to the direct download.
func (m *Manager) retrieve(ctx context.Context) ([]byte, error) {
	var errs []error
	if m.opts.API != nil {
		data, err := m.opts.API.Fetch(ctx, m.opts.RemotePath)
		if err == nil {
			return data, nil
		}
		log.Printf("Authenticated fetch of %s failed, falling back to direct download: %v", m.opts.RemotePath, err)
		errs = append(errs, err)
	}
	if m.opts.Raw != nil {
		data, err := m.opts.Raw.Fetch(ctx, m.opts.RemotePath)
		if err == nil {
			return data, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no remote configured")
	}
	return nil, errors.Join(errs...)
}

func (m *Manager) loadLocal() (*workbook.Workbook, error) {
	data, err := os.ReadFile(m.opts.LocalPath)
	if errors.Is(err, os.ErrNotExist) {
		return workbook.New(m.opts.Schemas), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read local workbook: %w", err)
	}
	return workbook.Load(data, m.opts.Schemas)
}

func (m *Manager) invalidateLocked() {
	m.cached = nil
	for _, fn := range m.onInvalidate {
		fn()
	}
}

func (m *Manager) currentState() State {
	if m.state == Synced && m.opts.RefreshInterval > 0 && m.opts.Now().Sub(m.lastSync) >= m.opts.RefreshInterval {
		return Stale
	}
	return m.state
}
