package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cmms-backend/internal/model"
	"cmms-backend/internal/remote"
	"cmms-backend/internal/schema"
	"cmms-backend/internal/search"
	"cmms-backend/internal/store"
	"cmms-backend/internal/syncer"
	"cmms-backend/internal/workbook"
)

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	testDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	// One connection keeps the in-memory database alive across calls.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, testDB.AutoMigrate(&model.Document{}))
	return store.NewGormStore(testDB)
}

func registerPress(t *testing.T, ctx context.Context, r *schema.Registry) {
	t.Helper()
	require.NoError(t, r.Add(ctx, "press", model.MachineType{
		Name: "Press",
		Fields: map[string]model.FieldSpec{
			"machine_id": {Type: model.FieldShortText, Required: true},
			"status":     {Type: model.FieldShortText, Required: true},
		},
	}, "admin"))
}

// TestMachineLifecycle registers a type, writes and finds a row, then saves the
// workbook without a remote credential.
func TestMachineLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	registry, err := schema.NewRegistry(ctx, s)
	require.NoError(t, err)
	registerPress(t, ctx, registry)

	local := filepath.Join(t.TempDir(), "machines.xlsx")
	mgr := syncer.NewManager(syncer.Options{RemotePath: "machines.xlsx", LocalPath: local, Schemas: registry})
	registry.SetRowCounter(mgr)

	wb, err := mgr.Workbook(ctx)
	require.NoError(t, err)

	pos, err := wb.CreateRow("press", workbook.Row{"machine_id": "P1", "status": "active"})
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	matches := search.Collect(search.Search(wb, model.SearchCriteria{MachineID: "P1"}))
	require.Len(t, matches, 1)
	assert.Equal(t, "press", matches[0].Table)
	assert.Equal(t, 0, matches[0].Position)

	require.NoError(t, wb.UpdateRow("press", 0, workbook.Row{"status": "down"}))
	row, err := wb.ReadRow("press", 0)
	require.NoError(t, err)
	assert.Equal(t, "down", row["status"])

	res, err := mgr.Push(ctx, wb, "edit press/P1 by admin")
	require.NoError(t, err)
	assert.False(t, res.RemoteUpdated)
	assert.Equal(t, syncer.LocalOnly, res.State)

	want, err := wb.Serialize()
	require.NoError(t, err)
	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// The registry survives a reload from the database.
	reloaded, err := schema.NewRegistry(ctx, s)
	require.NoError(t, err)
	_, ok := reloaded.Lookup("press")
	assert.True(t, ok)

	// The type now has rows and cannot be removed.
	assert.ErrorIs(t, registry.Delete(ctx, "press"), schema.ErrInUse)
}

// TestGitRoundTrip pushes a workbook into a git remote that does not hold it
// yet and reads it back through a second process-local manager.
func TestGitRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	registry, err := schema.NewRegistry(ctx, s)
	require.NoError(t, err)
	registerPress(t, ctx, registry)

	bare := bareRepo(t)
	client := remote.NewGitClient(bare, "main", "")

	writer := syncer.NewManager(syncer.Options{
		RemotePath: "data/machines.xlsx",
		LocalPath:  filepath.Join(t.TempDir(), "machines.xlsx"),
		Raw:        client,
		Committer:  client,
		Schemas:    registry,
	})
	wb, err := writer.Workbook(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncer.SyncFailed, writer.Status().State)

	_, err = wb.CreateRow("press", workbook.Row{"machine_id": "P7", "status": "active"})
	require.NoError(t, err)
	res, err := writer.Push(ctx, wb, "add press/P7 by admin")
	require.NoError(t, err)
	assert.True(t, res.RemoteUpdated)
	assert.Equal(t, syncer.Synced, res.State)

	reader := syncer.NewManager(syncer.Options{
		RemotePath: "data/machines.xlsx",
		LocalPath:  filepath.Join(t.TempDir(), "machines.xlsx"),
		Raw:        client,
		Schemas:    registry,
	})
	n, err := reader.RowCount(ctx, "press")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, syncer.Synced, reader.Status().State)

	got, err := reader.Workbook(ctx)
	require.NoError(t, err)
	row, err := got.ReadRow("press", 0)
	require.NoError(t, err)
	assert.Equal(t, "P7", row["machine_id"])
}

// bareRepo returns a bare repository on branch main with one unrelated commit.
func bareRepo(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	repo, err := gogit.PlainInitWithOptions(src, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: "refs/heads/main"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(src, "README.md"), []byte("plant data\n"), 0o644))
	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add("README.md")
	require.NoError(t, err)
	_, err = w.Commit("initial commit", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	bare := t.TempDir()
	_, err = gogit.PlainClone(bare, true, &gogit.CloneOptions{URL: src})
	require.NoError(t, err)
	return bare
}
