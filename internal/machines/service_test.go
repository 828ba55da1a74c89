package machines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmms-backend/internal/model"
	"cmms-backend/internal/notification"
	"cmms-backend/internal/prefs"
	"cmms-backend/internal/remote"
	"cmms-backend/internal/schema"
	"cmms-backend/internal/store"
	"cmms-backend/internal/syncer"
	"cmms-backend/internal/workbook"
)

var (
	admin  = model.User{Username: "admin", Role: model.RoleAdmin}
	editor = model.User{Username: "bob", Role: model.RoleEditor}
	viewer = model.User{Username: "vic", Role: model.RoleViewer}
)

type failingCommitter struct{}

func (failingCommitter) Update(context.Context, string, []byte, string) error {
	return remote.ErrUnauthorized
}

func (failingCommitter) Create(context.Context, string, []byte, string) error {
	return errors.New("unreachable")
}

type fixture struct {
	svc      *Service
	registry *schema.Registry
	sync     *syncer.Manager
	notes    *notification.Log
	history  *prefs.History
	local    string
}

func newFixture(t *testing.T, committer syncer.Committer) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.NewFileStore(filepath.Join(dir, "docs"))
	require.NoError(t, err)

	registry, err := schema.NewRegistry(ctx, s)
	require.NoError(t, err)
	local := filepath.Join(dir, "machines.xlsx")
	mgr := syncer.NewManager(syncer.Options{
		RemotePath: "machines.xlsx",
		LocalPath:  local,
		Committer:  committer,
		Schemas:    registry,
	})
	registry.SetRowCounter(mgr)

	notes := notification.NewLog(s, 100)
	history := prefs.NewHistory(s, 10)
	f := &fixture{
		svc:      NewService(registry, mgr, notes, history),
		registry: registry,
		sync:     mgr,
		notes:    notes,
		history:  history,
		local:    local,
	}

	_, err = f.svc.AddType(ctx, admin, "press", model.MachineType{
		Name: "Press",
		Fields: map[string]model.FieldSpec{
			"machine_id": {Type: model.FieldShortText, Required: true},
			"status":     {Type: model.FieldSingleSelect, Required: true, Options: []string{"active", "down"}},
			"power_kw":   {Type: model.FieldNumber},
		},
		DefaultColumns: []string{"machine_id", "status"},
	})
	require.NoError(t, err)
	return f
}

func TestAdd_LocalOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Add(ctx, admin, "press", map[string]string{"machine_id": "P1", "status": "active", "power_kw": "7.50"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Position)
	assert.False(t, res.RemoteUpdated)
	assert.Equal(t, syncer.LocalOnly, res.State)
	assert.NotEmpty(t, res.Warning)

	row, err := f.svc.Get(ctx, viewer, "press", 0)
	require.NoError(t, err)
	assert.Equal(t, workbook.Row{"machine_id": "P1", "status": "active", "power_kw": "7.5"}, row)

	_, err = os.Stat(f.local)
	assert.NoError(t, err)

	// Privileged changes leave no notification.
	list, err := f.notes.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAdd_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, editor, "press", map[string]string{"machine_id": "P1"})
	assert.ErrorIs(t, err, workbook.ErrValidation)

	_, err = f.svc.Add(ctx, editor, "press", map[string]string{"machine_id": "P1", "status": "exploded"})
	assert.Error(t, err)

	_, err = f.svc.Add(ctx, editor, "lathe", map[string]string{"machine_id": "L1"})
	assert.ErrorIs(t, err, schema.ErrNotFound)

	rows, err := f.svc.List(ctx, editor, "press")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPermissions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, viewer, "press", map[string]string{"machine_id": "P1", "status": "active"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Add(ctx, editor, "press", map[string]string{"machine_id": "P1", "status": "active"})
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, editor, "press", 0)
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.svc.DeleteType(ctx, editor, "press")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Types(model.User{Username: "nobody"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestNonPrivilegedChangesAreNotified(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, editor, "press", map[string]string{"machine_id": "P1", "status": "active"})
	require.NoError(t, err)
	_, err = f.svc.Edit(ctx, editor, "press", 0, map[string]string{"status": "down"})
	require.NoError(t, err)

	list, err := f.notes.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "edit", list[0].Action)
	assert.Equal(t, "bob", list[0].Username)
	assert.Equal(t, "press", list[0].TargetSheet)
	assert.Equal(t, "P1", list[0].MachineID)
	require.NotNil(t, list[0].TargetRow)
	assert.Equal(t, 0, *list[0].TargetRow)
	assert.Contains(t, list[0].Details, "status")
}

func TestEditAndDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, id := range []string{"P1", "P2", "P3"} {
		_, err := f.svc.Add(ctx, admin, "press", map[string]string{"machine_id": id, "status": "active", "power_kw": "5"})
		require.NoError(t, err)
	}

	_, err := f.svc.Edit(ctx, admin, "press", 1, map[string]string{"status": "down", "power_kw": ""})
	require.NoError(t, err)
	row, err := f.svc.Get(ctx, admin, "press", 1)
	require.NoError(t, err)
	assert.Equal(t, workbook.Row{"machine_id": "P2", "status": "down"}, row)

	_, err = f.svc.Edit(ctx, admin, "press", 1, map[string]string{"status": ""})
	assert.ErrorIs(t, err, workbook.ErrValidation)

	_, err = f.svc.Edit(ctx, admin, "press", 9, map[string]string{"status": "down"})
	assert.ErrorIs(t, err, workbook.ErrNotFound)

	res, err := f.svc.Delete(ctx, admin, "press", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Position)

	row, err = f.svc.Get(ctx, admin, "press", 0)
	require.NoError(t, err)
	assert.Equal(t, "P2", row["machine_id"])

	rows, err := f.svc.List(ctx, admin, "press")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPushFailureIsAWarning(t *testing.T) {
	f := newFixture(t, failingCommitter{})
	ctx := context.Background()

	res, err := f.svc.Add(ctx, admin, "press", map[string]string{"machine_id": "P1", "status": "active"})
	require.NoError(t, err)
	assert.False(t, res.RemoteUpdated)
	assert.Equal(t, syncer.SyncFailed, res.State)
	assert.NotEmpty(t, res.Warning)

	rows, err := f.svc.List(ctx, admin, "press")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSearchRecordsHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, admin, "press", map[string]string{"machine_id": "P1", "status": "active"})
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, admin, "press", map[string]string{"machine_id": "Q7", "status": "down"})
	require.NoError(t, err)

	matches, err := f.svc.Search(ctx, viewer, model.SearchCriteria{Status: "down"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Position)

	history, err := f.history.List(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "vic", history[0].User)
	assert.Equal(t, "down", history[0].Status)
}

func TestDeleteType_InUse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, admin, "press", map[string]string{"machine_id": "P1", "status": "active"})
	require.NoError(t, err)

	err = f.svc.DeleteType(ctx, admin, "press")
	assert.ErrorIs(t, err, schema.ErrInUse)

	_, err = f.svc.Delete(ctx, admin, "press", 0)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteType(ctx, admin, "press"))

	_, err = f.svc.Type(admin, "press")
	assert.ErrorIs(t, err, schema.ErrNotFound)
}

func TestConcurrentAddsKeepEveryRow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Add(ctx, admin, "press", map[string]string{"machine_id": fmt.Sprintf("P%d", i), "status": "active"})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	rows, err := f.svc.List(ctx, admin, "press")
	require.NoError(t, err)
	require.Len(t, rows, n)
	seen := map[string]bool{}
	for _, r := range rows {
		seen[r["machine_id"]] = true
	}
	assert.Len(t, seen, n)
}

func TestDeleteTypeRacingAdd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var addErr, deleteErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, addErr = f.svc.Add(ctx, admin, "press", map[string]string{"machine_id": "P1", "status": "active"})
	}()
	go func() {
		defer wg.Done()
		deleteErr = f.svc.DeleteType(ctx, admin, "press")
	}()
	wg.Wait()

	n, err := f.sync.RowCount(ctx, "press")
	require.NoError(t, err)
	if deleteErr == nil {
		assert.ErrorIs(t, addErr, schema.ErrNotFound)
		assert.Zero(t, n)
	} else {
		assert.ErrorIs(t, deleteErr, schema.ErrInUse)
		require.NoError(t, addErr)
		assert.Equal(t, 1, n)
	}
}

func TestFailedLocalWriteLeavesNoNotification(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, admin, "press", map[string]string{"machine_id": "P1", "status": "active"})
	require.NoError(t, err)
	// Parse the workbook so the next change does not read the local file.
	_, err = f.svc.List(ctx, admin, "press")
	require.NoError(t, err)

	require.NoError(t, os.Remove(f.local))
	require.NoError(t, os.MkdirAll(filepath.Join(f.local, "blocker"), 0o755))

	_, err = f.svc.Add(ctx, editor, "press", map[string]string{"machine_id": "P2", "status": "active"})
	assert.ErrorIs(t, err, syncer.ErrPersist)

	list, err := f.notes.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPushFailureStillNotifies(t *testing.T) {
	f := newFixture(t, failingCommitter{})
	ctx := context.Background()

	res, err := f.svc.Add(ctx, editor, "press", map[string]string{"machine_id": "P1", "status": "active"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)

	list, err := f.notes.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "add", list[0].Action)
}
