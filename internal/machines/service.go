// Package machines is the workflow around the record store: every change reads
// the current workbook, applies one operation, records who did it and pushes.
package machines

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"cmms-backend/internal/model"
	"cmms-backend/internal/notification"
	"cmms-backend/internal/parse"
	"cmms-backend/internal/prefs"
	"cmms-backend/internal/schema"
	"cmms-backend/internal/search"
	"cmms-backend/internal/syncer"
	"cmms-backend/internal/workbook"
)

var ErrForbidden = errors.New("permission denied")

// Result describes where a change ended up.
type Result struct {
	Position      int          `json:"position"`
	RemoteUpdated bool         `json:"remote_updated"`
	State         syncer.State `json:"sync_state"`
	Warning       string       `json:"warning,omitempty"`
}

// Service orchestrates the machine operations. Row changes and type deletion
// run one at a time: each reads the workbook, changes it and pushes it whole.
type Service struct {
	writeMu  sync.Mutex
	registry *schema.Registry
	sync     *syncer.Manager
	notes    *notification.Log
	history  *prefs.History
	matchers search.Matchers
}

// NewService creates a machines service.
func NewService(registry *schema.Registry, sync *syncer.Manager, notes *notification.Log, history *prefs.History) *Service {
	return &Service{
		registry: registry,
		sync:     sync,
		notes:    notes,
		history:  history,
		matchers: search.DefaultMatchers,
	}
}

// Types returns every machine type.
func (s *Service) Types(actor model.User) ([]model.MachineType, error) {
	if err := authorize(actor, model.PermView); err != nil {
		return nil, err
	}
	return s.registry.List(), nil
}

// Type returns one machine type.
func (s *Service) Type(actor model.User, id string) (model.MachineType, error) {
	if err := authorize(actor, model.PermView); err != nil {
		return model.MachineType{}, err
	}
	return s.registry.Get(id)
}

// AddType registers a machine type.
func (s *Service) AddType(ctx context.Context, actor model.User, id string, def model.MachineType) (model.MachineType, error) {
	if err := authorize(actor, model.PermManageTypes); err != nil {
		return model.MachineType{}, err
	}
	if err := s.registry.Add(ctx, id, def, actor.Username); err != nil {
		return model.MachineType{}, err
	}
	log.Printf("Machine type %q added by %s", id, actor.Username)
	return s.registry.Get(id)
}

// UpdateType replaces a machine type definition.
func (s *Service) UpdateType(ctx context.Context, actor model.User, id string, def model.MachineType) (model.MachineType, error) {
	if err := authorize(actor, model.PermManageTypes); err != nil {
		return model.MachineType{}, err
	}
	if err := s.registry.Update(ctx, id, def); err != nil {
		return model.MachineType{}, err
	}
	return s.registry.Get(id)
}

// DeleteType removes a machine type whose table is empty.
func (s *Service) DeleteType(ctx context.Context, actor model.User, id string) error {
	if err := authorize(actor, model.PermManageTypes); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.registry.Delete(ctx, id); err != nil {
		return err
	}
	log.Printf("Machine type %q deleted by %s", id, actor.Username)
	return nil
}

// List returns the rows of a machine type in position order. A registered type
// without a table has no rows.
func (s *Service) List(ctx context.Context, actor model.User, typeID string) ([]workbook.Row, error) {
	if err := authorize(actor, model.PermView); err != nil {
		return nil, err
	}
	wb, err := s.sync.Workbook(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := wb.Rows(typeID)
	if errors.Is(err, workbook.ErrNotFound) {
		if _, ok := s.registry.Lookup(typeID); ok {
			return []workbook.Row{}, nil
		}
	}
	return rows, err
}

// Get returns the row at pos.
func (s *Service) Get(ctx context.Context, actor model.User, typeID string, pos int) (workbook.Row, error) {
	if err := authorize(actor, model.PermView); err != nil {
		return nil, err
	}
	wb, err := s.sync.Workbook(ctx)
	if err != nil {
		return nil, err
	}
	return wb.ReadRow(typeID, pos)
}

// Search runs criteria over the current workbook and records it in the history.
func (s *Service) Search(ctx context.Context, actor model.User, criteria model.SearchCriteria) ([]search.Match, error) {
	if err := authorize(actor, model.PermView); err != nil {
		return nil, err
	}
	wb, err := s.sync.Workbook(ctx)
	if err != nil {
		return nil, err
	}
	matches := search.Collect(search.NewEngine(s.matchers).Search(wb, criteria))
	if s.history != nil {
		if err := s.history.Record(ctx, actor.Username, criteria); err != nil {
			log.Printf("Failed to record search history for %s: %v", actor.Username, err)
		}
	}
	return matches, nil
}

// Add appends a machine to typeID's table.
func (s *Service) Add(ctx context.Context, actor model.User, typeID string, values map[string]string) (Result, error) {
	if err := authorize(actor, model.PermAdd); err != nil {
		return Result{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	mt, err := s.registry.Get(typeID)
	if err != nil {
		return Result{}, err
	}
	row, err := parse.Fields(mt, values)
	if err != nil {
		return Result{}, err
	}

	wb, err := s.sync.Workbook(ctx)
	if err != nil {
		return Result{}, err
	}
	pos, err := wb.CreateRow(typeID, row)
	if err != nil {
		return Result{}, err
	}
	return s.commit(ctx, actor, wb, change{op: "add", typeID: typeID, pos: pos, row: row})
}

// Edit patches the machine at pos. An empty value clears the field.
func (s *Service) Edit(ctx context.Context, actor model.User, typeID string, pos int, patch map[string]string) (Result, error) {
	if err := authorize(actor, model.PermEdit); err != nil {
		return Result{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	mt, _ := s.registry.Lookup(typeID)
	values, err := parse.Fields(mt, patch)
	if err != nil {
		return Result{}, err
	}

	wb, err := s.sync.Workbook(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := wb.UpdateRow(typeID, pos, values); err != nil {
		return Result{}, err
	}
	row, err := wb.ReadRow(typeID, pos)
	if err != nil {
		return Result{}, err
	}
	return s.commit(ctx, actor, wb, change{op: "edit", typeID: typeID, pos: pos, row: row, fields: keys(patch)})
}

// Delete removes the machine at pos. Later positions shift down by one.
func (s *Service) Delete(ctx context.Context, actor model.User, typeID string, pos int) (Result, error) {
	if err := authorize(actor, model.PermDelete); err != nil {
		return Result{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	wb, err := s.sync.Workbook(ctx)
	if err != nil {
		return Result{}, err
	}
	row, err := wb.ReadRow(typeID, pos)
	if err != nil {
		return Result{}, err
	}
	if err := wb.DeleteRow(typeID, pos); err != nil {
		return Result{}, err
	}
	return s.commit(ctx, actor, wb, change{op: "delete", typeID: typeID, pos: pos, row: row})
}

type change struct {
	op     string
	typeID string
	pos    int
	row    workbook.Row
	fields []string
}

// commit attributes the change, pushes the workbook and, once the local copy
// holds the change, leaves a notification for non-privileged actors. A failed
// remote commit after a successful local write is reported as a warning.
func (s *Service) commit(ctx context.Context, actor model.User, wb *workbook.Workbook, c change) (Result, error) {
	machineID := s.machineID(c.row)
	message := fmt.Sprintf("%s %s/%s by %s", c.op, c.typeID, machineID, actor.Username)

	res, err := s.sync.Push(ctx, wb, message)
	out := Result{Position: c.pos, RemoteUpdated: res.RemoteUpdated, State: res.State}
	if err == nil || errors.Is(err, syncer.ErrPushFailed) {
		s.notify(ctx, actor, c, machineID, message)
	}
	switch {
	case errors.Is(err, syncer.ErrPushFailed):
		log.Printf("Push of %q failed: %v", message, err)
		out.Warning = "saved locally; the remote copy was not updated"
		return out, nil
	case err != nil:
		return Result{}, err
	}
	if !res.RemoteUpdated {
		out.Warning = "saved locally only; no remote credential configured"
	}
	log.Printf("Committed %q (state %s)", message, res.State)
	return out, nil
}

// notify leaves a review notification when the actor is not privileged.
func (s *Service) notify(ctx context.Context, actor model.User, c change, machineID, message string) {
	if actor.Privileged() || s.notes == nil {
		return
	}
	details := fmt.Sprintf("%s %s/%s", c.op, c.typeID, machineID)
	if len(c.fields) > 0 {
		details += fmt.Sprintf(" (fields: %v)", c.fields)
	}
	pos := c.pos
	_, err := s.notes.Add(ctx, model.Notification{
		Username:    actor.Username,
		Action:      c.op,
		Details:     details,
		TargetSheet: c.typeID,
		TargetRow:   &pos,
		MachineID:   machineID,
	})
	if err != nil {
		log.Printf("Failed to record notification for %q: %v", message, err)
	}
}

// machineID returns the user-facing identifier of row, or "?" when it has none.
func (s *Service) machineID(row workbook.Row) string {
	if v := row["machine_id"]; v != "" {
		return v
	}
	for _, k := range keys(row) {
		if s.matchers.ID != nil && s.matchers.ID(k) && row[k] != "" {
			return row[k]
		}
	}
	return "?"
}

func authorize(actor model.User, p model.Permission) error {
	if !actor.Can(p) {
		return fmt.Errorf("%s lacks %s: %w", actor.Username, p, ErrForbidden)
	}
	return nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
