// Package schema holds the machine-type registry: the field definitions that give
// each workbook table its row shape.
package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"cmms-backend/internal/model"
	"cmms-backend/internal/store"
	"cmms-backend/internal/workbook"
)

const documentName = "machine_types.json"

var (
	ErrNotFound = errors.New("machine type not found")
	ErrConflict = errors.New("machine type already exists")
	ErrInUse    = errors.New("machine type still has rows")
	ErrInvalid  = errors.New("invalid machine type definition")
	ErrPersist  = errors.New("failed to persist machine types")
)

// RowCounter reports how many rows the record store holds for a table.
type RowCounter interface {
	RowCount(ctx context.Context, table string) (int, error)
}

// Registry is the set of machine types, persisted as one document on every change.
type Registry struct {
	mu    sync.RWMutex
	store store.Store
	types map[string]model.MachineType
	rows  RowCounter
	now   func() time.Time
}

// NewRegistry loads the registry document from s. A missing document is an empty registry.
func NewRegistry(ctx context.Context, s store.Store) (*Registry, error) {
	r := &Registry{store: s, types: make(map[string]model.MachineType), now: time.Now}

	var doc map[string]model.MachineType
	err := store.LoadJSON(ctx, s, documentName, &doc)
	if err != nil && !errors.Is(err, store.ErrNotExist) {
		return nil, err
	}
	for id, mt := range doc {
		mt.ID = id
		r.types[id] = mt
	}
	return r, nil
}

// SetRowCounter wires the record store used by Delete's in-use check.
func (r *Registry) SetRowCounter(rc RowCounter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = rc
}

// Get returns the machine type with the given id.
func (r *Registry) Get(id string) (model.MachineType, error) {
	mt, ok := r.Lookup(id)
	if !ok {
		return model.MachineType{}, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return mt, nil
}

// Lookup implements workbook.Schemas.
func (r *Registry) Lookup(id string) (model.MachineType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mt, ok := r.types[id]
	if !ok {
		return model.MachineType{}, false
	}
	return clone(mt), true
}

// List returns every machine type. Callers must not rely on the order.
func (r *Registry) List() []model.MachineType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.MachineType, 0, len(r.types))
	for _, mt := range r.types {
		out = append(out, clone(mt))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the set of registered type ids.
func (r *Registry) IDs() mapset.Set[string] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return mapset.NewSetFromMapKeys(r.types)
}

// Add registers a new machine type.
func (r *Registry) Add(ctx context.Context, id string, def model.MachineType, actor string) error {
	def, err := prepare(id, def)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[id]; exists {
		return fmt.Errorf("%q: %w", id, ErrConflict)
	}
	def.CreatedAt = r.now().UTC()
	def.CreatedBy = actor

	r.types[id] = def
	if err := r.persist(ctx); err != nil {
		delete(r.types, id)
		return err
	}
	return nil
}

// Update replaces the definition of an existing machine type. Creation metadata is kept.
func (r *Registry) Update(ctx context.Context, id string, def model.MachineType) error {
	def, err := prepare(id, def)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	old, exists := r.types[id]
	if !exists {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	def.CreatedAt = old.CreatedAt
	def.CreatedBy = old.CreatedBy

	r.types[id] = def
	if err := r.persist(ctx); err != nil {
		r.types[id] = old
		return err
	}
	return nil
}

// Delete removes a machine type whose table holds no rows. The row count is a live
// read from the record store taken before the registry lock; callers that add rows
// concurrently must serialize with Delete.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if _, ok := r.Lookup(id); !ok {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}

	r.mu.RLock()
	rows := r.rows
	r.mu.RUnlock()
	if rows != nil {
		n, err := rows.RowCount(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count rows of %q: %w", id, err)
		}
		if n > 0 {
			return fmt.Errorf("%q has %d rows: %w", id, n, ErrInUse)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	old, exists := r.types[id]
	if !exists {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	delete(r.types, id)
	if err := r.persist(ctx); err != nil {
		r.types[id] = old
		return err
	}
	return nil
}

func (r *Registry) persist(ctx context.Context) error {
	if err := store.SaveJSON(ctx, r.store, documentName, r.types); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// prepare validates def and normalises it for storage under id.
func prepare(id string, def model.MachineType) (model.MachineType, error) {
	if err := workbook.ValidSheetName(id); err != nil {
		return def, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	def.ID = id
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return def, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if def.Category == "" {
		def.Category = model.CategoryOther
	}
	if !def.Category.Valid() {
		return def, fmt.Errorf("%w: unknown category %q", ErrInvalid, def.Category)
	}
	if len(def.Fields) == 0 {
		return def, fmt.Errorf("%w: at least one field is required", ErrInvalid)
	}

	fields := make(map[string]model.FieldSpec, len(def.Fields))
	for fid, spec := range def.Fields {
		fid = strings.TrimSpace(fid)
		if fid == "" {
			return def, fmt.Errorf("%w: empty field id", ErrInvalid)
		}
		if !spec.Type.Valid() {
			return def, fmt.Errorf("%w: field %q has unknown type %q", ErrInvalid, fid, spec.Type)
		}
		if spec.Type == model.FieldSingleSelect {
			if len(spec.Options) == 0 {
				return def, fmt.Errorf("%w: select field %q needs options", ErrInvalid, fid)
			}
		} else {
			spec.Options = nil
		}
		if spec.Label == "" {
			spec.Label = fid
		}
		fields[fid] = spec
	}
	def.Fields = fields

	known := mapset.NewSetFromMapKeys(fields)
	if !mapset.NewSet(def.DefaultColumns...).IsSubset(known) {
		return def, fmt.Errorf("%w: default columns must be field ids", ErrInvalid)
	}
	return def, nil
}

func clone(mt model.MachineType) model.MachineType {
	fields := make(map[string]model.FieldSpec, len(mt.Fields))
	for id, spec := range mt.Fields {
		spec.Options = append([]string(nil), spec.Options...)
		fields[id] = spec
	}
	mt.Fields = fields
	mt.DefaultColumns = append([]string(nil), mt.DefaultColumns...)
	return mt
}
