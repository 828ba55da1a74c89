// Package workbook is the in-memory record store: one ordered table of rows per
// machine type, loaded from and serialized to an xlsx workbook with one sheet per table.
//
// Rows are addressed by position. Deleting a row shifts every later row down by one,
// so positions obtained before a delete are invalid afterwards.
//
// Empty cells and empty values are the same thing: a blank cell loads as an absent key,
// and a key set to "" is removed from the row.
package workbook

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"

	"cmms-backend/internal/model"
)

// Row maps field ids to cell values.
type Row map[string]string

// Clone returns a copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is the ordered row collection of one machine type.
type Table struct {
	Name    string
	Columns []string // header order
	Rows    []Row
}

// Schemas resolves the machine type that shapes a table.
type Schemas interface {
	Lookup(typeID string) (model.MachineType, bool)
}

// Workbook is the full record store.
type Workbook struct {
	order   []string
	tables  map[string]*Table
	schemas Schemas
}

// New returns an empty workbook. schemas may be nil, in which case rows are not checked
// against machine types.
func New(schemas Schemas) *Workbook {
	return &Workbook{tables: make(map[string]*Table), schemas: schemas}
}

// Tables returns the table names in sheet order.
func (w *Workbook) Tables() []string {
	return append([]string(nil), w.order...)
}

// Len returns the number of rows of table, 0 when it does not exist.
func (w *Workbook) Len(table string) int {
	if t, ok := w.tables[table]; ok {
		return len(t.Rows)
	}
	return 0
}

// Columns returns the header of table.
func (w *Workbook) Columns(table string) []string {
	if t, ok := w.tables[table]; ok {
		return append([]string(nil), t.Columns...)
	}
	return nil
}

// Rows returns a copy of the rows of table.
func (w *Workbook) Rows(table string) ([]Row, error) {
	t, ok := w.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, ErrNotFound)
	}
	out := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Clone()
	}
	return out, nil
}

// Snapshot returns a deep copy of every table's rows keyed by table name.
func (w *Workbook) Snapshot() map[string][]Row {
	out := make(map[string][]Row, len(w.tables))
	for name := range w.tables {
		rows, _ := w.Rows(name)
		out[name] = rows
	}
	return out
}

// Clone returns an independent copy sharing only the schema source.
func (w *Workbook) Clone() *Workbook {
	c := New(w.schemas)
	for _, name := range w.order {
		t := w.tables[name]
		rows, _ := w.Rows(name)
		c.addTable(&Table{Name: name, Columns: append([]string(nil), t.Columns...), Rows: rows})
	}
	return c
}

// CreateRow validates row and appends it to table, creating the table when needed.
// It returns the position of the new row.
func (w *Workbook) CreateRow(table string, row Row) (int, error) {
	if err := ValidSheetName(table); err != nil {
		return 0, err
	}
	row = normalize(row)
	if err := w.validate(table, row, row); err != nil {
		return 0, err
	}

	t, ok := w.tables[table]
	if !ok {
		t = &Table{Name: table, Columns: w.defaultColumns(table)}
		w.addTable(t)
	}
	t.addColumns(row)
	t.Rows = append(t.Rows, row)
	return len(t.Rows) - 1, nil
}

// ReadRow returns a copy of the row at pos.
func (w *Workbook) ReadRow(table string, pos int) (Row, error) {
	t, err := w.locate(table, pos)
	if err != nil {
		return nil, err
	}
	return t.Rows[pos].Clone(), nil
}

// UpdateRow replaces the keys present in patch. A key patched to "" is cleared.
// The merged row must satisfy the same rules as CreateRow.
func (w *Workbook) UpdateRow(table string, pos int, patch Row) error {
	t, err := w.locate(table, pos)
	if err != nil {
		return err
	}

	merged := t.Rows[pos].Clone()
	for k, v := range patch {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	if err := w.validate(table, patch, merged); err != nil {
		return err
	}

	t.addColumns(merged)
	t.Rows[pos] = merged
	return nil
}

// DeleteRow removes the row at pos. Every later row moves down one position.
func (w *Workbook) DeleteRow(table string, pos int) error {
	t, err := w.locate(table, pos)
	if err != nil {
		return err
	}
	t.Rows = append(t.Rows[:pos], t.Rows[pos+1:]...)
	return nil
}

func (w *Workbook) locate(table string, pos int) (*Table, error) {
	t, ok := w.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, ErrNotFound)
	}
	if pos < 0 || pos >= len(t.Rows) {
		return nil, fmt.Errorf("row %d of %q: %w", pos, table, ErrNotFound)
	}
	return t, nil
}

// validate checks the keys of input against the table's machine type and the
// required fields against the resulting row.
func (w *Workbook) validate(table string, input, result Row) error {
	verr := &ValidationError{Table: table}
	if len(result) == 0 {
		verr.Empty = true
	}

	if w.schemas != nil {
		if mt, ok := w.schemas.Lookup(table); ok {
			fields := mapset.NewSetFromMapKeys(mt.Fields)
			keys := mapset.NewSet[string]()
			for k, v := range input {
				if v != "" {
					keys.Add(k)
				}
			}
			if unknown := keys.Difference(fields).ToSlice(); len(unknown) > 0 {
				sort.Strings(unknown)
				verr.Unknown = unknown
			}

			for _, id := range mt.RequiredFields() {
				if strings.TrimSpace(result[id]) == "" {
					verr.Missing = append(verr.Missing, id)
				}
			}
			sort.Strings(verr.Missing)
		}
	}

	if verr.Empty || len(verr.Unknown) > 0 || len(verr.Missing) > 0 {
		return verr
	}
	return nil
}

func (w *Workbook) defaultColumns(table string) []string {
	if w.schemas == nil {
		return nil
	}
	mt, ok := w.schemas.Lookup(table)
	if !ok {
		return nil
	}
	cols := append([]string(nil), mt.DefaultColumns...)
	seen := mapset.NewSet(cols...)
	var rest []string
	for id := range mt.Fields {
		if !seen.Contains(id) {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func (w *Workbook) addTable(t *Table) {
	w.order = append(w.order, t.Name)
	w.tables[t.Name] = t
}

// addColumns appends the keys of row that the header does not carry yet, sorted.
func (t *Table) addColumns(row Row) {
	known := mapset.NewSet(t.Columns...)
	var extra []string
	for k := range row {
		if !known.Contains(k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	t.Columns = append(t.Columns, extra...)
}

func normalize(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		k = strings.TrimSpace(k)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// ValidSheetName reports whether name can be used as a sheet (and therefore table) name.
func ValidSheetName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > 31 {
		return fmt.Errorf("%w: %q must be 1 to 31 characters", ErrInvalidSheetID, name)
	}
	if strings.ContainsAny(name, `:\/?*[]`) {
		return fmt.Errorf("%w: %q contains one of : \\ / ? * [ ]", ErrInvalidSheetID, name)
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return fmt.Errorf("%w: %q starts or ends with an apostrophe", ErrInvalidSheetID, name)
	}
	return nil
}
