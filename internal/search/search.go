// Package search filters workbook rows by free text and by heuristically
// identified id, status and location columns.
package search

import (
	"iter"
	"strings"

	"golang.org/x/text/cases"

	"cmms-backend/internal/model"
	"cmms-backend/internal/workbook"
)

// Match is one row that satisfied every criterion.
type Match struct {
	Table    string       `json:"table"`
	Position int          `json:"position"`
	Row      workbook.Row `json:"row"`
}

// ColumnMatcher reports whether a column name denotes a concept.
type ColumnMatcher func(column string) bool

// ColumnTokens matches a column whose case-folded name contains any of tokens.
func ColumnTokens(tokens ...string) ColumnMatcher {
	fold := cases.Fold()
	folded := make([]string, len(tokens))
	for i, t := range tokens {
		folded[i] = fold.String(t)
	}
	return func(column string) bool {
		c := cases.Fold().String(strings.TrimSpace(column))
		for _, t := range folded {
			if strings.Contains(c, t) {
				return true
			}
		}
		return false
	}
}

// Matchers is the set of column predicates used by the id, status and location filters.
type Matchers struct {
	ID       ColumnMatcher
	Status   ColumnMatcher
	Location ColumnMatcher
}

// DefaultMatchers recognises English and Arabic column names.
var DefaultMatchers = Matchers{
	ID:       ColumnTokens("machine_id", "id", "رقم", "معرف"),
	Status:   ColumnTokens("status", "state", "حالة"),
	Location: ColumnTokens("location", "موقع", "مكان"),
}

// Engine evaluates criteria against a workbook.
type Engine struct {
	matchers Matchers
}

// NewEngine creates an engine with m.
func NewEngine(m Matchers) *Engine {
	return &Engine{matchers: m}
}

// Search runs c against wb with DefaultMatchers.
func Search(wb *workbook.Workbook, c model.SearchCriteria) iter.Seq[Match] {
	return NewEngine(DefaultMatchers).Search(wb, c)
}

// Search returns the rows of wb satisfying every non-empty criterion of c, table by
// table in sheet order. A criterion whose columns a table lacks matches none of its rows.
// The sequence reads wb lazily; iterating again runs the search again.
func (e *Engine) Search(wb *workbook.Workbook, c model.SearchCriteria) iter.Seq[Match] {
	fold := cases.Fold()
	text := fold.String(strings.TrimSpace(c.Text))
	machineID := fold.String(strings.TrimSpace(c.MachineID))
	status := fold.String(strings.TrimSpace(c.Status))
	location := fold.String(strings.TrimSpace(c.Location))
	typeID := strings.TrimSpace(c.TypeID)

	return func(yield func(Match) bool) {
		for _, table := range wb.Tables() {
			if typeID != "" && table != typeID {
				continue
			}
			rows, err := wb.Rows(table)
			if err != nil {
				continue
			}
			cols := wb.Columns(table)
			idCols := e.columns(cols, e.matchers.ID)
			statusCols := e.columns(cols, e.matchers.Status)
			locationCols := e.columns(cols, e.matchers.Location)

			for pos, row := range rows {
				if text != "" && !anyValue(row, func(v string) bool { return strings.Contains(v, text) }) {
					continue
				}
				if machineID != "" && !anyColumn(row, idCols, func(v string) bool { return strings.Contains(v, machineID) }) {
					continue
				}
				if status != "" && !anyColumn(row, statusCols, func(v string) bool { return strings.TrimSpace(v) == status }) {
					continue
				}
				if location != "" && !anyColumn(row, locationCols, func(v string) bool { return strings.Contains(v, location) }) {
					continue
				}
				if !yield(Match{Table: table, Position: pos, Row: row}) {
					return
				}
			}
		}
	}
}

func (e *Engine) columns(cols []string, m ColumnMatcher) []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, c := range cols {
		if m(c) {
			out = append(out, c)
		}
	}
	return out
}

func anyValue(row workbook.Row, pred func(string) bool) bool {
	fold := cases.Fold()
	for _, v := range row {
		if pred(fold.String(v)) {
			return true
		}
	}
	return false
}

func anyColumn(row workbook.Row, cols []string, pred func(string) bool) bool {
	fold := cases.Fold()
	for _, c := range cols {
		if v, ok := row[c]; ok && pred(fold.String(v)) {
			return true
		}
	}
	return false
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq[Match]) []Match {
	out := []Match{}
	for m := range seq {
		out = append(out, m)
	}
	return out
}
