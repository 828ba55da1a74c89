package workbook

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// maxNumericLen bounds the values written as number cells; longer numbers stay text
// so spreadsheet applications do not round them.
const maxNumericLen = 15

// Load parses every sheet of an xlsx workbook. The first row of a sheet is its header;
// header cells are trimmed and blank or duplicate headers are ignored, as are cells
// beyond the header. Blank cells load as absent keys.
func Load(data []byte, schemas Schemas) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialize, err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrDeserialize)
	}

	w := New(schemas)
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrDeserialize, name, err)
		}
		w.addTable(parseSheet(name, rows))
	}
	return w, nil
}

func parseSheet(name string, rows [][]string) *Table {
	t := &Table{Name: name}
	if len(rows) == 0 {
		return t
	}

	keys := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		keys[i] = h
		t.Columns = append(t.Columns, h)
	}

	for _, cells := range rows[1:] {
		row := make(Row)
		for i, v := range cells {
			if i >= len(keys) || keys[i] == "" || v == "" {
				continue
			}
			row[keys[i]] = v
		}
		t.Rows = append(t.Rows, row)
	}

	// Rows whose only cells lie outside the header are empty and may trail.
	for len(t.Rows) > 0 && len(t.Rows[len(t.Rows)-1]) == 0 {
		t.Rows = t.Rows[:len(t.Rows)-1]
	}
	return t
}

// Serialize writes the workbook as xlsx, one sheet per table in table order.
// Values that are canonical decimal numbers are written as number cells, everything
// else as text.
func (w *Workbook) Serialize() ([]byte, error) {
	if len(w.order) == 0 {
		return nil, ErrEmptyWorkbook
	}

	f := excelize.NewFile()
	defer f.Close()

	first := f.GetSheetName(0)
	for i, name := range w.order {
		if i == 0 {
			if err := f.SetSheetName(first, name); err != nil {
				return nil, fmt.Errorf("failed to name sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
		if err := writeSheet(f, w.tables[name]); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, t *Table) error {
	if len(t.Columns) == 0 {
		return nil
	}
	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(t.Name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %q: %w", t.Name, err)
	}

	for r, row := range t.Rows {
		for c, col := range t.Columns {
			v, ok := row[col]
			if !ok || v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(t.Name, cell, cellValue(v)); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", t.Name, cell, err)
			}
		}
	}
	return nil
}

// cellValue picks the native cell type for v. Only values that format back to the
// identical string are written as numbers, so reading the raw cell returns v.
func cellValue(v string) interface{} {
	if len(v) > maxNumericLen {
		return v
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return v
	}
	if strconv.FormatFloat(n, 'f', -1, 64) != v {
		return v
	}
	return n
}
