package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"cmms-backend/internal/model"
)

// staticSchemas is a fixed Schemas implementation for tests.
type staticSchemas map[string]model.MachineType

func (s staticSchemas) Lookup(typeID string) (model.MachineType, bool) {
	mt, ok := s[typeID]
	return mt, ok
}

func pressSchemas() staticSchemas {
	return staticSchemas{
		"press": {
			ID:   "press",
			Name: "Hydraulic press",
			Fields: map[string]model.FieldSpec{
				"machine_id": {Type: model.FieldShortText, Required: true, Label: "Machine ID"},
				"status":     {Type: model.FieldSingleSelect, Required: true, Label: "Status", Options: []string{"active", "down"}},
				"location":   {Type: model.FieldShortText, Label: "Location"},
				"tonnage":    {Type: model.FieldNumber, Label: "Tonnage"},
			},
			DefaultColumns: []string{"machine_id", "status"},
		},
	}
}

// buildWorkbook writes sheets with excelize the way a spreadsheet user would.
func buildWorkbook(t *testing.T, sheets map[string][][]interface{}, order []string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, cells := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			row := cells
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoad_TrimsHeadersAndDropsBlankCells(t *testing.T) {
	data := buildWorkbook(t, map[string][][]interface{}{
		"press": {
			{" machine_id ", "status", "  location"},
			{"P1", "active", "Hall A"},
			{"P2", nil, "Hall B"},
		},
		"lathe": {
			{"machine_id"},
		},
	}, []string{"press", "lathe"})

	w, err := Load(data, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"press", "lathe"}, w.Tables())
	assert.Equal(t, []string{"machine_id", "status", "location"}, w.Columns("press"))

	row, err := w.ReadRow("press", 1)
	require.NoError(t, err)
	assert.Equal(t, Row{"machine_id": "P2", "location": "Hall B"}, row)
	_, present := row["status"]
	assert.False(t, present, "blank cells load as absent keys")

	assert.Equal(t, 0, w.Len("lathe"))
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load([]byte("definitely not a zip container"), nil)
	assert.ErrorIs(t, err, ErrDeserialize)
}

func TestRoundTrip(t *testing.T) {
	data := buildWorkbook(t, map[string][][]interface{}{
		"press": {
			{"machine_id", "status", "tonnage", "notes"},
			{"P1", "active", 250, ""},
			{},
			{"007", "down", "12.50", "  padded  "},
		},
		"pump": {
			{"machine_id", "flow"},
			{"PU-1", 3.5},
		},
	}, []string{"press", "pump"})

	first, err := Load(data, nil)
	require.NoError(t, err)

	serialized, err := first.Serialize()
	require.NoError(t, err)

	second, err := Load(serialized, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Tables(), second.Tables())
	assert.Equal(t, first.Snapshot(), second.Snapshot())
	assert.Equal(t, first.Columns("press"), second.Columns("press"))

	// The interior blank row keeps its position; leading zeros and text numbers survive.
	row, err := second.ReadRow("press", 2)
	require.NoError(t, err)
	assert.Equal(t, Row{"machine_id": "007", "status": "down", "tonnage": "12.50", "notes": "  padded  "}, row)
	pump, err := second.ReadRow("pump", 0)
	require.NoError(t, err)
	assert.Equal(t, "3.5", pump["flow"])
}

func TestRoundTrip_AbsentKeysSerializeAsBlankCells(t *testing.T) {
	w := New(nil)
	_, err := w.CreateRow("press", Row{"machine_id": "P1", "status": "active"})
	require.NoError(t, err)
	_, err = w.CreateRow("press", Row{"machine_id": "P2", "location": "Hall C"})
	require.NoError(t, err)

	data, err := w.Serialize()
	require.NoError(t, err)
	loaded, err := Load(data, nil)
	require.NoError(t, err)

	assert.Equal(t, w.Snapshot(), loaded.Snapshot())
	assert.Equal(t, []string{"machine_id", "status", "location"}, loaded.Columns("press"))
}

func TestSerialize_Empty(t *testing.T) {
	_, err := New(nil).Serialize()
	assert.ErrorIs(t, err, ErrEmptyWorkbook)
}

func TestCreateRow(t *testing.T) {
	w := New(pressSchemas())

	pos, err := w.CreateRow("press", Row{"machine_id": "P1", "status": "active"})
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	row, err := w.ReadRow("press", pos)
	require.NoError(t, err)
	assert.Equal(t, Row{"machine_id": "P1", "status": "active"}, row)

	pos, err = w.CreateRow("press", Row{"machine_id": "P2", "status": "down", "location": "Hall B"})
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	// The new table's header starts with the machine type's default columns.
	assert.Equal(t, []string{"machine_id", "status", "location", "tonnage"}, w.Columns("press"))
}

func TestCreateRow_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		row     Row
		missing []string
		unknown []string
		empty   bool
	}{
		{
			name:    "Missing required field",
			row:     Row{"machine_id": "P1"},
			missing: []string{"status"},
		},
		{
			name:    "Blank required field",
			row:     Row{"machine_id": "   ", "status": "active"},
			missing: []string{"machine_id"},
		},
		{
			name:    "Unknown field",
			row:     Row{"machine_id": "P1", "status": "active", "colour": "red"},
			unknown: []string{"colour"},
		},
		{
			name:    "Empty row",
			row:     Row{},
			missing: []string{"machine_id", "status"},
			empty:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := New(pressSchemas())
			_, err := w.CreateRow("press", Row{"machine_id": "P0", "status": "active"})
			require.NoError(t, err)

			_, err = w.CreateRow("press", tc.row)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.missing, verr.Missing)
			assert.Equal(t, tc.unknown, verr.Unknown)
			assert.Equal(t, tc.empty, verr.Empty)

			assert.Equal(t, 1, w.Len("press"), "a rejected row is never appended")
		})
	}
}

func TestCreateRow_UnknownTableSkipsSchemaChecks(t *testing.T) {
	w := New(pressSchemas())
	pos, err := w.CreateRow("legacy", Row{"anything": "goes"})
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
}

func TestCreateRow_InvalidSheetName(t *testing.T) {
	w := New(nil)
	_, err := w.CreateRow("bad/name", Row{"a": "b"})
	assert.ErrorIs(t, err, ErrInvalidSheetID)
}

func TestUpdateRow(t *testing.T) {
	w := New(pressSchemas())
	_, err := w.CreateRow("press", Row{"machine_id": "P1", "status": "active", "location": "Hall A"})
	require.NoError(t, err)

	require.NoError(t, w.UpdateRow("press", 0, Row{"status": "down"}))
	row, err := w.ReadRow("press", 0)
	require.NoError(t, err)
	assert.Equal(t, Row{"machine_id": "P1", "status": "down", "location": "Hall A"}, row)

	// Clearing an optional field removes the key.
	require.NoError(t, w.UpdateRow("press", 0, Row{"location": ""}))
	row, err = w.ReadRow("press", 0)
	require.NoError(t, err)
	assert.Equal(t, Row{"machine_id": "P1", "status": "down"}, row)

	// Clearing a required field is rejected and leaves the row untouched.
	err = w.UpdateRow("press", 0, Row{"status": ""})
	assert.ErrorIs(t, err, ErrValidation)
	row, err = w.ReadRow("press", 0)
	require.NoError(t, err)
	assert.Equal(t, "down", row["status"])

	assert.ErrorIs(t, w.UpdateRow("press", 5, Row{"status": "active"}), ErrNotFound)
	assert.ErrorIs(t, w.UpdateRow("missing", 0, Row{"status": "active"}), ErrNotFound)
}

func TestDeleteRow_ShiftsPositions(t *testing.T) {
	w := New(nil)
	for _, id := range []string{"P1", "P2", "P3"} {
		_, err := w.CreateRow("press", Row{"machine_id": id})
		require.NoError(t, err)
	}

	require.NoError(t, w.DeleteRow("press", 0))
	row, err := w.ReadRow("press", 0)
	require.NoError(t, err)
	assert.Equal(t, "P2", row["machine_id"], "the row formerly at position 1 moves to 0")

	require.NoError(t, w.DeleteRow("press", 1))
	assert.Equal(t, 1, w.Len("press"))

	_, err = w.ReadRow("press", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, w.DeleteRow("press", -1), ErrNotFound)
}

func TestClone_IsIndependent(t *testing.T) {
	w := New(nil)
	_, err := w.CreateRow("press", Row{"machine_id": "P1"})
	require.NoError(t, err)

	c := w.Clone()
	require.NoError(t, c.UpdateRow("press", 0, Row{"machine_id": "P9"}))
	_, err = c.CreateRow("press", Row{"machine_id": "P2"})
	require.NoError(t, err)

	row, err := w.ReadRow("press", 0)
	require.NoError(t, err)
	assert.Equal(t, "P1", row["machine_id"])
	assert.Equal(t, 1, w.Len("press"))
}

func TestValidSheetName(t *testing.T) {
	assert.NoError(t, ValidSheetName("press"))
	assert.NoError(t, ValidSheetName("مكابس"))
	assert.Error(t, ValidSheetName(""))
	assert.Error(t, ValidSheetName("a[b]"))
	assert.Error(t, ValidSheetName("'quoted'"))
	assert.Error(t, ValidSheetName("this-sheet-name-is-far-too-long-for-xlsx"))
}
