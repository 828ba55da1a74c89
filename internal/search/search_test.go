package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmms-backend/internal/model"
	"cmms-backend/internal/workbook"
)

func testWorkbook(t *testing.T) *workbook.Workbook {
	t.Helper()
	wb := workbook.New(nil)
	rows := []struct {
		table string
		row   workbook.Row
	}{
		{"press", workbook.Row{"machine_id": "P1", "status": "Active", "location": "Hall A", "notes": "hydraulic leak"}},
		{"press", workbook.Row{"machine_id": "P2", "status": "down", "location": "Hall B"}},
		{"press", workbook.Row{"machine_id": "XP10", "status": "active", "location": "hall a"}},
		{"مكابس", workbook.Row{"رقم الآلة": "M-7", "الحالة": "متوقفة", "الموقع": "المستودع"}},
		{"lathe", workbook.Row{"name": "old lathe"}},
	}
	for _, r := range rows {
		_, err := wb.CreateRow(r.table, r.row)
		require.NoError(t, err)
	}
	return wb
}

func positions(ms []Match) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Table+"/"+string(rune('0'+m.Position)))
	}
	return out
}

func TestSearch(t *testing.T) {
	wb := testWorkbook(t)

	testCases := []struct {
		name     string
		criteria model.SearchCriteria
		expected []string
	}{
		{name: "no criteria matches everything", criteria: model.SearchCriteria{}, expected: []string{"press/0", "press/1", "press/2", "مكابس/0", "lathe/0"}},
		{name: "free text is case insensitive", criteria: model.SearchCriteria{Text: "HYDRAULIC"}, expected: []string{"press/0"}},
		{name: "free text in any cell", criteria: model.SearchCriteria{Text: "lathe"}, expected: []string{"lathe/0"}},
		{name: "machine id substring", criteria: model.SearchCriteria{MachineID: "p1"}, expected: []string{"press/0", "press/2"}},
		{name: "machine id in arabic column", criteria: model.SearchCriteria{MachineID: "m-7"}, expected: []string{"مكابس/0"}},
		{name: "status equality", criteria: model.SearchCriteria{Status: "active"}, expected: []string{"press/0", "press/2"}},
		{name: "status is not substring", criteria: model.SearchCriteria{Status: "act"}, expected: nil},
		{name: "status in arabic column", criteria: model.SearchCriteria{Status: "متوقفة"}, expected: []string{"مكابس/0"}},
		{name: "location substring", criteria: model.SearchCriteria{Location: "HALL A"}, expected: []string{"press/0", "press/2"}},
		{name: "location in arabic column", criteria: model.SearchCriteria{Location: "مستودع"}, expected: []string{"مكابس/0"}},
		{name: "type filter", criteria: model.SearchCriteria{TypeID: "lathe"}, expected: []string{"lathe/0"}},
		{name: "unknown type", criteria: model.SearchCriteria{TypeID: "robot"}, expected: nil},
		{name: "criteria combine with and", criteria: model.SearchCriteria{Status: "active", Location: "hall a", MachineID: "XP"}, expected: []string{"press/2"}},
		{name: "missing column matches nothing", criteria: model.SearchCriteria{TypeID: "lathe", Status: "active"}, expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, positions(Collect(Search(wb, tc.criteria))))
		})
	}
}

func TestSearch_StopsEarly(t *testing.T) {
	wb := testWorkbook(t)

	var seen []Match
	for m := range Search(wb, model.SearchCriteria{}) {
		seen = append(seen, m)
		if len(seen) == 2 {
			break
		}
	}
	assert.Len(t, seen, 2)
}

func TestSearch_RowsAreCopies(t *testing.T) {
	wb := testWorkbook(t)

	for m := range Search(wb, model.SearchCriteria{MachineID: "P2"}) {
		m.Row["status"] = "changed"
	}
	row, err := wb.ReadRow("press", 1)
	require.NoError(t, err)
	assert.Equal(t, "down", row["status"])
}

func TestColumnTokens(t *testing.T) {
	m := DefaultMatchers

	for _, col := range []string{"machine_id", "Machine ID", "ID", "رقم الآلة", "معرف"} {
		assert.True(t, m.ID(col), col)
	}
	for _, col := range []string{"Status", "STATE", "الحالة"} {
		assert.True(t, m.Status(col), col)
	}
	for _, col := range []string{"Location", "الموقع", "المكان"} {
		assert.True(t, m.Location(col), col)
	}
	assert.False(t, m.Status("name"))
	assert.False(t, m.Location("notes"))
}

func TestEngine_CustomMatchers(t *testing.T) {
	wb := workbook.New(nil)
	_, err := wb.CreateRow("press", workbook.Row{"serial": "S-1"})
	require.NoError(t, err)

	assert.Empty(t, Collect(Search(wb, model.SearchCriteria{MachineID: "S-1"})))

	e := NewEngine(Matchers{ID: ColumnTokens("serial")})
	got := Collect(e.Search(wb, model.SearchCriteria{MachineID: "s-1"}))
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Position)
}
