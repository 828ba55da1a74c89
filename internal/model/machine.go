package model

import "time"

// FieldType is the kind of value a machine field holds.
type FieldType string

const (
	FieldShortText    FieldType = "text"
	FieldLongText     FieldType = "textarea"
	FieldNumber       FieldType = "number"
	FieldDate         FieldType = "date"
	FieldSingleSelect FieldType = "select"
	FieldImageList    FieldType = "images"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldShortText, FieldLongText, FieldNumber, FieldDate, FieldSingleSelect, FieldImageList:
		return true
	}
	return false
}

// Category groups machine types for display.
type Category string

const (
	CategoryProduction Category = "production"
	CategoryUtilities  Category = "utilities"
	CategoryTransport  Category = "transport"
	CategoryLaboratory Category = "laboratory"
	CategoryIT         Category = "it"
	CategoryOther      Category = "other"
)

// Categories lists the fixed category set in display order.
var Categories = []Category{
	CategoryProduction, CategoryUtilities, CategoryTransport, CategoryLaboratory, CategoryIT, CategoryOther,
}

// Valid reports whether c belongs to the fixed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// FieldSpec defines one column of a machine type.
type FieldSpec struct {
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Label    string    `json:"label"`
	Options  []string  `json:"options,omitempty"` // single-select only
}

// MachineType is the schema of one workbook sheet.
type MachineType struct {
	ID             string               `json:"-"`
	Name           string               `json:"name"`
	Category       Category             `json:"category"`
	Description    string               `json:"description,omitempty"`
	Fields         map[string]FieldSpec `json:"fields"`
	DefaultColumns []string             `json:"default_columns"`
	CreatedAt      time.Time            `json:"created_at"`
	CreatedBy      string               `json:"created_by,omitempty"`
}

// RequiredFields returns the ids of the required fields.
func (m MachineType) RequiredFields() []string {
	var ids []string
	for id, spec := range m.Fields {
		if spec.Required {
			ids = append(ids, id)
		}
	}
	return ids
}
