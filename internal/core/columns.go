package core

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ColumnType selects how a column's cells are presented.
type ColumnType string

const (
	ColumnText     ColumnType = "text"
	ColumnPhone    ColumnType = "phone"
	ColumnEmail    ColumnType = "email"
	ColumnURL      ColumnType = "url"
	ColumnName     ColumnType = "customName"
	ColumnRank     ColumnType = "customRank"
	ColumnPicture  ColumnType = "customPicture"
	ColumnPicklist ColumnType = "customPicklist"
	ColumnAction   ColumnType = "action"
)

// Column describes one column of a view. Columns are values: every state
// change that touches them builds a new slice instead of mutating a shared one.
type Column struct {
	Label     string     `json:"label" yaml:"label"`
	FieldName string     `json:"fieldName,omitempty" yaml:"field"`
	Type      ColumnType `json:"type" yaml:"type"`
	Editable  bool       `json:"editable,omitempty" yaml:"editable"`

	// TypeAttributes maps a cell attribute to the record field supplying it
	// (e.g. "label" -> "accountName" for URL columns).
	TypeAttributes map[string]string `json:"typeAttributes,omitempty" yaml:"typeAttributes"`

	// CellClassField names the record field holding the cell's style class.
	CellClassField string `json:"cellClassField,omitempty" yaml:"cellClassField"`

	// Options is filled for picklist columns when the view opens.
	Options []PicklistOption `json:"options,omitempty" yaml:"-"`

	// Actions is filled for action columns.
	Actions []RowAction `json:"actions,omitempty" yaml:"actions"`
}

func (c Column) clone() Column {
	out := c
	if c.TypeAttributes != nil {
		out.TypeAttributes = make(map[string]string, len(c.TypeAttributes))
		for k, v := range c.TypeAttributes {
			out.TypeAttributes[k] = v
		}
	}
	if c.Options != nil {
		out.Options = append([]PicklistOption(nil), c.Options...)
	}
	if c.Actions != nil {
		out.Actions = append([]RowAction(nil), c.Actions...)
	}
	return out
}

// cloneColumns returns a deep copy of cols.
func cloneColumns(cols []Column) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = c.clone()
	}
	return out
}

// buildColumns returns a new column set with options attached to every
// picklist column bound to field.
func buildColumns(base []Column, field string, options []PicklistOption) []Column {
	out := cloneColumns(base)
	for i := range out {
		if out[i].Type == ColumnPicklist && out[i].FieldName == field {
			out[i].Options = append([]PicklistOption(nil), options...)
		}
	}
	return out
}

// editableFields returns the set of field names that accept inline edits.
func editableFields(cols []Column) map[string]bool {
	out := make(map[string]bool)
	for _, c := range cols {
		if c.Editable && c.FieldName != "" {
			out[c.FieldName] = true
		}
	}
	return out
}

// ColumnLayout maps view keys to column sets loaded from a layout file.
type ColumnLayout map[string][]Column

// LoadColumnLayout parses a YAML column layout:
//
//	contacts_by_account:
//	  - label: First Name
//	    field: FirstName
//	    editable: true
//	  - label: Lead Source
//	    field: LeadSource
//	    type: customPicklist
//	    editable: true
func LoadColumnLayout(r io.Reader) (ColumnLayout, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read column layout: %w", err)
	}

	var layout ColumnLayout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("parse column layout: %w", err)
	}

	for key, cols := range layout {
		for i := range cols {
			if cols[i].Type == "" {
				cols[i].Type = ColumnText
			}
			if cols[i].Type != ColumnAction && cols[i].FieldName == "" {
				return nil, fmt.Errorf("column layout %s: column %d (%q) has no field", key, i, cols[i].Label)
			}
			for _, a := range cols[i].Actions {
				if _, err := ParseRowAction(string(a)); err != nil {
					return nil, fmt.Errorf("column layout %s: %w", key, err)
				}
			}
		}
	}
	return layout, nil
}

// ApplyColumnLayout replaces the columns of registered views named in layout.
// Unknown view keys are an error.
func ApplyColumnLayout(layout ColumnLayout) error {
	for key, cols := range layout {
		if err := SetColumns(key, cols); err != nil {
			return err
		}
	}
	return nil
}
