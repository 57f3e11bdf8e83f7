package core

import (
	"fmt"
	"time"
)

// FieldID is the name of the stable identifier field carried by every record.
const FieldID = "Id"

// FieldDependents carries the number of dependent records that block deletion.
// Data sources populate it when the view defines a DependentSpec.
const FieldDependents = "DependentCount"

// Record is a single business entity row as a field name -> value mapping.
// Records are copies; the data store owns the originals.
type Record map[string]any

// ID returns the record's stable identifier, or "" if it has none.
func (r Record) ID() string {
	return r.String(FieldID)
}

// String returns the field value formatted as a string. Missing and nil
// values format as "".
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the field value as an int. Non-numeric values return 0.
func (r Record) Int(field string) int {
	switch v := r[field].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	default:
		return 0
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of the record with fields applied over it.
func (r Record) Merge(fields map[string]any) Record {
	out := r.Clone()
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Cursor identifies the last record of the most recently loaded page.
type Cursor struct {
	LastKey string `json:"lastKey"`
	LastID  string `json:"lastId"`
}

// IsZero reports whether the cursor points at nothing.
func (c Cursor) IsZero() bool {
	return c.LastKey == "" && c.LastID == ""
}

// CursorFor builds the cursor referencing rec under the given sort field.
func CursorFor(rec Record, sortField string) Cursor {
	return Cursor{LastKey: rec.String(sortField), LastID: rec.ID()}
}

// Scope narrows a view to the children of one parent record
// (e.g. the contacts of an account). An empty ParentID means unscoped.
type Scope struct {
	ParentID string `json:"parentId,omitempty"`
}

// FieldType represents the data type of a record field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldPicklist
	FieldNumeric
	FieldPhone
	FieldEmail
	FieldURL
)

// FieldSpec maps a record field to its backing column.
type FieldSpec struct {
	Name     string    // Record field name: "LastName"
	DBColumn string    // Column name (derived from Name if empty)
	Type     FieldType // Data type
	ReadOnly bool      // Never written back by updates
	Lookup   *Lookup   // Value read from a parent record instead of DBColumn
}

// Lookup reads a field from a parent record referenced by a foreign key.
// Lookup fields are always read-only.
type Lookup struct {
	Object     string // Parent table: "accounts"
	Column     string // Parent column: "name"
	ForeignKey string // Local column holding the parent id: "account_id"
}

// PicklistOption is one valid value of a categorical field.
type PicklistOption struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// NoticeKind classifies a user-visible notification.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a single user-visible notification.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}
