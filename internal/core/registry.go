package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DependentSpec names the child records that block deletion of a row.
type DependentSpec struct {
	Object     string // Child table: "cases"
	ForeignKey string // Child column referencing the row id: "contact_id"
}

// ViewDefinition contains everything needed to serve one kind of grid.
type ViewDefinition struct {
	Key   string // Unique identifier: "contacts_by_account"
	Label string // Display name: "Contacts"

	Object     string      // Backing table
	ScopeField string      // Record field holding the parent id; empty = unscoped
	SortField  string      // Record field pages are ordered by (cursor key)
	Fields     []FieldSpec // Record fields and their columns
	Columns    []Column    // Presentation columns

	FilterField   string // Field the category filter applies to
	PicklistField string // Field whose picklist feeds the filter and editor
	PicklistKey   string // Picklist source key: "Contact.LeadSource"

	Dependents *DependentSpec // Optional delete guard

	PageSize  int  // 0 = DefaultPageSize
	Paginated bool // Infinite loading enabled

	// Decorate derives presentation fields from a fetched record. It must
	// return a new record and leave its argument untouched.
	Decorate func(Record) Record
}

// Field returns the spec for a record field.
func (d ViewDefinition) Field(name string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// EffectivePageSize returns the page size with the default applied.
func (d ViewDefinition) EffectivePageSize() int {
	if d.PageSize > 0 {
		return d.PageSize
	}
	return DefaultPageSize
}

var (
	registry   = make(map[string]ViewDefinition)
	registryMu sync.RWMutex
)

// Register adds a view definition to the registry.
// Panics if a view with the same key is already registered.
func Register(def ViewDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("view already registered: %s", def.Key))
	}
	if def.SortField == "" {
		def.SortField = FieldID
	}

	registry[def.Key] = def
}

// Get returns a view definition by key.
// Returns false if not found.
func Get(key string) (ViewDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	if ok {
		def.Columns = cloneColumns(def.Columns)
	}
	return def, ok
}

// SetColumns replaces the columns of a registered view.
func SetColumns(key string, cols []Column) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	def, ok := registry[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, key)
	}
	def.Columns = cloneColumns(cols)
	registry[key] = def
	return nil
}

// All returns all registered view definitions sorted by key.
func All() []ViewDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ViewDefinition, 0, len(registry))
	for _, def := range registry {
		def.Columns = cloneColumns(def.Columns)
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// ViewCount returns the number of registered views.
func ViewCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered views.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ViewDefinition)
}
