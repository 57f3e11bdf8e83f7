package core

// FilterAll is the filter value that shows every record.
const FilterAll = "all"

// Filter is the single active category filter of a view.
type Filter struct {
	Field string `json:"field,omitempty"`
	Value string `json:"value"`
}

// AllFilter returns the filter that matches every record.
func AllFilter() Filter {
	return Filter{Value: FilterAll}
}

// IsAll reports whether the filter matches every record.
func (f Filter) IsAll() bool {
	return f.Value == FilterAll || f.Field == ""
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec Record) bool {
	if f.IsAll() {
		return true
	}
	return rec.String(f.Field) == f.Value
}

// FilterOption is one choice in the filter menu. Exactly one is checked.
type FilterOption struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Checked bool   `json:"checked"`
}

// applyFilter returns the records of all that pass f, in order.
func applyFilter(all []Record, f Filter) []Record {
	out := make([]Record, 0, len(all))
	for _, rec := range all {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// buildFilterOptions returns a fresh option list ("All" first) with only the
// active value checked. A value missing from options leaves nothing but the
// active entry checked, so it is appended.
func buildFilterOptions(options []PicklistOption, active Filter) []FilterOption {
	out := make([]FilterOption, 0, len(options)+1)
	out = append(out, FilterOption{Label: "All", Value: FilterAll, Checked: active.IsAll()})

	found := active.IsAll()
	for _, opt := range options {
		checked := !active.IsAll() && opt.Value == active.Value
		found = found || checked
		out = append(out, FilterOption{Label: opt.Label, Value: opt.Value, Checked: checked})
	}
	if !found {
		out = append(out, FilterOption{Label: active.Value, Value: active.Value, Checked: true})
	}
	return out
}
