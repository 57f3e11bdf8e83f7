package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/RecordGrid/internal/core"
)

// tableAlias qualifies the view's own columns in generated SQL.
const tableAlias = "t"

// queries holds the SQL rendered once per view definition.
type queries struct {
	object    string
	selectSQL string // SELECT list with FROM clause
	idCol     string
	sortExpr  string
	scopeCol  string
	writable  map[string]string // record field -> column
	dependent *core.DependentSpec
}

func newQueries(def core.ViewDefinition) (*queries, error) {
	if def.Object == "" {
		return nil, fmt.Errorf("view %s has no backing object", def.Key)
	}

	idCol, err := fieldColumn(def, core.FieldID)
	if err != nil {
		return nil, err
	}
	q := &queries{
		object:    def.Object,
		idCol:     idCol,
		writable:  make(map[string]string),
		dependent: def.Dependents,
	}

	sortCol, err := fieldColumn(def, def.SortField)
	if err != nil {
		return nil, err
	}
	q.sortExpr = fmt.Sprintf("COALESCE(CAST(%s AS text), '')", sortCol)

	if def.ScopeField != "" {
		scopeCol, err := fieldColumn(def, def.ScopeField)
		if err != nil {
			return nil, err
		}
		q.scopeCol = scopeCol
	}

	items := make([]string, 0, len(def.Fields)+2)
	hasID := false
	for _, f := range def.Fields {
		if f.Name == core.FieldID {
			hasID = true
		}
		items = append(items, fmt.Sprintf("%s AS %s", selectExpr(f), quoteIdentifier(f.Name)))
		if !f.ReadOnly && f.Lookup == nil && f.Name != core.FieldID {
			q.writable[f.Name] = columnFor(f)
		}
	}
	if !hasID {
		items = append([]string{fmt.Sprintf("%s AS %s", q.idCol, quoteIdentifier(core.FieldID))}, items...)
	}
	if d := def.Dependents; d != nil {
		items = append(items, fmt.Sprintf(
			"(SELECT count(*) FROM %s d WHERE d.%s = %s) AS %s",
			quoteIdentifier(d.Object), quoteIdentifier(d.ForeignKey), q.idCol, quoteIdentifier(core.FieldDependents),
		))
	}

	q.selectSQL = fmt.Sprintf("SELECT %s FROM %s %s",
		strings.Join(items, ", "), quoteIdentifier(def.Object), tableAlias)
	return q, nil
}

// fieldColumn resolves a record field to its qualified column.
func fieldColumn(def core.ViewDefinition, name string) (string, error) {
	if name == core.FieldID {
		if f, ok := def.Field(name); ok {
			return columnRef(columnFor(f)), nil
		}
		return columnRef("id"), nil
	}
	f, ok := def.Field(name)
	if !ok {
		return "", fmt.Errorf("view %s: unknown field %s", def.Key, name)
	}
	if f.Lookup != nil {
		return "", fmt.Errorf("view %s: lookup field %s cannot be used for sorting or scoping", def.Key, name)
	}
	return columnRef(columnFor(f)), nil
}

func selectExpr(f core.FieldSpec) string {
	if l := f.Lookup; l != nil {
		return fmt.Sprintf("(SELECT l.%s FROM %s l WHERE l.id = %s)",
			quoteIdentifier(l.Column), quoteIdentifier(l.Object), columnRef(l.ForeignKey))
	}
	return columnRef(columnFor(f))
}

func columnFor(f core.FieldSpec) string {
	if f.DBColumn != "" {
		return f.DBColumn
	}
	return toDBColumnName(f.Name)
}

func columnRef(col string) string {
	return tableAlias + "." + quoteIdentifier(col)
}

// count renders the total-records query for scope.
func (q *queries) count(scope core.Scope) (string, []any) {
	sql := fmt.Sprintf("SELECT count(*) FROM %s %s", quoteIdentifier(q.object), tableAlias)
	where, args := q.scopeWhere(scope, nil)
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	return sql, args
}

// page renders a keyset page: rows ordered by sort key then id, strictly
// after the cursor. limit < 0 means no limit.
func (q *queries) page(scope core.Scope, after *core.Cursor, limit int) (string, []any) {
	where, args := q.scopeWhere(scope, nil)
	if after != nil {
		args = append(args, after.LastKey, after.LastID)
		where = append(where, fmt.Sprintf("(%s, %s) > ($%d, $%d)", q.sortExpr, q.idCol, len(args)-1, len(args)))
	}

	var b strings.Builder
	b.WriteString(q.selectSQL)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY %s, %s", q.sortExpr, q.idCol)
	if limit >= 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

// exists renders the cursor existence check.
func (q *queries) exists(id string) (string, []any) {
	return fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s %s WHERE %s = $1)",
		quoteIdentifier(q.object), tableAlias, q.idCol), []any{id}
}

// update renders an UPDATE of fields on one record. Fields are written in
// sorted order so the statement text is stable.
func (q *queries) update(id string, fields map[string]any) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("update %s: no fields", id)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+1)
	for _, name := range names {
		col, ok := q.writable[name]
		if !ok {
			return "", nil, fmt.Errorf("field %s is not writable", name)
		}
		args = append(args, fields[name])
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(col), len(args)))
	}
	args = append(args, id)

	return fmt.Sprintf("UPDATE %s %s SET %s WHERE %s = $%d",
		quoteIdentifier(q.object), tableAlias, strings.Join(sets, ", "), q.idCol, len(args)), args, nil
}

// delete renders a DELETE of one record. With a dependent spec the row is
// only deleted when no dependents reference it.
func (q *queries) delete(id string) (string, []any) {
	sql := fmt.Sprintf("DELETE FROM %s %s WHERE %s = $1",
		quoteIdentifier(q.object), tableAlias, q.idCol)
	if d := q.dependent; d != nil {
		sql += fmt.Sprintf(" AND NOT EXISTS (SELECT 1 FROM %s d WHERE d.%s = %s)",
			quoteIdentifier(d.Object), quoteIdentifier(d.ForeignKey), q.idCol)
	}
	return sql, []any{id}
}

func (q *queries) scopeWhere(scope core.Scope, args []any) ([]string, []any) {
	if q.scopeCol == "" || scope.ParentID == "" {
		return nil, args
	}
	args = append(args, scope.ParentID)
	return []string{fmt.Sprintf("%s = $%d", q.scopeCol, len(args))}, args
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// toDBColumnName converts a record field name to a column name.
// "LastName" -> "last_name", "Lead Source" -> "lead_source", "Rank__c" -> "rank__c"
func toDBColumnName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && name[i-1] != '_' && name[i-1] != ' ' {
				b.WriteByte('_')
			}
			b.WriteRune(r + 'a' - 'A')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
