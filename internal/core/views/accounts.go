package views

import "github.com/JonMunkholm/RecordGrid/internal/core"

func init() {
	registerAccounts()
}

func registerAccounts() {
	core.Register(core.ViewDefinition{
		Key:       "accounts",
		Label:     "Accounts",
		Object:    "accounts",
		SortField: "Name",
		Fields: []core.FieldSpec{
			{Name: "Id", DBColumn: "id", ReadOnly: true},
			{Name: "Name", DBColumn: "name"},
			{Name: "Industry", DBColumn: "industry", Type: core.FieldPicklist},
			{Name: "Rating", DBColumn: "rating", Type: core.FieldPicklist},
		},
		Columns: []core.Column{
			{Label: "Name", FieldName: "Name", Type: core.ColumnText},
			{Label: "Industry", FieldName: "Industry", Type: core.ColumnText},
			{Label: "Rating", FieldName: "Rating", Type: core.ColumnText},
		},
		FilterField:   "Industry",
		PicklistField: "Industry",
		PicklistKey:   "Account.Industry",
		Dependents:    &core.DependentSpec{Object: "contacts", ForeignKey: "account_id"},
		PageSize:      50,
		Paginated:     true,
	})
}
