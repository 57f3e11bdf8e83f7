package views

import "github.com/JonMunkholm/RecordGrid/internal/core"

func init() {
	registerContactsByAccount()
}

// contactFields are the columns of the contacts table shared by contact views.
var contactFields = []core.FieldSpec{
	{Name: "Id", DBColumn: "id", ReadOnly: true},
	{Name: "AccountId", DBColumn: "account_id", ReadOnly: true},
	{Name: "Name", DBColumn: "name", ReadOnly: true},
	{Name: "FirstName", DBColumn: "first_name"},
	{Name: "LastName", DBColumn: "last_name"},
	{Name: "Title", DBColumn: "title"},
	{Name: "Phone", DBColumn: "phone", Type: core.FieldPhone},
	{Name: "Email", DBColumn: "email", Type: core.FieldEmail},
	{Name: "LeadSource", DBColumn: "lead_source", Type: core.FieldPicklist},
}

func registerContactsByAccount() {
	core.Register(core.ViewDefinition{
		Key:        "contacts_by_account",
		Label:      "Contacts",
		Object:     "contacts",
		ScopeField: "AccountId",
		SortField:  "Name",
		Fields:     contactFields,
		Columns: []core.Column{
			{Label: "First Name", FieldName: "FirstName", Type: core.ColumnText, Editable: true},
			{Label: "Last Name", FieldName: "LastName", Type: core.ColumnText, Editable: true},
			{Label: "Title", FieldName: "Title", Type: core.ColumnText, Editable: true},
			{Label: "Phone", FieldName: "Phone", Type: core.ColumnPhone},
			{Label: "Email", FieldName: "Email", Type: core.ColumnEmail},
			{
				Label:     "Lead Source",
				FieldName: "LeadSource",
				Type:      core.ColumnPicklist,
				Editable:  true,
				TypeAttributes: map[string]string{
					"value":   "LeadSource",
					"context": "Id",
				},
			},
			{Type: core.ColumnAction, Actions: core.DefaultRowActions},
		},
		FilterField:   "LeadSource",
		PicklistField: "LeadSource",
		PicklistKey:   "Contact.LeadSource",
		Dependents:    &core.DependentSpec{Object: "cases", ForeignKey: "contact_id"},
	})
}
