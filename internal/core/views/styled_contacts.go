package views

import "github.com/JonMunkholm/RecordGrid/internal/core"

func init() {
	registerStyledContacts()
}

const (
	titleColorClass = "slds-text-color_success"
	rankRibbonIcon  = "utility:ribbon"
	rankRibbonAbove = 5
)

func registerStyledContacts() {
	fields := append([]core.FieldSpec(nil), contactFields...)
	fields = append(fields,
		core.FieldSpec{Name: "Rank__c", DBColumn: "rank", Type: core.FieldNumeric, ReadOnly: true},
		core.FieldSpec{Name: "Picture__c", DBColumn: "picture_url", Type: core.FieldURL, ReadOnly: true},
		core.FieldSpec{
			Name:     "AccountName",
			ReadOnly: true,
			Lookup:   &core.Lookup{Object: "accounts", Column: "name", ForeignKey: "account_id"},
		},
	)

	core.Register(core.ViewDefinition{
		Key:       "contacts_styled",
		Label:     "Contacts (styled)",
		Object:    "contacts",
		SortField: "Name",
		Fields:    fields,
		Columns: []core.Column{
			{Label: "Name", Type: core.ColumnName, FieldName: "Name", TypeAttributes: map[string]string{"contactName": "Name"}},
			{Label: "Account Name", FieldName: "accountLink", Type: core.ColumnURL, TypeAttributes: map[string]string{"label": "accountName", "target": "_blank"}},
			{Label: "Title", FieldName: "Title", Type: core.ColumnText, CellClassField: "titleColor"},
			{Label: "Rank", FieldName: "Rank__c", Type: core.ColumnRank, TypeAttributes: map[string]string{"rankIcon": "rankIcon"}},
			{Label: "Phone", FieldName: "Phone", Type: core.ColumnPhone},
			{Label: "Email", FieldName: "Email", Type: core.ColumnEmail},
			{Label: "Picture", FieldName: "Picture__c", Type: core.ColumnPicture, TypeAttributes: map[string]string{"pictureUrl": "Picture__c"}},
		},
		FilterField: "LeadSource",
		PageSize:    50,
		Paginated:   true,
		Decorate:    decorateContact,
	})
}

// decorateContact derives the presentation fields of the styled contact list.
func decorateContact(rec core.Record) core.Record {
	out := rec.Clone()

	out["accountLink"] = ""
	if id := rec.String("AccountId"); id != "" {
		out["accountLink"] = "/" + id
	}
	out["accountName"] = rec.String("AccountName")
	out["titleColor"] = titleColorClass

	out["rankIcon"] = ""
	if rec.Int("Rank__c") > rankRibbonAbove {
		out["rankIcon"] = rankRibbonIcon
	}
	return out
}
