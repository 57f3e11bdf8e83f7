package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func contactRecords() []Record {
	return []Record{
		{FieldID: "c1", "FirstName": "Ada", "LeadSource": "Web"},
		{FieldID: "c2", "FirstName": "Bob", "LeadSource": "Phone Inquiry"},
		{FieldID: "c3", "FirstName": "Cy", "LeadSource": "Web"},
		{FieldID: "c4", "FirstName": "Di", "LeadSource": "Other", FieldDependents: 2},
	}
}

func contactView() ViewDefinition {
	return ViewDefinition{
		Key:       "contacts",
		Object:    "contacts",
		SortField: FieldID,
		Columns: []Column{
			{Label: "First Name", FieldName: "FirstName", Type: ColumnText, Editable: true},
			{Label: "Lead Source", FieldName: "LeadSource", Type: ColumnPicklist, Editable: true},
			{Type: ColumnAction, Actions: DefaultRowActions},
		},
		FilterField:   "LeadSource",
		PicklistField: "LeadSource",
		PicklistKey:   "Contact.LeadSource",
	}
}

func openTestTable(t *testing.T, def ViewDefinition, backend Backend, opts TableOptions) (*Table, *noticeRecorder) {
	t.Helper()
	rec := &noticeRecorder{}
	opts.Notifier = rec
	table, err := NewTable(def, Scope{}, backend, opts)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	if err := table.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rec.reset()
	return table, rec
}

func rowIDs(rows []Record) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID()
	}
	return ids
}

func TestTableFilter(t *testing.T) {
	src := newFakeBackend(contactRecords())
	src.picklist = []PicklistOption{{Label: "Web", Value: "Web"}, {Label: "Phone Inquiry", Value: "Phone Inquiry"}}
	table, _ := openTestTable(t, contactView(), src, TableOptions{})

	table.SetFilter("", "Web")
	snap := table.Snapshot()
	if got := strings.Join(rowIDs(snap.Rows), ","); got != "c1,c3" {
		t.Errorf("rows after filter = %s, want c1,c3", got)
	}

	checked := 0
	for _, opt := range snap.FilterOptions {
		if opt.Checked {
			checked++
			if opt.Value != "Web" {
				t.Errorf("checked option = %q, want Web", opt.Value)
			}
		}
	}
	if checked != 1 {
		t.Errorf("checked options = %d, want 1", checked)
	}

	table.SetFilter("", "Web")
	if got := strings.Join(rowIDs(table.Snapshot().Rows), ","); got != "c1,c3" {
		t.Errorf("rows after repeated filter = %s, want c1,c3", got)
	}

	table.SetFilter("", FilterAll)
	snap = table.Snapshot()
	if len(snap.Rows) != 4 {
		t.Errorf("rows after all = %d, want 4", len(snap.Rows))
	}
	if !snap.FilterOptions[0].Checked {
		t.Error("All option not checked after clearing filter")
	}
}

func TestTableFilterUnknownValue(t *testing.T) {
	src := newFakeBackend(contactRecords())
	src.picklist = []PicklistOption{{Label: "Web", Value: "Web"}}
	table, _ := openTestTable(t, contactView(), src, TableOptions{})

	table.SetFilter("", "Partner")
	snap := table.Snapshot()
	if len(snap.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(snap.Rows))
	}
	last := snap.FilterOptions[len(snap.FilterOptions)-1]
	if last.Value != "Partner" || !last.Checked {
		t.Errorf("last option = %+v, want checked Partner", last)
	}
}

func TestTableSelectionPrunedByFilter(t *testing.T) {
	table, _ := openTestTable(t, contactView(), newFakeBackend(contactRecords()), TableOptions{})

	sel := table.ToggleSelection([]string{"c1", "c2", "missing"})
	if got := strings.Join(sel, ","); got != "c1,c2" {
		t.Errorf("selection = %s, want c1,c2", got)
	}

	table.SetFilter("", "Web")
	if got := strings.Join(table.Snapshot().Selection, ","); got != "c1" {
		t.Errorf("selection after filter = %s, want c1", got)
	}
}

func TestTableStageEdit(t *testing.T) {
	table, rec := openTestTable(t, contactView(), newFakeBackend(contactRecords()), TableOptions{})

	tests := []struct {
		name    string
		id      string
		field   string
		wantErr error
	}{
		{"editable field", "c1", "FirstName", nil},
		{"unknown record", "zz", "FirstName", ErrUnknownRecord},
		{"read-only field", "c1", "Email", ErrNotEditable},
		{"id field", "c1", FieldID, ErrNotEditable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := table.StageEdit(tt.id, tt.field, "x")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("StageEdit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	snap := table.Snapshot()
	if snap.PendingEdits["c1"]["FirstName"] != "x" {
		t.Errorf("pending = %v, want c1.FirstName=x", snap.PendingEdits)
	}
	if snap.Rows[0].String("FirstName") != "Ada" {
		t.Error("staged edit leaked into visible rows")
	}
	if n := len(rec.all()); n != 3 {
		t.Errorf("notifications = %d, want 3 (one per rejection)", n)
	}
}

func TestTableCommitPartialFailure(t *testing.T) {
	src := newFakeBackend(contactRecords())
	src.updateFail = map[string]error{"c2": errBoom}
	table, rec := openTestTable(t, contactView(), src, TableOptions{})
	refreshesBefore, _, _ := src.stats()

	if err := table.StageEdit("c1", "FirstName", "Ana"); err != nil {
		t.Fatal(err)
	}
	if err := table.StageEdit("c2", "LeadSource", "Web"); err != nil {
		t.Fatal(err)
	}

	result, err := table.CommitEdits(context.Background())

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("CommitEdits() error = %v, want *BatchError", err)
	}
	if batchErr.Total != 2 || len(batchErr.Failures) != 1 {
		t.Errorf("BatchError = %d of %d, want 1 of 2", len(batchErr.Failures), batchErr.Total)
	}
	if len(result.Succeeded) != 1 || result.Succeeded[0] != "c1" {
		t.Errorf("Succeeded = %v, want [c1]", result.Succeeded)
	}

	notices := rec.all()
	if len(notices) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notices))
	}
	if notices[0].Kind != NoticeError {
		t.Errorf("notice kind = %s, want error", notices[0].Kind)
	}
	if !strings.Contains(notices[0].Message, "UPD002") {
		t.Errorf("notice = %q, want code UPD002", notices[0].Message)
	}

	snap := table.Snapshot()
	if len(snap.PendingEdits) != 0 {
		t.Errorf("pending edits = %v, want none", snap.PendingEdits)
	}
	if refreshes, _, _ := src.stats(); refreshes != refreshesBefore+1 {
		t.Errorf("refreshes = %d, want %d", refreshes, refreshesBefore+1)
	}
	if got := snap.Rows[0].String("FirstName"); got != "Ana" {
		t.Errorf("c1 FirstName = %q, want Ana", got)
	}
	if got := snap.Rows[1].String("LeadSource"); got != "Phone Inquiry" {
		t.Errorf("c2 LeadSource = %q, want unchanged Phone Inquiry", got)
	}
}

func TestTableCommitSuccess(t *testing.T) {
	src := newFakeBackend(contactRecords())
	table, rec := openTestTable(t, contactView(), src, TableOptions{})

	table.StageEdit("c1", "FirstName", "Ana")
	table.StageEdit("c3", "FirstName", "Cyd")

	if _, err := table.CommitEdits(context.Background()); err != nil {
		t.Fatalf("CommitEdits() error = %v", err)
	}
	notices := rec.all()
	if len(notices) != 1 || notices[0].Kind != NoticeSuccess {
		t.Fatalf("notices = %+v, want one success", notices)
	}
	if notices[0].Message != "Records updated successfully." {
		t.Errorf("message = %q", notices[0].Message)
	}
	if _, updates, _ := src.stats(); updates != 2 {
		t.Errorf("update calls = %d, want 2", updates)
	}
}

func TestTableCommitNothing(t *testing.T) {
	src := newFakeBackend(contactRecords())
	table, _ := openTestTable(t, contactView(), src, TableOptions{})

	if _, err := table.CommitEdits(context.Background()); !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("CommitEdits() error = %v, want ErrNothingToCommit", err)
	}
	if _, updates, _ := src.stats(); updates != 0 {
		t.Errorf("update calls = %d, want 0", updates)
	}
}

func TestTableRefreshFailureKeepsRows(t *testing.T) {
	src := newFakeBackend(contactRecords())
	table, rec := openTestTable(t, contactView(), src, TableOptions{})
	src.refreshErr = errBoom

	if err := table.Reload(context.Background()); err == nil {
		t.Fatal("Reload() error = nil, want failure")
	}
	if n := len(table.Rows()); n != 4 {
		t.Errorf("rows after failed refresh = %d, want 4", n)
	}
	if notices := rec.all(); len(notices) != 1 || notices[0].Kind != NoticeError {
		t.Errorf("notices = %+v, want one error", notices)
	}
}

func TestAllOrNothingRequiresTxMutator(t *testing.T) {
	_, err := NewTable(contactView(), Scope{}, newFakeBackend(nil), TableOptions{Policy: PolicyAllOrNothing})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("NewTable() error = %v, want ErrInvalidState", err)
	}
}

func TestTableAllOrNothingCommit(t *testing.T) {
	tx := &fakeTxBackend{fakeBackend: newFakeBackend(contactRecords()), txErr: errBoom}
	table, _ := openTestTable(t, contactView(), tx, TableOptions{Policy: PolicyAllOrNothing})

	table.StageEdit("c1", "FirstName", "Ana")
	table.StageEdit("c2", "FirstName", "Bo")

	result, err := table.CommitEdits(context.Background())
	if err == nil {
		t.Fatal("CommitEdits() error = nil, want failure")
	}
	if tx.txCalls != 1 {
		t.Errorf("transactional calls = %d, want 1", tx.txCalls)
	}
	if len(result.Succeeded) != 0 || len(result.Failed) != 2 {
		t.Errorf("result = %d ok / %d failed, want 0 / 2", len(result.Succeeded), len(result.Failed))
	}
	if got := table.Rows()[0].String("FirstName"); got != "Ada" {
		t.Errorf("c1 FirstName = %q, want Ada", got)
	}
}

func TestTableBulkDelete(t *testing.T) {
	t.Run("dependents block the whole batch", func(t *testing.T) {
		src := newFakeBackend(contactRecords())
		table, rec := openTestTable(t, contactView(), src, TableOptions{})

		_, err := table.RequestBulkDelete(context.Background(), []string{"c1", "c4"})
		if !errors.Is(err, ErrHasDependents) {
			t.Errorf("RequestBulkDelete() error = %v, want ErrHasDependents", err)
		}
		if _, _, deletes := src.stats(); deletes != 0 {
			t.Errorf("delete calls = %d, want 0", deletes)
		}
		notices := rec.all()
		if len(notices) != 1 || !strings.Contains(notices[0].Message, "DEL002") {
			t.Errorf("notices = %+v, want one DEL002 error", notices)
		}
	})

	t.Run("empty selection", func(t *testing.T) {
		table, _ := openTestTable(t, contactView(), newFakeBackend(contactRecords()), TableOptions{})
		if _, err := table.RequestBulkDelete(context.Background(), nil); !errors.Is(err, ErrEmptySelection) {
			t.Errorf("RequestBulkDelete() error = %v, want ErrEmptySelection", err)
		}
	})

	t.Run("deletes the selection", func(t *testing.T) {
		src := newFakeBackend(contactRecords())
		table, rec := openTestTable(t, contactView(), src, TableOptions{})
		table.ToggleSelection([]string{"c1", "c2"})

		result, err := table.RequestBulkDelete(context.Background(), nil)
		if err != nil {
			t.Fatalf("RequestBulkDelete() error = %v", err)
		}
		if len(result.Succeeded) != 2 {
			t.Errorf("Succeeded = %v, want 2 ids", result.Succeeded)
		}
		snap := table.Snapshot()
		if got := strings.Join(rowIDs(snap.Rows), ","); got != "c3,c4" {
			t.Errorf("rows = %s, want c3,c4", got)
		}
		if len(snap.Selection) != 0 {
			t.Errorf("selection = %v, want empty", snap.Selection)
		}
		notices := rec.all()
		if len(notices) != 1 || notices[0].Message != "2 records deleted successfully." {
			t.Errorf("notices = %+v", notices)
		}
	})
}

func TestTableModal(t *testing.T) {
	src := newFakeBackend(contactRecords())
	table, _ := openTestTable(t, contactView(), src, TableOptions{})
	ctx := context.Background()
	base, _, _ := src.stats()

	if err := table.RequestRowAction(ctx, ActionView, "c1"); err != nil {
		t.Fatal(err)
	}
	if m := table.Snapshot().Modal; m.State != ModalViewing || m.RecordID != "c1" {
		t.Errorf("modal = %+v, want viewing c1", m)
	}
	if err := table.CloseModal(ctx); err != nil {
		t.Fatal(err)
	}
	if refreshes, _, _ := src.stats(); refreshes != base {
		t.Errorf("closing viewer refreshed %d times, want 0", refreshes-base)
	}

	if err := table.RequestRowAction(ctx, ActionEdit, "c2"); err != nil {
		t.Fatal(err)
	}
	if m := table.Snapshot().Modal; m.State != ModalEditing {
		t.Errorf("modal state = %s, want editing", m.State)
	}
	if err := table.CloseModal(ctx); err != nil {
		t.Fatal(err)
	}
	if refreshes, _, _ := src.stats(); refreshes != base+1 {
		t.Errorf("closing editor refreshed %d times, want 1", refreshes-base)
	}
	if m := table.Snapshot().Modal; m.State != ModalClosed {
		t.Errorf("modal state = %s, want closed", m.State)
	}

	if err := table.RequestRowAction(ctx, RowAction("archive"), "c1"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("unknown action error = %v, want ErrInvalidState", err)
	}
}

func TestTableRowActionDelete(t *testing.T) {
	src := newFakeBackend(contactRecords())
	table, rec := openTestTable(t, contactView(), src, TableOptions{})
	ctx := context.Background()

	if err := table.RequestRowAction(ctx, ActionDelete, "c2"); err != nil {
		t.Fatalf("RequestRowAction(delete) error = %v", err)
	}
	if got := strings.Join(rowIDs(table.Rows()), ","); got != "c1,c3,c4" {
		t.Errorf("rows = %s, want c1,c3,c4", got)
	}
	if notices := rec.all(); len(notices) != 1 || notices[0].Message != "Record deleted successfully." {
		t.Errorf("notices = %+v", notices)
	}

	if err := table.RequestRowAction(ctx, ActionDelete, "c4"); !errors.Is(err, ErrHasDependents) {
		t.Errorf("deleting guarded row error = %v, want ErrHasDependents", err)
	}
}

func TestTablePicklistFailureDoesNotFailOpen(t *testing.T) {
	src := newFakeBackend(contactRecords())
	src.picklistErr = errBoom
	rec := &noticeRecorder{}

	table, err := NewTable(contactView(), Scope{}, src, TableOptions{Notifier: rec})
	if err != nil {
		t.Fatal(err)
	}
	if err := table.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	if n := len(table.Rows()); n != 4 {
		t.Errorf("rows = %d, want 4", n)
	}
	if notices := rec.all(); len(notices) != 1 || notices[0].Kind != NoticeError {
		t.Errorf("notices = %+v, want one error", notices)
	}
}

func TestTablePicklistColumns(t *testing.T) {
	src := newFakeBackend(contactRecords())
	src.picklist = []PicklistOption{{Label: "Web", Value: "Web"}}
	def := contactView()
	table, _ := openTestTable(t, def, src, TableOptions{})

	cols := table.Snapshot().Columns
	if len(cols[1].Options) != 1 {
		t.Errorf("picklist column options = %v, want 1", cols[1].Options)
	}
	if len(def.Columns[1].Options) != 0 {
		t.Error("definition columns were mutated")
	}
}

func TestTableLoadMore(t *testing.T) {
	def := contactView()
	def.Paginated = true
	def.PageSize = 50
	def.PicklistKey = ""

	src := newFakeBackend(numberedRecords(120))
	table, _ := openTestTable(t, def, src, TableOptions{})
	ctx := context.Background()

	snap := table.Snapshot()
	if snap.RecordsLoaded != 50 || snap.TotalRecords != 120 || !snap.HasMore {
		t.Fatalf("after open = %d/%d hasMore=%v, want 50/120 true", snap.RecordsLoaded, snap.TotalRecords, snap.HasMore)
	}

	for _, want := range []int{50, 20, 0} {
		n, err := table.LoadMore(ctx)
		if err != nil {
			t.Fatalf("LoadMore() error = %v", err)
		}
		if n != want {
			t.Errorf("LoadMore() = %d, want %d", n, want)
		}
	}
	if n := len(table.Rows()); n != 120 {
		t.Errorf("rows = %d, want 120", n)
	}
	if table.Snapshot().HasMore {
		t.Error("HasMore = true after all rows loaded")
	}
}

func TestTableLoadMoreCursorGone(t *testing.T) {
	def := contactView()
	def.Paginated = true
	def.PageSize = 10
	def.PicklistKey = ""

	src := newFakeBackend(numberedRecords(30))
	table, rec := openTestTable(t, def, src, TableOptions{})
	src.remove("r010")

	n, err := table.LoadMore(context.Background())
	if err != nil || n != 0 {
		t.Errorf("LoadMore() = (%d, %v), want (0, nil)", n, err)
	}
	if len(rec.all()) != 0 {
		t.Errorf("notices = %+v, want none", rec.all())
	}
	if table.Snapshot().HasMore {
		t.Error("HasMore = true after cursor vanished")
	}
}

func TestTableSubscribe(t *testing.T) {
	table, _ := openTestTable(t, contactView(), newFakeBackend(contactRecords()), TableOptions{})

	var got []Snapshot
	unsubscribe := table.Subscribe(func(s Snapshot) { got = append(got, s) })

	table.SetFilter("", "Web")
	if len(got) != 1 || len(got[0].Rows) != 2 {
		t.Fatalf("snapshots = %d, want 1 with 2 rows", len(got))
	}

	unsubscribe()
	table.SetFilter("", FilterAll)
	if len(got) != 1 {
		t.Errorf("snapshots after unsubscribe = %d, want 1", len(got))
	}
}

func TestTableDecorate(t *testing.T) {
	def := contactView()
	def.Decorate = func(r Record) Record {
		out := r.Clone()
		out["upper"] = strings.ToUpper(r.String("FirstName"))
		return out
	}
	src := newFakeBackend(contactRecords())
	table, _ := openTestTable(t, def, src, TableOptions{})

	table.StageEdit("c1", "FirstName", "Ana")
	if _, err := table.CommitEdits(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := table.Rows()[0].String("upper"); got != "ANA" {
		t.Errorf("decorated field = %q, want ANA", got)
	}
}

func paginatedView(pageSize int) ViewDefinition {
	def := contactView()
	def.Paginated = true
	def.PageSize = pageSize
	def.PicklistKey = ""
	return def
}

func TestTableDeleteRebasesCursorWhenRefreshFails(t *testing.T) {
	src := newFakeBackend(numberedRecords(20))
	table, _ := openTestTable(t, paginatedView(5), src, TableOptions{})
	ctx := context.Background()

	src.mu.Lock()
	src.refreshErr = errBoom
	src.mu.Unlock()

	if _, err := table.RequestBulkDelete(ctx, []string{"r005"}); err == nil {
		t.Fatal("RequestBulkDelete() error = nil, want refresh failure")
	}

	snap := table.Snapshot()
	if snap.RecordsLoaded != len(snap.Rows) || snap.RecordsLoaded != 4 {
		t.Errorf("RecordsLoaded = %d with %d rows, want 4", snap.RecordsLoaded, len(snap.Rows))
	}
	if snap.TotalRecords != 19 {
		t.Errorf("TotalRecords = %d, want 19", snap.TotalRecords)
	}
	if snap.Cursor.LastID != "r004" {
		t.Errorf("Cursor.LastID = %q, want r004", snap.Cursor.LastID)
	}

	src.mu.Lock()
	src.refreshErr = nil
	src.mu.Unlock()

	n, err := table.LoadMore(ctx)
	if err != nil || n != 5 {
		t.Fatalf("LoadMore() = (%d, %v), want (5, nil)", n, err)
	}
	rows := table.Rows()
	if got := rows[len(rows)-1].ID(); got != "r010" {
		t.Errorf("last row = %q, want r010", got)
	}
	if !table.Snapshot().HasMore {
		t.Error("HasMore = false with records left")
	}
}

func TestTableCommitRebasesCursorWhenRefreshFails(t *testing.T) {
	records := numberedRecords(20)
	for _, r := range records {
		r["FirstName"] = "n" + r.ID()[1:]
	}
	src := newFakeBackend(records)
	src.sortField = "FirstName"
	def := paginatedView(5)
	def.SortField = "FirstName"
	table, _ := openTestTable(t, def, src, TableOptions{})
	ctx := context.Background()

	src.mu.Lock()
	src.refreshErr = errBoom
	src.mu.Unlock()

	table.StageEdit("r005", "FirstName", "n005b")
	if _, err := table.CommitEdits(ctx); err == nil {
		t.Fatal("CommitEdits() error = nil, want refresh failure")
	}

	cursor := table.Snapshot().Cursor
	if cursor.LastKey != "n005b" || cursor.LastID != "r005" {
		t.Errorf("Cursor = %+v, want {n005b r005}", cursor)
	}

	src.mu.Lock()
	src.refreshErr = nil
	src.mu.Unlock()

	if n, err := table.LoadMore(ctx); err != nil || n != 5 {
		t.Errorf("LoadMore() = (%d, %v), want (5, nil)", n, err)
	}
}

func TestTableCommitClearsSelection(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		table, _ := openTestTable(t, contactView(), newFakeBackend(contactRecords()), TableOptions{})
		table.ToggleSelection([]string{"c1", "c2"})
		table.StageEdit("c1", "FirstName", "Ana")

		if _, err := table.CommitEdits(context.Background()); err != nil {
			t.Fatalf("CommitEdits() error = %v", err)
		}
		if sel := table.Snapshot().Selection; len(sel) != 0 {
			t.Errorf("selection = %v, want empty", sel)
		}
	})

	t.Run("partial failure keeps selection", func(t *testing.T) {
		src := newFakeBackend(contactRecords())
		src.updateFail = map[string]error{"c2": errBoom}
		table, _ := openTestTable(t, contactView(), src, TableOptions{})
		table.ToggleSelection([]string{"c1", "c2"})
		table.StageEdit("c1", "FirstName", "Ana")
		table.StageEdit("c2", "FirstName", "Bo")

		if _, err := table.CommitEdits(context.Background()); err == nil {
			t.Fatal("CommitEdits() error = nil, want batch failure")
		}
		if sel := table.Snapshot().Selection; len(sel) != 2 {
			t.Errorf("selection = %v, want [c1 c2]", sel)
		}
	})
}

func TestTableSingleBatchInFlight(t *testing.T) {
	src := newFakeBackend(contactRecords())
	gate := make(chan struct{})
	src.updateGate = gate
	table, rec := openTestTable(t, contactView(), src, TableOptions{})
	ctx := context.Background()

	table.StageEdit("c1", "FirstName", "Ana")
	done := make(chan error, 1)
	go func() {
		_, err := table.CommitEdits(ctx)
		done <- err
	}()
	waitFor(t, "commit to start", table.batching.Load)

	table.StageEdit("c3", "FirstName", "Cyd")
	if _, err := table.CommitEdits(ctx); !errors.Is(err, ErrBatchInFlight) {
		t.Errorf("CommitEdits() during batch error = %v, want ErrBatchInFlight", err)
	}
	if _, err := table.RequestBulkDelete(ctx, []string{"c2"}); !errors.Is(err, ErrBatchInFlight) {
		t.Errorf("RequestBulkDelete() during batch error = %v, want ErrBatchInFlight", err)
	}
	if _, _, deletes := src.stats(); deletes != 0 {
		t.Errorf("delete calls = %d, want 0", deletes)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first CommitEdits() error = %v", err)
	}

	var rejected int
	for _, n := range rec.all() {
		if n.Kind == NoticeError && strings.Contains(n.Message, "STATE003") {
			rejected++
		}
	}
	if rejected != 2 {
		t.Errorf("STATE003 notices = %d, want 2", rejected)
	}

	if _, err := table.CommitEdits(ctx); err != nil {
		t.Errorf("CommitEdits() after batch error = %v", err)
	}
}

func TestTableLoadMoreDiscardsPageAfterRefresh(t *testing.T) {
	src := newFakeBackend(numberedRecords(20))
	table, _ := openTestTable(t, paginatedView(5), src, TableOptions{})
	ctx := context.Background()

	gate := make(chan struct{})
	src.mu.Lock()
	src.pageGate = gate
	src.mu.Unlock()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := table.LoadMore(ctx)
		done <- result{n, err}
	}()
	waitFor(t, "page load to start", table.loader.Loading)

	if err := table.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	close(gate)

	if got := <-done; got.n != 0 || got.err != nil {
		t.Errorf("LoadMore() = (%d, %v), want (0, nil)", got.n, got.err)
	}
	snap := table.Snapshot()
	if len(snap.Rows) != 5 || snap.RecordsLoaded != 5 {
		t.Errorf("rows/loaded = %d/%d, want 5/5", len(snap.Rows), snap.RecordsLoaded)
	}
	if snap.Cursor.LastID != "r005" {
		t.Errorf("Cursor.LastID = %q, want r005", snap.Cursor.LastID)
	}

	if n, err := table.LoadMore(ctx); err != nil || n != 5 {
		t.Errorf("LoadMore() after discard = (%d, %v), want (5, nil)", n, err)
	}
}

func TestTableLoadMoreWithoutPages(t *testing.T) {
	tests := []struct {
		name    string
		def     ViewDefinition
		records []Record
	}{
		{"not paginated", contactView(), contactRecords()},
		{"empty scope", paginatedView(5), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, rec := openTestTable(t, tt.def, newFakeBackend(tt.records), TableOptions{})

			n, err := table.LoadMore(context.Background())
			if err != nil || n != 0 {
				t.Errorf("LoadMore() = (%d, %v), want (0, nil)", n, err)
			}
			if len(rec.all()) != 0 {
				t.Errorf("notices = %+v, want none", rec.all())
			}
		})
	}
}
