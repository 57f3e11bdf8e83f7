// Package core provides the view state and business rules for record grids.
//
// This package holds all grid logic independent of any UI, transport or
// storage layer. It can be driven by web handlers, CLI tools or tests with
// in-memory collaborators.
//
// # Architecture
//
//   - View Definitions: registered via the registry, each view names its
//     backing object, fields, columns, sort key, filter and delete guard.
//   - Loader: fetches the first page and total count, then appends pages on
//     demand behind a cursor of (last sort key, last Id).
//   - Table: the full dataset, its filtered projection, staged edits,
//     selection and the detail sub-view state machine.
//   - Service: hosts concurrent view sessions keyed by UUID.
//
// # View Registry
//
// Views are registered at init time using [Register]:
//
//	core.Register(core.ViewDefinition{
//	    Key:       "accounts",
//	    Object:    "accounts",
//	    SortField: "Name",
//	    Paginated: true,
//	    Columns:   []core.Column{{Label: "Name", FieldName: "Name"}},
//	})
//
// # Batches
//
// Commits and bulk deletes fan out one request per record and join them.
// The [BatchPolicy] decides whether partial success is kept
// ([PolicyBestEffort]) or the collaborator applies the batch in a single
// transaction ([PolicyAllOrNothing]). Either way the dataset is re-fetched
// afterwards and one notification reports the aggregate outcome.
//
// # Error Handling
//
// Failures are typed ([LoadError], [UpdateError], [DeleteError],
// [BatchError], [ErrInvalidState]) and every one is surfaced to the user
// through the view's [Notifier], mapped by [MapError] to a message with a
// support code.
package core
