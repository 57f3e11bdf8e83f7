package core

import "fmt"

// RowAction is a per-row action offered by the action column.
type RowAction string

const (
	ActionView   RowAction = "view"
	ActionEdit   RowAction = "edit"
	ActionDelete RowAction = "delete"
)

// DefaultRowActions is the action set of an editable view.
var DefaultRowActions = []RowAction{ActionView, ActionEdit, ActionDelete}

// ParseRowAction validates an action name.
func ParseRowAction(s string) (RowAction, error) {
	switch a := RowAction(s); a {
	case ActionView, ActionEdit, ActionDelete:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown row action %q", ErrInvalidState, s)
	}
}

// ModalState is the state of the detail sub-view.
type ModalState int

const (
	ModalClosed ModalState = iota
	ModalViewing
	ModalEditing
)

func (s ModalState) String() string {
	switch s {
	case ModalViewing:
		return "viewing"
	case ModalEditing:
		return "editing"
	default:
		return "closed"
	}
}

// MarshalText encodes the state by name.
func (s ModalState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Modal is the detail sub-view: which record is open and how.
type Modal struct {
	State    ModalState `json:"state"`
	RecordID string     `json:"recordId,omitempty"`
}

// openModal returns the modal for action on id. Delete has no modal, so it
// closes whatever was open.
func openModal(action RowAction, id string) Modal {
	switch action {
	case ActionView:
		return Modal{State: ModalViewing, RecordID: id}
	case ActionEdit:
		return Modal{State: ModalEditing, RecordID: id}
	default:
		return Modal{}
	}
}
