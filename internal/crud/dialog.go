package crud

import (
	"github.com/oshokin/secpi-console/internal/domain/entity"
)

// Dialog is the single open workflow of an orchestrator. The concrete types are
// *EditDialog, *DeleteDialog, *ExportDialog and *ImportDialog.
type Dialog interface {
	// Name identifies the dialog in logs.
	Name() string

	isDialog()
}

// EditKind tells the three uses of the edit form apart.
type EditKind uint8

// Edit kinds.
const (
	EditKindEditing EditKind = iota + 1
	EditKindCreating
	EditKindCopying
)

// String implements fmt.Stringer.
func (k EditKind) String() string {
	switch k {
	case EditKindEditing:
		return "editing"
	case EditKindCreating:
		return "creating"
	case EditKindCopying:
		return "copying"
	default:
		return "unknown"
	}
}

// InsertIndex marks an edit buffer that will be added rather than updated.
const InsertIndex = -1

// EditDialog holds the edit buffer of an edit, create or copy workflow.
type EditDialog struct {
	Kind EditKind
	// Index is the list position being edited, or InsertIndex.
	Index int
	// Buffer is an independent working copy; the list is untouched until save succeeds.
	Buffer entity.Entity
	// Fields are the descriptors to render for this workflow.
	Fields []entity.FieldDescriptor
}

// Name implements Dialog.
func (d *EditDialog) Name() string { return d.Kind.String() }

func (*EditDialog) isDialog() {}

// Inserting reports whether saving adds a new entity.
func (d *EditDialog) Inserting() bool {
	return d.Index == InsertIndex
}

// DeleteDialog records the target awaiting confirmation.
type DeleteDialog struct {
	Index int
	ID    int64
}

// Name implements Dialog.
func (*DeleteDialog) Name() string { return "confirming_delete" }

func (*DeleteDialog) isDialog() {}

// ExportDialog carries the formatted export text.
type ExportDialog struct {
	Text string
}

// Name implements Dialog.
func (*ExportDialog) Name() string { return "exporting" }

func (*ExportDialog) isDialog() {}

// ImportDialog waits for the operator's import text.
type ImportDialog struct{}

// Name implements Dialog.
func (*ImportDialog) Name() string { return "importing" }

func (*ImportDialog) isDialog() {}

// cloneDialog returns a copy that shares no mutable state with d.
func cloneDialog(d Dialog) Dialog {
	switch v := d.(type) {
	case *EditDialog:
		return &EditDialog{
			Kind:   v.Kind,
			Index:  v.Index,
			Buffer: v.Buffer.Clone(),
			Fields: append([]entity.FieldDescriptor(nil), v.Fields...),
		}
	case *DeleteDialog:
		c := *v

		return &c
	case *ExportDialog:
		c := *v

		return &c
	case *ImportDialog:
		return &ImportDialog{}
	default:
		return nil
	}
}
