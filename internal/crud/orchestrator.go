// Package crud turns an entity class into list, add, edit, copy, delete,
// export and import workflows driven by the class's field schema.
package crud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/flash"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/logger"
	"github.com/oshokin/secpi-console/internal/schema"
	"github.com/oshokin/secpi-console/internal/store"
)

// LockedText is flashed when a locked workflow is requested.
const LockedText = "Editing is disabled while a setup is active!"

// defaultImportConcurrency bounds the number of adds in flight during an import.
const defaultImportConcurrency = 4

var (
	// ErrUnknownClass is returned for classes outside the registry.
	ErrUnknownClass = entity.ErrUnknownClass
	// ErrGatewayRequired is returned when no gateway is provided.
	ErrGatewayRequired = errors.New("gateway must be provided")
	// ErrCenterRequired is returned when no notification center is provided.
	ErrCenterRequired = errors.New("notification center must be provided")
	// ErrEditLocked is returned when the edit guard refuses a workflow.
	ErrEditLocked = errors.New("editing is locked")
	// ErrNoDialog is returned when a command needs a dialog that is not open.
	ErrNoDialog = errors.New("no matching dialog is open")
	// ErrNoIdentifier is returned when the target entity has no id.
	ErrNoIdentifier = errors.New("entity has no identifier")
)

// EditGuard tells whether editing workflows may be opened.
type EditGuard interface {
	EditAllowed() bool
}

// EditGuardFunc adapts a function to EditGuard.
type EditGuardFunc func() bool

// EditAllowed implements EditGuard.
func (f EditGuardFunc) EditAllowed() bool { return f() }

// Notifier is the part of the notification center the orchestrator posts to.
type Notifier interface {
	Post(text string, severity flash.Severity, d time.Duration) flash.ID
}

// Orchestrator runs the workflows of one class. At most one dialog is open at a time.
type Orchestrator struct {
	class  entity.Class
	caller gateway.Caller
	center Notifier
	schema *schema.Schema
	store  *store.Store
	guard  EditGuard

	importConcurrency int
	storeOptions      []store.Option

	mu      sync.Mutex
	dialog  Dialog
	loading bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEditGuard injects the capability that locks editing workflows.
func WithEditGuard(guard EditGuard) Option {
	return func(o *Orchestrator) {
		if guard != nil {
			o.guard = guard
		}
	}
}

// WithStoreOptions configures the list store, e.g. its filter and sort.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *Orchestrator) {
		o.storeOptions = append(o.storeOptions, opts...)
	}
}

// WithImportConcurrency bounds the adds in flight during an import.
func WithImportConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.importConcurrency = n
		}
	}
}

// New creates an orchestrator for class.
func New(class entity.Class, caller gateway.Caller, center Notifier, opts ...Option) (*Orchestrator, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownClass, class)
	}

	if caller == nil {
		return nil, ErrGatewayRequired
	}

	if center == nil {
		return nil, ErrCenterRequired
	}

	o := &Orchestrator{
		class:             class,
		caller:            caller,
		center:            center,
		guard:             EditGuardFunc(func() bool { return true }),
		importConcurrency: defaultImportConcurrency,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.schema = schema.New(class, caller)
	o.store = store.New(class, caller, o.storeOptions...)

	return o, nil
}

// Class returns the managed class.
func (o *Orchestrator) Class() entity.Class { return o.class }

// Schema returns the class's field schema.
func (o *Orchestrator) Schema() *schema.Schema { return o.schema }

// Store returns the class's list store.
func (o *Orchestrator) Store() *store.Store { return o.store }

// Load fetches the field schema and the list.
func (o *Orchestrator) Load(ctx context.Context) error {
	if err := o.schema.Load(ctx); err != nil {
		return err
	}

	_, err := o.store.Refresh(ctx)

	return err
}

// Dialog returns a copy of the open dialog, or nil.
func (o *Orchestrator) Dialog() Dialog {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.dialog == nil {
		return nil
	}

	return cloneDialog(o.dialog)
}

// Loading reports whether a command or list refresh is in flight.
func (o *Orchestrator) Loading() bool {
	o.mu.Lock()
	loading := o.loading
	o.mu.Unlock()

	return loading || o.store.Loading()
}

// EditAllowed reports the edit guard's current answer.
func (o *Orchestrator) EditAllowed() bool {
	return o.guard.EditAllowed()
}

// ShowEdit opens the edit form on a deep copy of the entity at index.
func (o *Orchestrator) ShowEdit(ctx context.Context, index int) error {
	if err := o.checkGuard(ctx); err != nil {
		return err
	}

	target, err := o.store.At(index)
	if err != nil {
		return err
	}

	fields, err := o.fields(ctx, entity.PurposeUpdate)
	if err != nil {
		return err
	}

	o.open(ctx, &EditDialog{Kind: EditKindEditing, Index: index, Buffer: target, Fields: fields})

	return nil
}

// ShowNew opens the edit form on an empty buffer that will be added.
func (o *Orchestrator) ShowNew(ctx context.Context) error {
	if err := o.checkGuard(ctx); err != nil {
		return err
	}

	fields, err := o.fields(ctx, entity.PurposeAdd)
	if err != nil {
		return err
	}

	o.open(ctx, &EditDialog{Kind: EditKindCreating, Index: InsertIndex, Buffer: entity.Entity{}, Fields: fields})

	return nil
}

// Copy opens the edit form seeded from the entity at index; saving adds a new entity.
func (o *Orchestrator) Copy(ctx context.Context, index int) error {
	if err := o.checkGuard(ctx); err != nil {
		return err
	}

	source, err := o.store.At(index)
	if err != nil {
		return err
	}

	fields, err := o.fields(ctx, entity.PurposeAdd)
	if err != nil {
		return err
	}

	o.open(ctx, &EditDialog{Kind: EditKindCopying, Index: InsertIndex, Buffer: source.WithoutID(), Fields: fields})

	return nil
}

// SetField writes one value into the edit buffer.
func (o *Orchestrator) SetField(key string, value any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	d, ok := o.dialog.(*EditDialog)
	if !ok {
		return ErrNoDialog
	}

	d.Buffer[key] = value

	return nil
}

// SaveEdit adds or updates the edit buffer. On success the list is refreshed
// (add) or the entity is spliced into place (update), the server message is
// flashed and the dialog closes. On failure the dialog stays open.
func (o *Orchestrator) SaveEdit(ctx context.Context) error {
	o.mu.Lock()

	d, ok := o.dialog.(*EditDialog)
	if !ok {
		o.mu.Unlock()

		return ErrNoDialog
	}

	buffer := d.Buffer.Clone()
	index := d.Index
	o.loading = true
	o.mu.Unlock()

	defer o.setLoading(false)

	op := entity.OpUpdate
	if index == InsertIndex {
		op = entity.OpAdd
	}

	res, err := o.caller.Call(ctx, o.class.Endpoint(op), buffer)
	if err != nil {
		return fmt.Errorf("save %s: %w", o.class.Name(), err)
	}

	o.center.Post(res.Message, flash.SeverityInfo, 0)
	o.closeIf(d)

	if index == InsertIndex {
		if _, err = o.store.Refresh(ctx); err != nil {
			return err
		}

		return nil
	}

	return o.store.ReplaceAt(index, buffer)
}

// CancelEdit discards the edit buffer and closes the form.
func (o *Orchestrator) CancelEdit() {
	o.closeKind(func(d Dialog) bool {
		_, ok := d.(*EditDialog)

		return ok
	})
}

// ShowDelete records the entity at index as the delete target.
func (o *Orchestrator) ShowDelete(ctx context.Context, index int) error {
	if err := o.checkGuard(ctx); err != nil {
		return err
	}

	target, err := o.store.At(index)
	if err != nil {
		return err
	}

	id, ok := target.ID()
	if !ok {
		return fmt.Errorf("%w: index %d", ErrNoIdentifier, index)
	}

	o.open(ctx, &DeleteDialog{Index: index, ID: id})

	return nil
}

// Delete removes the recorded target on the server and splices it out locally.
func (o *Orchestrator) Delete(ctx context.Context) error {
	o.mu.Lock()

	d, ok := o.dialog.(*DeleteDialog)
	if !ok {
		o.mu.Unlock()

		return ErrNoDialog
	}

	target := *d
	o.loading = true
	o.mu.Unlock()

	defer o.setLoading(false)

	res, err := o.caller.Call(ctx, o.class.Endpoint(entity.OpDelete), map[string]any{entity.IDField: target.ID})
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", o.class.Name(), target.ID, err)
	}

	o.center.Post(res.Message, flash.SeverityInfo, 0)
	o.closeIf(d)

	return o.store.RemoveAt(target.Index)
}

// CancelDelete forgets the delete target.
func (o *Orchestrator) CancelDelete() {
	o.closeKind(func(d Dialog) bool {
		_, ok := d.(*DeleteDialog)

		return ok
	})
}

// Export renders the entity at index as envelope text and opens the export dialog.
func (o *Orchestrator) Export(ctx context.Context, index int) (string, error) {
	item, err := o.store.At(index)
	if err != nil {
		return "", err
	}

	return o.export(ctx, []entity.Entity{item})
}

// ExportTable renders every held entity as envelope text and opens the export dialog.
func (o *Orchestrator) ExportTable(ctx context.Context) (string, error) {
	return o.export(ctx, o.store.Items())
}

// CancelExport closes the export dialog.
func (o *Orchestrator) CancelExport() {
	o.closeKind(func(d Dialog) bool {
		_, ok := d.(*ExportDialog)

		return ok
	})
}

// ShowImport opens the import dialog.
func (o *Orchestrator) ShowImport(ctx context.Context) error {
	if err := o.checkGuard(ctx); err != nil {
		return err
	}

	o.open(ctx, &ImportDialog{})

	return nil
}

// Import parses envelope text and adds every record concurrently. The import
// dialog closes on submission; the returned batch resolves once every add has
// settled and the list has been refreshed exactly once.
func (o *Orchestrator) Import(ctx context.Context, text string) (*Batch, error) {
	if err := o.checkGuard(ctx); err != nil {
		return nil, err
	}

	records, err := DecodeRecords(text)
	if err != nil {
		o.center.Post("Invalid import data!", flash.SeverityError, 0)

		return nil, err
	}

	o.CancelImport()

	batch := newBatch(len(records))
	logger.InfoKV(ctx, "Import submitted", "class", o.class.String(), "records", len(records))

	if len(records) == 0 {
		batch.resolve(nil)

		return batch, nil
	}

	go o.runImport(ctx, batch, records)

	return batch, nil
}

// CancelImport closes the import dialog.
func (o *Orchestrator) CancelImport() {
	o.closeKind(func(d Dialog) bool {
		_, ok := d.(*ImportDialog)

		return ok
	})
}

// runImport performs the adds and the final refresh.
func (o *Orchestrator) runImport(ctx context.Context, batch *Batch, records []Record) {
	var g errgroup.Group

	g.SetLimit(o.importConcurrency)

	for i, rec := range records {
		g.Go(func() error {
			batch.settle(o.importOne(ctx, i, rec))

			return nil
		})
	}

	_ = g.Wait()

	_, err := o.store.Refresh(ctx)

	result := batch.Result()
	logger.InfoKV(ctx, "Import finished",
		"class", o.class.String(), "succeeded", result.Succeeded, "failed", result.Failed)

	batch.resolve(err)
}

// importOne adds a single record and reports its outcome.
func (o *Orchestrator) importOne(ctx context.Context, index int, rec Record) ItemResult {
	item := ItemResult{Index: index, Type: rec.Type}

	class, err := entity.ParseClass(rec.Type)
	if err != nil {
		o.center.Post(fmt.Sprintf("Unknown import type %q!", rec.Type), flash.SeverityError, 0)
		item.Err = err

		return item
	}

	item.Class = class

	res, err := o.caller.Call(ctx, class.Endpoint(entity.OpAdd), rec.Data.WithoutID())
	if err != nil {
		item.Err = err

		return item
	}

	o.center.Post(res.Message, flash.SeverityInfo, 0)
	item.Message = res.Message

	return item
}

// export opens the export dialog with the rendered text.
func (o *Orchestrator) export(ctx context.Context, items []entity.Entity) (string, error) {
	text, err := EncodeRecords(o.class, items)
	if err != nil {
		return "", err
	}

	o.open(ctx, &ExportDialog{Text: text})

	return text, nil
}

// fields returns the descriptors for purpose, loading the schema on first use.
func (o *Orchestrator) fields(ctx context.Context, purpose entity.Purpose) ([]entity.FieldDescriptor, error) {
	if !o.schema.Loaded() {
		if err := o.schema.Load(ctx); err != nil {
			return nil, err
		}
	}

	return o.schema.FieldsFor(purpose), nil
}

// checkGuard refuses locked workflows with one warning flash.
func (o *Orchestrator) checkGuard(ctx context.Context) error {
	if o.guard.EditAllowed() {
		return nil
	}

	o.center.Post(LockedText, flash.SeverityWarn, 0)
	logger.WarnKV(ctx, "Edit workflow refused", "class", o.class.String())

	return ErrEditLocked
}

// open installs d, force-closing any previous dialog along its cancel path.
func (o *Orchestrator) open(ctx context.Context, d Dialog) {
	o.mu.Lock()
	previous := o.dialog
	o.dialog = d
	o.mu.Unlock()

	if previous != nil {
		logger.DebugKV(ctx, "Dialog force-closed", "class", o.class.String(),
			"closed", previous.Name(), "opened", d.Name())
	}
}

// closeIf closes the dialog when d is still the open one.
func (o *Orchestrator) closeIf(d Dialog) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.dialog == d {
		o.dialog = nil
	}
}

// closeKind closes the open dialog when match accepts it.
func (o *Orchestrator) closeKind(match func(Dialog) bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.dialog != nil && match(o.dialog) {
		o.dialog = nil
	}
}

func (o *Orchestrator) setLoading(v bool) {
	o.mu.Lock()
	o.loading = v
	o.mu.Unlock()
}
