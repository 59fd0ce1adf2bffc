package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/secpi-console/internal/ack"
	"github.com/oshokin/secpi-console/internal/activation"
	"github.com/oshokin/secpi-console/internal/badge"
	"github.com/oshokin/secpi-console/internal/crud"
	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/logger"
	"github.com/oshokin/secpi-console/internal/relation"
	"github.com/oshokin/secpi-console/internal/schema"
	"github.com/oshokin/secpi-console/internal/store"
)

var (
	// ErrNotFound is returned when no entity has the requested id.
	ErrNotFound = errors.New("entity not found")
	// ErrNotAcknowledgeable is returned for classes without acknowledgment endpoints.
	ErrNotAcknowledgeable = errors.New("class cannot be acknowledged")
	// errInvalidAssignment is returned for --set values without "=".
	errInvalidAssignment = errors.New("assignment must look like key=value")
)

// ParseAssignments turns "key=value" pairs into entity fields. Values that
// parse as JSON keep their JSON type, everything else is a string.
func ParseAssignments(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)

		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidAssignment, pair)
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}

		values[key] = v
	}

	return values, nil
}

// List prints the entities of class that match filter, ordered by sort.
func (s *Session) List(ctx context.Context, class entity.Class, filter, sort string) error {
	o, err := crud.New(class, s.gateway, s.center,
		crud.WithStoreOptions(store.WithFilter(filter), store.WithSort(sort)))
	if err != nil {
		return err
	}

	if err = o.Load(ctx); err != nil {
		return err
	}

	s.printer.Entities(o.Schema().FieldsFor(entity.PurposeList), o.Store().Items())

	return nil
}

// Fields prints the field descriptors of class.
func (s *Session) Fields(ctx context.Context, class entity.Class) error {
	sch := schema.New(class, s.gateway)
	if err := sch.Load(ctx); err != nil {
		return err
	}

	rows := make([][]string, 0, len(sch.Fields()))

	for _, f := range sch.Fields() {
		def := ""
		if v, ok := f.Default(); ok {
			def = FormatValue(v)
		}

		visible := make([]string, len(f.Visible))
		for i, p := range f.Visible {
			visible[i] = string(p)
		}

		rows = append(rows, []string{f.Key, f.Label(), f.Type(), strings.Join(visible, ","), def})
	}

	s.printer.Table([]string{"KEY", "LABEL", "TYPE", "VISIBLE", "DEFAULT"}, rows)

	return nil
}

// Add creates an entity of class from values.
func (s *Session) Add(ctx context.Context, class entity.Class, values map[string]any) error {
	o, err := s.editor(ctx, class)
	if err != nil {
		return err
	}

	if err = o.ShowNew(ctx); err != nil {
		return err
	}

	return s.saveEdit(ctx, o, values)
}

// Update changes the given fields of the entity with id.
func (s *Session) Update(ctx context.Context, class entity.Class, id int64, values map[string]any) error {
	o, err := s.editor(ctx, class)
	if err != nil {
		return err
	}

	index, err := indexOf(o.Store().Items(), class, id)
	if err != nil {
		return err
	}

	if err = o.ShowEdit(ctx, index); err != nil {
		return err
	}

	return s.saveEdit(ctx, o, values)
}

// Copy adds a new entity seeded from the one with id, with values applied on top.
func (s *Session) Copy(ctx context.Context, class entity.Class, id int64, values map[string]any) error {
	o, err := s.editor(ctx, class)
	if err != nil {
		return err
	}

	index, err := indexOf(o.Store().Items(), class, id)
	if err != nil {
		return err
	}

	if err = o.Copy(ctx, index); err != nil {
		return err
	}

	return s.saveEdit(ctx, o, values)
}

// Delete removes the entity with id.
func (s *Session) Delete(ctx context.Context, class entity.Class, id int64) error {
	o, err := s.editor(ctx, class)
	if err != nil {
		return err
	}

	index, err := indexOf(o.Store().Items(), class, id)
	if err != nil {
		return err
	}

	if err = o.ShowDelete(ctx, index); err != nil {
		return err
	}

	return o.Delete(ctx)
}

// Export prints the export text of one entity, or of the whole list when id is zero.
func (s *Session) Export(ctx context.Context, class entity.Class, id int64) error {
	o, err := crud.New(class, s.gateway, s.center)
	if err != nil {
		return err
	}

	if err = o.Load(ctx); err != nil {
		return err
	}

	var text string

	if id == 0 {
		text, err = o.ExportTable(ctx)
	} else {
		var index int

		if index, err = indexOf(o.Store().Items(), class, id); err != nil {
			return err
		}

		text, err = o.Export(ctx, index)
	}

	if err != nil {
		return err
	}

	o.CancelExport()
	s.printer.Text(text)

	return nil
}

// Import adds every record of text and prints the outcome per failed record.
// Records are routed by their own type; class only selects the list refreshed afterwards.
func (s *Session) Import(ctx context.Context, class entity.Class, text string) (crud.BatchResult, error) {
	o, err := s.editor(ctx, class)
	if err != nil {
		return crud.BatchResult{}, err
	}

	if err = o.ShowImport(ctx); err != nil {
		return crud.BatchResult{}, err
	}

	batch, err := o.Import(ctx, text)
	if err != nil {
		return crud.BatchResult{}, err
	}

	result, err := batch.Wait(ctx)
	if err != nil {
		return result, err
	}

	for _, item := range result.Failures() {
		s.printer.Line("record %d (%s): %v", item.Index, item.Type, item.Err)
	}

	s.printer.Line("Imported %d of %d records.", result.Succeeded, batch.Len())

	if result.RefreshErr != nil {
		return result, result.RefreshErr
	}

	return result, nil
}

// Ack acknowledges the entry with id, or every unacknowledged entry when all is set.
func (s *Session) Ack(ctx context.Context, class entity.Class, id int64, all bool) error {
	p, err := s.poller(class)
	if err != nil {
		return err
	}

	if err = p.FetchData(ctx); err != nil {
		return err
	}

	if all {
		return p.AckAll(ctx)
	}

	index, err := indexOf(p.Entries(), class, id)
	if err != nil {
		return err
	}

	return p.Ack(ctx, index)
}

// Watch prints the unacknowledged entries of class every time they change,
// until ctx is done.
func (s *Session) Watch(ctx context.Context, class entity.Class) error {
	p, err := s.poller(class, ack.WithInterval(s.settings.PollInterval))
	if err != nil {
		return err
	}

	sch := schema.New(class, s.gateway)
	if err = sch.Load(ctx); err != nil {
		return err
	}

	fields := sch.FieldsFor(entity.PurposeList)

	unsubscribe := p.Subscribe(func(items []entity.Entity) {
		s.printer.Title(fmt.Sprintf("%s: %d unacknowledged (%s)",
			class.Collection(), len(items), time.Now().Format(time.TimeOnly)))
		s.printer.Entities(fields, items)
	})
	defer unsubscribe()

	if err = p.FetchData(ctx); err != nil {
		return err
	}

	p.Start(ctx)
	<-ctx.Done()
	p.Stop()

	return nil
}

// Setups prints the active and inactive setups.
func (s *Session) Setups(ctx context.Context) error {
	a, err := activation.New(s.gateway, s.center)
	if err != nil {
		return err
	}

	if err = a.Refresh(ctx); err != nil {
		return err
	}

	s.printState(a.State())

	return nil
}

// Activate arms the setup with id.
func (s *Session) Activate(ctx context.Context, id int64) error {
	return s.switchSetup(ctx, id, (*activation.Orchestrator).Activate)
}

// Deactivate disarms the setup with id.
func (s *Session) Deactivate(ctx context.Context, id int64) error {
	return s.switchSetup(ctx, id, (*activation.Orchestrator).Deactivate)
}

// Relations prints the associations of rel.
func (s *Session) Relations(ctx context.Context, rel entity.Relation) error {
	o, err := relation.New(rel, s.gateway, s.center)
	if err != nil {
		return err
	}

	if err = o.FetchData(ctx); err != nil {
		return err
	}

	rows := make([][]string, 0)

	for _, a := range o.Associations() {
		names := make([]string, 0, len(a.Rights))
		for _, r := range a.Rights {
			names = append(names, fmt.Sprintf("%s (%s)", FormatValue(r["name"]), FormatValue(r[entity.IDField])))
		}

		rows = append(rows, []string{
			FormatValue(a.Left[entity.IDField]),
			FormatValue(a.Left["name"]),
			strings.Join(names, ", "),
		})
	}

	s.printer.Table([]string{
		strings.ToUpper(rel.LeftKey()),
		strings.ToUpper(rel.Left.Name()),
		strings.ToUpper(rel.Right.Collection()),
	}, rows)

	return nil
}

// Relate associates leftID with rightID.
func (s *Session) Relate(ctx context.Context, rel entity.Relation, leftID, rightID int64) error {
	o, err := s.linker(ctx, rel)
	if err != nil {
		return err
	}

	return o.Save(ctx, leftID, rightID)
}

// Unrelate removes the association of leftID with rightID.
func (s *Session) Unrelate(ctx context.Context, rel entity.Relation, leftID, rightID int64) error {
	o, err := s.linker(ctx, rel)
	if err != nil {
		return err
	}

	o.ShowDelete(leftID, rightID)

	return o.ConfirmDelete(ctx)
}

// Badge prints the unread counter once or, when follow is set, on every
// change until ctx is done.
func (s *Session) Badge(ctx context.Context, follow bool) error {
	counter := badge.New(s.gateway)

	if !follow {
		n, err := counter.Refresh(ctx)
		if err != nil {
			return err
		}

		s.printer.Line("%d", n)

		return nil
	}

	err := counter.Run(ctx, s.settings.BadgeSchedule, func(n int) {
		s.printer.Line("%s unread: %d", time.Now().Format(time.TimeOnly), n)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// editor loads a crud orchestrator guarded by the current activation state.
func (s *Session) editor(ctx context.Context, class entity.Class) (*crud.Orchestrator, error) {
	guard, err := s.guard(ctx)
	if err != nil {
		return nil, err
	}

	o, err := crud.New(class, s.gateway, s.center, crud.WithEditGuard(guard))
	if err != nil {
		return nil, err
	}

	if err = o.Load(ctx); err != nil {
		return nil, err
	}

	return o, nil
}

// linker creates a relationship orchestrator guarded by the current activation state.
func (s *Session) linker(ctx context.Context, rel entity.Relation) (*relation.Orchestrator, error) {
	guard, err := s.guard(ctx)
	if err != nil {
		return nil, err
	}

	return relation.New(rel, s.gateway, s.center, relation.WithEditGuard(guard))
}

// guard fetches the activation state that decides whether editing is allowed.
func (s *Session) guard(ctx context.Context) (*activation.Orchestrator, error) {
	a, err := activation.New(s.gateway, s.center)
	if err != nil {
		return nil, err
	}

	if err = a.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("fetch activation state: %w", err)
	}

	return a, nil
}

func (s *Session) poller(class entity.Class, opts ...ack.Option) (*ack.Poller, error) {
	if class != entity.Alarm && class != entity.Log {
		return nil, fmt.Errorf("%w: %s", ErrNotAcknowledgeable, class)
	}

	return ack.New(class, s.gateway, s.center, opts...)
}

func (s *Session) saveEdit(ctx context.Context, o *crud.Orchestrator, values map[string]any) error {
	for key, v := range values {
		if err := o.SetField(key, v); err != nil {
			return err
		}
	}

	if err := o.SaveEdit(ctx); err != nil {
		o.CancelEdit()

		return err
	}

	return nil
}

func (s *Session) switchSetup(
	ctx context.Context,
	id int64,
	fn func(*activation.Orchestrator, context.Context, entity.Entity) error,
) error {
	a, err := activation.New(s.gateway, s.center)
	if err != nil {
		return err
	}

	if err = a.Refresh(ctx); err != nil {
		return err
	}

	state := a.State()
	setups := slices.Concat(state.Active, state.Inactive)

	index, err := indexOf(setups, entity.Setup, id)
	if err != nil {
		return err
	}

	target := setups[index]

	logger.InfoKV(ctx, "Switching setup", "id", id)

	if err = fn(a, ctx, target); err != nil {
		return err
	}

	s.printState(a.State())

	return nil
}

func (s *Session) printState(state activation.State) {
	rows := make([][]string, 0, len(state.Active)+len(state.Inactive))

	for _, e := range state.Active {
		rows = append(rows, []string{FormatValue(e[entity.IDField]), FormatValue(e["name"]), "active"})
	}

	for _, e := range state.Inactive {
		rows = append(rows, []string{FormatValue(e[entity.IDField]), FormatValue(e["name"]), "inactive"})
	}

	s.printer.Table([]string{"ID", "NAME", "STATE"}, rows)
}

// indexOf finds the position of the entity with id.
func indexOf(items []entity.Entity, class entity.Class, id int64) (int, error) {
	index := slices.IndexFunc(items, func(e entity.Entity) bool {
		got, ok := e.ID()

		return ok && got == id
	})
	if index < 0 {
		return 0, fmt.Errorf("%w: %s %s", ErrNotFound, class.Name(), strconv.FormatInt(id, 10))
	}

	return index, nil
}
