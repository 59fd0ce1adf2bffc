// Package relation manages the many-to-many associations between two classes.
package relation

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
)

// LockedText is flashed when a change is requested while editing is locked.
const LockedText = "Editing is disabled while a setup is active!"

var (
	// ErrGatewayRequired is returned when no gateway is provided.
	ErrGatewayRequired = errors.New("gateway must be provided")
	// ErrCenterRequired is returned when no notification center is provided.
	ErrCenterRequired = errors.New("notification center must be provided")
	// ErrEditLocked is returned when the edit guard refuses a change.
	ErrEditLocked = errors.New("editing is locked")
	// ErrNoDeleteTarget is returned by ConfirmDelete without a prior ShowDelete.
	ErrNoDeleteTarget = errors.New("no association selected for deletion")
	// ErrInvalidIDs is returned for non-positive identifiers.
	ErrInvalidIDs = errors.New("association ids must be positive")
)

// EditGuard tells whether associations may be changed.
type EditGuard interface {
	EditAllowed() bool
}

// Notifier is the part of the notification center the orchestrator posts to.
type Notifier interface {
	Post(text string, severity flash.Severity, d time.Duration) flash.ID
}

// Association is the server's view of one left entity and its associated rights.
type Association struct {
	Left   entity.Entity
	Rights []entity.Entity
}

// Orchestrator keeps the association view in sync with the server.
// Every change is followed by a full re-pull; nothing is mutated locally.
type Orchestrator struct {
	rel    entity.Relation
	caller gateway.Caller
	center Notifier
	guard  EditGuard

	mu           sync.RWMutex
	associations []Association
	lefts        []entity.Entity
	rights       []entity.Entity
	deleteTarget *entity.Record
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEditGuard injects the capability that locks changes.
func WithEditGuard(guard EditGuard) Option {
	return func(o *Orchestrator) {
		o.guard = guard
	}
}

// New creates an orchestrator for rel.
func New(rel entity.Relation, caller gateway.Caller, center Notifier, opts ...Option) (*Orchestrator, error) {
	if !rel.Left.Valid() || !rel.Right.Valid() {
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownRelation, rel)
	}

	if caller == nil {
		return nil, ErrGatewayRequired
	}

	if center == nil {
		return nil, ErrCenterRequired
	}

	o := &Orchestrator{
		rel:    rel,
		caller: caller,
		center: center,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Relation returns the managed relation.
func (o *Orchestrator) Relation() entity.Relation { return o.rel }

// FetchData pulls the association view, the lefts and the rights concurrently.
// Each list that arrives is applied even when another call fails.
func (o *Orchestrator) FetchData(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error {
		var raw []entity.Entity
		if err := o.list(ctx, o.rel.Endpoint(entity.OpList), &raw); err != nil {
			return err
		}

		associations := o.split(raw)

		o.mu.Lock()
		o.associations = associations
		o.mu.Unlock()

		return nil
	})

	g.Go(func() error {
		var lefts []entity.Entity
		if err := o.list(ctx, o.rel.Left.Endpoint(entity.OpList), &lefts); err != nil {
			return err
		}

		o.mu.Lock()
		o.lefts = lefts
		o.mu.Unlock()

		return nil
	})

	g.Go(func() error {
		var rights []entity.Entity
		if err := o.list(ctx, o.rel.Right.Endpoint(entity.OpList), &rights); err != nil {
			return err
		}

		o.mu.Lock()
		o.rights = rights
		o.mu.Unlock()

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch %s: %w", o.rel, err)
	}

	return nil
}

// Associations returns a copy of the server's association view.
func (o *Orchestrator) Associations() []Association {
	o.mu.RLock()
	defer o.mu.RUnlock()

	result := make([]Association, 0, len(o.associations))
	for _, a := range o.associations {
		result = append(result, Association{Left: a.Left.Clone(), Rights: entity.CloneAll(a.Rights)})
	}

	return result
}

// Lefts returns a copy of the left-side entities.
func (o *Orchestrator) Lefts() []entity.Entity {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return entity.CloneAll(o.lefts)
}

// Rights returns a copy of the right-side entities.
func (o *Orchestrator) Rights() []entity.Entity {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return entity.CloneAll(o.rights)
}

// Pairs flattens the association view into records.
func (o *Orchestrator) Pairs() []entity.Record {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var result []entity.Record

	for _, a := range o.associations {
		leftID, ok := a.Left.ID()
		if !ok {
			continue
		}

		for _, r := range a.Rights {
			if rightID, ok := r.ID(); ok {
				result = append(result, entity.Record{LeftID: leftID, RightID: rightID})
			}
		}
	}

	return result
}

// Save creates the association and re-pulls everything.
func (o *Orchestrator) Save(ctx context.Context, leftID, rightID int64) error {
	return o.change(ctx, entity.OpAdd, entity.Record{LeftID: leftID, RightID: rightID})
}

// Delete removes the association and re-pulls everything.
func (o *Orchestrator) Delete(ctx context.Context, leftID, rightID int64) error {
	return o.change(ctx, entity.OpDelete, entity.Record{LeftID: leftID, RightID: rightID})
}

// ShowDelete records the association awaiting confirmation.
func (o *Orchestrator) ShowDelete(leftID, rightID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.deleteTarget = &entity.Record{LeftID: leftID, RightID: rightID}
}

// DeleteTarget returns the association awaiting confirmation.
func (o *Orchestrator) DeleteTarget() (entity.Record, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.deleteTarget == nil {
		return entity.Record{}, false
	}

	return *o.deleteTarget, true
}

// CancelDelete forgets the recorded association.
func (o *Orchestrator) CancelDelete() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.deleteTarget = nil
}

// ConfirmDelete deletes the recorded association. The target is kept when the call fails.
func (o *Orchestrator) ConfirmDelete(ctx context.Context) error {
	target, ok := o.DeleteTarget()
	if !ok {
		return ErrNoDeleteTarget
	}

	if err := o.Delete(ctx, target.LeftID, target.RightID); err != nil {
		return err
	}

	o.CancelDelete()

	return nil
}

// change posts one association to the add or delete endpoint.
func (o *Orchestrator) change(ctx context.Context, op entity.Operation, rec entity.Record) error {
	if o.guard != nil && !o.guard.EditAllowed() {
		o.center.Post(LockedText, flash.SeverityWarn, 0)

		return ErrEditLocked
	}

	if rec.LeftID <= 0 || rec.RightID <= 0 {
		o.center.Post("Invalid IDs!", flash.SeverityError, 0)

		return fmt.Errorf("%w: %d, %d", ErrInvalidIDs, rec.LeftID, rec.RightID)
	}

	res, err := o.caller.Call(ctx, o.rel.Endpoint(op), o.rel.Payload(rec))
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, o.rel, err)
	}

	o.center.Post(res.Message, flash.SeverityInfo, 0)
	logger.InfoKV(ctx, "Association changed", "relation", o.rel.String(), "operation", string(op),
		"left_id", rec.LeftID, "right_id", rec.RightID)

	return o.FetchData(ctx)
}

// list fetches one list into dst.
func (o *Orchestrator) list(ctx context.Context, path string, dst *[]entity.Entity) error {
	res, err := o.caller.Call(ctx, path, nil)
	if err != nil {
		return err
	}

	if err = res.Decode(dst); err != nil {
		return err
	}

	if *dst == nil {
		*dst = []entity.Entity{}
	}

	return nil
}

// split separates each left from its nested rights.
func (o *Orchestrator) split(raw []entity.Entity) []Association {
	key := o.rel.Right.Collection()
	result := make([]Association, 0, len(raw))

	for _, item := range raw {
		left := item.Clone()

		var rights []entity.Entity

		if nested, ok := left[key].([]any); ok {
			for _, n := range nested {
				if m, ok := n.(map[string]any); ok {
					rights = append(rights, entity.Entity(m))
				}
			}
		}

		delete(left, key)
		result = append(result, Association{Left: left, Rights: rights})
	}

	return result
}
