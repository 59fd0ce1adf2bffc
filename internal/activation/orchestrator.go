// Package activation switches the single active setup and exposes whether
// editing is allowed while a setup is armed.
package activation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/flash"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/logger"
)

// DefaultWatchInterval is used by Watch when no positive interval is given.
const DefaultWatchInterval = 5 * time.Second

// Partition filters of the setups list.
const (
	ActiveFilter   = "active_state==1"
	InactiveFilter = "active_state==0"
)

var (
	// ErrGatewayRequired is returned when no gateway is provided.
	ErrGatewayRequired = errors.New("gateway must be provided")
	// ErrCenterRequired is returned when no notification center is provided.
	ErrCenterRequired = errors.New("notification center must be provided")
	// ErrNoIdentifier is returned when the target has no id.
	ErrNoIdentifier = errors.New("setup has no identifier")
)

// Notifier is the part of the notification center the orchestrator posts to.
type Notifier interface {
	Post(text string, severity flash.Severity, d time.Duration) flash.ID
}

// State is the server's partition of setups. The server keeps at most one active.
type State struct {
	Active   []entity.Entity
	Inactive []entity.Entity
}

// ActiveID returns the id of the active setup, if any.
func (s State) ActiveID() (int64, bool) {
	if len(s.Active) == 0 {
		return 0, false
	}

	return s.Active[0].ID()
}

// Orchestrator keeps the activation state and serves as the edit guard of
// the other orchestrators.
type Orchestrator struct {
	caller gateway.Caller
	center Notifier

	mu       sync.RWMutex
	state    State
	known    bool
	watchers map[int]func(State)
	nextID   int
}

// New creates an orchestrator with an unknown state. Editing is allowed until
// the first fetch says otherwise.
func New(caller gateway.Caller, center Notifier) (*Orchestrator, error) {
	if caller == nil {
		return nil, ErrGatewayRequired
	}

	if center == nil {
		return nil, ErrCenterRequired
	}

	return &Orchestrator{
		caller:   caller,
		center:   center,
		watchers: make(map[int]func(State)),
	}, nil
}

// FetchActive pulls the active partition.
func (o *Orchestrator) FetchActive(ctx context.Context) error {
	items, err := o.list(ctx, ActiveFilter)
	if err != nil {
		return err
	}

	o.apply(func(s *State) { s.Active = items })

	return nil
}

// FetchInactive pulls the inactive partition.
func (o *Orchestrator) FetchInactive(ctx context.Context) error {
	items, err := o.list(ctx, InactiveFilter)
	if err != nil {
		return err
	}

	o.apply(func(s *State) { s.Inactive = items })

	return nil
}

// Refresh pulls both partitions independently.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	return errors.Join(o.FetchActive(ctx), o.FetchInactive(ctx))
}

// Activate arms target. A nil target does nothing.
func (o *Orchestrator) Activate(ctx context.Context, target entity.Entity) error {
	return o.switchTo(ctx, entity.ActivatePath, target)
}

// Deactivate disarms target. A nil target does nothing.
func (o *Orchestrator) Deactivate(ctx context.Context, target entity.Entity) error {
	return o.switchTo(ctx, entity.DeactivatePath, target)
}

// State returns a copy of the last known partition.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return State{
		Active:   entity.CloneAll(o.state.Active),
		Inactive: entity.CloneAll(o.state.Inactive),
	}
}

// EditAllowed reports that no setup is active.
func (o *Orchestrator) EditAllowed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return len(o.state.Active) == 0
}

// Known reports whether a partition has been fetched at least once.
func (o *Orchestrator) Known() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.known
}

// Subscribe registers fn to receive the state after every fetch.
func (o *Orchestrator) Subscribe(fn func(State)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.watchers[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.watchers, id)
		o.mu.Unlock()
	}
}

// Watch refreshes the state every interval until ctx ends, keeping the edit
// guard current. Errors are logged; the gateway has already flashed them.
// A non-positive interval means DefaultWatchInterval.
func (o *Orchestrator) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.Refresh(ctx); err != nil {
				logger.WarnKV(ctx, "Activation refresh failed", "error", err)
			}
		}
	}
}

// switchTo posts target's id to path and re-pulls both partitions.
func (o *Orchestrator) switchTo(ctx context.Context, path string, target entity.Entity) error {
	if target == nil {
		return nil
	}

	id, ok := target.ID()
	if !ok {
		return ErrNoIdentifier
	}

	res, err := o.caller.Call(ctx, path, map[string]any{entity.IDField: id})
	if err != nil {
		return fmt.Errorf("%s %d: %w", path, id, err)
	}

	o.center.Post(res.Message, flash.SeverityInfo, 0)
	logger.InfoKV(ctx, "Setup switched", "path", path, "id", id)

	return o.Refresh(ctx)
}

// list fetches one partition.
func (o *Orchestrator) list(ctx context.Context, filter string) ([]entity.Entity, error) {
	res, err := o.caller.Call(ctx, entity.Setup.Endpoint(entity.OpList), map[string]any{"filter": filter})
	if err != nil {
		return nil, fmt.Errorf("list setups %q: %w", filter, err)
	}

	var items []entity.Entity
	if err = res.Decode(&items); err != nil {
		return nil, err
	}

	if items == nil {
		items = []entity.Entity{}
	}

	return items, nil
}

// apply changes the state and notifies subscribers.
func (o *Orchestrator) apply(fn func(*State)) {
	o.mu.Lock()
	fn(&o.state)
	o.known = true

	snapshot := State{
		Active:   entity.CloneAll(o.state.Active),
		Inactive: entity.CloneAll(o.state.Inactive),
	}

	watchers := make([]func(State), 0, len(o.watchers))
	for _, w := range o.watchers {
		watchers = append(watchers, w)
	}
	o.mu.Unlock()

	for _, w := range watchers {
		w(snapshot)
	}
}
