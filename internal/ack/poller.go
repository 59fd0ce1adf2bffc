// Package ack keeps the unacknowledged entries of a class and acknowledges them.
package ack

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
	"github.com/oshokin/secpi-console/internal/store"
)

// UnacknowledgedFilter selects entries that have not been acknowledged.
const UnacknowledgedFilter = "ack==0"

// DefaultInterval is the refresh period of a started poller.
const DefaultInterval = 5 * time.Second

// Flash texts of the refresh toggle.
const (
	StartedText = "Started refresh of messages!"
	StoppedText = "Stopped refresh of messages!"
)

var (
	// ErrGatewayRequired is returned when no gateway is provided.
	ErrGatewayRequired = errors.New("gateway must be provided")
	// ErrCenterRequired is returned when no notification center is provided.
	ErrCenterRequired = errors.New("notification center must be provided")
	// ErrNoIdentifier is returned when the entry to acknowledge has no id.
	ErrNoIdentifier = errors.New("entry has no identifier")
)

// Notifier is the part of the notification center the poller posts to.
type Notifier interface {
	Post(text string, severity flash.Severity, d time.Duration) flash.ID
}

// Poller holds the unacknowledged entries of one class.
type Poller struct {
	class    entity.Class
	caller   gateway.Caller
	center   Notifier
	entries  *store.Store
	interval time.Duration
	bulk     bool
	sort     string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Option configures a Poller.
type Option func(*Poller)

// WithSort sets the sort key of the list call.
func WithSort(sort string) Option {
	return func(p *Poller) {
		p.sort = sort
	}
}

// WithInterval overrides the refresh period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithoutBulkAck acknowledges entries one by one in AckAll.
func WithoutBulkAck() Option {
	return func(p *Poller) {
		p.bulk = false
	}
}

// New creates a stopped poller for class.
func New(class entity.Class, caller gateway.Caller, center Notifier, opts ...Option) (*Poller, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("%w: %d", entity.ErrUnknownClass, class)
	}

	if caller == nil {
		return nil, ErrGatewayRequired
	}

	if center == nil {
		return nil, ErrCenterRequired
	}

	p := &Poller{
		class:    class,
		caller:   caller,
		center:   center,
		interval: DefaultInterval,
		bulk:     true,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.entries = store.New(class, caller, store.WithFilter(UnacknowledgedFilter), store.WithSort(p.sort))

	return p, nil
}

// Class returns the polled class.
func (p *Poller) Class() entity.Class { return p.class }

// Entries returns the held unacknowledged entries.
func (p *Poller) Entries() []entity.Entity {
	return p.entries.Items()
}

// Subscribe registers fn to receive the entries after every change.
func (p *Poller) Subscribe(fn func([]entity.Entity)) (unsubscribe func()) {
	return p.entries.Subscribe(fn)
}

// FetchData pulls the unacknowledged entries, replacing them only on change.
func (p *Poller) FetchData(ctx context.Context) error {
	_, err := p.entries.Refresh(ctx)

	return err
}

// Ack acknowledges the entry at index and splices it out on success.
func (p *Poller) Ack(ctx context.Context, index int) error {
	target, err := p.entries.At(index)
	if err != nil {
		return err
	}

	id, ok := target.ID()
	if !ok {
		return fmt.Errorf("%w: index %d", ErrNoIdentifier, index)
	}

	res, err := p.caller.Call(ctx, p.class.Endpoint(entity.OpAck), map[string]any{entity.IDField: id})
	if err != nil {
		return fmt.Errorf("ack %s %d: %w", p.class.Name(), id, err)
	}

	p.center.Post(res.Message, flash.SeverityInfo, 0)

	return p.entries.RemoveAt(index)
}

// AckAll acknowledges every entry and refreshes. A failed bulk call leaves the entries untouched.
func (p *Poller) AckAll(ctx context.Context) error {
	if !p.bulk {
		return p.ackEach(ctx)
	}

	res, err := p.caller.Call(ctx, p.class.Endpoint(entity.OpAckAll), map[string]any{})
	if err != nil {
		return fmt.Errorf("ack all %s: %w", p.class.Collection(), err)
	}

	p.center.Post(res.Message, flash.SeverityInfo, 0)

	return p.FetchData(ctx)
}

// ackEach acknowledges the held entries one call at a time.
func (p *Poller) ackEach(ctx context.Context) error {
	var (
		acked int
		errs  []error
	)

	for _, item := range p.entries.Items() {
		id, ok := item.ID()
		if !ok {
			continue
		}

		if _, err := p.caller.Call(ctx, p.class.Endpoint(entity.OpAck), map[string]any{entity.IDField: id}); err != nil {
			errs = append(errs, err)

			continue
		}

		acked++
	}

	p.center.Post(fmt.Sprintf("Acknowledged %d entries!", acked), flash.SeverityInfo, 0)

	if err := p.FetchData(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Start begins refreshing every interval. It does nothing when already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go p.loop(loopCtx)

	p.center.Post(StartedText, flash.SeverityInfo, flash.ShortDuration)
	logger.InfoKV(ctx, "Refresh started", "class", p.class.String(), "interval", p.interval)
}

// Stop cancels the recurring refresh. An in-flight fetch still completes.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}

	p.cancel()
	p.cancel = nil

	p.center.Post(StoppedText, flash.SeverityInfo, flash.ShortDuration)
}

// ToggleRefresh starts a stopped poller and stops a running one.
func (p *Poller) ToggleRefresh(ctx context.Context) {
	if p.Refreshing() {
		p.Stop()

		return
	}

	p.Start(ctx)
}

// Refreshing reports whether the recurring refresh is running.
func (p *Poller) Refreshing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cancel != nil
}

// loop calls FetchData on every tick until ctx ends.
func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.FetchData(context.WithoutCancel(ctx)); err != nil {
				logger.WarnKV(ctx, "Refresh failed", "class", p.class.String(), "error", err)
			}
		}
	}
}
