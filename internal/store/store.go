// Package store holds the client-side list of entities of one class.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/logger"
)

// ErrIndexOutOfRange is returned by positional operations with a bad index.
var ErrIndexOutOfRange = errors.New("index out of range")

// Query is the optional filter and sort sent with every list call.
type Query struct {
	Filter string `json:"filter,omitempty"`
	Sort   string `json:"sort,omitempty"`
}

// Store is an ordered snapshot of a class's entities as last returned by the server.
type Store struct {
	caller gateway.Caller
	path   string
	query  Query

	mu          sync.RWMutex
	items       []entity.Entity
	fingerprint []byte
	loading     bool
	observers   map[int]func([]entity.Entity)
	nextID      int
}

// Option configures a Store.
type Option func(*Store)

// WithFilter sets the filter expression sent on refresh, e.g. "ack==0".
func WithFilter(filter string) Option {
	return func(s *Store) {
		s.query.Filter = filter
	}
}

// WithSort sets the sort key sent on refresh.
func WithSort(sort string) Option {
	return func(s *Store) {
		s.query.Sort = sort
	}
}

// WithPath replaces the list endpoint.
func WithPath(path string) Option {
	return func(s *Store) {
		if path != "" {
			s.path = path
		}
	}
}

// New creates an empty store listing class through caller.
func New(class entity.Class, caller gateway.Caller, opts ...Option) *Store {
	s := &Store{
		caller:    caller,
		path:      class.Endpoint(entity.OpList),
		observers: make(map[int]func([]entity.Entity)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Query returns the filter and sort in use.
func (s *Store) Query() Query {
	return s.query
}

// Refresh fetches the list and replaces the held sequence when its content changed.
// It reports whether a change was applied.
func (s *Store) Refresh(ctx context.Context) (bool, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	res, err := s.caller.Call(ctx, s.path, s.query)
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", s.path, err)
	}

	var items []entity.Entity
	if err = res.Decode(&items); err != nil {
		return false, fmt.Errorf("refresh %s: %w", s.path, err)
	}

	if items == nil {
		items = []entity.Entity{}
	}

	changed, err := s.replace(items)
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", s.path, err)
	}

	logger.DebugKV(ctx, "List refreshed", "path", s.path, "items", len(items), "changed", changed)

	return changed, nil
}

// Subscribe registers fn to receive a snapshot after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func([]entity.Entity)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Items returns a deep copy of the held sequence in server order.
func (s *Store) Items() []entity.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return entity.CloneAll(s.items)
}

// Len returns the number of held entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// At returns a deep copy of the entity at index.
func (s *Store) At(index int) (entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.items) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.items))
	}

	return s.items[index].Clone(), nil
}

// ReplaceAt puts e at index.
func (s *Store) ReplaceAt(index int, e entity.Entity) error {
	return s.mutate(func(items []entity.Entity) ([]entity.Entity, error) {
		if index < 0 || index >= len(items) {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(items))
		}

		items[index] = e.Clone()

		return items, nil
	})
}

// RemoveAt splices out the entity at index.
func (s *Store) RemoveAt(index int) error {
	return s.mutate(func(items []entity.Entity) ([]entity.Entity, error) {
		if index < 0 || index >= len(items) {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(items))
		}

		return append(items[:index], items[index+1:]...), nil
	})
}

// Loading reports whether a refresh is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loading
}

// replace installs items unless they serialize to the held content.
func (s *Store) replace(items []entity.Entity) (bool, error) {
	fingerprint, err := json.Marshal(items)
	if err != nil {
		return false, fmt.Errorf("fingerprint list: %w", err)
	}

	s.mu.Lock()

	if s.fingerprint != nil && bytes.Equal(s.fingerprint, fingerprint) {
		s.mu.Unlock()

		return false, nil
	}

	s.items = items
	s.fingerprint = fingerprint
	snapshot, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, snapshot)

	return true, nil
}

// mutate applies a local change and notifies observers.
func (s *Store) mutate(fn func([]entity.Entity) ([]entity.Entity, error)) error {
	s.mu.Lock()

	items, err := fn(s.items)
	if err != nil {
		s.mu.Unlock()

		return err
	}

	fingerprint, err := json.Marshal(items)
	if err != nil {
		s.mu.Unlock()

		return fmt.Errorf("fingerprint list: %w", err)
	}

	s.items = items
	s.fingerprint = fingerprint
	snapshot, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, snapshot)

	return nil
}

// snapshotLocked copies the items and observers; s.mu must be held.
func (s *Store) snapshotLocked() ([]entity.Entity, []func([]entity.Entity)) {
	if len(s.observers) == 0 {
		return nil, nil
	}

	observers := make([]func([]entity.Entity), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}

	return entity.CloneAll(s.items), observers
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func notify(observers []func([]entity.Entity), snapshot []entity.Entity) {
	for _, fn := range observers {
		fn(entity.CloneAll(snapshot))
	}
}
