package flash

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oshokin/secpi-console/internal/logger"
)

const (
	// DefaultDuration is how long a message lives when no duration is given.
	DefaultDuration = 5 * time.Second
	// GraceDuration is the removal delay after a hover ends or a pin is released.
	GraceDuration = 1 * time.Second
	// ShortDuration is used for low-value informational notices.
	ShortDuration = 2 * time.Second
)

// lastID is shared by all centers so that ids are unique per process.
//
//nolint:gochecknoglobals // Process-wide message counter.
var lastID atomic.Uint64

// Center holds the live flash messages.
type Center struct {
	// mu guards entries, order and observers; timers fire on their own goroutines.
	mu sync.Mutex
	// entries maps live message ids to their state.
	entries map[ID]*entry
	// order keeps ids in insertion order.
	order []ID
	// observers receive events after each change.
	observers map[int]func(Event)
	// nextObserver is the key of the next subscription.
	nextObserver int

	// defaultDuration replaces non-positive durations in Post.
	defaultDuration time.Duration
	// grace is the delay re-armed by Leave and Unpin.
	grace time.Duration
	// log receives one entry per posted message.
	log *zap.SugaredLogger
}

// entry is the mutable state of one message.
type entry struct {
	msg   Message
	timer *time.Timer
	// gen invalidates timers that were stopped too late to prevent their callback.
	gen uint64
}

// Option configures a Center.
type Option func(*Center)

// WithDefaultDuration overrides the lifetime used when Post gets no duration.
func WithDefaultDuration(d time.Duration) Option {
	return func(c *Center) {
		if d > 0 {
			c.defaultDuration = d
		}
	}
}

// WithGrace overrides the removal delay after hover or pin ends.
func WithGrace(d time.Duration) Option {
	return func(c *Center) {
		if d > 0 {
			c.grace = d
		}
	}
}

// WithLogger sets the logger messages are mirrored to.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Center) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCenter creates an empty notification center.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		entries:         make(map[ID]*entry),
		observers:       make(map[int]func(Event)),
		defaultDuration: DefaultDuration,
		grace:           GraceDuration,
		log:             logger.Logger().Named("flash"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Post appends a message and schedules its removal after d (default when d <= 0).
func (c *Center) Post(text string, severity Severity, d time.Duration) ID {
	if d <= 0 {
		d = c.defaultDuration
	}

	c.mu.Lock()
	id := ID(lastID.Add(1))
	e := &entry{
		msg: Message{
			ID:       id,
			Text:     text,
			Severity: severity,
		},
	}
	c.entries[id] = e
	c.order = append(c.order, id)
	c.arm(e, d)
	snapshot := e.msg
	c.mu.Unlock()

	c.mirror(snapshot)
	c.notify(Event{Kind: EventPosted, Message: snapshot})

	return id
}

// Info posts an informational message with the default duration.
func (c *Center) Info(text string) ID {
	return c.Post(text, SeverityInfo, 0)
}

// Warn posts a warning with the default duration.
func (c *Center) Warn(text string) ID {
	return c.Post(text, SeverityWarn, 0)
}

// Error posts an error with the default duration.
func (c *Center) Error(text string) ID {
	return c.Post(text, SeverityError, 0)
}

// ReportTransportFailure posts the generic network-level failure message.
func (c *Center) ReportTransportFailure(statusCode int) ID {
	return c.Post(TransportFailureText(statusCode), SeverityError, 0)
}

// CancelTimer suspends the pending removal of a message. Unknown ids are ignored.
func (c *Center) CancelTimer(id ID) {
	c.update(id, func(e *entry) bool {
		return c.disarm(e)
	})
}

// Remove deletes a message. It is safe to call any number of times.
func (c *Center) Remove(id ID) {
	c.mu.Lock()
	msg, ok := c.removeLocked(id)
	c.mu.Unlock()

	if ok {
		c.notify(Event{Kind: EventRemoved, Message: msg})
	}
}

// Pin keeps the message alive past its timer.
func (c *Center) Pin(id ID) {
	c.update(id, func(e *entry) bool {
		if e.msg.Pinned {
			return false
		}

		e.msg.Pinned = true

		return true
	})
}

// Unpin releases a pin and, unless the message is hovered, re-arms the grace timer.
func (c *Center) Unpin(id ID) {
	c.update(id, func(e *entry) bool {
		if !e.msg.Pinned {
			return false
		}

		e.msg.Pinned = false
		if !e.msg.Hovered {
			c.arm(e, c.grace)
		}

		return true
	})
}

// TogglePin flips the pin state of a message.
func (c *Center) TogglePin(id ID) {
	c.mu.Lock()
	e, ok := c.entries[id]
	pinned := ok && e.msg.Pinned
	c.mu.Unlock()

	if !ok {
		return
	}

	if pinned {
		c.Unpin(id)
	} else {
		c.Pin(id)
	}
}

// Enter marks the start of a hover or focus: the removal timer is suspended.
func (c *Center) Enter(id ID) {
	c.update(id, func(e *entry) bool {
		e.msg.Hovered = true
		c.disarm(e)

		return true
	})
}

// Leave marks the end of a hover; unpinned messages get the grace timer.
func (c *Center) Leave(id ID) {
	c.update(id, func(e *entry) bool {
		e.msg.Hovered = false
		if !e.msg.Pinned {
			c.arm(e, c.grace)
		}

		return true
	})
}

// Get returns a snapshot of one message.
func (c *Center) Get(id ID) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return Message{}, false
	}

	return e.msg, true
}

// Messages returns a snapshot of the live messages in insertion order.
func (c *Center) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Message, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.entries[id].msg)
	}

	return result
}

// Len returns the number of live messages.
func (c *Center) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order)
}

// Subscribe registers an observer and returns a function that removes it.
// Observers run synchronously on the goroutine that caused the change.
func (c *Center) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	key := c.nextObserver
	c.nextObserver++
	c.observers[key] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, key)
		c.mu.Unlock()
	}
}

// expire is the timer callback of a message.
func (c *Center) expire(id ID, gen uint64) {
	c.mu.Lock()

	e, ok := c.entries[id]
	if !ok || e.gen != gen {
		c.mu.Unlock()

		return
	}

	if e.msg.Pinned {
		e.timer = nil
		e.msg.ExpiresAt = time.Time{}
		snapshot := e.msg
		c.mu.Unlock()

		c.notify(Event{Kind: EventUpdated, Message: snapshot})

		return
	}

	msg, _ := c.removeLocked(id)
	c.mu.Unlock()

	c.notify(Event{Kind: EventRemoved, Message: msg})
}

// update applies fn to a live entry and notifies observers when fn reports a change.
func (c *Center) update(id ID, fn func(*entry) bool) {
	c.mu.Lock()

	e, ok := c.entries[id]
	if !ok || !fn(e) {
		c.mu.Unlock()

		return
	}

	snapshot := e.msg
	c.mu.Unlock()

	c.notify(Event{Kind: EventUpdated, Message: snapshot})
}

// arm replaces the entry's timer with one firing after d. Callers hold mu.
func (c *Center) arm(e *entry, d time.Duration) {
	c.disarm(e)

	id, gen := e.msg.ID, e.gen
	e.msg.ExpiresAt = time.Now().Add(d)
	e.timer = time.AfterFunc(d, func() { c.expire(id, gen) })
}

// disarm stops the entry's timer. Callers hold mu.
func (c *Center) disarm(e *entry) bool {
	e.gen++

	if e.timer == nil {
		return false
	}

	e.timer.Stop()
	e.timer = nil
	e.msg.ExpiresAt = time.Time{}

	return true
}

// removeLocked deletes an entry. Callers hold mu.
func (c *Center) removeLocked(id ID) (Message, bool) {
	e, ok := c.entries[id]
	if !ok {
		return Message{}, false
	}

	c.disarm(e)
	delete(c.entries, id)

	for i, candidate := range c.order {
		if candidate == id {
			c.order = append(c.order[:i], c.order[i+1:]...)

			break
		}
	}

	return e.msg, true
}

// notify delivers an event to every observer outside the lock.
func (c *Center) notify(evt Event) {
	c.mu.Lock()
	observers := make([]func(Event), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(evt)
	}
}

// mirror writes a posted message to the log at a matching level.
func (c *Center) mirror(msg Message) {
	kvs := []any{"flash_id", msg.ID, "severity", msg.Severity}

	switch msg.Severity {
	case SeverityError:
		c.log.Errorw(msg.Text, kvs...)
	case SeverityWarn:
		c.log.Warnw(msg.Text, kvs...)
	default:
		c.log.Infow(msg.Text, kvs...)
	}
}
