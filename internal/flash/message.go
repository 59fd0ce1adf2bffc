package flash

import (
	"fmt"
	"time"
)

// Severity classifies a flash message.
type Severity string

// Message severities.
const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// ID identifies a message; ids grow monotonically for the whole process.
type ID uint64

// Message is a snapshot of one flash message.
type Message struct {
	// ID is unique and never reused.
	ID ID
	// Text is the human-readable notification.
	Text string
	// Severity is info, warn or error.
	Severity Severity
	// Pinned keeps the message alive when its timer fires.
	Pinned bool
	// Hovered is set while the operator is looking at the message.
	Hovered bool
	// ExpiresAt is when the armed removal timer fires; zero when no timer is armed.
	ExpiresAt time.Time
}

// EventKind tells observers what happened to a message.
type EventKind uint8

// Event kinds.
const (
	EventPosted EventKind = iota + 1
	EventUpdated
	EventRemoved
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case EventPosted:
		return "posted"
	case EventUpdated:
		return "updated"
	case EventRemoved:
		return "removed"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is delivered to observers after every change of the queue.
type Event struct {
	Kind    EventKind
	Message Message
}

// transportFailureFormat is the fixed text of network-level failures.
const transportFailureFormat = "Error with status %d while retrieving data!"

// TransportFailureText renders the message posted for a transport failure.
func TransportFailureText(statusCode int) string {
	return fmt.Sprintf(transportFailureFormat, statusCode)
}
