// Package audit streams copy decisions and their outcomes to observers.
//
// Publishers must never block the caller; slow sinks buffer or drop.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Kind classifies an audit event.
type Kind string

const (
	KindDecision  Kind = "decision"  // Policy outcome, approved or rejected
	KindSimulated Kind = "simulated" // Approved but trading inactive
	KindExecuted  Kind = "executed"  // Order accepted by the gateway
	KindFailed    Kind = "failed"    // Gateway rejected or errored
)

// Event is one audit record.
type Event struct {
	ID       string             `json:"id"`
	Kind     Kind               `json:"kind"`
	Time     time.Time          `json:"time"`
	Decision model.CopyDecision `json:"decision"`
	OrderID  string             `json:"order_id,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// NewEvent builds an event with a fresh id.
func NewEvent(kind Kind, at time.Time, d model.CopyDecision) Event {
	return Event{
		ID:       uuid.NewString(),
		Kind:     kind,
		Time:     at.UTC(),
		Decision: d,
	}
}

// Publisher receives audit events.
type Publisher interface {
	Publish(ev Event)
}

// Nop discards events.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(Event) {}

// Multi fans events out to several publishers in order.
type Multi []Publisher

// Publish forwards ev to every publisher.
func (m Multi) Publish(ev Event) {
	for _, p := range m {
		p.Publish(ev)
	}
}
