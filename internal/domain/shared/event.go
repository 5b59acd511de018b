package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by a ledger aggregate. Events are stored in
// the outbox in the same transaction as the movement they describe.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	BranchID() uuid.UUID
}

// BaseDomainEvent implements DomainEvent. Concrete events embed it and add
// their payload fields; the JSON names are the outbox wire format.
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	At        time.Time `json:"timestamp"`
	Aggregate uuid.UUID `json:"aggregate_id"`
	Kind      string    `json:"aggregate_type"`
	Branch    uuid.UUID `json:"branch_id"`
	Actor     string    `json:"actor,omitempty"`
}

func NewBaseDomainEvent(eventType, aggType string, aggID, branchID uuid.UUID, actor string, at time.Time) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		At:        at,
		Aggregate: aggID,
		Kind:      aggType,
		Branch:    branchID,
		Actor:     actor,
	}
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate }
func (e *BaseDomainEvent) AggregateType() string  { return e.Kind }
func (e *BaseDomainEvent) BranchID() uuid.UUID    { return e.Branch }

// EventActor is the user who caused the event, empty for system actions
func (e *BaseDomainEvent) EventActor() string { return e.Actor }
