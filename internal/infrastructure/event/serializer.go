package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/erp/stockcore/internal/domain/production"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stocktaking"
	"github.com/erp/stockcore/internal/domain/transfer"
)

// ErrUnknownEventType is returned for an event type that was never registered
var ErrUnknownEventType = errors.New("unknown event type")

// EventSerializer is the JSON codec of outbox payloads. Decoding looks the
// concrete type up by the stored event_type column. Registration is not
// synchronized and must finish before the serializer is shared.
type EventSerializer struct {
	factories map[string]func() shared.DomainEvent
}

func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]func() shared.DomainEvent)}
}

// NewLedgerEventSerializer knows every event raised by batches, transfers
// and inventories.
func NewLedgerEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterEvent[production.BatchStartedEvent](s, production.EventTypeBatchStarted)
	RegisterEvent[production.BatchCompletedEvent](s, production.EventTypeBatchCompleted)
	RegisterEvent[production.BatchCancelledEvent](s, production.EventTypeBatchCancelled)

	RegisterEvent[transfer.SentEvent](s, transfer.EventTypeSent)
	RegisterEvent[transfer.ReceivedEvent](s, transfer.EventTypeReceived)
	RegisterEvent[transfer.CancelledEvent](s, transfer.EventTypeCancelled)

	RegisterEvent[stocktaking.CompletedEvent](s, stocktaking.EventTypeCompleted)
	RegisterEvent[stocktaking.CancelledEvent](s, stocktaking.EventTypeCancelled)
	return s
}

// RegisterEvent maps eventType to *E, the type decoded for it
func RegisterEvent[E any, P interface {
	*E
	shared.DomainEvent
}](s *EventSerializer, eventType string) {
	s.factories[eventType] = func() shared.DomainEvent { return P(new(E)) }
}

func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	if !s.IsRegistered(event.EventType()) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, event.EventType())
	}
	return json.Marshal(event)
}

func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	factory, ok := s.factories[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return event, nil
}

func (s *EventSerializer) IsRegistered(eventType string) bool {
	_, ok := s.factories[eventType]
	return ok
}

// RegisteredTypes lists the registered event types sorted
func (s *EventSerializer) RegisteredTypes() []string {
	types := make([]string, 0, len(s.factories))
	for t := range s.factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
