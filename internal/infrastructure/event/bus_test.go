package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEvent implements DomainEvent for testing
type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string, branchID uuid.UUID) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New(), branchID, "tester", time.Now()),
		Data:            "test data",
	}
}

// testHandler implements EventHandler for testing
type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) setError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

type panicHandler struct{}

func (panicHandler) Handle(context.Context, shared.DomainEvent) error { panic("boom") }
func (panicHandler) EventTypes() []string                           { return nil }

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("TransferSent")
	bus.Subscribe(handler)

	event := newTestEvent("TransferSent", uuid.New())
	require.NoError(t, bus.Publish(context.Background(), event))

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, event, handler.getHandled()[0])
}

func TestInMemoryEventBus_Routing(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	sent := newTestHandler("TransferSent")
	received := newTestHandler("TransferReceived")
	all := newTestHandler()
	bus.Subscribe(sent)
	bus.Subscribe(received)
	bus.Subscribe(all)

	branch := uuid.New()
	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("TransferSent", branch),
		newTestEvent("TransferSent", branch),
		newTestEvent("InventoryCompleted", branch),
	))

	assert.Len(t, sent.getHandled(), 2)
	assert.Len(t, received.getHandled(), 0)
	assert.Len(t, all.getHandled(), 3)
}

func TestInMemoryEventBus_Publish_HandlerErrorIsReturned(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := newTestHandler("InventoryCompleted")
	failing.setError(errors.New("handler error"))
	healthy := newTestHandler("InventoryCompleted")
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("InventoryCompleted", uuid.New()))

	assert.EqualError(t, err, "handler error")
	assert.Len(t, failing.getHandled(), 1)
	assert.Len(t, healthy.getHandled(), 1, "remaining handlers still run")
}

func TestInMemoryEventBus_Publish_PanicBecomesError(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(panicHandler{})

	err := bus.Publish(context.Background(), newTestEvent("TransferSent", uuid.New()))
	assert.ErrorContains(t, err, "panicked")
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("TransferSent")
	wildcard := newTestHandler()
	bus.Subscribe(handler)
	bus.Subscribe(wildcard)

	_ = bus.Publish(context.Background(), newTestEvent("TransferSent", uuid.New()))
	bus.Unsubscribe(handler)
	bus.Unsubscribe(wildcard)
	_ = bus.Publish(context.Background(), newTestEvent("TransferSent", uuid.New()))

	assert.Len(t, handler.getHandled(), 1)
	assert.Len(t, wildcard.getHandled(), 1)
	assert.Empty(t, bus.handlersFor("TransferSent"))
}

func TestInMemoryEventBus_SubscriptionOrder(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	wildcard := newTestHandler()
	typed := newTestHandler("ProductionBatchCompleted")
	override := newTestHandler("TransferSent")

	bus.Subscribe(wildcard)
	bus.Subscribe(typed)
	bus.Subscribe(override, "TransferCancelled")

	handlers := bus.handlersFor("ProductionBatchCompleted")
	require.Len(t, handlers, 2)
	assert.Equal(t, shared.EventHandler(wildcard), handlers[0])
	assert.Equal(t, shared.EventHandler(typed), handlers[1])

	assert.Equal(t, []shared.EventHandler{wildcard, override}, bus.handlersFor("TransferCancelled"),
		"explicit types replace the handler's own")
	assert.Equal(t, []shared.EventHandler{wildcard}, bus.handlersFor("TransferSent"))
}
