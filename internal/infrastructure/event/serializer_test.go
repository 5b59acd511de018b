package event

import (
	"testing"
	"time"

	"github.com/erp/stockcore/internal/domain/production"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/transfer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSerializer_RegisterLedgerEvents(t *testing.T) {
	serializer := NewLedgerEventSerializer()

	assert.Equal(t, []string{
		"InventoryCancelled",
		"InventoryCompleted",
		"ProductionBatchCancelled",
		"ProductionBatchCompleted",
		"ProductionBatchStarted",
		"TransferCancelled",
		"TransferReceived",
		"TransferSent",
	}, serializer.RegisteredTypes())
	assert.False(t, serializer.IsRegistered("UnknownEvent"))
}

func TestEventSerializer_RoundTripKeepsConcreteType(t *testing.T) {
	serializer := NewLedgerEventSerializer()
	at := time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC)
	lotID := uuid.New()

	original := &production.BatchCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(production.EventTypeBatchCompleted, "ProductionBatch", uuid.New(), uuid.New(), "operator-7", at),
		RecipeID:        uuid.New(),
		OutputQty:       250,
		LotID:           &lotID,
		Consumptions: []production.ConsumedLine{
			{IngredientID: uuid.New(), Quantity: decimal.RequireFromString("2.5"), Unit: "kg"},
		},
	}

	data, err := serializer.Serialize(original)
	require.NoError(t, err)

	decoded, err := serializer.Deserialize(production.EventTypeBatchCompleted, data)
	require.NoError(t, err)

	got, ok := decoded.(*production.BatchCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), got.EventID())
	assert.Equal(t, original.BranchID(), got.BranchID())
	assert.True(t, at.Equal(got.OccurredAt()))
	assert.Equal(t, int64(250), got.OutputQty)
	require.NotNil(t, got.LotID)
	assert.Equal(t, lotID, *got.LotID)
	require.Len(t, got.Consumptions, 1)
	assert.True(t, decimal.RequireFromString("2.5").Equal(got.Consumptions[0].Quantity))
}

func TestEventSerializer_Deserialize_Errors(t *testing.T) {
	serializer := NewLedgerEventSerializer()

	_, err := serializer.Deserialize("NoSuchEvent", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)

	_, err = serializer.Deserialize(transfer.EventTypeReceived, []byte(`{not json`))
	assert.Error(t, err)
}
