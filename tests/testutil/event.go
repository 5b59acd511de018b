package testutil

import (
	"testing"

	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// OutboxEventTypes returns the event types committed to the outbox in
// insertion order. Entries of one transaction share created_at, so the
// order within it is the database's.
func OutboxEventTypes(t *testing.T, db *gorm.DB) []string {
	t.Helper()

	var types []string
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Order("created_at").Pluck("event_type", &types).Error)
	return types
}
