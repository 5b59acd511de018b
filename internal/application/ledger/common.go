package ledger

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
)

func validateActor(actor string, occurredAt time.Time) error {
	if actor == "" {
		return shared.NewValidationError("actor is required")
	}
	if occurredAt.IsZero() {
		return shared.NewValidationError("occurredAt is required")
	}
	return nil
}
