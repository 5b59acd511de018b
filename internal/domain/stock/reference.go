package stock

import "github.com/google/uuid"

// ReferenceType names the document that caused a movement
type ReferenceType string

const (
	ReferenceNone            ReferenceType = ""
	ReferenceReceipt         ReferenceType = "RECEIPT"
	ReferenceWriteOff        ReferenceType = "WRITE_OFF"
	ReferenceProductionBatch ReferenceType = "PRODUCTION_BATCH"
	ReferenceTransfer        ReferenceType = "TRANSFER"
	ReferenceInventory       ReferenceType = "INVENTORY"
	ReferenceSalesOrder      ReferenceType = "SALES_ORDER"
	ReferenceSalesReturn     ReferenceType = "SALES_RETURN"
	ReferenceManual          ReferenceType = "MANUAL"
)

// Reference points at the originating document of a movement.
// The zero value means the movement has no originating document.
type Reference struct {
	Type ReferenceType
	ID   uuid.UUID
}

// NewReference creates a reference to a document
func NewReference(refType ReferenceType, id uuid.UUID) Reference {
	return Reference{Type: refType, ID: id}
}

// IsZero reports whether the reference is empty
func (r Reference) IsZero() bool {
	return r.Type == ReferenceNone && r.ID == uuid.Nil
}

// IDPtr returns the document ID or nil when absent
func (r Reference) IDPtr() *uuid.UUID {
	if r.ID == uuid.Nil {
		return nil
	}
	id := r.ID
	return &id
}
