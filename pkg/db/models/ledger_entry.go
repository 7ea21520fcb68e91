package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// LedgerEntry records an immutable financial event for a retailer-wholesaler
// pair. The table is append-only: corrections land as reversal or adjustment
// entries, never as edits. Balance is always derived by summation.
type LedgerEntry struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RetailerID   uuid.UUID             `gorm:"column:retailer_id;type:uuid;not null;index:ix_ledger_entries_pair"`
	WholesalerID uuid.UUID             `gorm:"column:wholesaler_id;type:uuid;not null;index:ix_ledger_entries_pair"`
	Type         enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type_enum;not null"`
	AmountCents  int64                 `gorm:"column:amount_cents;not null"`
	OrderID      *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	DueDate      *time.Time            `gorm:"column:due_date"`
	CreatedBy    uuid.UUID             `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}
