package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditAccount holds the trade-credit terms between a retailer and a
// wholesaler. Balance is never stored here; it is computed from the ledger.
type CreditAccount struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RetailerID   uuid.UUID `gorm:"column:retailer_id;type:uuid;not null;uniqueIndex:ux_credit_accounts_pair"`
	WholesalerID uuid.UUID `gorm:"column:wholesaler_id;type:uuid;not null;uniqueIndex:ux_credit_accounts_pair"`
	LimitCents   int64     `gorm:"column:limit_cents;not null"`
	TermsDays    int       `gorm:"column:terms_days;not null;default:30"`
	Active       bool      `gorm:"column:active;not null;default:true"`
	BlockReason  *string   `gorm:"column:block_reason"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
