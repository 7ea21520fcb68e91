package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// VendorOffer is a wholesaler's competitive bid on an open order. At most
// one row exists per (order, wholesaler); re-submission updates in place.
type VendorOffer struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_vendor_offers_order_wholesaler"`
	WholesalerID   uuid.UUID         `gorm:"column:wholesaler_id;type:uuid;not null;uniqueIndex:ux_vendor_offers_order_wholesaler"`
	PriceCents     int64             `gorm:"column:price_cents;not null"`
	EtaHours       int               `gorm:"column:eta_hours;not null"`
	StockConfirmed bool              `gorm:"column:stock_confirmed;not null;default:false"`
	Score          decimal.Decimal   `gorm:"column:score;type:numeric(12,6);not null"`
	Status         enums.OfferStatus `gorm:"column:status;type:offer_status_enum;not null;default:'pending'"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
