package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// StockLevel tracks counts per wholesaler-product. PhysicalQty is the last
// recorded physical count; available and reserved partition the portion of
// it not yet deducted by fulfilled reservations.
type StockLevel struct {
	WholesalerID uuid.UUID `gorm:"column:wholesaler_id;type:uuid;primaryKey"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	PhysicalQty  int       `gorm:"column:physical_qty;not null;default:0"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int       `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// StockReservation is a temporary hold on stock tied to one order item.
type StockReservation struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WholesalerID uuid.UUID               `gorm:"column:wholesaler_id;type:uuid;not null"`
	ProductID    uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index"`
	OrderID      uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	Qty          int                     `gorm:"column:qty;not null"`
	FulfilledQty int                     `gorm:"column:fulfilled_qty;not null;default:0"`
	Status       enums.ReservationStatus `gorm:"column:status;type:reservation_status_enum;not null;default:'active'"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
