package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// Order is a retailer's request for goods, tracked through a fixed lifecycle.
// The wholesaler reference stays nil until routing or bidding assigns one.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RetailerID    uuid.UUID         `gorm:"column:retailer_id;type:uuid;not null"`
	WholesalerID  *uuid.UUID        `gorm:"column:wholesaler_id;type:uuid"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'created'"`
	PaymentMode   enums.PaymentMode `gorm:"column:payment_mode;type:payment_mode_enum;not null;default:'credit'"`
	TotalCents    int64             `gorm:"column:total_cents;not null"`
	ExpiresAt     time.Time         `gorm:"column:expires_at;not null"`
	DeliveryToken *string           `gorm:"column:delivery_token"`
	Items         []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is one product line of an order at an agreed unit price.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
