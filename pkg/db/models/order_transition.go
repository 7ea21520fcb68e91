package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// OrderTransition is the append-only audit row written once per accepted
// state change. Rows are never updated or deleted; the sequence for an
// order is its transition history.
type OrderTransition struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus enums.OrderStatus `gorm:"column:from_status;type:order_status_enum;not null"`
	ToStatus   enums.OrderStatus `gorm:"column:to_status;type:order_status_enum;not null"`
	ActorID    uuid.UUID         `gorm:"column:actor_id;type:uuid;not null"`
	ActorRole  enums.ActorRole   `gorm:"column:actor_role;type:actor_role_enum;not null"`
	Reason     *string           `gorm:"column:reason"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
