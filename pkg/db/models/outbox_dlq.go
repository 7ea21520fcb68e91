package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// OutboxDLQ stores events that exhausted their publish attempts.
type OutboxDLQ struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID       uuid.UUID                 `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_outbox_dlq_event"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null"`
	ErrorMessage  *string                   `gorm:"column:error_message"`
	FailedAt      time.Time                 `gorm:"column:failed_at;autoCreateTime"`
}

// TableName keeps the dead letter table name explicit.
func (OutboxDLQ) TableName() string {
	return "outbox_dlq"
}
