package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// OrderRouting fans an order out to candidate wholesalers. The winner column
// moves from NULL to exactly one value, once, via a conditional update; it is
// never rewritten afterwards.
type OrderRouting struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Status             enums.RoutingStatus `gorm:"column:status;type:routing_status_enum;not null;default:'pending_responses'"`
	WinnerWholesalerID *uuid.UUID          `gorm:"column:winner_wholesaler_id;type:uuid"`
	ResponseDeadline   time.Time           `gorm:"column:response_deadline;not null"`
	ResolvedAt         *time.Time          `gorm:"column:resolved_at"`
	Candidates         []RoutingCandidate  `gorm:"foreignKey:RoutingID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// RoutingCandidate records one notified wholesaler and its response.
type RoutingCandidate struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RoutingID    uuid.UUID               `gorm:"column:routing_id;type:uuid;not null;uniqueIndex:ux_routing_candidates_routing_wholesaler"`
	WholesalerID uuid.UUID               `gorm:"column:wholesaler_id;type:uuid;not null;uniqueIndex:ux_routing_candidates_routing_wholesaler"`
	Response     enums.CandidateResponse `gorm:"column:response;type:candidate_response_enum;not null;default:'pending'"`
	RespondedAt  *time.Time              `gorm:"column:responded_at"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
}
