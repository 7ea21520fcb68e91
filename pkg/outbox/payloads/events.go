package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// OrderCreatedEvent signals a new retailer order entering the pipeline.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	RetailerID  uuid.UUID         `json:"retailer_id"`
	PaymentMode enums.PaymentMode `json:"payment_mode"`
	TotalCents  int64             `json:"total_cents"`
}

// OrderStateChangedEvent is emitted on every order status transition.
type OrderStateChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	RetailerID uuid.UUID         `json:"retailer_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ActorRole  enums.ActorRole   `json:"actor_role"`
	Reason     string            `json:"reason,omitempty"`
}

// OrderExpiredEvent describes the payload when unresponded orders expire.
type OrderExpiredEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	RetailerID uuid.UUID `json:"retailer_id"`
	ExpiredAt  time.Time `json:"expired_at"`
}

// RoutingCreatedEvent announces a routing round with its candidate set.
type RoutingCreatedEvent struct {
	RoutingID        uuid.UUID   `json:"routing_id"`
	OrderID          uuid.UUID   `json:"order_id"`
	CandidateIDs     []uuid.UUID `json:"candidate_ids"`
	ResponseDeadline time.Time   `json:"response_deadline"`
}

// RoutingVendorAcceptedEvent reports the wholesaler that won the race.
// CandidateIDs carries the full candidate set so consumers can tell the
// losers without a lookup.
type RoutingVendorAcceptedEvent struct {
	RoutingID    uuid.UUID   `json:"routing_id"`
	OrderID      uuid.UUID   `json:"order_id"`
	WholesalerID uuid.UUID   `json:"wholesaler_id"`
	CandidateIDs []uuid.UUID `json:"candidate_ids"`
	AcceptedAt   time.Time   `json:"accepted_at"`
}

// RoutingNoWinnerEvent is emitted when the response window closes unanswered.
type RoutingNoWinnerEvent struct {
	RoutingID uuid.UUID `json:"routing_id"`
	OrderID   uuid.UUID `json:"order_id"`
	ClosedAt  time.Time `json:"closed_at"`
}

// OfferIngestedEvent records a scored wholesaler offer.
type OfferIngestedEvent struct {
	OfferID      uuid.UUID `json:"offer_id"`
	OrderID      uuid.UUID `json:"order_id"`
	WholesalerID uuid.UUID `json:"wholesaler_id"`
	Score        string    `json:"score"`
}

// OfferWinnerSelectedEvent reports the offer chosen for an order.
type OfferWinnerSelectedEvent struct {
	OfferID      uuid.UUID `json:"offer_id"`
	OrderID      uuid.UUID `json:"order_id"`
	WholesalerID uuid.UUID `json:"wholesaler_id"`
	Score        string    `json:"score"`
}

// CreditHoldPlacedEvent is emitted when an order books a hold against a
// retailer's credit line.
type CreditHoldPlacedEvent struct {
	EntryID      uuid.UUID `json:"entry_id"`
	OrderID      uuid.UUID `json:"order_id"`
	RetailerID   uuid.UUID `json:"retailer_id"`
	WholesalerID uuid.UUID `json:"wholesaler_id"`
	AmountCents  int64     `json:"amount_cents"`
	DueDate      time.Time `json:"due_date"`
}

// CreditHoldReversedEvent is emitted when a cancelled or failed order releases
// its hold.
type CreditHoldReversedEvent struct {
	EntryID     uuid.UUID `json:"entry_id"`
	OrderID     uuid.UUID `json:"order_id"`
	RetailerID  uuid.UUID `json:"retailer_id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason,omitempty"`
}

// ReservationReleasedEvent reports stock returned to the available pool.
type ReservationReleasedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	OrderID       uuid.UUID `json:"order_id"`
	WholesalerID  uuid.UUID `json:"wholesaler_id"`
	ProductID     uuid.UUID `json:"product_id"`
	Qty           int       `json:"qty"`
}

// StockDeductedEvent reports physical stock leaving the warehouse at delivery.
type StockDeductedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	OrderID       uuid.UUID `json:"order_id"`
	WholesalerID  uuid.UUID `json:"wholesaler_id"`
	ProductID     uuid.UUID `json:"product_id"`
	Qty           int       `json:"qty"`
}
