package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateOrderRouting OutboxAggregateType = "order_routing"
	AggregateVendorOffer  OutboxAggregateType = "vendor_offer"
	AggregateLedgerEntry  OutboxAggregateType = "ledger_entry"
	AggregateReservation  OutboxAggregateType = "stock_reservation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateOrderRouting,
	AggregateVendorOffer,
	AggregateLedgerEntry,
	AggregateReservation,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderStateChanged     OutboxEventType = "order_state_changed"
	EventOrderExpired          OutboxEventType = "order_expired"
	EventRoutingCreated        OutboxEventType = "routing_created"
	EventRoutingVendorAccepted OutboxEventType = "routing_vendor_accepted"
	EventRoutingNoWinner       OutboxEventType = "routing_no_winner"
	EventOfferIngested         OutboxEventType = "offer_ingested"
	EventOfferWinnerSelected   OutboxEventType = "offer_winner_selected"
	EventCreditHoldPlaced      OutboxEventType = "credit_hold_placed"
	EventCreditHoldReversed    OutboxEventType = "credit_hold_reversed"
	EventReservationReleased   OutboxEventType = "reservation_released"
	EventStockDeducted         OutboxEventType = "stock_deducted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStateChanged,
	EventOrderExpired,
	EventRoutingCreated,
	EventRoutingVendorAccepted,
	EventRoutingNoWinner,
	EventOfferIngested,
	EventOfferWinnerSelected,
	EventCreditHoldPlaced,
	EventCreditHoldReversed,
	EventReservationReleased,
	EventStockDeducted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
