package enums

import "fmt"

// OrderStatus tracks the lifecycle of a retailer order.
type OrderStatus string

const (
	OrderStatusCreated            OrderStatus = "created"
	OrderStatusCreditApproved     OrderStatus = "credit_approved"
	OrderStatusStockReserved      OrderStatus = "stock_reserved"
	OrderStatusWholesalerAccepted OrderStatus = "wholesaler_accepted"
	OrderStatusOutForDelivery     OrderStatus = "out_for_delivery"
	OrderStatusDelivered          OrderStatus = "delivered"
	OrderStatusCancelled          OrderStatus = "cancelled"
	OrderStatusFailed             OrderStatus = "failed"
	OrderStatusReturned           OrderStatus = "returned"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusCreditApproved,
	OrderStatusStockReserved,
	OrderStatusWholesalerAccepted,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusFailed,
	OrderStatusReturned,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailed, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
