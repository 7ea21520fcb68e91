package orders

import (
	"github.com/mateovidal/surtido-backend/pkg/enums"
	apperrors "github.com/mateovidal/surtido-backend/pkg/errors"
)

// allowedTransitions is the closed transition table. An edge missing here
// does not exist, no matter who asks.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusCreated: {
		enums.OrderStatusCreditApproved,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusCreditApproved: {
		enums.OrderStatusStockReserved,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusStockReserved: {
		enums.OrderStatusWholesalerAccepted,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusWholesalerAccepted: {
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusOutForDelivery: {
		enums.OrderStatusDelivered,
		enums.OrderStatusFailed,
	},
	// Delivered is terminal except for the explicit return edge.
	enums.OrderStatusDelivered: {
		enums.OrderStatusReturned,
	},
}

// ValidateTransition checks the edge against the table. The table wins over
// terminality: delivered orders can still take the return edge.
func ValidateTransition(from, to enums.OrderStatus) error {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	if from.IsTerminal() {
		return apperrors.New(apperrors.CodeTerminalState, "order is in a terminal state").
			WithDetails(map[string]any{"current_status": from, "requested_status": to})
	}
	return apperrors.New(apperrors.CodeInvalidTransition, "transition not allowed").
		WithDetails(map[string]any{"current_status": from, "requested_status": to})
}
