package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mateovidal/surtido-backend/pkg/enums"
	apperrors "github.com/mateovidal/surtido-backend/pkg/errors"
)

func TestValidateTransition_AllowedEdges(t *testing.T) {
	cases := []struct {
		from enums.OrderStatus
		to   enums.OrderStatus
	}{
		{enums.OrderStatusCreated, enums.OrderStatusCreditApproved},
		{enums.OrderStatusCreated, enums.OrderStatusCancelled},
		{enums.OrderStatusCreditApproved, enums.OrderStatusStockReserved},
		{enums.OrderStatusStockReserved, enums.OrderStatusWholesalerAccepted},
		{enums.OrderStatusWholesalerAccepted, enums.OrderStatusOutForDelivery},
		{enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered},
		{enums.OrderStatusOutForDelivery, enums.OrderStatusFailed},
		{enums.OrderStatusDelivered, enums.OrderStatusReturned},
	}
	for _, tc := range cases {
		assert.NoError(t, ValidateTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidateTransition_RejectsSkippedSteps(t *testing.T) {
	err := ValidateTransition(enums.OrderStatusCreated, enums.OrderStatusDelivered)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))

	err = ValidateTransition(enums.OrderStatusCreated, enums.OrderStatusStockReserved)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))

	// cancellation closes once the order is out the door
	err = ValidateTransition(enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))
}

func TestValidateTransition_TerminalStates(t *testing.T) {
	for _, from := range []enums.OrderStatus{
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
		enums.OrderStatusReturned,
	} {
		err := ValidateTransition(from, enums.OrderStatusCreated)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeTerminalState), "from %s", from)
	}

	// delivered is terminal for everything except the return edge
	err := ValidateTransition(enums.OrderStatusDelivered, enums.OrderStatusOutForDelivery)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTerminalState))
	assert.NoError(t, ValidateTransition(enums.OrderStatusDelivered, enums.OrderStatusReturned))
}
