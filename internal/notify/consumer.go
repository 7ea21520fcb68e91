package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/enums"
	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/outbox"
	"github.com/mateovidal/surtido-backend/pkg/outbox/idempotency"
	"github.com/mateovidal/surtido-backend/pkg/outbox/payloads"
)

// ConsumerName scopes the idempotency keys for this worker.
const ConsumerName = "notify-worker"

// AttrEventType is the message attribute carrying the event type.
const AttrEventType = "event_type"

// Consumer turns domain events into user-facing notices. Processing is
// at-least-once on the wire; the idempotency guard collapses redeliveries
// so each event notifies once.
type Consumer struct {
	guard   *idempotency.Manager
	gateway Gateway
	logg    *logger.Logger
}

// NewConsumer wires a notification consumer.
func NewConsumer(guard *idempotency.Manager, gateway Gateway, logg *logger.Logger) (*Consumer, error) {
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("notification gateway required")
	}
	return &Consumer{guard: guard, gateway: gateway, logg: logg}, nil
}

// HandleMessage processes one published outbox envelope. A returned error
// means the message should be redelivered.
func (c *Consumer) HandleMessage(ctx context.Context, data []byte, attrs map[string]string) error {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		// Malformed payloads never become valid; drop instead of redelivering.
		if c.logg != nil {
			c.logg.Error(ctx, "dropping malformed event payload", err)
		}
		return nil
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		if c.logg != nil {
			c.logg.Error(ctx, "dropping event with invalid id", err)
		}
		return nil
	}

	processed, err := c.guard.CheckAndMarkProcessed(ctx, ConsumerName, eventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	eventType, err := enums.ParseOutboxEventType(attrs[AttrEventType])
	if err != nil {
		// Unknown types are fine; newer producers may emit events this
		// worker does not render.
		return nil
	}

	if err := c.dispatch(ctx, eventType, envelope.Data); err != nil {
		// Release the idempotency mark so the redelivery is not swallowed.
		if delErr := c.guard.Delete(ctx, ConsumerName, eventID); delErr != nil && c.logg != nil {
			c.logg.Error(ctx, "releasing idempotency mark failed", delErr)
		}
		return err
	}
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventOrderStateChanged:
		var p payloads.OrderStateChangedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return c.gateway.Send(ctx, p.RetailerID,
			"Order update",
			fmt.Sprintf("Your order %s moved from %s to %s.", p.OrderID, p.FromStatus, p.ToStatus))

	case enums.EventOrderExpired:
		var p payloads.OrderExpiredEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return c.gateway.Send(ctx, p.RetailerID,
			"Order expired",
			fmt.Sprintf("Your order %s expired before a wholesaler accepted it.", p.OrderID))

	case enums.EventRoutingCreated:
		var p payloads.RoutingCreatedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		for _, candidateID := range p.CandidateIDs {
			if err := c.gateway.Send(ctx, candidateID,
				"New order available",
				fmt.Sprintf("Order %s is open for acceptance until %s.",
					p.OrderID, p.ResponseDeadline.Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil

	case enums.EventRoutingVendorAccepted:
		var p payloads.RoutingVendorAcceptedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		if err := c.gateway.Send(ctx, p.WholesalerID,
			"Order won",
			fmt.Sprintf("You accepted order %s. Prepare it for delivery.", p.OrderID)); err != nil {
			return err
		}
		for _, candidateID := range p.CandidateIDs {
			if candidateID == p.WholesalerID {
				continue
			}
			if err := c.gateway.Send(ctx, candidateID,
				"Order taken",
				fmt.Sprintf("Order %s was accepted by another wholesaler.", p.OrderID)); err != nil {
				return err
			}
		}
		return nil

	case enums.EventOfferWinnerSelected:
		var p payloads.OfferWinnerSelectedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return c.gateway.Send(ctx, p.WholesalerID,
			"Offer selected",
			fmt.Sprintf("Your offer on order %s won with score %s.", p.OrderID, p.Score))

	default:
		// The remaining event types have no user-facing notice.
		return nil
	}
}
