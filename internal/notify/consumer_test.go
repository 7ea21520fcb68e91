package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateovidal/surtido-backend/pkg/enums"
	"github.com/mateovidal/surtido-backend/pkg/outbox"
	"github.com/mateovidal/surtido-backend/pkg/outbox/idempotency"
	"github.com/mateovidal/surtido-backend/pkg/outbox/payloads"
)

type fakeStore struct {
	keys map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: map[string]string{}}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	return f.keys[key], nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := f.keys[key]; exists {
		return false, nil
	}
	f.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("surtido:idempotency:%s:%s", scope, id)
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

type sentNotice struct {
	recipientID uuid.UUID
	subject     string
	body        string
}

type fakeGateway struct {
	sent    []sentNotice
	sendErr error
}

func (f *fakeGateway) Send(ctx context.Context, recipientID uuid.UUID, subject, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentNotice{recipientID: recipientID, subject: subject, body: body})
	return nil
}

func newTestConsumer(t *testing.T, gateway *fakeGateway) *Consumer {
	t.Helper()
	guard, err := idempotency.NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)
	consumer, err := NewConsumer(guard, gateway, nil)
	require.NoError(t, err)
	return consumer
}

func envelopeBytes(t *testing.T, eventID uuid.UUID, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now(),
		Data:       data,
	})
	require.NoError(t, err)
	return raw
}

func TestHandleMessage_NotifiesRetailerOnStateChange(t *testing.T) {
	gateway := &fakeGateway{}
	consumer := newTestConsumer(t, gateway)
	ctx := context.Background()

	retailerID := uuid.New()
	orderID := uuid.New()
	raw := envelopeBytes(t, uuid.New(), payloads.OrderStateChangedEvent{
		OrderID:    orderID,
		RetailerID: retailerID,
		FromStatus: enums.OrderStatusCreated,
		ToStatus:   enums.OrderStatusCreditApproved,
	})

	err := consumer.HandleMessage(ctx, raw, map[string]string{AttrEventType: string(enums.EventOrderStateChanged)})
	require.NoError(t, err)

	require.Len(t, gateway.sent, 1)
	assert.Equal(t, retailerID, gateway.sent[0].recipientID)
	assert.Contains(t, gateway.sent[0].body, orderID.String())
	assert.Contains(t, gateway.sent[0].body, "credit_approved")
}

func TestHandleMessage_RoutingCreatedNotifiesEveryCandidate(t *testing.T) {
	gateway := &fakeGateway{}
	consumer := newTestConsumer(t, gateway)
	ctx := context.Background()

	orderID := uuid.New()
	candidates := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	raw := envelopeBytes(t, uuid.New(), payloads.RoutingCreatedEvent{
		RoutingID:        uuid.New(),
		OrderID:          orderID,
		CandidateIDs:     candidates,
		ResponseDeadline: time.Now().Add(30 * time.Minute),
	})

	err := consumer.HandleMessage(ctx, raw, map[string]string{AttrEventType: string(enums.EventRoutingCreated)})
	require.NoError(t, err)

	require.Len(t, gateway.sent, 3)
	for i, notice := range gateway.sent {
		assert.Equal(t, candidates[i], notice.recipientID)
		assert.Contains(t, notice.body, orderID.String())
	}
}

func TestHandleMessage_VendorAcceptedTellsWinnerAndLosers(t *testing.T) {
	gateway := &fakeGateway{}
	consumer := newTestConsumer(t, gateway)
	ctx := context.Background()

	orderID := uuid.New()
	winner := uuid.New()
	losers := []uuid.UUID{uuid.New(), uuid.New()}
	raw := envelopeBytes(t, uuid.New(), payloads.RoutingVendorAcceptedEvent{
		RoutingID:    uuid.New(),
		OrderID:      orderID,
		WholesalerID: winner,
		CandidateIDs: append([]uuid.UUID{winner}, losers...),
		AcceptedAt:   time.Now(),
	})

	err := consumer.HandleMessage(ctx, raw, map[string]string{AttrEventType: string(enums.EventRoutingVendorAccepted)})
	require.NoError(t, err)

	require.Len(t, gateway.sent, 3)
	assert.Equal(t, winner, gateway.sent[0].recipientID)
	assert.Equal(t, "Order won", gateway.sent[0].subject)
	for i, loser := range losers {
		assert.Equal(t, loser, gateway.sent[i+1].recipientID)
		assert.Equal(t, "Order taken", gateway.sent[i+1].subject)
	}
}

func TestHandleMessage_RedeliveryNotifiesOnce(t *testing.T) {
	gateway := &fakeGateway{}
	consumer := newTestConsumer(t, gateway)
	ctx := context.Background()

	eventID := uuid.New()
	raw := envelopeBytes(t, eventID, payloads.OrderExpiredEvent{
		OrderID:    uuid.New(),
		RetailerID: uuid.New(),
		ExpiredAt:  time.Now(),
	})
	attrs := map[string]string{AttrEventType: string(enums.EventOrderExpired)}

	require.NoError(t, consumer.HandleMessage(ctx, raw, attrs))
	require.NoError(t, consumer.HandleMessage(ctx, raw, attrs))

	assert.Len(t, gateway.sent, 1)
}

func TestHandleMessage_GatewayFailureAllowsRetry(t *testing.T) {
	gateway := &fakeGateway{sendErr: fmt.Errorf("channel down")}
	consumer := newTestConsumer(t, gateway)
	ctx := context.Background()

	raw := envelopeBytes(t, uuid.New(), payloads.RoutingVendorAcceptedEvent{
		RoutingID:    uuid.New(),
		OrderID:      uuid.New(),
		WholesalerID: uuid.New(),
		AcceptedAt:   time.Now(),
	})
	attrs := map[string]string{AttrEventType: string(enums.EventRoutingVendorAccepted)}

	err := consumer.HandleMessage(ctx, raw, attrs)
	require.Error(t, err)

	// the idempotency mark was released, so the redelivery goes through
	gateway.sendErr = nil
	require.NoError(t, consumer.HandleMessage(ctx, raw, attrs))
	assert.Len(t, gateway.sent, 1)
}

func TestHandleMessage_DropsMalformedAndUnknown(t *testing.T) {
	gateway := &fakeGateway{}
	consumer := newTestConsumer(t, gateway)
	ctx := context.Background()

	// garbage payload acks without notifying
	require.NoError(t, consumer.HandleMessage(ctx, []byte("not json"), nil))

	// unknown event type acks without notifying
	raw := envelopeBytes(t, uuid.New(), payloads.OrderCreatedEvent{OrderID: uuid.New()})
	require.NoError(t, consumer.HandleMessage(ctx, raw, map[string]string{AttrEventType: "something_new"}))

	// events without a notice render ack silently
	raw = envelopeBytes(t, uuid.New(), payloads.CreditHoldPlacedEvent{OrderID: uuid.New()})
	require.NoError(t, consumer.HandleMessage(ctx, raw, map[string]string{AttrEventType: string(enums.EventCreditHoldPlaced)}))

	assert.Empty(t, gateway.sent)
}
