package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/internal/credit"
	"github.com/mateovidal/surtido-backend/internal/inventory"
	"github.com/mateovidal/surtido-backend/pkg/auth/deliverytoken"
	"github.com/mateovidal/surtido-backend/pkg/config"
	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	apperrors "github.com/mateovidal/surtido-backend/pkg/errors"
	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/outbox"
	"github.com/mateovidal/surtido-backend/pkg/outbox/payloads"
	"github.com/mateovidal/surtido-backend/pkg/pagination"
)

// Service drives orders through their lifecycle. Every transition is
// validated against the closed table, applied with a conditional update,
// and recorded as an append-only OrderTransition row plus an outbox event,
// all inside one transaction with the transition's side effects.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, retailerID uuid.UUID, params pagination.Params) ([]models.Order, error)
	Transitions(ctx context.Context, orderID uuid.UUID) ([]models.OrderTransition, error)

	// ApproveCredit moves created -> credit_approved. Credit orders with an
	// assigned wholesaler book a hold against the retailer's line right away;
	// marketplace orders defer the hold until a wholesaler accepts, and
	// cash_on_delivery orders never touch the ledger.
	ApproveCredit(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	// ReserveStock moves credit_approved -> stock_reserved, holding every
	// item at the assigned wholesaler or failing the whole attempt.
	ReserveStock(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	// AcceptAtWholesaler moves the order to wholesaler_accepted. A direct
	// order arrives here stock_reserved and just flips; a marketplace order
	// arrives credit_approved with no wholesaler, so the acceptance first
	// assigns the winner, books the deferred credit hold and reserves stock
	// at the winner, then flips, all in one transaction. A mismatch with an
	// already assigned wholesaler is rejected.
	AcceptAtWholesaler(ctx context.Context, orderID, wholesalerID uuid.UUID, actor Actor) (*models.Order, error)
	// AcceptAtWholesalerTx is AcceptAtWholesaler inside the caller's
	// transaction, for routing and bidding flows that must flip the order
	// atomically with their own winner write.
	AcceptAtWholesalerTx(ctx context.Context, tx *gorm.DB, orderID, wholesalerID uuid.UUID, actor Actor) (*models.Order, error)
	// StartDelivery moves wholesaler_accepted -> out_for_delivery and mints
	// the delivery token the courier must present at handover.
	StartDelivery(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, string, error)
	// CompleteDelivery moves out_for_delivery -> delivered after verifying
	// the delivery token, deducting the reserved stock. partialQty caps the
	// delivered amount per product; the remainder returns to availability.
	CompleteDelivery(ctx context.Context, orderID uuid.UUID, token string, partialQty map[uuid.UUID]int, actor Actor) (*models.Order, error)

	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error)
	Fail(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error)
	// FailTx is Fail inside the caller's transaction, for routing timeouts
	// and the expiry sweep.
	FailTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error)
	Return(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error)

	// ExpireStale force-fails orders past their expiry that never reached
	// wholesaler acceptance. Returns how many were expired.
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

// Actor identifies who is driving a transition.
type Actor struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EventEmitter queues domain events inside the caller's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateInput is a new order request. WholesalerID is optional: direct
// orders carry it from the start, marketplace orders get one assigned by
// routing or bidding later.
type CreateInput struct {
	RetailerID   uuid.UUID
	WholesalerID *uuid.UUID
	PaymentMode  enums.PaymentMode
	Items        []CreateItem
	ActorID      uuid.UUID
}

// CreateItem is one requested product line.
type CreateItem struct {
	ProductID      uuid.UUID
	Qty            int
	UnitPriceCents int64
}

type service struct {
	repo      Repository
	txRunner  TxRunner
	credit    credit.Service
	inventory inventory.Service
	events    EventEmitter
	ordersCfg config.OrdersConfig
	tokenCfg  config.DeliveryTokenConfig
	logg      *logger.Logger
}

// NewService wires the order service with its collaborators.
func NewService(
	repo Repository,
	txRunner TxRunner,
	creditSvc credit.Service,
	inventorySvc inventory.Service,
	events EventEmitter,
	ordersCfg config.OrdersConfig,
	tokenCfg config.DeliveryTokenConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if txRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if creditSvc == nil {
		return nil, fmt.Errorf("credit service required")
	}
	if inventorySvc == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		repo:      repo,
		txRunner:  txRunner,
		credit:    creditSvc,
		inventory: inventorySvc,
		events:    events,
		ordersCfg: ordersCfg,
		tokenCfg:  tokenCfg,
		logg:      logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.RetailerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer id is required")
	}
	if !input.PaymentMode.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid payment mode")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "at least one item is required")
	}
	if input.WholesalerID != nil && *input.WholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "wholesaler id must not be the zero uuid")
	}

	var total int64
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil || item.Qty <= 0 || item.UnitPriceCents <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation, "each item needs a product id, positive qty and positive unit price")
		}
		total += int64(item.Qty) * item.UnitPriceCents
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	order := &models.Order{
		ID:           uuid.New(),
		RetailerID:   input.RetailerID,
		WholesalerID: input.WholesalerID,
		Status:       enums.OrderStatusCreated,
		PaymentMode:  input.PaymentMode,
		TotalCents:   total,
		ExpiresAt:    time.Now().Add(s.ordersCfg.TTL),
		Items:        items,
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ActorID: input.ActorID, Role: string(enums.ActorRoleRetailer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				RetailerID:  order.RetailerID,
				PaymentMode: order.PaymentMode,
				TotalCents:  order.TotalCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, retailerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	if retailerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer id is required")
	}
	return s.repo.ListByRetailer(ctx, retailerID, params)
}

func (s *service) Transitions(ctx context.Context, orderID uuid.UUID) ([]models.OrderTransition, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListTransitions(ctx, orderID)
}

// sideEffect runs a transition's work inside the transaction. The returned
// map carries extra column updates that must land with the status flip.
type sideEffect func(ctx context.Context, tx *gorm.DB, order *models.Order) (map[string]any, error)

// applyTransition is the one path every status change takes: load, validate
// against the table, run the side effect, flip the status conditionally,
// append the audit row and queue the state-changed event. A lost race on
// the conditional update surfaces as CONFLICT; the transaction rolls the
// side effect back with it.
func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, to enums.OrderStatus, actor Actor, reason string, effect sideEffect) (*models.Order, error) {
	repo := s.repo.WithTx(tx)

	order, err := repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	if err := ValidateTransition(order.Status, to); err != nil {
		return nil, err
	}

	var extra map[string]any
	if effect != nil {
		extra, err = effect(ctx, tx, order)
		if err != nil {
			return nil, err
		}
	}

	ok, err := repo.UpdateStatusConditional(ctx, orderID, order.Status, to, extra)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.New(apperrors.CodeConflict, "order changed concurrently").
			WithDetails(map[string]any{"expected_status": order.Status, "requested_status": to})
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := repo.AppendTransition(ctx, &models.OrderTransition{
		ID:         uuid.New(),
		OrderID:    orderID,
		FromStatus: order.Status,
		ToStatus:   to,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Reason:     reasonPtr,
	}); err != nil {
		return nil, err
	}

	if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &outbox.ActorRef{ActorID: actor.ID, Role: string(actor.Role)},
		Data: payloads.OrderStateChangedEvent{
			OrderID:    orderID,
			RetailerID: order.RetailerID,
			FromStatus: order.Status,
			ToStatus:   to,
			ActorRole:  actor.Role,
			Reason:     reason,
		},
	}); err != nil {
		return nil, err
	}

	order.Status = to
	if wid, ok := extra["wholesaler_id"].(uuid.UUID); ok {
		order.WholesalerID = &wid
	}
	if token, ok := extra["delivery_token"].(string); ok {
		order.DeliveryToken = &token
	}
	return order, nil
}

func (s *service) transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor Actor, reason string, effect sideEffect) (*models.Order, error) {
	var order *models.Order
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.applyTransition(ctx, tx, orderID, to, actor, reason, effect)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ApproveCredit(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusCreditApproved, actor, "",
		func(ctx context.Context, tx *gorm.DB, order *models.Order) (map[string]any, error) {
			if order.PaymentMode == enums.PaymentModeCashOnDelivery {
				// Cash orders carry no credit exposure; nothing to hold.
				return nil, nil
			}
			if order.WholesalerID == nil {
				// Marketplace order: the counterparty is unknown until a
				// wholesaler accepts, so the hold is booked at acceptance.
				return nil, nil
			}
			_, err := s.credit.CheckAndHold(ctx, tx, credit.HoldInput{
				OrderID:      order.ID,
				RetailerID:   order.RetailerID,
				WholesalerID: *order.WholesalerID,
				AmountCents:  order.TotalCents,
				ActorID:      actor.ID,
			})
			return nil, err
		})
}

func (s *service) ReserveStock(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusStockReserved, actor, "",
		func(ctx context.Context, tx *gorm.DB, order *models.Order) (map[string]any, error) {
			if order.WholesalerID == nil {
				return nil, apperrors.New(apperrors.CodeValidation, "order needs an assigned wholesaler before stock reservation")
			}
			items := make([]inventory.ReserveItem, 0, len(order.Items))
			for _, item := range order.Items {
				items = append(items, inventory.ReserveItem{ProductID: item.ProductID, Qty: item.Qty})
			}
			_, err := s.inventory.Reserve(ctx, tx, inventory.ReserveInput{
				OrderID:      order.ID,
				WholesalerID: *order.WholesalerID,
				Items:        items,
			})
			return nil, err
		})
}

func (s *service) AcceptAtWholesaler(ctx context.Context, orderID, wholesalerID uuid.UUID, actor Actor) (*models.Order, error) {
	var order *models.Order
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.AcceptAtWholesalerTx(ctx, tx, orderID, wholesalerID, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) AcceptAtWholesalerTx(ctx context.Context, tx *gorm.DB, orderID, wholesalerID uuid.UUID, actor Actor) (*models.Order, error) {
	if wholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "wholesaler id is required")
	}

	current, err := s.repo.WithTx(tx).GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}

	// A marketplace win lands on a credit_approved order with no wholesaler.
	// The winner write happens here: assign, book the deferred hold, reserve
	// stock, then accept. Either step failing rolls the whole claim back.
	if current.Status == enums.OrderStatusCreditApproved && current.WholesalerID == nil {
		if _, err := s.applyTransition(ctx, tx, orderID, enums.OrderStatusStockReserved, actor, "", s.claimForWholesaler(wholesalerID, actor)); err != nil {
			return nil, err
		}
	}

	return s.applyTransition(ctx, tx, orderID, enums.OrderStatusWholesalerAccepted, actor, "",
		func(ctx context.Context, tx *gorm.DB, order *models.Order) (map[string]any, error) {
			if order.WholesalerID == nil {
				return map[string]any{"wholesaler_id": wholesalerID}, nil
			}
			if *order.WholesalerID != wholesalerID {
				return nil, apperrors.New(apperrors.CodeConflict, "order is assigned to another wholesaler").
					WithDetails(map[string]any{"assigned_wholesaler_id": *order.WholesalerID})
			}
			return nil, nil
		})
}

// claimForWholesaler binds an unassigned order to the accepting wholesaler:
// credit orders get their hold booked against the winner, and every item is
// reserved from the winner's stock.
func (s *service) claimForWholesaler(wholesalerID uuid.UUID, actor Actor) sideEffect {
	return func(ctx context.Context, tx *gorm.DB, order *models.Order) (map[string]any, error) {
		if order.PaymentMode == enums.PaymentModeCredit {
			if _, err := s.credit.CheckAndHold(ctx, tx, credit.HoldInput{
				OrderID:      order.ID,
				RetailerID:   order.RetailerID,
				WholesalerID: wholesalerID,
				AmountCents:  order.TotalCents,
				ActorID:      actor.ID,
			}); err != nil {
				return nil, err
			}
		}
		items := make([]inventory.ReserveItem, 0, len(order.Items))
		for _, item := range order.Items {
			items = append(items, inventory.ReserveItem{ProductID: item.ProductID, Qty: item.Qty})
		}
		if _, err := s.inventory.Reserve(ctx, tx, inventory.ReserveInput{
			OrderID:      order.ID,
			WholesalerID: wholesalerID,
			Items:        items,
		}); err != nil {
			return nil, err
		}
		return map[string]any{"wholesaler_id": wholesalerID}, nil
	}
}

func (s *service) StartDelivery(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, string, error) {
	var token string
	order, err := s.transition(ctx, orderID, enums.OrderStatusOutForDelivery, actor, "",
		func(ctx context.Context, tx *gorm.DB, order *models.Order) (map[string]any, error) {
			if order.WholesalerID == nil {
				return nil, apperrors.New(apperrors.CodeValidation, "order has no assigned wholesaler")
			}
			minted, err := deliverytoken.Mint(s.tokenCfg, time.Now(), order.ID, *order.WholesalerID)
			if err != nil {
				return nil, err
			}
			token = minted
			return map[string]any{"delivery_token": minted}, nil
		})
	if err != nil {
		return nil, "", err
	}
	return order, token, nil
}

func (s *service) CompleteDelivery(ctx context.Context, orderID uuid.UUID, token string, partialQty map[uuid.UUID]int, actor Actor) (*models.Order, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "delivery token is required")
	}
	return s.transition(ctx, orderID, enums.OrderStatusDelivered, actor, "",
		func(ctx context.Context, tx *gorm.DB, order *models.Order) (map[string]any, error) {
			claims, err := deliverytoken.Parse(s.tokenCfg, token)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeUnauthorized, err, "invalid delivery token")
			}
			if claims.OrderID != order.ID {
				return nil, apperrors.New(apperrors.CodeUnauthorized, "delivery token was issued for another order")
			}
			if order.WholesalerID == nil || claims.WholesalerID != *order.WholesalerID {
				return nil, apperrors.New(apperrors.CodeUnauthorized, "delivery token wholesaler mismatch")
			}
			_, err = s.inventory.DeductByOrder(ctx, tx, order.ID, actor.ID, partialQty)
			return nil, err
		})
}

// releaseEverything is the shared side effect for cancel and fail: active
// stock holds go back to the pool and any credit hold is reversed. Both
// operations are no-ops when nothing was held, so the effect is safe from
// any pre-terminal status.
func (s *service) releaseEverything(actor Actor, reason string) sideEffect {
	return func(ctx context.Context, tx *gorm.DB, order *models.Order) (map[string]any, error) {
		if _, err := s.inventory.ReleaseByOrder(ctx, tx, order.ID, actor.ID, reason); err != nil {
			return nil, err
		}
		_, err := s.credit.ReverseHold(ctx, tx, credit.ReverseHoldInput{
			OrderID: order.ID,
			ActorID: actor.ID,
			Reason:  reason,
		})
		return nil, err
	}
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusCancelled, actor, reason, s.releaseEverything(actor, reason))
}

func (s *service) Fail(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error) {
	var order *models.Order
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.FailTx(ctx, tx, orderID, actor, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) FailTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error) {
	return s.applyTransition(ctx, tx, orderID, enums.OrderStatusFailed, actor, reason, s.releaseEverything(actor, reason))
}

func (s *service) Return(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "return reason is required")
	}
	// The debit booked at approval stands: returned goods settle through an
	// explicit payment or adjustment, not an automatic reversal.
	return s.transition(ctx, orderID, enums.OrderStatusReturned, actor, reason, nil)
}

func (s *service) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	stale, err := s.repo.FindExpired(ctx, []enums.OrderStatus{
		enums.OrderStatusCreated,
		enums.OrderStatusCreditApproved,
		enums.OrderStatusStockReserved,
	}, now, limit)
	if err != nil {
		return 0, err
	}

	actor := Actor{ID: uuid.Nil, Role: enums.ActorRoleSystem}
	expired := 0
	for _, order := range stale {
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			if _, err := s.applyTransition(ctx, tx, order.ID, enums.OrderStatusFailed, actor, "order expired", s.releaseEverything(actor, "order expired")); err != nil {
				return err
			}
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderExpiredEvent{
					OrderID:    order.ID,
					RetailerID: order.RetailerID,
					ExpiredAt:  now,
				},
			})
		})
		if err != nil {
			// A transition raced by someone else is fine; the order moved on.
			if apperrors.IsCode(err, apperrors.CodeConflict) || apperrors.IsCode(err, apperrors.CodeInvalidTransition) || apperrors.IsCode(err, apperrors.CodeTerminalState) {
				continue
			}
			if s.logg != nil {
				s.logg.Error(ctx, "expiring order failed", err)
			}
			continue
		}
		expired++
	}
	return expired, nil
}
