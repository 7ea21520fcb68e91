package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/internal/orders"
	"github.com/mateovidal/surtido-backend/pkg/config"
	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	apperrors "github.com/mateovidal/surtido-backend/pkg/errors"
	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/outbox"
	"github.com/mateovidal/surtido-backend/pkg/outbox/payloads"
)

// maxReliability caps the wholesaler rating scale.
var maxReliability = decimal.NewFromInt(5)

// Service collects competitive wholesaler offers on open orders and selects
// a winner by score.
type Service interface {
	// IngestOffer records or refreshes a wholesaler's bid. Re-submitting
	// overwrites the previous bid for the same order; the score is computed
	// here and never trusted from the caller.
	IngestOffer(ctx context.Context, input IngestInput) (*models.VendorOffer, error)
	// ListOffers returns an order's offers ranked best-first.
	ListOffers(ctx context.Context, orderID uuid.UUID) ([]models.VendorOffer, error)
	// AutoSelect accepts the highest-scoring pending offer, rejects the
	// rest, and assigns the winning wholesaler to the order, all in one
	// transaction.
	AutoSelect(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.VendorOffer, error)
}

// EventEmitter queues domain events inside the caller's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// IngestInput is one wholesaler bid on an open order.
type IngestInput struct {
	OrderID        uuid.UUID
	WholesalerID   uuid.UUID
	PriceCents     int64
	EtaHours       int
	StockConfirmed bool
	// Reliability is the wholesaler's service rating from 0 to 5.
	Reliability decimal.Decimal
}

type service struct {
	repo     Repository
	txRunner orders.TxRunner
	orders   orders.Service
	events   EventEmitter
	cfg      config.BiddingConfig
	logg     *logger.Logger
}

// NewService wires the bidding service with its collaborators.
func NewService(
	repo Repository,
	txRunner orders.TxRunner,
	orderSvc orders.Service,
	events EventEmitter,
	cfg config.BiddingConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bidding repository required")
	}
	if txRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		repo:     repo,
		txRunner: txRunner,
		orders:   orderSvc,
		events:   events,
		cfg:      cfg,
		logg:     logg,
	}, nil
}

func (s *service) IngestOffer(ctx context.Context, input IngestInput) (*models.VendorOffer, error) {
	if input.OrderID == uuid.Nil || input.WholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order and wholesaler ids are required")
	}
	if input.PriceCents <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "price must be positive")
	}
	if input.EtaHours < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "eta must be non-negative")
	}
	if input.Reliability.IsNegative() || input.Reliability.GreaterThan(maxReliability) {
		return nil, apperrors.New(apperrors.CodeValidation, "reliability must be between 0 and 5")
	}

	order, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusCreditApproved || order.WholesalerID != nil {
		return nil, apperrors.New(apperrors.CodeInvalidTransition, "order is not open for offers").
			WithDetails(map[string]any{"current_status": order.Status})
	}
	if time.Now().After(order.ExpiresAt) {
		return nil, apperrors.New(apperrors.CodeConflict, "order has expired")
	}

	offer := &models.VendorOffer{
		ID:             uuid.New(),
		OrderID:        input.OrderID,
		WholesalerID:   input.WholesalerID,
		PriceCents:     input.PriceCents,
		EtaHours:       input.EtaHours,
		StockConfirmed: input.StockConfirmed,
		Score:          ComputeScore(s.cfg, input.PriceCents, input.EtaHours, input.Reliability),
		Status:         enums.OfferStatusPending,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Upsert(ctx, offer); err != nil {
			return err
		}
		// The upsert may have kept the original row's id.
		stored, err := repo.GetByOrderAndWholesaler(ctx, input.OrderID, input.WholesalerID)
		if err != nil {
			return err
		}
		if stored != nil {
			offer = stored
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferIngested,
			AggregateType: enums.AggregateVendorOffer,
			AggregateID:   offer.ID,
			Data: payloads.OfferIngestedEvent{
				OfferID:      offer.ID,
				OrderID:      offer.OrderID,
				WholesalerID: offer.WholesalerID,
				Score:        offer.Score.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *service) ListOffers(ctx context.Context, orderID uuid.UUID) ([]models.VendorOffer, error) {
	if orderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *service) AutoSelect(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.VendorOffer, error) {
	if orderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}

	var winner *models.VendorOffer
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		top, err := repo.TopPending(ctx, orderID)
		if err != nil {
			return err
		}
		if top == nil {
			return apperrors.New(apperrors.CodeNotFound, "no pending offers for this order")
		}

		ok, err := repo.UpdateStatusConditional(ctx, top.ID, enums.OfferStatusPending, enums.OfferStatusAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.New(apperrors.CodeConflict, "offer changed concurrently")
		}

		if _, err := repo.RejectOtherPending(ctx, orderID, top.ID); err != nil {
			return err
		}

		if _, err := s.orders.AcceptAtWholesalerTx(ctx, tx, orderID, top.WholesalerID, actor); err != nil {
			return err
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferWinnerSelected,
			AggregateType: enums.AggregateVendorOffer,
			AggregateID:   top.ID,
			Actor:         &outbox.ActorRef{ActorID: actor.ID, Role: string(actor.Role)},
			Data: payloads.OfferWinnerSelectedEvent{
				OfferID:      top.ID,
				OrderID:      orderID,
				WholesalerID: top.WholesalerID,
				Score:        top.Score.String(),
			},
		}); err != nil {
			return err
		}

		top.Status = enums.OfferStatusAccepted
		winner = top
		return nil
	})
	if err != nil {
		return nil, err
	}
	return winner, nil
}
