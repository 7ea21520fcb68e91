package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
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

// Service fans orders out to candidate wholesalers and resolves exactly one
// winner per round. Acceptance is first-come-first-served: the winner claim
// is a conditional update on the NULL winner column, so concurrent accepts
// cannot both succeed.
type Service interface {
	// Create opens a routing round for an order awaiting acceptance.
	Create(ctx context.Context, input CreateInput) (*models.OrderRouting, error)
	Get(ctx context.Context, routingID uuid.UUID) (*models.OrderRouting, error)

	// Accept records a wholesaler's acceptance. The first accept wins and
	// drives the order to wholesaler_accepted in the same transaction;
	// losers get ALREADY_ACCEPTED. A winner's retry returns the resolved
	// round again without side effects.
	Accept(ctx context.Context, routingID, wholesalerID uuid.UUID, actor orders.Actor) (*models.OrderRouting, error)
	// Reject records a decline. When the last pending candidate declines
	// the round resolves with no winner and the order fails.
	Reject(ctx context.Context, routingID, wholesalerID uuid.UUID, actor orders.Actor) (*models.OrderRouting, error)

	// SweepExpired times out unresolved rounds whose response window has
	// closed. Returns how many rounds were resolved.
	SweepExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// EventEmitter queues domain events inside the caller's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateInput opens a routing round for an order.
type CreateInput struct {
	OrderID      uuid.UUID
	CandidateIDs []uuid.UUID
	ActorID      uuid.UUID
}

type service struct {
	repo     Repository
	txRunner orders.TxRunner
	orders   orders.Service
	events   EventEmitter
	cfg      config.RoutingConfig
	logg     *logger.Logger
}

// NewService wires the routing service with its collaborators.
func NewService(
	repo Repository,
	txRunner orders.TxRunner,
	orderSvc orders.Service,
	events EventEmitter,
	cfg config.RoutingConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("routing repository required")
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

func (s *service) Create(ctx context.Context, input CreateInput) (*models.OrderRouting, error) {
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}
	if len(input.CandidateIDs) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "at least one candidate is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.CandidateIDs))
	for _, id := range input.CandidateIDs {
		if id == uuid.Nil {
			return nil, apperrors.New(apperrors.CodeValidation, "candidate ids must not be the zero uuid")
		}
		if _, dup := seen[id]; dup {
			return nil, apperrors.New(apperrors.CodeValidation, "candidate ids must be unique")
		}
		seen[id] = struct{}{}
	}

	order, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	// Routing fans a credit_approved order out to candidates; the winner's
	// acceptance assigns the wholesaler and reserves stock.
	if order.Status != enums.OrderStatusCreditApproved {
		return nil, apperrors.New(apperrors.CodeInvalidTransition, "order is not awaiting wholesaler acceptance").
			WithDetails(map[string]any{"current_status": order.Status})
	}
	if order.WholesalerID != nil {
		return nil, apperrors.New(apperrors.CodeConflict, "order already has an assigned wholesaler")
	}

	open, err := s.repo.GetOpenByOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, apperrors.New(apperrors.CodeConflict, "order already has an open routing round").
			WithDetails(map[string]any{"routing_id": open.ID})
	}

	deadline := time.Now().Add(s.cfg.ResponseWindow)
	routing := &models.OrderRouting{
		ID:               uuid.New(),
		OrderID:          input.OrderID,
		Status:           enums.RoutingStatusPendingResponses,
		ResponseDeadline: deadline,
	}
	for _, id := range input.CandidateIDs {
		routing.Candidates = append(routing.Candidates, models.RoutingCandidate{
			ID:           uuid.New(),
			RoutingID:    routing.ID,
			WholesalerID: id,
			Response:     enums.CandidateResponsePending,
		})
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, routing); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoutingCreated,
			AggregateType: enums.AggregateOrderRouting,
			AggregateID:   routing.ID,
			Data: payloads.RoutingCreatedEvent{
				RoutingID:        routing.ID,
				OrderID:          routing.OrderID,
				CandidateIDs:     input.CandidateIDs,
				ResponseDeadline: deadline,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return routing, nil
}

func (s *service) Get(ctx context.Context, routingID uuid.UUID) (*models.OrderRouting, error) {
	routing, err := s.repo.GetByID(ctx, routingID)
	if err != nil {
		return nil, err
	}
	if routing == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "routing not found")
	}
	return routing, nil
}

func (s *service) Accept(ctx context.Context, routingID, wholesalerID uuid.UUID, actor orders.Actor) (*models.OrderRouting, error) {
	if wholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "wholesaler id is required")
	}

	var resolved *models.OrderRouting
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		routing, err := repo.GetByID(ctx, routingID)
		if err != nil {
			return err
		}
		if routing == nil {
			return apperrors.New(apperrors.CodeNotFound, "routing not found")
		}

		candidate, err := repo.GetCandidate(ctx, routingID, wholesalerID)
		if err != nil {
			return err
		}
		if candidate == nil {
			return apperrors.New(apperrors.CodeForbidden, "wholesaler is not a candidate of this routing")
		}

		// A winner's retry is idempotent; anyone else is too late.
		if routing.WinnerWholesalerID != nil {
			if *routing.WinnerWholesalerID == wholesalerID {
				resolved = routing
				return nil
			}
			return apperrors.New(apperrors.CodeAlreadyAccepted, "another wholesaler already accepted this order").
				WithDetails(map[string]any{"winner_wholesaler_id": *routing.WinnerWholesalerID})
		}

		if candidate.Response != enums.CandidateResponsePending {
			return apperrors.New(apperrors.CodeConflict, "candidate response already recorded").
				WithDetails(map[string]any{"response": candidate.Response})
		}
		if time.Now().After(routing.ResponseDeadline) {
			return apperrors.New(apperrors.CodeConflict, "response window has closed")
		}

		now := time.Now()
		won, err := repo.ClaimWinner(ctx, routingID, wholesalerID, now)
		if err != nil {
			return err
		}
		if !won {
			// Lost the race between the read above and the claim.
			current, err := repo.GetByID(ctx, routingID)
			if err != nil {
				return err
			}
			if current != nil && current.WinnerWholesalerID != nil && *current.WinnerWholesalerID == wholesalerID {
				resolved = current
				return nil
			}
			return apperrors.New(apperrors.CodeAlreadyAccepted, "another wholesaler already accepted this order")
		}

		if _, err := repo.UpdateCandidateResponse(ctx, routingID, wholesalerID,
			enums.CandidateResponsePending, enums.CandidateResponseAccepted, now); err != nil {
			return err
		}

		if _, err := s.orders.AcceptAtWholesalerTx(ctx, tx, routing.OrderID, wholesalerID, actor); err != nil {
			return err
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoutingVendorAccepted,
			AggregateType: enums.AggregateOrderRouting,
			AggregateID:   routingID,
			Actor:         &outbox.ActorRef{ActorID: actor.ID, Role: string(actor.Role)},
			Data: payloads.RoutingVendorAcceptedEvent{
				RoutingID:    routingID,
				OrderID:      routing.OrderID,
				WholesalerID: wholesalerID,
				CandidateIDs: candidateWholesalerIDs(routing),
				AcceptedAt:   now,
			},
		}); err != nil {
			return err
		}

		routing.Status = enums.RoutingStatusVendorAccepted
		routing.WinnerWholesalerID = &wholesalerID
		routing.ResolvedAt = &now
		resolved = routing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (s *service) Reject(ctx context.Context, routingID, wholesalerID uuid.UUID, actor orders.Actor) (*models.OrderRouting, error) {
	if wholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "wholesaler id is required")
	}

	var result *models.OrderRouting
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		routing, err := repo.GetByID(ctx, routingID)
		if err != nil {
			return err
		}
		if routing == nil {
			return apperrors.New(apperrors.CodeNotFound, "routing not found")
		}
		candidate, err := repo.GetCandidate(ctx, routingID, wholesalerID)
		if err != nil {
			return err
		}
		if candidate == nil {
			return apperrors.New(apperrors.CodeForbidden, "wholesaler is not a candidate of this routing")
		}

		ok, err := repo.UpdateCandidateResponse(ctx, routingID, wholesalerID,
			enums.CandidateResponsePending, enums.CandidateResponseRejected, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			// Already responded, or the round resolved; rejection is a no-op.
			result = routing
			return nil
		}

		if routing.Status == enums.RoutingStatusPendingResponses {
			if err := s.maybeResolveNoWinner(ctx, tx, routing, actor); err != nil {
				return err
			}
		}

		current, err := repo.GetByID(ctx, routingID)
		if err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// maybeResolveNoWinner closes the round when no pending candidates remain
// and nobody won, failing the order in the same transaction.
func (s *service) maybeResolveNoWinner(ctx context.Context, tx *gorm.DB, routing *models.OrderRouting, actor orders.Actor) error {
	repo := s.repo.WithTx(tx)

	pending, err := repo.CountPendingCandidates(ctx, routing.ID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}

	now := time.Now()
	ok, err := repo.ResolveNoWinner(ctx, routing.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		// A winner got in; nothing left to resolve.
		return nil
	}

	if _, err := s.orders.FailTx(ctx, tx, routing.OrderID, actor, "no wholesaler accepted the order"); err != nil {
		return err
	}

	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRoutingNoWinner,
		AggregateType: enums.AggregateOrderRouting,
		AggregateID:   routing.ID,
		Data: payloads.RoutingNoWinnerEvent{
			RoutingID: routing.ID,
			OrderID:   routing.OrderID,
			ClosedAt:  now,
		},
	})
}

func (s *service) SweepExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	stale, err := s.repo.FindStale(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	actor := orders.Actor{ID: uuid.Nil, Role: enums.ActorRoleSystem}
	resolvedCount := 0
	for _, routing := range stale {
		routing := routing
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			current, err := repo.GetByID(ctx, routing.ID)
			if err != nil {
				return err
			}
			if current == nil || current.Status != enums.RoutingStatusPendingResponses {
				return nil
			}

			for _, candidate := range current.Candidates {
				if candidate.Response != enums.CandidateResponsePending {
					continue
				}
				if _, err := repo.UpdateCandidateResponse(ctx, routing.ID, candidate.WholesalerID,
					enums.CandidateResponsePending, enums.CandidateResponseTimeout, now); err != nil {
					return err
				}
			}

			ok, err := repo.ResolveNoWinner(ctx, routing.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				// A winning accept landed while we were sweeping.
				return nil
			}

			if _, err := s.orders.FailTx(ctx, tx, routing.OrderID, actor, "routing response window expired"); err != nil {
				return err
			}
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRoutingNoWinner,
				AggregateType: enums.AggregateOrderRouting,
				AggregateID:   routing.ID,
				Data: payloads.RoutingNoWinnerEvent{
					RoutingID: routing.ID,
					OrderID:   routing.OrderID,
					ClosedAt:  now,
				},
			}); err != nil {
				return err
			}
			resolvedCount++
			return nil
		})
		if err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "routing sweep failed for round", err)
			}
			continue
		}
	}
	return resolvedCount, nil
}

// candidateWholesalerIDs flattens a round's candidate rows into their
// wholesaler ids, in storage order.
func candidateWholesalerIDs(routing *models.OrderRouting) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(routing.Candidates))
	for _, candidate := range routing.Candidates {
		ids = append(ids, candidate.WholesalerID)
	}
	return ids
}
