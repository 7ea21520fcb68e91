package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	apperrors "github.com/mateovidal/surtido-backend/pkg/errors"
	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/outbox"
	"github.com/mateovidal/surtido-backend/pkg/outbox/payloads"
)

// Service exposes stock reservation and fulfillment operations.
type Service interface {
	// Reserve places holds for every item of an order. It must run inside the
	// caller's transaction: the first item that cannot be covered aborts with
	// INSUFFICIENT_STOCK and the rollback undoes the partial holds.
	Reserve(ctx context.Context, tx *gorm.DB, input ReserveInput) ([]models.StockReservation, error)
	// ReleaseByOrder returns all active holds of an order to the available
	// pool. Already released or fulfilled holds are skipped.
	ReleaseByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID uuid.UUID, reason string) (int, error)
	// DeductByOrder converts the order's active holds into physical deductions
	// at delivery. partialQty, keyed by product, caps the deducted amount for
	// that product; the undelivered remainder returns to the available pool.
	DeductByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID uuid.UUID, partialQty map[uuid.UUID]int) (int, error)

	SetStockLevel(ctx context.Context, input SetStockLevelInput) (*models.StockLevel, error)
	GetStockLevel(ctx context.Context, wholesalerID, productID uuid.UUID) (*models.StockLevel, error)
	// CheckAvailability reports whether every requested item could be held
	// right now. Advisory only; Reserve re-checks under its guards.
	CheckAvailability(ctx context.Context, wholesalerID uuid.UUID, items []ReserveItem) (bool, []uuid.UUID, error)
	AuditTrail(ctx context.Context, wholesalerID, productID uuid.UUID) ([]models.StockReservation, error)
	// DetectNegativeStock reports stock rows with broken accounting: a
	// negative counter, or more committed than physically held. A non-empty
	// result means a write path has a bug.
	DetectNegativeStock(ctx context.Context) ([]models.StockLevel, error)
}

// EventEmitter queues domain events inside the caller's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo   Repository
	events EventEmitter
	logg   *logger.Logger
}

// ReserveItem is one product line to hold.
type ReserveItem struct {
	ProductID uuid.UUID
	Qty       int
}

// ReserveInput covers all items of one order against one wholesaler.
type ReserveInput struct {
	OrderID      uuid.UUID
	WholesalerID uuid.UUID
	Items        []ReserveItem
}

// SetStockLevelInput replaces the counts for a wholesaler-product pair.
type SetStockLevelInput struct {
	WholesalerID uuid.UUID
	ProductID    uuid.UUID
	PhysicalQty  int
	AvailableQty int
	ReservedQty  int
}

// NewService wires an inventory service with the provided repository.
func NewService(repo Repository, events EventEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{repo: repo, events: events, logg: logg}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, input ReserveInput) ([]models.StockReservation, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.OrderID == uuid.Nil || input.WholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order and wholesaler ids are required")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "at least one item is required")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil || item.Qty <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation, "each item needs a product id and positive qty")
		}
	}

	repo := s.repo.WithTx(tx)
	reservations := make([]models.StockReservation, 0, len(input.Items))

	for _, item := range input.Items {
		ok, err := repo.ReserveStock(ctx, input.WholesalerID, item.ProductID, item.Qty)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperrors.New(apperrors.CodeInsufficientStock, "not enough available stock").
				WithDetails(map[string]any{
					"product_id":    item.ProductID,
					"requested_qty": item.Qty,
				})
		}

		reservation := models.StockReservation{
			ID:           uuid.New(),
			WholesalerID: input.WholesalerID,
			ProductID:    item.ProductID,
			OrderID:      input.OrderID,
			Qty:          item.Qty,
			Status:       enums.ReservationStatusActive,
		}
		if err := repo.CreateReservation(ctx, &reservation); err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}

	return reservations, nil
}

func (s *service) ReleaseByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID uuid.UUID, reason string) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction required")
	}
	if orderID == uuid.Nil {
		return 0, apperrors.New(apperrors.CodeValidation, "order id is required")
	}

	repo := s.repo.WithTx(tx)
	reservations, err := repo.ListReservationsByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, reservation := range reservations {
		if reservation.Status != enums.ReservationStatusActive {
			continue
		}
		moved, err := repo.TransitionReservation(ctx, reservation.ID, enums.ReservationStatusActive, enums.ReservationStatusReleased, 0)
		if err != nil {
			return released, err
		}
		if !moved {
			// Another path settled this reservation first.
			continue
		}
		ok, err := repo.ReleaseStock(ctx, reservation.WholesalerID, reservation.ProductID, reservation.Qty)
		if err != nil {
			return released, err
		}
		if !ok {
			return released, apperrors.New(apperrors.CodeInternal, "reserved quantity below reservation qty").
				WithDetails(map[string]any{"reservation_id": reservation.ID})
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationReleased,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Data: payloads.ReservationReleasedEvent{
				ReservationID: reservation.ID,
				OrderID:       orderID,
				WholesalerID:  reservation.WholesalerID,
				ProductID:     reservation.ProductID,
				Qty:           reservation.Qty,
			},
		}); err != nil {
			return released, err
		}
		released++
	}

	return released, nil
}

func (s *service) DeductByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID uuid.UUID, partialQty map[uuid.UUID]int) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction required")
	}
	if orderID == uuid.Nil {
		return 0, apperrors.New(apperrors.CodeValidation, "order id is required")
	}
	for productID, qty := range partialQty {
		if qty < 0 {
			return 0, apperrors.New(apperrors.CodeValidation, "partial quantity must be non-negative").
				WithDetails(map[string]any{"product_id": productID})
		}
	}

	repo := s.repo.WithTx(tx)
	reservations, err := repo.ListReservationsByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}

	deducted := 0
	for _, reservation := range reservations {
		if reservation.Status != enums.ReservationStatusActive {
			continue
		}

		fulfillQty := reservation.Qty
		if partial, ok := partialQty[reservation.ProductID]; ok && partial < fulfillQty {
			fulfillQty = partial
		}

		moved, err := repo.TransitionReservation(ctx, reservation.ID, enums.ReservationStatusActive, enums.ReservationStatusFulfilled, fulfillQty)
		if err != nil {
			return deducted, err
		}
		if !moved {
			continue
		}

		if fulfillQty > 0 {
			ok, err := repo.DeductStock(ctx, reservation.WholesalerID, reservation.ProductID, fulfillQty)
			if err != nil {
				return deducted, err
			}
			if !ok {
				return deducted, apperrors.New(apperrors.CodeInternal, "reserved quantity below reservation qty").
					WithDetails(map[string]any{"reservation_id": reservation.ID})
			}
		}

		// The undelivered remainder of the hold goes back to available.
		if remainder := reservation.Qty - fulfillQty; remainder > 0 {
			ok, err := repo.ReleaseStock(ctx, reservation.WholesalerID, reservation.ProductID, remainder)
			if err != nil {
				return deducted, err
			}
			if !ok {
				return deducted, apperrors.New(apperrors.CodeInternal, "reserved quantity below reservation qty").
					WithDetails(map[string]any{"reservation_id": reservation.ID})
			}
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockDeducted,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Data: payloads.StockDeductedEvent{
				ReservationID: reservation.ID,
				OrderID:       orderID,
				WholesalerID:  reservation.WholesalerID,
				ProductID:     reservation.ProductID,
				Qty:           fulfillQty,
			},
		}); err != nil {
			return deducted, err
		}
		deducted++
	}

	return deducted, nil
}

func (s *service) CheckAvailability(ctx context.Context, wholesalerID uuid.UUID, items []ReserveItem) (bool, []uuid.UUID, error) {
	if wholesalerID == uuid.Nil {
		return false, nil, apperrors.New(apperrors.CodeValidation, "wholesaler id is required")
	}
	if len(items) == 0 {
		return false, nil, apperrors.New(apperrors.CodeValidation, "at least one item is required")
	}

	var short []uuid.UUID
	for _, item := range items {
		level, err := s.repo.GetStockLevel(ctx, wholesalerID, item.ProductID)
		if err != nil {
			return false, nil, err
		}
		if level == nil || level.AvailableQty < item.Qty {
			short = append(short, item.ProductID)
		}
	}
	return len(short) == 0, short, nil
}

func (s *service) AuditTrail(ctx context.Context, wholesalerID, productID uuid.UUID) ([]models.StockReservation, error) {
	if wholesalerID == uuid.Nil || productID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "wholesaler and product ids are required")
	}
	return s.repo.ListReservationsByProduct(ctx, wholesalerID, productID)
}

func (s *service) SetStockLevel(ctx context.Context, input SetStockLevelInput) (*models.StockLevel, error) {
	if input.WholesalerID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "wholesaler and product ids are required")
	}
	if input.PhysicalQty < 0 || input.AvailableQty < 0 || input.ReservedQty < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantities must be non-negative")
	}
	if input.AvailableQty+input.ReservedQty > input.PhysicalQty {
		return nil, apperrors.New(apperrors.CodeValidation, "available plus reserved cannot exceed physical")
	}

	level := &models.StockLevel{
		WholesalerID: input.WholesalerID,
		ProductID:    input.ProductID,
		PhysicalQty:  input.PhysicalQty,
		AvailableQty: input.AvailableQty,
		ReservedQty:  input.ReservedQty,
	}
	if err := s.repo.UpsertStockLevel(ctx, level); err != nil {
		return nil, err
	}
	return level, nil
}

func (s *service) GetStockLevel(ctx context.Context, wholesalerID, productID uuid.UUID) (*models.StockLevel, error) {
	level, err := s.repo.GetStockLevel(ctx, wholesalerID, productID)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no stock level for this wholesaler and product")
	}
	return level, nil
}

func (s *service) DetectNegativeStock(ctx context.Context) ([]models.StockLevel, error) {
	rows, err := s.repo.FindNegativeStock(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && s.logg != nil {
		s.logg.Error(ctx, "stock audit failed", fmt.Errorf("negative stock detected on %d rows", len(rows)))
	}
	return rows, nil
}
