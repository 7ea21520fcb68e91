package routing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// Repository manages routing rounds and candidate responses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, routing *models.OrderRouting) error
	GetByID(ctx context.Context, routingID uuid.UUID) (*models.OrderRouting, error)
	// GetOpenByOrder returns the order's unresolved routing round, if any.
	GetOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderRouting, error)

	// ClaimWinner writes the winner column only while it is still NULL.
	// Exactly one caller per routing ever sees true.
	ClaimWinner(ctx context.Context, routingID, wholesalerID uuid.UUID, at time.Time) (bool, error)
	// ResolveNoWinner closes a still-pending round that nobody won.
	ResolveNoWinner(ctx context.Context, routingID uuid.UUID, at time.Time) (bool, error)

	GetCandidate(ctx context.Context, routingID, wholesalerID uuid.UUID) (*models.RoutingCandidate, error)
	// UpdateCandidateResponse flips a candidate's response only from the
	// expected current value.
	UpdateCandidateResponse(ctx context.Context, routingID, wholesalerID uuid.UUID, from, to enums.CandidateResponse, at time.Time) (bool, error)
	CountPendingCandidates(ctx context.Context, routingID uuid.UUID) (int64, error)

	// FindStale returns unresolved routings whose response window closed
	// before the given time.
	FindStale(ctx context.Context, before time.Time, limit int) ([]models.OrderRouting, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a routing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, routing *models.OrderRouting) error {
	return r.db.WithContext(ctx).Create(routing).Error
}

func (r *repository) GetByID(ctx context.Context, routingID uuid.UUID) (*models.OrderRouting, error) {
	var routing models.OrderRouting
	err := r.db.WithContext(ctx).
		Preload("Candidates").
		Where("id = ?", routingID).
		First(&routing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &routing, nil
}

func (r *repository) GetOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderRouting, error) {
	var routing models.OrderRouting
	err := r.db.WithContext(ctx).
		Preload("Candidates").
		Where("order_id = ? AND status = ?", orderID, enums.RoutingStatusPendingResponses).
		First(&routing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &routing, nil
}

func (r *repository) ClaimWinner(ctx context.Context, routingID, wholesalerID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderRouting{}).
		Where("id = ? AND winner_wholesaler_id IS NULL", routingID).
		Updates(map[string]any{
			"winner_wholesaler_id": wholesalerID,
			"status":               enums.RoutingStatusVendorAccepted,
			"resolved_at":          at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ResolveNoWinner(ctx context.Context, routingID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderRouting{}).
		Where("id = ? AND status = ? AND winner_wholesaler_id IS NULL", routingID, enums.RoutingStatusPendingResponses).
		Updates(map[string]any{
			"status":      enums.RoutingStatusNoWinner,
			"resolved_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) GetCandidate(ctx context.Context, routingID, wholesalerID uuid.UUID) (*models.RoutingCandidate, error) {
	var candidate models.RoutingCandidate
	err := r.db.WithContext(ctx).
		Where("routing_id = ? AND wholesaler_id = ?", routingID, wholesalerID).
		First(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &candidate, nil
}

func (r *repository) UpdateCandidateResponse(ctx context.Context, routingID, wholesalerID uuid.UUID, from, to enums.CandidateResponse, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RoutingCandidate{}).
		Where("routing_id = ? AND wholesaler_id = ? AND response = ?", routingID, wholesalerID, from).
		Updates(map[string]any{
			"response":     to,
			"responded_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CountPendingCandidates(ctx context.Context, routingID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RoutingCandidate{}).
		Where("routing_id = ? AND response = ?", routingID, enums.CandidateResponsePending).
		Count(&count).Error
	return count, err
}

func (r *repository) FindStale(ctx context.Context, before time.Time, limit int) ([]models.OrderRouting, error) {
	var routings []models.OrderRouting
	err := r.db.WithContext(ctx).
		Where("status = ? AND response_deadline < ?", enums.RoutingStatusPendingResponses, before).
		Order("response_deadline ASC").
		Limit(limit).
		Find(&routings).Error
	return routings, err
}
