package bidding

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// Repository manages competitive vendor offers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// Upsert inserts the offer or, when the wholesaler already bid on the
	// order, overwrites the bid in place. Re-submission is idempotent.
	Upsert(ctx context.Context, offer *models.VendorOffer) error
	GetByOrderAndWholesaler(ctx context.Context, orderID, wholesalerID uuid.UUID) (*models.VendorOffer, error)
	// ListByOrder returns the order's offers ranked best-first.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.VendorOffer, error)
	// TopPending returns the highest-scoring offer still pending, or nil.
	TopPending(ctx context.Context, orderID uuid.UUID) (*models.VendorOffer, error)

	// UpdateStatusConditional flips an offer's status only from the expected
	// current value.
	UpdateStatusConditional(ctx context.Context, offerID uuid.UUID, from, to enums.OfferStatus) (bool, error)
	// RejectOtherPending closes every pending offer on the order except the
	// winner. Returns how many were rejected.
	RejectOtherPending(ctx context.Context, orderID, winnerOfferID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an offer repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Upsert(ctx context.Context, offer *models.VendorOffer) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}, {Name: "wholesaler_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"price_cents", "eta_hours", "stock_confirmed", "score", "updated_at",
			}),
		}).
		Create(offer).Error
}

func (r *repository) GetByOrderAndWholesaler(ctx context.Context, orderID, wholesalerID uuid.UUID) (*models.VendorOffer, error) {
	var offer models.VendorOffer
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND wholesaler_id = ?", orderID, wholesalerID).
		First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.VendorOffer, error) {
	var offers []models.VendorOffer
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("score DESC").
		Order("created_at ASC").
		Find(&offers).Error
	return offers, err
}

func (r *repository) TopPending(ctx context.Context, orderID uuid.UUID) (*models.VendorOffer, error) {
	var offer models.VendorOffer
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.OfferStatusPending).
		Order("score DESC").
		Order("created_at ASC").
		First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

func (r *repository) UpdateStatusConditional(ctx context.Context, offerID uuid.UUID, from, to enums.OfferStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VendorOffer{}).
		Where("id = ? AND status = ?", offerID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RejectOtherPending(ctx context.Context, orderID, winnerOfferID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VendorOffer{}).
		Where("order_id = ? AND id <> ? AND status = ?", orderID, winnerOfferID, enums.OfferStatusPending).
		Update("status", enums.OfferStatusRejected)
	return res.RowsAffected, res.Error
}
