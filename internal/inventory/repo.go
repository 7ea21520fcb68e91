package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
)

// Repository manages stock levels and reservations. All quantity moves are
// single-statement conditional updates; the guard in the WHERE clause is what
// keeps concurrent orders from over-reserving, never a prior read.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetStockLevel(ctx context.Context, wholesalerID, productID uuid.UUID) (*models.StockLevel, error)
	UpsertStockLevel(ctx context.Context, level *models.StockLevel) error

	// ReserveStock moves qty from available to reserved if and only if enough
	// is available. Returns false without error when the guard fails.
	ReserveStock(ctx context.Context, wholesalerID, productID uuid.UUID, qty int) (bool, error)
	// ReleaseStock moves qty back from reserved to available.
	ReleaseStock(ctx context.Context, wholesalerID, productID uuid.UUID, qty int) (bool, error)
	// DeductStock removes qty from both reserved and physical at fulfillment.
	DeductStock(ctx context.Context, wholesalerID, productID uuid.UUID, qty int) (bool, error)

	CreateReservation(ctx context.Context, reservation *models.StockReservation) error
	ListReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
	// TransitionReservation flips status only from the expected current value,
	// so a release racing a fulfillment settles on exactly one outcome.
	TransitionReservation(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, fulfilledQty int) (bool, error)

	ListReservationsByProduct(ctx context.Context, wholesalerID, productID uuid.UUID) ([]models.StockReservation, error)
	FindNegativeStock(ctx context.Context) ([]models.StockLevel, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetStockLevel(ctx context.Context, wholesalerID, productID uuid.UUID) (*models.StockLevel, error) {
	var level models.StockLevel
	err := r.db.WithContext(ctx).
		Where("wholesaler_id = ? AND product_id = ?", wholesalerID, productID).
		First(&level).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &level, nil
}

func (r *repository) UpsertStockLevel(ctx context.Context, level *models.StockLevel) error {
	return r.db.WithContext(ctx).Save(level).Error
}

func (r *repository) ReserveStock(ctx context.Context, wholesalerID, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE stock_levels
		 SET available_qty = available_qty - ?, reserved_qty = reserved_qty + ?, updated_at = ?
		 WHERE wholesaler_id = ? AND product_id = ? AND available_qty >= ?`,
		qty, qty, time.Now(), wholesalerID, productID, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ReleaseStock(ctx context.Context, wholesalerID, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE stock_levels
		 SET available_qty = available_qty + ?, reserved_qty = reserved_qty - ?, updated_at = ?
		 WHERE wholesaler_id = ? AND product_id = ? AND reserved_qty >= ?`,
		qty, qty, time.Now(), wholesalerID, productID, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) DeductStock(ctx context.Context, wholesalerID, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE stock_levels
		 SET reserved_qty = reserved_qty - ?, physical_qty = physical_qty - ?, updated_at = ?
		 WHERE wholesaler_id = ? AND product_id = ? AND reserved_qty >= ?`,
		qty, qty, time.Now(), wholesalerID, productID, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.StockReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) ListReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) TransitionReservation(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, fulfilledQty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":        to,
			"fulfilled_qty": fulfilledQty,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListReservationsByProduct(ctx context.Context, wholesalerID, productID uuid.UUID) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("wholesaler_id = ? AND product_id = ?", wholesalerID, productID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// FindNegativeStock returns rows breaking the stock accounting: a negative
// counter, or available plus reserved exceeding the physical count.
func (r *repository) FindNegativeStock(ctx context.Context) ([]models.StockLevel, error) {
	var rows []models.StockLevel
	err := r.db.WithContext(ctx).
		Where("available_qty < 0 OR reserved_qty < 0 OR physical_qty < 0 OR available_qty + reserved_qty > physical_qty").
		Find(&rows).Error
	return rows, err
}
