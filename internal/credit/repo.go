package credit

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	"github.com/mateovidal/surtido-backend/pkg/pagination"
)

// Repository manages credit accounts and the append-only ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetAccount(ctx context.Context, retailerID, wholesalerID uuid.UUID) (*models.CreditAccount, error)
	// GetAccountForUpdate locks the account row so concurrent holds against
	// the same credit line serialize on it.
	GetAccountForUpdate(ctx context.Context, retailerID, wholesalerID uuid.UUID) (*models.CreditAccount, error)
	SaveAccount(ctx context.Context, account *models.CreditAccount) error

	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error
	SumBalance(ctx context.Context, retailerID, wholesalerID uuid.UUID) (int64, error)
	FindEntryByOrder(ctx context.Context, orderID uuid.UUID, entryType enums.LedgerEntryType) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, retailerID, wholesalerID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetAccount(ctx context.Context, retailerID, wholesalerID uuid.UUID) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := r.db.WithContext(ctx).
		Where("retailer_id = ? AND wholesaler_id = ?", retailerID, wholesalerID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) GetAccountForUpdate(ctx context.Context, retailerID, wholesalerID uuid.UUID) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("retailer_id = ? AND wholesaler_id = ?", retailerID, wholesalerID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) SaveAccount(ctx context.Context, account *models.CreditAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// SumBalance derives the outstanding balance for a pair by summation.
// Debits add, payments and reversals subtract, adjustments carry their sign.
func (r *repository) SumBalance(ctx context.Context, retailerID, wholesalerID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select(`COALESCE(SUM(CASE
			WHEN type = 'debit' THEN amount_cents
			WHEN type IN ('credit', 'reversal') THEN -amount_cents
			ELSE amount_cents
		END), 0)`).
		Where("retailer_id = ? AND wholesaler_id = ?", retailerID, wholesalerID).
		Scan(&balance).Error
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *repository) FindEntryByOrder(ctx context.Context, orderID uuid.UUID, entryType enums.LedgerEntryType) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ?", orderID, entryType).
		Order("created_at ASC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListEntries(ctx context.Context, retailerID, wholesalerID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).
		Where("retailer_id = ? AND wholesaler_id = ?", retailerID, wholesalerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.LedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
