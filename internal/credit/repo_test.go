package credit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	"github.com/mateovidal/surtido-backend/pkg/pagination"
)

func setupCreditTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	creditAccounts := `
CREATE TABLE IF NOT EXISTS credit_accounts (
  id TEXT PRIMARY KEY,
  retailer_id TEXT NOT NULL,
  wholesaler_id TEXT NOT NULL,
  limit_cents INTEGER NOT NULL,
  terms_days INTEGER NOT NULL DEFAULT 30,
  active INTEGER NOT NULL DEFAULT 1,
  block_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (retailer_id, wholesaler_id)
);`
	ledgerEntries := `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  retailer_id TEXT NOT NULL,
  wholesaler_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  order_id TEXT,
  due_date DATETIME,
  created_by TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(creditAccounts).Error)
	require.NoError(t, db.Exec(ledgerEntries).Error)
	return db
}

func seedEntry(t *testing.T, db *gorm.DB, retailerID, wholesalerID uuid.UUID, entryType enums.LedgerEntryType, amount int64, orderID *uuid.UUID, createdAt time.Time) *models.LedgerEntry {
	t.Helper()

	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		RetailerID:   retailerID,
		WholesalerID: wholesalerID,
		Type:         entryType,
		AmountCents:  amount,
		OrderID:      orderID,
		CreatedBy:    uuid.New(),
		CreatedAt:    createdAt,
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func TestSumBalance_SignConventions(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)

	retailerID := uuid.New()
	wholesalerID := uuid.New()
	now := time.Now()

	// debit +50000, payment -20000, reversal -10000, adjustment -5000
	seedEntry(t, db, retailerID, wholesalerID, enums.LedgerEntryTypeDebit, 50_000, nil, now)
	seedEntry(t, db, retailerID, wholesalerID, enums.LedgerEntryTypeCredit, 20_000, nil, now)
	seedEntry(t, db, retailerID, wholesalerID, enums.LedgerEntryTypeReversal, 10_000, nil, now)
	seedEntry(t, db, retailerID, wholesalerID, enums.LedgerEntryTypeAdjustment, -5_000, nil, now)

	// entries for another pair must not bleed in
	seedEntry(t, db, uuid.New(), wholesalerID, enums.LedgerEntryTypeDebit, 99_000, nil, now)

	balance, err := repo.SumBalance(context.Background(), retailerID, wholesalerID)
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), balance)
}

func TestSumBalance_EmptyLedgerIsZero(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)

	balance, err := repo.SumBalance(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestFindEntryByOrder(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)

	retailerID := uuid.New()
	wholesalerID := uuid.New()
	orderID := uuid.New()

	hold := seedEntry(t, db, retailerID, wholesalerID, enums.LedgerEntryTypeDebit, 30_000, &orderID, time.Now())

	found, err := repo.FindEntryByOrder(context.Background(), orderID, enums.LedgerEntryTypeDebit)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, hold.ID, found.ID)

	missing, err := repo.FindEntryByOrder(context.Background(), orderID, enums.LedgerEntryTypeReversal)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListEntries_PaginatesNewestFirst(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)

	retailerID := uuid.New()
	wholesalerID := uuid.New()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		seedEntry(t, db, retailerID, wholesalerID, enums.LedgerEntryTypeDebit, int64(1000*(i+1)), nil, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := repo.ListEntries(context.Background(), retailerID, wholesalerID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	// limit+1 buffer row included for next-page detection
	require.Len(t, page, 3)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID})
	next, err := repo.ListEntries(context.Background(), retailerID, wholesalerID, pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.NotEmpty(t, next)
	assert.True(t, next[0].CreatedAt.Before(page[1].CreatedAt))
}

func TestAccountRoundTrip(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	retailerID := uuid.New()
	wholesalerID := uuid.New()

	missing, err := repo.GetAccount(ctx, retailerID, wholesalerID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	account := &models.CreditAccount{
		ID:           uuid.New(),
		RetailerID:   retailerID,
		WholesalerID: wholesalerID,
		LimitCents:   150_000,
		TermsDays:    45,
		Active:       true,
	}
	require.NoError(t, repo.SaveAccount(ctx, account))

	found, err := repo.GetAccount(ctx, retailerID, wholesalerID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(150_000), found.LimitCents)
	assert.Equal(t, 45, found.TermsDays)
}
