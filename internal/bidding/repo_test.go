package bidding

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
)

func setupBiddingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	offers := `
CREATE TABLE IF NOT EXISTS vendor_offers (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  wholesaler_id TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  eta_hours INTEGER NOT NULL,
  stock_confirmed INTEGER NOT NULL DEFAULT 0,
  score NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (order_id, wholesaler_id)
);`
	require.NoError(t, db.Exec(offers).Error)
	return db
}

func seedOffer(t *testing.T, db *gorm.DB, orderID, wholesalerID uuid.UUID, score string, status enums.OfferStatus) *models.VendorOffer {
	t.Helper()
	offer := &models.VendorOffer{
		ID:           uuid.New(),
		OrderID:      orderID,
		WholesalerID: wholesalerID,
		PriceCents:   100000,
		EtaHours:     24,
		Score:        decimal.RequireFromString(score),
		Status:       status,
	}
	require.NoError(t, db.Create(offer).Error)
	return offer
}

func TestUpsert_SecondSubmissionOverwrites(t *testing.T) {
	db := setupBiddingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	wholesalerID := uuid.New()

	first := &models.VendorOffer{
		ID: uuid.New(), OrderID: orderID, WholesalerID: wholesalerID,
		PriceCents: 200000, EtaHours: 48,
		Score: decimal.RequireFromString("40.5"), Status: enums.OfferStatusPending,
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &models.VendorOffer{
		ID: uuid.New(), OrderID: orderID, WholesalerID: wholesalerID,
		PriceCents: 150000, EtaHours: 24,
		Score: decimal.RequireFromString("55.25"), Status: enums.OfferStatusPending,
	}
	require.NoError(t, repo.Upsert(ctx, second))

	var count int64
	require.NoError(t, db.Table("vendor_offers").Where("order_id = ?", orderID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored, err := repo.GetByOrderAndWholesaler(ctx, orderID, wholesalerID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, int64(150000), stored.PriceCents)
	assert.Equal(t, 24, stored.EtaHours)
	assert.True(t, stored.Score.Equal(second.Score))
}

func TestListByOrder_RankedBestFirst(t *testing.T) {
	db := setupBiddingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	mid := seedOffer(t, db, orderID, uuid.New(), "50", enums.OfferStatusPending)
	top := seedOffer(t, db, orderID, uuid.New(), "80", enums.OfferStatusPending)
	low := seedOffer(t, db, orderID, uuid.New(), "20", enums.OfferStatusPending)
	seedOffer(t, db, uuid.New(), uuid.New(), "99", enums.OfferStatusPending)

	offers, err := repo.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, offers, 3)
	assert.Equal(t, top.ID, offers[0].ID)
	assert.Equal(t, mid.ID, offers[1].ID)
	assert.Equal(t, low.ID, offers[2].ID)
}

func TestTopPending_SkipsResolvedOffers(t *testing.T) {
	db := setupBiddingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	seedOffer(t, db, orderID, uuid.New(), "90", enums.OfferStatusRejected)
	best := seedOffer(t, db, orderID, uuid.New(), "70", enums.OfferStatusPending)
	seedOffer(t, db, orderID, uuid.New(), "60", enums.OfferStatusPending)

	top, err := repo.TopPending(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, best.ID, top.ID)

	empty, err := repo.TopPending(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestUpdateStatusConditional_FlipsOnce(t *testing.T) {
	db := setupBiddingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	offer := seedOffer(t, db, uuid.New(), uuid.New(), "50", enums.OfferStatusPending)

	ok, err := repo.UpdateStatusConditional(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusAccepted)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatusConditional(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusRejected)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRejectOtherPending_SparesTheWinner(t *testing.T) {
	db := setupBiddingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	winner := seedOffer(t, db, orderID, uuid.New(), "80", enums.OfferStatusAccepted)
	seedOffer(t, db, orderID, uuid.New(), "60", enums.OfferStatusPending)
	seedOffer(t, db, orderID, uuid.New(), "40", enums.OfferStatusPending)

	rejected, err := repo.RejectOtherPending(ctx, orderID, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rejected)

	offers, err := repo.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	for _, offer := range offers {
		if offer.ID == winner.ID {
			assert.Equal(t, enums.OfferStatusAccepted, offer.Status)
			continue
		}
		assert.Equal(t, enums.OfferStatusRejected, offer.Status)
	}
}
