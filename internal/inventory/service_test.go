package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/pkg/enums"
	apperrors "github.com/mateovidal/surtido-backend/pkg/errors"
	"github.com/mateovidal/surtido-backend/pkg/outbox"
)

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newTestService(t *testing.T, db *gorm.DB, emitter *fakeEmitter) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), emitter, nil)
	require.NoError(t, err)
	return svc
}

func TestReserve_AllItemsHeld(t *testing.T) {
	db := setupInventoryTestDB(t)
	emitter := &fakeEmitter{}
	svc := newTestService(t, db, emitter)
	ctx := context.Background()

	wholesalerID := uuid.New()
	productA := uuid.New()
	productB := uuid.New()
	seedStock(t, db, wholesalerID, productA, 10, 10, 0)
	seedStock(t, db, wholesalerID, productB, 5, 5, 0)

	orderID := uuid.New()
	var created int
	err := db.Transaction(func(tx *gorm.DB) error {
		rows, err := svc.Reserve(ctx, tx, ReserveInput{
			OrderID:      orderID,
			WholesalerID: wholesalerID,
			Items: []ReserveItem{
				{ProductID: productA, Qty: 4},
				{ProductID: productB, Qty: 5},
			},
		})
		if err != nil {
			return err
		}
		created = len(rows)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	levelA := fetchStock(t, db, wholesalerID, productA)
	assert.Equal(t, 6, levelA.AvailableQty)
	assert.Equal(t, 4, levelA.ReservedQty)

	levelB := fetchStock(t, db, wholesalerID, productB)
	assert.Equal(t, 0, levelB.AvailableQty)
	assert.Equal(t, 5, levelB.ReservedQty)
}

func TestReserve_PartialShortageRollsBackEverything(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newTestService(t, db, &fakeEmitter{})
	ctx := context.Background()

	wholesalerID := uuid.New()
	productA := uuid.New()
	productB := uuid.New()
	seedStock(t, db, wholesalerID, productA, 10, 10, 0)
	seedStock(t, db, wholesalerID, productB, 2, 2, 0)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Reserve(ctx, tx, ReserveInput{
			OrderID:      uuid.New(),
			WholesalerID: wholesalerID,
			Items: []ReserveItem{
				{ProductID: productA, Qty: 4},
				{ProductID: productB, Qty: 3},
			},
		})
		return err
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInsufficientStock))

	// the first item's hold must have been rolled back with the tx
	levelA := fetchStock(t, db, wholesalerID, productA)
	assert.Equal(t, 10, levelA.AvailableQty)
	assert.Equal(t, 0, levelA.ReservedQty)

	var count int64
	require.NoError(t, db.Table("stock_reservations").Count(&count).Error)
	assert.Zero(t, count)
}

func TestReleaseByOrder_ReturnsActiveHolds(t *testing.T) {
	db := setupInventoryTestDB(t)
	emitter := &fakeEmitter{}
	svc := newTestService(t, db, emitter)
	ctx := context.Background()

	wholesalerID := uuid.New()
	productID := uuid.New()
	seedStock(t, db, wholesalerID, productID, 10, 10, 0)

	orderID := uuid.New()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Reserve(ctx, tx, ReserveInput{
			OrderID:      orderID,
			WholesalerID: wholesalerID,
			Items:        []ReserveItem{{ProductID: productID, Qty: 6}},
		})
		return err
	}))

	var released int
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		released, err = svc.ReleaseByOrder(ctx, tx, orderID, uuid.New(), "order cancelled")
		return err
	}))
	assert.Equal(t, 1, released)

	level := fetchStock(t, db, wholesalerID, productID)
	assert.Equal(t, 10, level.AvailableQty)
	assert.Equal(t, 0, level.ReservedQty)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, enums.EventReservationReleased, emitter.events[0].EventType)

	// second release is a no-op
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		released, err = svc.ReleaseByOrder(ctx, tx, orderID, uuid.New(), "retry")
		return err
	}))
	assert.Zero(t, released)
	assert.Len(t, emitter.events, 1)
}

func TestDeductByOrder_FulfillsHolds(t *testing.T) {
	db := setupInventoryTestDB(t)
	emitter := &fakeEmitter{}
	svc := newTestService(t, db, emitter)
	ctx := context.Background()

	wholesalerID := uuid.New()
	productID := uuid.New()
	seedStock(t, db, wholesalerID, productID, 10, 10, 0)

	orderID := uuid.New()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Reserve(ctx, tx, ReserveInput{
			OrderID:      orderID,
			WholesalerID: wholesalerID,
			Items:        []ReserveItem{{ProductID: productID, Qty: 6}},
		})
		return err
	}))

	var deducted int
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		deducted, err = svc.DeductByOrder(ctx, tx, orderID, uuid.New(), nil)
		return err
	}))
	assert.Equal(t, 1, deducted)

	level := fetchStock(t, db, wholesalerID, productID)
	assert.Equal(t, 4, level.PhysicalQty)
	assert.Equal(t, 4, level.AvailableQty)
	assert.Equal(t, 0, level.ReservedQty)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, enums.EventStockDeducted, emitter.events[0].EventType)

	// a release after fulfillment must not touch the counts
	var released int
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		released, err = svc.ReleaseByOrder(ctx, tx, orderID, uuid.New(), "late cancel")
		return err
	}))
	assert.Zero(t, released)
}

func TestDeductByOrder_PartialReturnsRemainder(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newTestService(t, db, &fakeEmitter{})
	ctx := context.Background()

	wholesalerID := uuid.New()
	productID := uuid.New()
	seedStock(t, db, wholesalerID, productID, 10, 10, 0)

	orderID := uuid.New()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Reserve(ctx, tx, ReserveInput{
			OrderID:      orderID,
			WholesalerID: wholesalerID,
			Items:        []ReserveItem{{ProductID: productID, Qty: 6}},
		})
		return err
	}))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.DeductByOrder(ctx, tx, orderID, uuid.New(), map[uuid.UUID]int{productID: 4})
		return err
	}))

	// 4 delivered, 2 back to available
	level := fetchStock(t, db, wholesalerID, productID)
	assert.Equal(t, 6, level.PhysicalQty)
	assert.Equal(t, 6, level.AvailableQty)
	assert.Equal(t, 0, level.ReservedQty)
}

func TestCheckAvailability_ReportsShortProducts(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newTestService(t, db, &fakeEmitter{})
	ctx := context.Background()

	wholesalerID := uuid.New()
	inStock := uuid.New()
	short := uuid.New()
	seedStock(t, db, wholesalerID, inStock, 10, 10, 0)
	seedStock(t, db, wholesalerID, short, 2, 2, 0)

	ok, missing, err := svc.CheckAvailability(ctx, wholesalerID, []ReserveItem{
		{ProductID: inStock, Qty: 5},
		{ProductID: short, Qty: 3},
	})
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, missing, 1)
	assert.Equal(t, short, missing[0])
}

func TestSetStockLevel_ValidatesPartition(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newTestService(t, db, &fakeEmitter{})

	_, err := svc.SetStockLevel(context.Background(), SetStockLevelInput{
		WholesalerID: uuid.New(),
		ProductID:    uuid.New(),
		PhysicalQty:  5,
		AvailableQty: 4,
		ReservedQty:  2,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}
