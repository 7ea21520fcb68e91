package credit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	apperrors "github.com/mateovidal/surtido-backend/pkg/errors"
	"github.com/mateovidal/surtido-backend/pkg/outbox"
	"github.com/mateovidal/surtido-backend/pkg/pagination"
)

type fakeRepository struct {
	account       *models.CreditAccount
	balance       int64
	entriesByType map[enums.LedgerEntryType]*models.LedgerEntry
	created       []*models.LedgerEntry
	saved         []*models.CreditAccount
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) GetAccount(ctx context.Context, retailerID, wholesalerID uuid.UUID) (*models.CreditAccount, error) {
	return f.account, nil
}

func (f *fakeRepository) GetAccountForUpdate(ctx context.Context, retailerID, wholesalerID uuid.UUID) (*models.CreditAccount, error) {
	return f.account, nil
}

func (f *fakeRepository) SaveAccount(ctx context.Context, account *models.CreditAccount) error {
	f.saved = append(f.saved, account)
	return nil
}

func (f *fakeRepository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	f.created = append(f.created, entry)
	return nil
}

func (f *fakeRepository) SumBalance(ctx context.Context, retailerID, wholesalerID uuid.UUID) (int64, error) {
	return f.balance, nil
}

func (f *fakeRepository) FindEntryByOrder(ctx context.Context, orderID uuid.UUID, entryType enums.LedgerEntryType) (*models.LedgerEntry, error) {
	if f.entriesByType == nil {
		return nil, nil
	}
	return f.entriesByType[entryType], nil
}

func (f *fakeRepository) ListEntries(ctx context.Context, retailerID, wholesalerID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, error) {
	return nil, nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func activeAccount(limitCents int64) *models.CreditAccount {
	return &models.CreditAccount{
		ID:           uuid.New(),
		RetailerID:   uuid.New(),
		WholesalerID: uuid.New(),
		LimitCents:   limitCents,
		TermsDays:    30,
		Active:       true,
	}
}

func TestCheckAndHold_PlacesDebitWithinLimit(t *testing.T) {
	repo := &fakeRepository{account: activeAccount(100_000), balance: 40_000}
	emitter := &fakeEmitter{}
	svc, err := NewService(repo, emitter, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	orderID := uuid.New()
	entry, err := svc.CheckAndHold(context.Background(), &gorm.DB{}, HoldInput{
		OrderID:      orderID,
		RetailerID:   repo.account.RetailerID,
		WholesalerID: repo.account.WholesalerID,
		AmountCents:  60_000,
		ActorID:      uuid.New(),
	})
	if err != nil {
		t.Fatalf("CheckAndHold: %v", err)
	}
	if entry.Type != enums.LedgerEntryTypeDebit {
		t.Fatalf("expected debit entry, got %s", entry.Type)
	}
	if entry.AmountCents != 60_000 {
		t.Fatalf("unexpected amount %d", entry.AmountCents)
	}
	if entry.OrderID == nil || *entry.OrderID != orderID {
		t.Fatal("hold entry must reference the order")
	}
	if entry.DueDate == nil {
		t.Fatal("hold entry must carry a due date from the account terms")
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventCreditHoldPlaced {
		t.Fatalf("expected credit_hold_placed event, got %+v", emitter.events)
	}
}

func TestCheckAndHold_RejectsOverLimit(t *testing.T) {
	repo := &fakeRepository{account: activeAccount(100_000), balance: 40_001}
	svc, _ := NewService(repo, &fakeEmitter{}, nil)

	_, err := svc.CheckAndHold(context.Background(), &gorm.DB{}, HoldInput{
		OrderID:      uuid.New(),
		RetailerID:   repo.account.RetailerID,
		WholesalerID: repo.account.WholesalerID,
		AmountCents:  60_000,
		ActorID:      uuid.New(),
	})
	if !apperrors.IsCode(err, apperrors.CodeInsufficientCredit) {
		t.Fatalf("expected INSUFFICIENT_CREDIT, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("no entry should be written when the limit is exceeded")
	}
}

func TestCheckAndHold_ExactLimitBoundary(t *testing.T) {
	repo := &fakeRepository{account: activeAccount(100_000), balance: 40_000}
	svc, _ := NewService(repo, &fakeEmitter{}, nil)

	// balance + amount == limit must pass
	_, err := svc.CheckAndHold(context.Background(), &gorm.DB{}, HoldInput{
		OrderID:      uuid.New(),
		RetailerID:   repo.account.RetailerID,
		WholesalerID: repo.account.WholesalerID,
		AmountCents:  60_000,
		ActorID:      uuid.New(),
	})
	if err != nil {
		t.Fatalf("hold at exactly the limit should succeed: %v", err)
	}
}

func TestCheckAndHold_BlockedAccount(t *testing.T) {
	account := activeAccount(100_000)
	account.Active = false
	repo := &fakeRepository{account: account}
	svc, _ := NewService(repo, &fakeEmitter{}, nil)

	_, err := svc.CheckAndHold(context.Background(), &gorm.DB{}, HoldInput{
		OrderID:      uuid.New(),
		RetailerID:   account.RetailerID,
		WholesalerID: account.WholesalerID,
		AmountCents:  1_000,
		ActorID:      uuid.New(),
	})
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for blocked account, got %v", err)
	}
}

func TestCheckAndHold_MissingAccount(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo, &fakeEmitter{}, nil)

	_, err := svc.CheckAndHold(context.Background(), &gorm.DB{}, HoldInput{
		OrderID:      uuid.New(),
		RetailerID:   uuid.New(),
		WholesalerID: uuid.New(),
		AmountCents:  1_000,
		ActorID:      uuid.New(),
	})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestReverseHold_WritesReversalOnce(t *testing.T) {
	orderID := uuid.New()
	hold := &models.LedgerEntry{
		ID:           uuid.New(),
		RetailerID:   uuid.New(),
		WholesalerID: uuid.New(),
		Type:         enums.LedgerEntryTypeDebit,
		AmountCents:  25_000,
		OrderID:      &orderID,
	}
	repo := &fakeRepository{
		entriesByType: map[enums.LedgerEntryType]*models.LedgerEntry{
			enums.LedgerEntryTypeDebit: hold,
		},
	}
	emitter := &fakeEmitter{}
	svc, _ := NewService(repo, emitter, nil)

	entry, err := svc.ReverseHold(context.Background(), &gorm.DB{}, ReverseHoldInput{
		OrderID: orderID,
		ActorID: uuid.New(),
		Reason:  "order cancelled",
	})
	if err != nil {
		t.Fatalf("ReverseHold: %v", err)
	}
	if entry.Type != enums.LedgerEntryTypeReversal {
		t.Fatalf("expected reversal entry, got %s", entry.Type)
	}
	if entry.AmountCents != hold.AmountCents {
		t.Fatalf("reversal must mirror the hold amount, got %d", entry.AmountCents)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventCreditHoldReversed {
		t.Fatalf("expected credit_hold_reversed event, got %+v", emitter.events)
	}
}

func TestReverseHold_IdempotentWhenReversalExists(t *testing.T) {
	orderID := uuid.New()
	hold := &models.LedgerEntry{ID: uuid.New(), Type: enums.LedgerEntryTypeDebit, AmountCents: 25_000, OrderID: &orderID}
	reversal := &models.LedgerEntry{ID: uuid.New(), Type: enums.LedgerEntryTypeReversal, AmountCents: 25_000, OrderID: &orderID}
	repo := &fakeRepository{
		entriesByType: map[enums.LedgerEntryType]*models.LedgerEntry{
			enums.LedgerEntryTypeDebit:    hold,
			enums.LedgerEntryTypeReversal: reversal,
		},
	}
	emitter := &fakeEmitter{}
	svc, _ := NewService(repo, emitter, nil)

	entry, err := svc.ReverseHold(context.Background(), &gorm.DB{}, ReverseHoldInput{OrderID: orderID, ActorID: uuid.New()})
	if err != nil {
		t.Fatalf("ReverseHold: %v", err)
	}
	if entry.ID != reversal.ID {
		t.Fatal("expected the existing reversal to be returned")
	}
	if len(repo.created) != 0 {
		t.Fatal("no duplicate reversal should be written")
	}
	if len(emitter.events) != 0 {
		t.Fatal("no event should be emitted for an already-reversed hold")
	}
}

func TestReverseHold_NoHoldIsNoop(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo, &fakeEmitter{}, nil)

	entry, err := svc.ReverseHold(context.Background(), &gorm.DB{}, ReverseHoldInput{OrderID: uuid.New(), ActorID: uuid.New()})
	if err != nil {
		t.Fatalf("ReverseHold: %v", err)
	}
	if entry != nil {
		t.Fatal("expected nil entry when no hold exists")
	}
}

func TestRecordAdjustment_RejectsZeroAmount(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo, &fakeEmitter{}, nil)

	_, err := svc.RecordAdjustment(context.Background(), AdjustmentInput{
		RetailerID:   uuid.New(),
		WholesalerID: uuid.New(),
		AmountCents:  0,
		ActorID:      uuid.New(),
	})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBalance_ReportsAvailableHeadroom(t *testing.T) {
	repo := &fakeRepository{account: activeAccount(200_000), balance: 75_000}
	svc, _ := NewService(repo, &fakeEmitter{}, nil)

	result, err := svc.Balance(context.Background(), repo.account.RetailerID, repo.account.WholesalerID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if result.BalanceCents != 75_000 {
		t.Fatalf("unexpected balance %d", result.BalanceCents)
	}
	if result.AvailableCents != 125_000 {
		t.Fatalf("unexpected available %d", result.AvailableCents)
	}
}
