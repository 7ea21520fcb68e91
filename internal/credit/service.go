package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	apperrors "github.com/mateovidal/surtido-backend/pkg/errors"
	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/outbox"
	"github.com/mateovidal/surtido-backend/pkg/outbox/payloads"
	"github.com/mateovidal/surtido-backend/pkg/pagination"
)

// Service exposes credit line management and limit-enforced holds.
type Service interface {
	// CheckAndHold books a debit against the retailer's credit line inside
	// the caller's transaction. It fails with INSUFFICIENT_CREDIT when the
	// outstanding balance plus the requested amount would exceed the limit.
	CheckAndHold(ctx context.Context, tx *gorm.DB, input HoldInput) (*models.LedgerEntry, error)
	// ReverseHold releases an order's hold with a reversal entry. Calling it
	// again for the same order is a no-op.
	ReverseHold(ctx context.Context, tx *gorm.DB, input ReverseHoldInput) (*models.LedgerEntry, error)
	// CheckLimit answers whether a hold of the given amount would fit, without
	// booking anything. The authoritative check happens again inside
	// CheckAndHold under the row lock.
	CheckLimit(ctx context.Context, retailerID, wholesalerID uuid.UUID, amountCents int64) (*LimitDecision, error)
	RecordPayment(ctx context.Context, input PaymentInput) (*models.LedgerEntry, error)
	RecordAdjustment(ctx context.Context, input AdjustmentInput) (*models.LedgerEntry, error)
	Balance(ctx context.Context, retailerID, wholesalerID uuid.UUID) (*BalanceResult, error)
	Statement(ctx context.Context, retailerID, wholesalerID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, error)
	UpsertAccount(ctx context.Context, input UpsertAccountInput) (*models.CreditAccount, error)
	BlockAccount(ctx context.Context, retailerID, wholesalerID uuid.UUID, reason string) error
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

// HoldInput carries the data needed to place a hold for an order.
type HoldInput struct {
	OrderID      uuid.UUID
	RetailerID   uuid.UUID
	WholesalerID uuid.UUID
	AmountCents  int64
	ActorID      uuid.UUID
}

// ReverseHoldInput identifies the hold to release.
type ReverseHoldInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Reason  string
}

// PaymentInput records money received from a retailer.
type PaymentInput struct {
	RetailerID   uuid.UUID
	WholesalerID uuid.UUID
	AmountCents  int64
	OrderID      *uuid.UUID
	ActorID      uuid.UUID
}

// AdjustmentInput records a signed admin correction.
type AdjustmentInput struct {
	RetailerID   uuid.UUID
	WholesalerID uuid.UUID
	AmountCents  int64
	ActorID      uuid.UUID
}

// UpsertAccountInput creates or updates a pair's credit terms.
type UpsertAccountInput struct {
	RetailerID   uuid.UUID
	WholesalerID uuid.UUID
	LimitCents   int64
	TermsDays    int
}

// LimitDecision is the outcome of a non-binding limit check.
type LimitDecision struct {
	Approved       bool   `json:"approved"`
	LimitCents     int64  `json:"limit_cents"`
	BalanceCents   int64  `json:"balance_cents"`
	ShortfallCents int64  `json:"shortfall_cents"`
	Reason         string `json:"reason,omitempty"`
}

// BalanceResult reports the derived position of a credit line.
type BalanceResult struct {
	RetailerID     uuid.UUID `json:"retailer_id"`
	WholesalerID   uuid.UUID `json:"wholesaler_id"`
	LimitCents     int64     `json:"limit_cents"`
	BalanceCents   int64     `json:"balance_cents"`
	AvailableCents int64     `json:"available_cents"`
	Active         bool      `json:"active"`
}

// NewService wires a credit service with the provided repository.
func NewService(repo Repository, events EventEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("credit repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{repo: repo, events: events, logg: logg}, nil
}

func (s *service) CheckAndHold(ctx context.Context, tx *gorm.DB, input HoldInput) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}
	if input.RetailerID == uuid.Nil || input.WholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer and wholesaler ids are required")
	}
	if input.AmountCents <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "hold amount must be positive")
	}

	repo := s.repo.WithTx(tx)

	account, err := repo.GetAccountForUpdate(ctx, input.RetailerID, input.WholesalerID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no credit account for this retailer and wholesaler")
	}
	if !account.Active {
		return nil, apperrors.New(apperrors.CodeForbidden, "credit account is blocked").
			WithDetails(map[string]any{"block_reason": account.BlockReason})
	}

	// The account row is locked, so the balance cannot move under us.
	balance, err := repo.SumBalance(ctx, input.RetailerID, input.WholesalerID)
	if err != nil {
		return nil, err
	}
	if balance+input.AmountCents > account.LimitCents {
		return nil, apperrors.New(apperrors.CodeInsufficientCredit, "credit limit exceeded").
			WithDetails(map[string]any{
				"limit_cents":     account.LimitCents,
				"balance_cents":   balance,
				"requested_cents": input.AmountCents,
			})
	}

	dueDate := time.Now().AddDate(0, 0, account.TermsDays)
	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		RetailerID:   input.RetailerID,
		WholesalerID: input.WholesalerID,
		Type:         enums.LedgerEntryTypeDebit,
		AmountCents:  input.AmountCents,
		OrderID:      &input.OrderID,
		DueDate:      &dueDate,
		CreatedBy:    input.ActorID,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCreditHoldPlaced,
		AggregateType: enums.AggregateLedgerEntry,
		AggregateID:   entry.ID,
		Data: payloads.CreditHoldPlacedEvent{
			EntryID:      entry.ID,
			OrderID:      input.OrderID,
			RetailerID:   input.RetailerID,
			WholesalerID: input.WholesalerID,
			AmountCents:  input.AmountCents,
			DueDate:      dueDate,
		},
	}); err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *service) ReverseHold(ctx context.Context, tx *gorm.DB, input ReverseHoldInput) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}

	repo := s.repo.WithTx(tx)

	hold, err := repo.FindEntryByOrder(ctx, input.OrderID, enums.LedgerEntryTypeDebit)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		// Cash orders never placed a hold; nothing to reverse.
		return nil, nil
	}

	existing, err := repo.FindEntryByOrder(ctx, input.OrderID, enums.LedgerEntryTypeReversal)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		RetailerID:   hold.RetailerID,
		WholesalerID: hold.WholesalerID,
		Type:         enums.LedgerEntryTypeReversal,
		AmountCents:  hold.AmountCents,
		OrderID:      &input.OrderID,
		CreatedBy:    input.ActorID,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCreditHoldReversed,
		AggregateType: enums.AggregateLedgerEntry,
		AggregateID:   entry.ID,
		Data: payloads.CreditHoldReversedEvent{
			EntryID:     entry.ID,
			OrderID:     input.OrderID,
			RetailerID:  hold.RetailerID,
			AmountCents: hold.AmountCents,
			Reason:      input.Reason,
		},
	}); err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *service) CheckLimit(ctx context.Context, retailerID, wholesalerID uuid.UUID, amountCents int64) (*LimitDecision, error) {
	if retailerID == uuid.Nil || wholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer and wholesaler ids are required")
	}
	if amountCents <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}

	account, err := s.repo.GetAccount(ctx, retailerID, wholesalerID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no credit account for this retailer and wholesaler")
	}

	balance, err := s.repo.SumBalance(ctx, retailerID, wholesalerID)
	if err != nil {
		return nil, err
	}

	decision := &LimitDecision{
		LimitCents:   account.LimitCents,
		BalanceCents: balance,
	}
	if !account.Active {
		decision.Reason = "account blocked"
		if account.BlockReason != nil {
			decision.Reason = *account.BlockReason
		}
		return decision, nil
	}
	if balance+amountCents > account.LimitCents {
		decision.ShortfallCents = balance + amountCents - account.LimitCents
		decision.Reason = "credit limit exceeded"
		return decision, nil
	}
	decision.Approved = true
	return decision, nil
}

func (s *service) RecordPayment(ctx context.Context, input PaymentInput) (*models.LedgerEntry, error) {
	if input.RetailerID == uuid.Nil || input.WholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer and wholesaler ids are required")
	}
	if input.AmountCents <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "payment amount must be positive")
	}

	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		RetailerID:   input.RetailerID,
		WholesalerID: input.WholesalerID,
		Type:         enums.LedgerEntryTypeCredit,
		AmountCents:  input.AmountCents,
		OrderID:      input.OrderID,
		CreatedBy:    input.ActorID,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) RecordAdjustment(ctx context.Context, input AdjustmentInput) (*models.LedgerEntry, error) {
	if input.RetailerID == uuid.Nil || input.WholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer and wholesaler ids are required")
	}
	if input.AmountCents == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "adjustment amount must be non-zero")
	}

	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		RetailerID:   input.RetailerID,
		WholesalerID: input.WholesalerID,
		Type:         enums.LedgerEntryTypeAdjustment,
		AmountCents:  input.AmountCents,
		CreatedBy:    input.ActorID,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Balance(ctx context.Context, retailerID, wholesalerID uuid.UUID) (*BalanceResult, error) {
	account, err := s.repo.GetAccount(ctx, retailerID, wholesalerID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no credit account for this retailer and wholesaler")
	}

	balance, err := s.repo.SumBalance(ctx, retailerID, wholesalerID)
	if err != nil {
		return nil, err
	}

	return &BalanceResult{
		RetailerID:     retailerID,
		WholesalerID:   wholesalerID,
		LimitCents:     account.LimitCents,
		BalanceCents:   balance,
		AvailableCents: account.LimitCents - balance,
		Active:         account.Active,
	}, nil
}

func (s *service) Statement(ctx context.Context, retailerID, wholesalerID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, error) {
	if retailerID == uuid.Nil || wholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer and wholesaler ids are required")
	}
	return s.repo.ListEntries(ctx, retailerID, wholesalerID, params)
}

func (s *service) UpsertAccount(ctx context.Context, input UpsertAccountInput) (*models.CreditAccount, error) {
	if input.RetailerID == uuid.Nil || input.WholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer and wholesaler ids are required")
	}
	if input.LimitCents < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "credit limit must be non-negative")
	}
	if input.TermsDays <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "terms days must be positive")
	}

	account, err := s.repo.GetAccount(ctx, input.RetailerID, input.WholesalerID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &models.CreditAccount{
			ID:           uuid.New(),
			RetailerID:   input.RetailerID,
			WholesalerID: input.WholesalerID,
			Active:       true,
		}
	}
	account.LimitCents = input.LimitCents
	account.TermsDays = input.TermsDays

	if err := s.repo.SaveAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *service) BlockAccount(ctx context.Context, retailerID, wholesalerID uuid.UUID, reason string) error {
	account, err := s.repo.GetAccount(ctx, retailerID, wholesalerID)
	if err != nil {
		return err
	}
	if account == nil {
		return apperrors.New(apperrors.CodeNotFound, "no credit account for this retailer and wholesaler")
	}
	account.Active = false
	if reason != "" {
		account.BlockReason = &reason
	}
	return s.repo.SaveAccount(ctx, account)
}
