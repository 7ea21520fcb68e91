package credit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/api/middleware"
	"github.com/mateovidal/surtido-backend/api/responses"
	"github.com/mateovidal/surtido-backend/api/validators"
	internalcredit "github.com/mateovidal/surtido-backend/internal/credit"
	pkgerrors "github.com/mateovidal/surtido-backend/pkg/errors"
	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/pagination"
)

// Balance reports the derived position of one credit line.
func Balance(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		retailerID, wholesalerID, err := parseAccountPair(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), retailerID, wholesalerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// Check answers whether a hold of the given amount would fit, without
// booking anything.
func Check(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		retailerID, wholesalerID, err := parseAccountPair(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmountCents(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := svc.CheckLimit(r.Context(), retailerID, wholesalerID, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}

// Statement pages one credit line's ledger newest first.
func Statement(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		retailerID, wholesalerID, err := parseAccountPair(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		entries, err := svc.Statement(r.Context(), retailerID, wholesalerID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

type paymentRequest struct {
	RetailerID   string `json:"retailer_id" validate:"required,uuid4"`
	WholesalerID string `json:"wholesaler_id" validate:"required,uuid4"`
	AmountCents  int64  `json:"amount_cents" validate:"required,gt=0"`
	OrderID      string `json:"order_id,omitempty" validate:"omitempty,uuid4"`
}

// RecordPayment books money received from a retailer against a line.
func RecordPayment(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		actorID := middleware.ActorIDFromContext(r.Context())
		if actorID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
			return
		}

		var payload paymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		retailerID, wholesalerID, err := parsePairStrings(payload.RetailerID, payload.WholesalerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalcredit.PaymentInput{
			RetailerID:   retailerID,
			WholesalerID: wholesalerID,
			AmountCents:  payload.AmountCents,
			ActorID:      actorID,
		}
		if payload.OrderID != "" {
			orderID, err := uuid.Parse(payload.OrderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_id"))
				return
			}
			input.OrderID = &orderID
		}

		entry, err := svc.RecordPayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

type adjustmentRequest struct {
	RetailerID   string `json:"retailer_id" validate:"required,uuid4"`
	WholesalerID string `json:"wholesaler_id" validate:"required,uuid4"`
	AmountCents  int64  `json:"amount_cents" validate:"required"`
}

// RecordAdjustment books a signed admin correction on a line.
func RecordAdjustment(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		actorID := middleware.ActorIDFromContext(r.Context())
		if actorID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
			return
		}

		var payload adjustmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		retailerID, wholesalerID, err := parsePairStrings(payload.RetailerID, payload.WholesalerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.RecordAdjustment(r.Context(), internalcredit.AdjustmentInput{
			RetailerID:   retailerID,
			WholesalerID: wholesalerID,
			AmountCents:  payload.AmountCents,
			ActorID:      actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

type upsertAccountRequest struct {
	RetailerID   string `json:"retailer_id" validate:"required,uuid4"`
	WholesalerID string `json:"wholesaler_id" validate:"required,uuid4"`
	LimitCents   int64  `json:"limit_cents" validate:"required,gt=0"`
	TermsDays    int    `json:"terms_days" validate:"required,gt=0"`
}

// UpsertAccount creates or updates a pair's credit terms.
func UpsertAccount(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		var payload upsertAccountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		retailerID, wholesalerID, err := parsePairStrings(payload.RetailerID, payload.WholesalerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.UpsertAccount(r.Context(), internalcredit.UpsertAccountInput{
			RetailerID:   retailerID,
			WholesalerID: wholesalerID,
			LimitCents:   payload.LimitCents,
			TermsDays:    payload.TermsDays,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

type blockAccountRequest struct {
	RetailerID   string `json:"retailer_id" validate:"required,uuid4"`
	WholesalerID string `json:"wholesaler_id" validate:"required,uuid4"`
	Reason       string `json:"reason" validate:"required,max=500"`
}

// BlockAccount deactivates a credit line so new holds are refused.
func BlockAccount(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		var payload blockAccountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		retailerID, wholesalerID, err := parsePairStrings(payload.RetailerID, payload.WholesalerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.BlockAccount(r.Context(), retailerID, wholesalerID, payload.Reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"blocked": true})
	}
}

func parseAccountPair(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	return parsePairStrings(
		r.URL.Query().Get("retailer_id"),
		r.URL.Query().Get("wholesaler_id"),
	)
}

func parsePairStrings(rawRetailer, rawWholesaler string) (uuid.UUID, uuid.UUID, error) {
	retailerID, err := uuid.Parse(strings.TrimSpace(rawRetailer))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid retailer_id")
	}
	wholesalerID, err := uuid.Parse(strings.TrimSpace(rawWholesaler))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wholesaler_id")
	}
	return retailerID, wholesalerID, nil
}

func parseAmountCents(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("amount_cents"))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount_cents is required")
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount_cents")
	}
	if amount <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount_cents must be positive")
	}
	return amount, nil
}
