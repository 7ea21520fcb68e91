package bids

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mateovidal/surtido-backend/api/middleware"
	"github.com/mateovidal/surtido-backend/api/responses"
	"github.com/mateovidal/surtido-backend/api/validators"
	internalbidding "github.com/mateovidal/surtido-backend/internal/bidding"
	internalorders "github.com/mateovidal/surtido-backend/internal/orders"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	pkgerrors "github.com/mateovidal/surtido-backend/pkg/errors"
	"github.com/mateovidal/surtido-backend/pkg/logger"
)

type ingestBidRequest struct {
	PriceCents     int64  `json:"price_cents" validate:"required,gt=0"`
	EtaHours       int    `json:"eta_hours" validate:"required,gt=0"`
	StockConfirmed bool   `json:"stock_confirmed"`
	Reliability    string `json:"reliability" validate:"required"`
}

// Ingest records the calling wholesaler's bid on an open order.
func Ingest(svc internalbidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding service unavailable"))
			return
		}

		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role != enums.ActorRoleWholesaler {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only wholesalers submit bids"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload ingestBidRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reliability, err := decimal.NewFromString(payload.Reliability)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reliability"))
			return
		}

		offer, err := svc.IngestOffer(r.Context(), internalbidding.IngestInput{
			OrderID:        orderID,
			WholesalerID:   actor.ID,
			PriceCents:     payload.PriceCents,
			EtaHours:       payload.EtaHours,
			StockConfirmed: payload.StockConfirmed,
			Reliability:    reliability,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

// List returns an order's offers ranked best-first.
func List(svc internalbidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offers, err := svc.ListOffers(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offers)
	}
}

// AutoSelect accepts the best pending offer and assigns its wholesaler.
func AutoSelect(svc internalbidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding service unavailable"))
			return
		}

		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		winner, err := svc.AutoSelect(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, winner)
	}
}

func actorFromContext(r *http.Request) (internalorders.Actor, error) {
	actorID := middleware.ActorIDFromContext(r.Context())
	if actorID == uuid.Nil {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	role, ok := middleware.ActorRoleFromContext(r.Context())
	if !ok {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing")
	}
	return internalorders.Actor{ID: actorID, Role: role}, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
