package inventory

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/api/responses"
	"github.com/mateovidal/surtido-backend/api/validators"
	internalinventory "github.com/mateovidal/surtido-backend/internal/inventory"
	pkgerrors "github.com/mateovidal/surtido-backend/pkg/errors"
	"github.com/mateovidal/surtido-backend/pkg/logger"
)

type setStockRequest struct {
	WholesalerID string `json:"wholesaler_id" validate:"required,uuid4"`
	ProductID    string `json:"product_id" validate:"required,uuid4"`
	PhysicalQty  int    `json:"physical_qty" validate:"gte=0"`
	AvailableQty int    `json:"available_qty" validate:"gte=0"`
	ReservedQty  int    `json:"reserved_qty" validate:"gte=0"`
}

// SetStock replaces the counts for a wholesaler-product pair.
func SetStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload setStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wholesalerID, productID, err := parsePairStrings(payload.WholesalerID, payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		level, err := svc.SetStockLevel(r.Context(), internalinventory.SetStockLevelInput{
			WholesalerID: wholesalerID,
			ProductID:    productID,
			PhysicalQty:  payload.PhysicalQty,
			AvailableQty: payload.AvailableQty,
			ReservedQty:  payload.ReservedQty,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}

// GetStock returns the counts for a wholesaler-product pair.
func GetStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		wholesalerID, productID, err := parseQueryPair(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		level, err := svc.GetStockLevel(r.Context(), wholesalerID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}

type availabilityItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Qty       int    `json:"qty" validate:"required,gt=0"`
}

type availabilityRequest struct {
	WholesalerID string                    `json:"wholesaler_id" validate:"required,uuid4"`
	Items        []availabilityItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CheckAvailability reports whether every requested item could be held
// right now. Advisory only.
func CheckAvailability(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload availabilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wholesalerID, err := uuid.Parse(payload.WholesalerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wholesaler_id"))
			return
		}

		items := make([]internalinventory.ReserveItem, 0, len(payload.Items))
		for _, item := range payload.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id"))
				return
			}
			items = append(items, internalinventory.ReserveItem{ProductID: productID, Qty: item.Qty})
		}

		available, short, err := svc.CheckAvailability(r.Context(), wholesalerID, items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"available":      available,
			"short_products": short,
		})
	}
}

// AuditTrail returns the reservation history of a wholesaler-product pair.
func AuditTrail(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		wholesalerID, productID, err := parseQueryPair(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		trail, err := svc.AuditTrail(r.Context(), wholesalerID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, trail)
	}
}

// NegativeStock reports stock rows with broken accounting.
// A non-empty result means a write path has a bug.
func NegativeStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		violations, err := svc.DetectNegativeStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"violations": violations,
			"count":      len(violations),
		})
	}
}

func parseQueryPair(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	return parsePairStrings(
		r.URL.Query().Get("wholesaler_id"),
		r.URL.Query().Get("product_id"),
	)
}

func parsePairStrings(rawWholesaler, rawProduct string) (uuid.UUID, uuid.UUID, error) {
	wholesalerID, err := uuid.Parse(strings.TrimSpace(rawWholesaler))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wholesaler_id")
	}
	productID, err := uuid.Parse(strings.TrimSpace(rawProduct))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id")
	}
	return wholesalerID, productID, nil
}
