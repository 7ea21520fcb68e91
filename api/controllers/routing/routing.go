package routing

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/api/middleware"
	"github.com/mateovidal/surtido-backend/api/responses"
	"github.com/mateovidal/surtido-backend/api/validators"
	internalorders "github.com/mateovidal/surtido-backend/internal/orders"
	internalrouting "github.com/mateovidal/surtido-backend/internal/routing"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	pkgerrors "github.com/mateovidal/surtido-backend/pkg/errors"
	"github.com/mateovidal/surtido-backend/pkg/logger"
)

type createRoutingRequest struct {
	OrderID      string   `json:"order_id" validate:"required,uuid4"`
	CandidateIDs []string `json:"candidate_ids" validate:"required,min=1,dive,uuid4"`
}

// Create opens a routing round offering an order to candidate wholesalers.
func Create(svc internalrouting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "routing service unavailable"))
			return
		}

		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createRoutingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_id"))
			return
		}
		candidates := make([]uuid.UUID, 0, len(payload.CandidateIDs))
		for _, raw := range payload.CandidateIDs {
			candidateID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid candidate id"))
				return
			}
			candidates = append(candidates, candidateID)
		}

		routing, err := svc.Create(r.Context(), internalrouting.CreateInput{
			OrderID:      orderID,
			CandidateIDs: candidates,
			ActorID:      actor.ID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, routing)
	}
}

// Detail returns a routing round with its candidates.
func Detail(svc internalrouting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "routing service unavailable"))
			return
		}

		routingID, err := parseRoutingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		routing, err := svc.Get(r.Context(), routingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, routing)
	}
}

// Accept records the calling wholesaler's acceptance. First accept wins.
func Accept(svc internalrouting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "routing service unavailable"))
			return
		}

		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role != enums.ActorRoleWholesaler {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only wholesalers respond to routing"))
			return
		}
		routingID, err := parseRoutingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		routing, err := svc.Accept(r.Context(), routingID, actor.ID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, routing)
	}
}

// Reject records the calling wholesaler's decline.
func Reject(svc internalrouting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "routing service unavailable"))
			return
		}

		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role != enums.ActorRoleWholesaler {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only wholesalers respond to routing"))
			return
		}
		routingID, err := parseRoutingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		routing, err := svc.Reject(r.Context(), routingID, actor.ID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, routing)
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

func parseRoutingID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "routingId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "routing id is required")
	}
	routingID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid routing id")
	}
	return routingID, nil
}
