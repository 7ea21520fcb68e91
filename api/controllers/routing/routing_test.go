package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/api/middleware"
	internalorders "github.com/mateovidal/surtido-backend/internal/orders"
	internalrouting "github.com/mateovidal/surtido-backend/internal/routing"
	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	"github.com/mateovidal/surtido-backend/pkg/logger"
)

type testRoutingService struct {
	createFn func(ctx context.Context, input internalrouting.CreateInput) (*models.OrderRouting, error)
	acceptFn func(ctx context.Context, routingID, wholesalerID uuid.UUID, actor internalorders.Actor) (*models.OrderRouting, error)
	rejectFn func(ctx context.Context, routingID, wholesalerID uuid.UUID, actor internalorders.Actor) (*models.OrderRouting, error)
}

func (s *testRoutingService) Create(ctx context.Context, input internalrouting.CreateInput) (*models.OrderRouting, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.OrderRouting{}, nil
}

func (s *testRoutingService) Get(context.Context, uuid.UUID) (*models.OrderRouting, error) {
	return &models.OrderRouting{}, nil
}

func (s *testRoutingService) Accept(ctx context.Context, routingID, wholesalerID uuid.UUID, actor internalorders.Actor) (*models.OrderRouting, error) {
	if s.acceptFn != nil {
		return s.acceptFn(ctx, routingID, wholesalerID, actor)
	}
	return &models.OrderRouting{}, nil
}

func (s *testRoutingService) Reject(ctx context.Context, routingID, wholesalerID uuid.UUID, actor internalorders.Actor) (*models.OrderRouting, error) {
	if s.rejectFn != nil {
		return s.rejectFn(ctx, routingID, wholesalerID, actor)
	}
	return &models.OrderRouting{}, nil
}

func (s *testRoutingService) SweepExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withActor(req *http.Request, actorID uuid.UUID, role enums.ActorRole) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), actorID, role))
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestAcceptUsesActorAsWholesaler(t *testing.T) {
	routingID := uuid.New()
	wholesalerID := uuid.New()
	called := false
	svc := &testRoutingService{
		acceptFn: func(ctx context.Context, rid, wid uuid.UUID, actor internalorders.Actor) (*models.OrderRouting, error) {
			called = true
			if rid != routingID {
				t.Fatalf("unexpected routing %s", rid)
			}
			if wid != wholesalerID {
				t.Fatalf("unexpected wholesaler %s", wid)
			}
			return &models.OrderRouting{ID: routingID}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/routing/"+routingID.String()+"/accept", nil)
	req = withActor(req, wholesalerID, enums.ActorRoleWholesaler)
	req = addRouteParam(req, "routingId", routingID.String())

	resp := httptest.NewRecorder()
	Accept(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("expected service called")
	}
}

func TestAcceptRequiresWholesalerRole(t *testing.T) {
	routingID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routing/"+routingID.String()+"/accept", nil)
	req = withActor(req, uuid.New(), enums.ActorRoleRetailer)
	req = addRouteParam(req, "routingId", routingID.String())

	resp := httptest.NewRecorder()
	Accept(&testRoutingService{}, testLogger())(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestCreateRoutingForwardsCandidates(t *testing.T) {
	orderID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	adminID := uuid.New()
	var captured internalrouting.CreateInput
	svc := &testRoutingService{
		createFn: func(ctx context.Context, input internalrouting.CreateInput) (*models.OrderRouting, error) {
			captured = input
			return &models.OrderRouting{ID: uuid.New(), OrderID: input.OrderID}, nil
		},
	}

	body, _ := json.Marshal(map[string]any{
		"order_id":      orderID.String(),
		"candidate_ids": []string{first.String(), second.String()},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routing", bytes.NewReader(body))
	req = withActor(req, adminID, enums.ActorRoleAdmin)

	resp := httptest.NewRecorder()
	Create(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if captured.OrderID != orderID {
		t.Fatalf("unexpected order %s", captured.OrderID)
	}
	if len(captured.CandidateIDs) != 2 || captured.CandidateIDs[0] != first || captured.CandidateIDs[1] != second {
		t.Fatalf("candidates not forwarded: %v", captured.CandidateIDs)
	}
	if captured.ActorID != adminID {
		t.Fatalf("unexpected actor %s", captured.ActorID)
	}
}

func TestRejectInvalidRoutingID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routing/bad/reject", nil)
	req = withActor(req, uuid.New(), enums.ActorRoleWholesaler)
	req = addRouteParam(req, "routingId", "bad")

	resp := httptest.NewRecorder()
	Reject(&testRoutingService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
