package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mateovidal/surtido-backend/api/controllers"
	bidcontrollers "github.com/mateovidal/surtido-backend/api/controllers/bids"
	creditcontrollers "github.com/mateovidal/surtido-backend/api/controllers/credit"
	inventorycontrollers "github.com/mateovidal/surtido-backend/api/controllers/inventory"
	ordercontrollers "github.com/mateovidal/surtido-backend/api/controllers/orders"
	routingcontrollers "github.com/mateovidal/surtido-backend/api/controllers/routing"
	"github.com/mateovidal/surtido-backend/api/middleware"
	"github.com/mateovidal/surtido-backend/internal/bidding"
	"github.com/mateovidal/surtido-backend/internal/credit"
	"github.com/mateovidal/surtido-backend/internal/inventory"
	"github.com/mateovidal/surtido-backend/internal/orders"
	"github.com/mateovidal/surtido-backend/internal/routing"
	"github.com/mateovidal/surtido-backend/pkg/config"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	"github.com/mateovidal/surtido-backend/pkg/logger"
	pkgredis "github.com/mateovidal/surtido-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *pkgredis.Client,
	pubsubP controllers.Pinger,
	ordersSvc orders.Service,
	routingSvc routing.Service,
	biddingSvc bidding.Service,
	creditSvc credit.Service,
	inventorySvc inventory.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, pubsubP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ActorContext(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersSvc, logg))
			r.Get("/", ordercontrollers.List(ordersSvc, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
			r.Get("/{orderId}/transitions", ordercontrollers.Transitions(ordersSvc, logg))

			r.Post("/{orderId}/approve-credit", ordercontrollers.ApproveCredit(ordersSvc, logg))
			r.Post("/{orderId}/reserve-stock", ordercontrollers.ReserveStock(ordersSvc, logg))
			r.Post("/{orderId}/accept", ordercontrollers.Accept(ordersSvc, logg))
			r.Post("/{orderId}/start-delivery", ordercontrollers.StartDelivery(ordersSvc, logg))
			r.Post("/{orderId}/complete-delivery", ordercontrollers.CompleteDelivery(ordersSvc, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
			r.With(middleware.RequireRole(enums.ActorRoleAdmin, logg)).
				Post("/{orderId}/fail", ordercontrollers.Fail(ordersSvc, logg))
			r.Post("/{orderId}/return", ordercontrollers.Return(ordersSvc, logg))

			r.Post("/{orderId}/bids", bidcontrollers.Ingest(biddingSvc, logg))
			r.Get("/{orderId}/bids", bidcontrollers.List(biddingSvc, logg))
			r.Post("/{orderId}/bids/auto-select", bidcontrollers.AutoSelect(biddingSvc, logg))
		})

		r.Route("/routing", func(r chi.Router) {
			r.Post("/", routingcontrollers.Create(routingSvc, logg))
			r.Get("/{routingId}", routingcontrollers.Detail(routingSvc, logg))
			r.Post("/{routingId}/accept", routingcontrollers.Accept(routingSvc, logg))
			r.Post("/{routingId}/reject", routingcontrollers.Reject(routingSvc, logg))
		})

		r.Route("/credit", func(r chi.Router) {
			r.Get("/balance", creditcontrollers.Balance(creditSvc, logg))
			r.Get("/check", creditcontrollers.Check(creditSvc, logg))
			r.Get("/statement", creditcontrollers.Statement(creditSvc, logg))
			r.Post("/payments", creditcontrollers.RecordPayment(creditSvc, logg))
			r.With(middleware.RequireRole(enums.ActorRoleAdmin, logg)).
				Post("/adjustments", creditcontrollers.RecordAdjustment(creditSvc, logg))
			r.With(middleware.RequireRole(enums.ActorRoleAdmin, logg)).
				Put("/accounts", creditcontrollers.UpsertAccount(creditSvc, logg))
			r.With(middleware.RequireRole(enums.ActorRoleAdmin, logg)).
				Post("/accounts/block", creditcontrollers.BlockAccount(creditSvc, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Put("/stock", inventorycontrollers.SetStock(inventorySvc, logg))
			r.Get("/stock", inventorycontrollers.GetStock(inventorySvc, logg))
			r.Post("/availability", inventorycontrollers.CheckAvailability(inventorySvc, logg))
			r.Get("/audit", inventorycontrollers.AuditTrail(inventorySvc, logg))
			r.With(middleware.RequireRole(enums.ActorRoleAdmin, logg)).
				Get("/negative-stock", inventorycontrollers.NegativeStock(inventorySvc, logg))
		})
	})

	return r
}
