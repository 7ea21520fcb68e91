package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/mateovidal/surtido-backend/api/responses"
	"github.com/mateovidal/surtido-backend/pkg/config"
	"github.com/mateovidal/surtido-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is the health-check surface of an infrastructure client.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Surtido-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP, pubsubP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Surtido-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]Pinger{
			"db":     dbP,
			"redis":  redisP,
			"pubsub": pubsubP,
		}

		statuses := map[string]string{}
		healthy := true
		for name, p := range checks {
			if p == nil {
				statuses[name] = "not configured"
				continue
			}
			if err := p.Ping(ctx); err != nil {
				statuses[name] = "unavailable"
				healthy = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				continue
			}
			statuses[name] = "ok"
		}

		status := http.StatusOK
		overall := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": overall,
			"checks": statuses,
		})
	}
}
