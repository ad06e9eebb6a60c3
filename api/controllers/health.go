package controllers

import (
	"net/http"

	"github.com/ulugbekov/savdo-backend/api/responses"
	"github.com/ulugbekov/savdo-backend/pkg/config"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Savdo-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when every backing dependency answers a
// ping. Load balancers use this to decide whether to route traffic here.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Savdo-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			} else {
				checks["postgres"] = "ok"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		if !healthy {
			if logg != nil {
				logg.Warn(logg.WithFields(r.Context(), map[string]any{"checks": checks}), "health.ready.degraded")
			}
			responses.WriteErrorStatus(w, http.StatusServiceUnavailable, "dependency_unavailable", "service not ready")
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
