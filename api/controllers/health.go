package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/wardrobe-backend/api/middleware"
	"github.com/angelmondragon/wardrobe-backend/api/responses"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency probed by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names one dependency of the API.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

const envHeader = "X-Wardrobe-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every check and reports 503 when one fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := map[string]string{}
		var failed []string
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				status[check.Name] = "down"
				failed = append(failed, check.Name)
				if logg != nil {
					logg.Warn(logg.WithFields(r.Context(), map[string]any{"dependency": check.Name, "error": err.Error()}), "readiness check failed")
				}
				continue
			}
			status[check.Name] = "ok"
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"checks": status}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": status})
	}
}

// Ping echoes the caller's user id when the route sits behind Auth.
func Ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if user := middleware.UserIDFromContext(r.Context()); user != "" {
			body["user_id"] = user
		}
		responses.WriteSuccess(w, body)
	}
}
