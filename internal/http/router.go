// Package httpapi assembles the HTTP surface: public intake, the guarded
// admin routes, the assistant reporting API, and the operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhandler "onboarding/internal/admin/handler"
	assistanthandler "onboarding/internal/assistant/handler"
	kychandler "onboarding/internal/kyc/handler"
	"onboarding/internal/platform/middleware"
	"onboarding/pkg/platform/httputil"
)

// HealthChecker reports the readiness of one dependency.
type HealthChecker func(ctx context.Context) error

// Config wires the router.
type Config struct {
	Logger *slog.Logger

	KYC       *kychandler.Handler
	Admin     *adminhandler.Handler
	Assistant *assistanthandler.Handler

	// AdminJWTSigningKey guards /admin; the assistant API shares the guard
	// since it exposes applicant PII.
	AdminJWTSigningKey string

	// Health checks by dependency name, probed by /healthz.
	Health map[string]HealthChecker
}

// New builds the chi router with the shared middleware chain.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logging(cfg.Logger))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handleHealth(cfg.Health))

	cfg.KYC.Register(r)

	r.Group(func(g chi.Router) {
		g.Use(middleware.AdminAuth(cfg.AdminJWTSigningKey))
		cfg.Admin.Register(g)
		cfg.Assistant.Register(g)
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
