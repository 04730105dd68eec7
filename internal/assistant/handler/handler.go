// Package handler exposes the assistant reporting API: single-result
// customer lookup, dashboard figures, and date-range listings consumed by
// the support chatbot.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"onboarding/internal/collaborator/account"
	"onboarding/internal/collaborator/customer"
	"onboarding/internal/kyc/models"
	"onboarding/internal/kyc/store"
	"onboarding/internal/search"
	"onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/httputil"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/requestcontext"
)

const latestLimit = 5

// StatsProvider supplies the dashboard figures.
type StatsProvider interface {
	DashboardStats(ctx context.Context) (*search.Stats, error)
}

// CustomerDirectory enriches verified lookups with the live profile.
type CustomerDirectory interface {
	GetByID(ctx context.Context, id domain.CustomerID) (*customer.Profile, error)
}

// AccountDirectory supplies account enrichment and date-range reports.
type AccountDirectory interface {
	GetByCustomer(ctx context.Context, customerID domain.CustomerID) (*account.Account, error)
	CreatedBetween(ctx context.Context, start, end time.Time) ([]account.Account, error)
}

// Handler handles the assistant endpoints.
type Handler struct {
	logger    *slog.Logger
	store     store.Store
	stats     StatsProvider
	customers CustomerDirectory
	accounts  AccountDirectory
}

// New creates the assistant Handler.
func New(
	st store.Store,
	stats StatsProvider,
	customers CustomerDirectory,
	accounts AccountDirectory,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		logger:    logger,
		store:     st,
		stats:     stats,
		customers: customers,
		accounts:  accounts,
	}
}

// Register mounts the assistant routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/assistant/search-customer", h.handleSearchCustomer)
	r.Get("/api/assistant/dashboard-stats", h.handleDashboardStats)
	r.Get("/api/assistant/list-by-status", h.handleListByStatus)
	r.Get("/api/assistant/applications-created-between", h.handleApplicationsCreatedBetween)
	r.Get("/api/assistant/accounts-created-on-date", h.handleAccountsCreatedOnDate)
}

// lookupResponse is the single best match for a keyword, enriched with the
// live customer and account when the applicant is verified. Enrichment
// failures are tolerated: the local record still answers the question.
type lookupResponse struct {
	Application *models.Application `json:"application"`
	Customer    *customer.Profile   `json:"customer,omitempty"`
	Account     *account.Account    `json:"account,omitempty"`
}

func (h *Handler) handleSearchCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "keyword is required"))
		return
	}

	app, err := h.store.FindByKeyword(ctx, keyword)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no applicant matches the keyword"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "lookup failed"))
		return
	}

	resp := lookupResponse{Application: app}
	if app.Status == domain.KycStatusVerified && !app.CustomerID.IsNil() {
		if profile, err := h.customers.GetByID(ctx, app.CustomerID); err == nil {
			resp.Customer = profile
		} else {
			h.logger.WarnContext(ctx, "assistant lookup served without customer enrichment",
				"request_id", requestcontext.RequestID(ctx),
				"customer_id", int64(app.CustomerID),
				"error", err,
			)
		}
		if acct, err := h.accounts.GetByCustomer(ctx, app.CustomerID); err == nil {
			resp.Account = acct
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.DashboardStats(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load stats"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListByStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := domain.ParseKycStatus(r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	apps, err := h.store.LatestByStatus(ctx, status, latestLimit)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list applications"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleApplicationsCreatedBetween(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start, end, err := parseRange(r, time.RFC3339)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	apps, err := h.store.CreatedBetween(ctx, start, end)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list applications"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleAccountsCreatedOnDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "date must be YYYY-MM-DD"))
		return
	}

	accounts, err := h.accounts.CreatedBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		h.logger.WarnContext(ctx, "account report failed",
			"request_id", requestcontext.RequestID(ctx),
			"date", day.Format("2006-01-02"),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accounts)
}

func parseRange(r *http.Request, layout string) (time.Time, time.Time, error) {
	start, err := time.Parse(layout, r.URL.Query().Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "start must be RFC3339")
	}
	end, err := time.Parse(layout, r.URL.Query().Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "end must be RFC3339")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "end must not precede start")
	}
	return start, end, nil
}
