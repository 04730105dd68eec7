// Package handler exposes the admin surface: dashboard, federated search,
// unified customer detail, decision processing, and post-approval edits
// proxied to the collaborators.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"onboarding/internal/collaborator/account"
	"onboarding/internal/collaborator/customer"
	"onboarding/internal/kyc/models"
	"onboarding/internal/kyc/store"
	"onboarding/internal/onboarding"
	"onboarding/internal/search"
	"onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/httputil"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/requestcontext"
)

// Decider processes approve/reject decisions.
type Decider interface {
	ProcessDecision(ctx context.Context, id domain.ApplicationID, decision onboarding.Decision) (*onboarding.Outcome, error)
}

// Searcher runs the federated read path.
type Searcher interface {
	Search(ctx context.Context, keyword string) (*search.Result, error)
	DashboardStats(ctx context.Context) (*search.Stats, error)
}

// CustomerDirectory is the customer-service surface the admin view needs.
type CustomerDirectory interface {
	GetByID(ctx context.Context, id domain.CustomerID) (*customer.Profile, error)
	UpdateByAdmin(ctx context.Context, id domain.CustomerID, req customer.UpdateRequest) (*customer.Profile, error)
	Invalidate(ctx context.Context, id domain.CustomerID)
}

// AccountDirectory is the account-service surface the admin view needs.
type AccountDirectory interface {
	GetByCustomer(ctx context.Context, customerID domain.CustomerID) (*account.Account, error)
	Deactivate(ctx context.Context, customerID domain.CustomerID) (*account.Account, error)
}

// Handler handles the admin endpoints.
type Handler struct {
	logger    *slog.Logger
	store     store.Store
	decider   Decider
	searcher  Searcher
	customers CustomerDirectory
	accounts  AccountDirectory
}

// New creates the admin Handler.
func New(
	st store.Store,
	decider Decider,
	searcher Searcher,
	customers CustomerDirectory,
	accounts AccountDirectory,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		logger:    logger,
		store:     st,
		decider:   decider,
		searcher:  searcher,
		customers: customers,
		accounts:  accounts,
	}
}

// Register mounts the admin routes. The caller applies the auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/dashboard", h.handleDashboard)
	r.Get("/admin/search", h.handleSearch)
	r.Get("/admin/customers/{id}", h.handleCustomerDetail)
	r.Post("/admin/customers/{id}/process", h.handleProcessDecision)
	r.Put("/admin/customers/{id}", h.handleEditCustomer)
	r.Post("/admin/customers/{id}/deactivate", h.handleDeactivate)
}

type dashboardResponse struct {
	Stats        *search.Stats         `json:"stats"`
	Applications []*models.Application `json:"applications"`
	Offset       int                   `json:"offset"`
	Limit        int                   `json:"limit"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.searcher.DashboardStats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "dashboard stats failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load dashboard"))
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	apps, err := h.store.List(ctx, offset, limit)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load applications"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, dashboardResponse{
		Stats:        stats,
		Applications: apps,
		Offset:       offset,
		Limit:        limit,
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "keyword is required"))
		return
	}

	result, err := h.searcher.Search(ctx, keyword)
	if err != nil {
		h.logger.ErrorContext(ctx, "federated search failed",
			"request_id", requestcontext.RequestID(ctx),
			"keyword", keyword,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "search failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// detailResponse is the unified view: the local application always, plus the
// live remote profile and account once the applicant is VERIFIED. Degraded
// marks a collaborator outage where the stale local copy stands in.
type detailResponse struct {
	Application *models.Application `json:"application"`
	Customer    *customer.Profile   `json:"customer,omitempty"`
	Account     *account.Account    `json:"account,omitempty"`
	Degraded    bool                `json:"degraded,omitempty"`
}

func (h *Handler) handleCustomerDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	app, ok := h.loadApplication(w, r)
	if !ok {
		return
	}

	resp := detailResponse{Application: app}
	if app.Status == domain.KycStatusVerified && !app.CustomerID.IsNil() {
		profile, err := h.customers.GetByID(ctx, app.CustomerID)
		if err != nil {
			h.logger.WarnContext(ctx, "customer detail degraded to local copy",
				"request_id", requestcontext.RequestID(ctx),
				"customer_id", int64(app.CustomerID),
				"error", err,
			)
			resp.Degraded = true
		} else {
			resp.Customer = profile
		}

		acct, err := h.accounts.GetByCustomer(ctx, app.CustomerID)
		if err != nil {
			resp.Degraded = true
		} else {
			resp.Account = acct
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

type processRequest struct {
	Approved        bool   `json:"approved"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

type processResponse struct {
	Application *models.Application `json:"application"`
	Account     *account.Account    `json:"account,omitempty"`
}

func (h *Handler) handleProcessDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[processRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcome, err := h.decider.ProcessDecision(ctx, id, onboarding.Decision{
		Approve: req.Approved,
		Reason:  req.RejectionReason,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "decision processing failed",
			"request_id", requestID,
			"application_id", id,
			"approved", req.Approved,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, processResponse{
		Application: outcome.Application,
		Account:     outcome.Account,
	})
}

type editRequest struct {
	FullName      string          `json:"fullName"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	MaritalStatus string          `json:"maritalStatus"`
	Profession    string          `json:"profession,omitempty"`
	FathersName   string          `json:"fathersName,omitempty"`
	Nominee       *models.Nominee `json:"nominee,omitempty"`
}

func (h *Handler) handleEditCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	app, ok := h.loadApplication(w, r)
	if !ok {
		return
	}
	customerID, err := verifiedCustomerID(app)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[editRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	update := customer.UpdateRequest{
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		MaritalStatus: req.MaritalStatus,
		Profession:    req.Profession,
		FathersName:   req.FathersName,
	}
	if req.Nominee != nil {
		update.Nominee = &customer.Nominee{
			Name:    req.Nominee.Name,
			Mobile:  req.Nominee.Mobile,
			Address: req.Nominee.Address,
			Aadhaar: req.Nominee.Aadhaar,
		}
	}

	profile, err := h.customers.UpdateByAdmin(ctx, customerID, update)
	if err != nil {
		h.logger.WarnContext(ctx, "customer edit failed",
			"request_id", requestID,
			"customer_id", int64(customerID),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	app, ok := h.loadApplication(w, r)
	if !ok {
		return
	}
	customerID, err := verifiedCustomerID(app)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	acct, err := h.accounts.Deactivate(ctx, customerID)
	if err != nil {
		h.logger.WarnContext(ctx, "account deactivation failed",
			"request_id", requestcontext.RequestID(ctx),
			"customer_id", int64(customerID),
			"actor", requestcontext.Actor(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	// The cached profile carries account-derived state; the next detail view
	// must refetch it.
	h.customers.Invalidate(ctx, customerID)

	h.logger.InfoContext(ctx, "account deactivated",
		"application_id", app.ID,
		"customer_id", int64(customerID),
		"actor", requestcontext.Actor(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, acct)
}

// loadApplication resolves the {id} path parameter to a stored application
// and writes the error response itself when it cannot.
func (h *Handler) loadApplication(w http.ResponseWriter, r *http.Request) (*models.Application, bool) {
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return nil, false
	}

	app, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "application not found"))
		} else {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load application"))
		}
		return nil, false
	}
	return app, true
}

// verifiedCustomerID guards the post-approval operations: they only make
// sense once the applicant has been provisioned.
func verifiedCustomerID(app *models.Application) (domain.CustomerID, error) {
	if app.Status != domain.KycStatusVerified || app.CustomerID.IsNil() {
		return 0, dErrors.Newf(dErrors.CodeInvalidState,
			"application %s is %s; only approved customers can be managed", app.ID, app.Status)
	}
	return app.CustomerID, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
