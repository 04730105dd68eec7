package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding/internal/collaborator/account"
	"onboarding/internal/collaborator/customer"
	"onboarding/internal/kyc/models"
	"onboarding/internal/kyc/store"
	"onboarding/internal/onboarding"
	"onboarding/internal/search"
	"onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
)

type fakeDecider struct {
	lastID       domain.ApplicationID
	lastDecision onboarding.Decision
	outcome      *onboarding.Outcome
	err          error
}

func (d *fakeDecider) ProcessDecision(_ context.Context, id domain.ApplicationID, decision onboarding.Decision) (*onboarding.Outcome, error) {
	d.lastID = id
	d.lastDecision = decision
	return d.outcome, d.err
}

type fakeCustomers struct {
	profile     *customer.Profile
	err         error
	updated     *customer.UpdateRequest
	invalidated []domain.CustomerID
}

func (c *fakeCustomers) GetByID(context.Context, domain.CustomerID) (*customer.Profile, error) {
	return c.profile, c.err
}

func (c *fakeCustomers) UpdateByAdmin(_ context.Context, _ domain.CustomerID, req customer.UpdateRequest) (*customer.Profile, error) {
	c.updated = &req
	return c.profile, c.err
}

func (c *fakeCustomers) Invalidate(_ context.Context, id domain.CustomerID) {
	c.invalidated = append(c.invalidated, id)
}

type fakeAccounts struct {
	account     *account.Account
	err         error
	deactivated bool
}

func (a *fakeAccounts) GetByCustomer(context.Context, domain.CustomerID) (*account.Account, error) {
	return a.account, a.err
}

func (a *fakeAccounts) Deactivate(context.Context, domain.CustomerID) (*account.Account, error) {
	a.deactivated = true
	return a.account, a.err
}

type fixture struct {
	router    chi.Router
	store     *store.MemoryStore
	decider   *fakeDecider
	customers *fakeCustomers
	accounts  *fakeAccounts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     store.NewMemoryStore(),
		decider:   &fakeDecider{},
		customers: &fakeCustomers{},
		accounts:  &fakeAccounts{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	searcher := search.New(f.store, nil, search.WithLogger(logger))
	h := New(f.store, f.decider, searcher, f.customers, f.accounts, logger)
	f.router = chi.NewRouter()
	h.Register(f.router)
	return f
}

func (f *fixture) seed(t *testing.T, status domain.KycStatus, customerID domain.CustomerID) *models.Application {
	t.Helper()
	now := time.Now()
	app := &models.Application{
		ID:         domain.NewApplicationID(),
		FullName:   "Asha Rao",
		Email:      "asha@example.com",
		Username:   "asharao",
		Phone:      "9876543210",
		PAN:        "ABCDE1234F",
		Aadhaar:    "123412341234",
		Status:     status,
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, f.store.Create(context.Background(), app))
	return app
}

func do(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleDashboard(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.KycStatusPending, 0)

	rec := do(t, f.router, http.MethodGet, "/admin/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Stats struct {
			Total   int64 `json:"total"`
			Pending int64 `json:"pending"`
		} `json:"stats"`
		Applications []json.RawMessage `json:"applications"`
		Limit        int               `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Stats.Total)
	assert.Equal(t, int64(1), resp.Stats.Pending)
	assert.Len(t, resp.Applications, 1)
	assert.Equal(t, 20, resp.Limit)
}

func TestHandleProcessDecision(t *testing.T) {
	t.Run("forwards the verdict and renders the outcome", func(t *testing.T) {
		f := newFixture(t)
		app := f.seed(t, domain.KycStatusPending, 0)
		verified := *app
		verified.Status = domain.KycStatusVerified
		verified.CustomerID = 42
		f.decider.outcome = &onboarding.Outcome{
			Application: &verified,
			Account:     &account.Account{AccountNumber: "ACC-0001", CustomerID: 42},
		}

		rec := do(t, f.router, http.MethodPost, "/admin/customers/"+app.ID.String()+"/process",
			map[string]any{"approved": true})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.Equal(t, app.ID, f.decider.lastID)
		assert.True(t, f.decider.lastDecision.Approve)

		var resp struct {
			Application struct {
				Status string `json:"status"`
			} `json:"application"`
			Account struct {
				AccountNumber string `json:"accountNumber"`
			} `json:"account"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "VERIFIED", resp.Application.Status)
		assert.Equal(t, "ACC-0001", resp.Account.AccountNumber)
	})

	t.Run("passes the rejection reason through", func(t *testing.T) {
		f := newFixture(t)
		app := f.seed(t, domain.KycStatusPending, 0)
		f.decider.outcome = &onboarding.Outcome{Application: app}

		rec := do(t, f.router, http.MethodPost, "/admin/customers/"+app.ID.String()+"/process",
			map[string]any{"approved": false, "rejectionReason": "document unclear"})
		require.Equal(t, http.StatusOK, rec.Code)

		assert.False(t, f.decider.lastDecision.Approve)
		assert.Equal(t, "document unclear", f.decider.lastDecision.Reason)
	})

	t.Run("maps invalid-state to 409", func(t *testing.T) {
		f := newFixture(t)
		app := f.seed(t, domain.KycStatusVerified, 42)
		f.decider.err = dErrors.New(dErrors.CodeInvalidState, "already decided")

		rec := do(t, f.router, http.MethodPost, "/admin/customers/"+app.ID.String()+"/process",
			map[string]any{"approved": true})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		f := newFixture(t)
		rec := do(t, f.router, http.MethodPost, "/admin/customers/nope/process",
			map[string]any{"approved": true})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleCustomerDetail(t *testing.T) {
	t.Run("pending applicant renders the local record only", func(t *testing.T) {
		f := newFixture(t)
		app := f.seed(t, domain.KycStatusPending, 0)

		rec := do(t, f.router, http.MethodGet, "/admin/customers/"+app.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Customer *json.RawMessage `json:"customer"`
			Degraded bool             `json:"degraded"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Nil(t, resp.Customer)
		assert.False(t, resp.Degraded)
	})

	t.Run("verified applicant is enriched with the live profile", func(t *testing.T) {
		f := newFixture(t)
		app := f.seed(t, domain.KycStatusVerified, 42)
		f.customers.profile = &customer.Profile{ID: 42, FullName: "Asha Rao", Active: true}
		f.accounts.account = &account.Account{AccountNumber: "ACC-0001", CustomerID: 42}

		rec := do(t, f.router, http.MethodGet, "/admin/customers/"+app.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Customer *customer.Profile `json:"customer"`
			Account  *account.Account  `json:"account"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Customer)
		assert.Equal(t, domain.CustomerID(42), resp.Customer.ID)
		require.NotNil(t, resp.Account)
		assert.Equal(t, "ACC-0001", resp.Account.AccountNumber)
	})

	t.Run("collaborator outage degrades to the stale local copy", func(t *testing.T) {
		f := newFixture(t)
		app := f.seed(t, domain.KycStatusVerified, 42)
		f.customers.err = dErrors.New(dErrors.CodeUnavailable, "customer-service unreachable")
		f.accounts.err = dErrors.New(dErrors.CodeUnavailable, "account-service unreachable")

		rec := do(t, f.router, http.MethodGet, "/admin/customers/"+app.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code, "the stale local copy still answers")

		var resp struct {
			Application *models.Application `json:"application"`
			Degraded    bool                `json:"degraded"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Degraded)
		require.NotNil(t, resp.Application)
		assert.Equal(t, app.ID, resp.Application.ID)
	})

	t.Run("unknown application is 404", func(t *testing.T) {
		f := newFixture(t)
		rec := do(t, f.router, http.MethodGet, "/admin/customers/"+domain.NewApplicationID().String(), nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleEditCustomer(t *testing.T) {
	t.Run("proxies the edit for a verified customer", func(t *testing.T) {
		f := newFixture(t)
		app := f.seed(t, domain.KycStatusVerified, 42)
		f.customers.profile = &customer.Profile{ID: 42, FullName: "Asha R. Rao"}

		rec := do(t, f.router, http.MethodPut, "/admin/customers/"+app.ID.String(),
			map[string]any{"fullName": "Asha R. Rao", "email": "asha@example.com"})
		require.Equal(t, http.StatusOK, rec.Code)

		require.NotNil(t, f.customers.updated)
		assert.Equal(t, "Asha R. Rao", f.customers.updated.FullName)
	})

	t.Run("refuses before approval", func(t *testing.T) {
		f := newFixture(t)
		app := f.seed(t, domain.KycStatusPending, 0)

		rec := do(t, f.router, http.MethodPut, "/admin/customers/"+app.ID.String(),
			map[string]any{"fullName": "Asha R. Rao"})
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Nil(t, f.customers.updated)
	})
}

func TestHandleDeactivate(t *testing.T) {
	t.Run("deactivates an approved customer's account", func(t *testing.T) {
		f := newFixture(t)
		app := f.seed(t, domain.KycStatusVerified, 42)
		f.accounts.account = &account.Account{AccountNumber: "ACC-0001", CustomerID: 42, Status: account.StatusDeactivated}

		rec := do(t, f.router, http.MethodPost, "/admin/customers/"+app.ID.String()+"/deactivate", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, f.accounts.deactivated)
		assert.Equal(t, []domain.CustomerID{42}, f.customers.invalidated,
			"the cached profile must be dropped so the next detail view refetches")
	})

	t.Run("refuses before approval", func(t *testing.T) {
		f := newFixture(t)
		app := f.seed(t, domain.KycStatusRejected, 0)

		rec := do(t, f.router, http.MethodPost, "/admin/customers/"+app.ID.String()+"/deactivate", nil)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.False(t, f.accounts.deactivated)
		assert.Empty(t, f.customers.invalidated)
	})
}
