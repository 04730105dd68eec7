// Package account is the typed client for the account service. Accounts are
// created inactive during provisioning and activated as the final step of an
// approval, so a crash between the two leaves nothing customer-visible.
package account

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"onboarding/pkg/domain"
)

// Status values reported by the account service.
const (
	StatusInactive    = "INACTIVE"
	StatusActive      = "ACTIVE"
	StatusDeactivated = "DEACTIVATED"
)

// Account is the account service's view of a bank account.
type Account struct {
	AccountNumber     string            `json:"accountNumber"`
	CustomerID        domain.CustomerID `json:"customerId"`
	ApplicationID     string            `json:"applicationId"`
	Type              string            `json:"accountType"`
	Status            string            `json:"status"`
	RoutingCode       string            `json:"routingCode"`
	NetBankingEnabled bool              `json:"netBankingEnabled"`
	DebitCardIssued   bool              `json:"debitCardIssued"`
	ChequeBookIssued  bool              `json:"chequeBookIssued"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// CreateRequest provisions an inactive account for a freshly created
// customer.
type CreateRequest struct {
	CustomerID        domain.CustomerID `json:"customerId"`
	ApplicationID     string            `json:"applicationId"`
	AccountType       string            `json:"accountType"`
	NetBankingEnabled bool              `json:"netBankingEnabled"`
	DebitCardIssued   bool              `json:"debitCardIssued"`
	ChequeBookIssued  bool              `json:"chequeBookIssued"`
}

// UpdateRequest changes the service flags on an existing account.
type UpdateRequest struct {
	NetBankingEnabled *bool `json:"netBankingEnabled,omitempty"`
	DebitCardIssued   *bool `json:"debitCardIssued,omitempty"`
	ChequeBookIssued  *bool `json:"chequeBookIssued,omitempty"`
}

// Doer is the transport dependency, satisfied by collaborator.Client.
type Doer interface {
	Do(ctx context.Context, method, path string, in, out any) error
	Available() bool
}

// Client exposes the account service operations the onboarding core needs.
type Client struct {
	doer Doer
}

// NewClient wraps a collaborator transport.
func NewClient(doer Doer) *Client {
	return &Client{doer: doer}
}

// Available reports whether the account service is currently reachable per
// the circuit breaker.
func (c *Client) Available() bool { return c.doer.Available() }

// CreateInactive provisions a dormant account. Idempotent on the account
// service side: re-sending for the same customer returns the existing
// account instead of creating a second one.
func (c *Client) CreateInactive(ctx context.Context, req CreateRequest) (*Account, error) {
	var acct Account
	if err := c.doer.Do(ctx, "POST", "/api/internal/accounts/create-inactive", req, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// Activate flips the customer's account to ACTIVE, completing provisioning.
func (c *Client) Activate(ctx context.Context, customerID domain.CustomerID) (*Account, error) {
	var acct Account
	path := fmt.Sprintf("/api/internal/accounts/customer/%d/activate", customerID)
	if err := c.doer.Do(ctx, "POST", path, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// Deactivate suspends the customer's account.
func (c *Client) Deactivate(ctx context.Context, customerID domain.CustomerID) (*Account, error) {
	var acct Account
	path := fmt.Sprintf("/api/internal/accounts/customer/%d/deactivate", customerID)
	if err := c.doer.Do(ctx, "POST", path, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetByCustomer fetches the customer's account.
func (c *Client) GetByCustomer(ctx context.Context, customerID domain.CustomerID) (*Account, error) {
	var acct Account
	path := fmt.Sprintf("/api/internal/accounts/customer/%d", customerID)
	if err := c.doer.Do(ctx, "GET", path, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetByApplication fetches the account provisioned for an application.
func (c *Client) GetByApplication(ctx context.Context, applicationID domain.ApplicationID) (*Account, error) {
	var acct Account
	path := "/api/internal/accounts/by-application/" + applicationID.String()
	if err := c.doer.Do(ctx, "GET", path, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// UpdateDetails changes service flags on the customer's account.
func (c *Client) UpdateDetails(ctx context.Context, customerID domain.CustomerID, req UpdateRequest) (*Account, error) {
	var acct Account
	path := fmt.Sprintf("/api/internal/accounts/customer/%d", customerID)
	if err := c.doer.Do(ctx, "PUT", path, req, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// CreatedBetween lists accounts opened in the window, for reporting.
func (c *Client) CreatedBetween(ctx context.Context, start, end time.Time) ([]Account, error) {
	var accounts []Account
	params := url.Values{}
	params.Set("start", start.UTC().Format(time.RFC3339))
	params.Set("end", end.UTC().Format(time.RFC3339))
	if err := c.doer.Do(ctx, "GET", "/api/internal/accounts/created-between?"+params.Encode(), nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}
