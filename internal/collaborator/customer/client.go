// Package customer is the typed client for the customer service, the system
// of record for verified customers. The onboarding core calls it during
// approval provisioning and proxies admin reads and edits to it.
package customer

import (
	"context"
	"fmt"
	"net/url"

	"onboarding/pkg/domain"
)

// Profile is the customer service's view of a verified customer.
type Profile struct {
	ID            domain.CustomerID `json:"id"`
	FullName      string            `json:"fullName"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone"`
	Address       string            `json:"address"`
	MaritalStatus string            `json:"maritalStatus"`
	Profession    string            `json:"profession"`
	FathersName   string            `json:"fathersName"`
	PAN           string            `json:"pan"`
	Aadhaar       string            `json:"aadhaar"`
	Active        bool              `json:"active"`
}

// CreateRequest carries the approved application data to the customer
// service's provisioning endpoint.
type CreateRequest struct {
	ApplicationID string `json:"applicationId"`
	FullName      string `json:"fullName"`
	DOB           string `json:"dob"`
	Gender        string `json:"gender"`
	MaritalStatus string `json:"maritalStatus"`
	FathersName   string `json:"fathersName"`
	Nationality   string `json:"nationality"`
	Profession    string `json:"profession"`
	Address       string `json:"address"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	PAN           string `json:"pan"`
	Aadhaar       string `json:"aadhaar"`
	Username      string `json:"username"`
	PasswordHash  string `json:"passwordHash"`

	Nominee *Nominee `json:"nominee,omitempty"`
}

// Nominee mirrors the application's optional beneficiary.
type Nominee struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
	Aadhaar string `json:"aadhaar"`
}

// UpdateRequest is the admin-editable slice of a customer profile.
type UpdateRequest struct {
	FullName      string   `json:"fullName"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Address       string   `json:"address"`
	MaritalStatus string   `json:"maritalStatus"`
	Profession    string   `json:"profession,omitempty"`
	FathersName   string   `json:"fathersName,omitempty"`
	Nominee       *Nominee `json:"nominee,omitempty"`
}

type creationResponse struct {
	CustomerID domain.CustomerID `json:"customerId"`
}

// Doer is the transport dependency, satisfied by collaborator.Client.
type Doer interface {
	Do(ctx context.Context, method, path string, in, out any) error
	Available() bool
}

// Client exposes the customer service operations the onboarding core needs.
type Client struct {
	doer Doer
}

// NewClient wraps a collaborator transport.
func NewClient(doer Doer) *Client {
	return &Client{doer: doer}
}

// Available reports whether the customer service is currently reachable per
// the circuit breaker. Federated search degrades to local-only when false.
func (c *Client) Available() bool { return c.doer.Available() }

// CreateFromApplication provisions a customer from an approved application
// and returns the identifier assigned by the customer service.
func (c *Client) CreateFromApplication(ctx context.Context, req CreateRequest) (domain.CustomerID, error) {
	var resp creationResponse
	if err := c.doer.Do(ctx, "POST", "/api/internal/customers/create-from-kyc", req, &resp); err != nil {
		return 0, err
	}
	return resp.CustomerID, nil
}

// GetByID fetches a customer profile.
func (c *Client) GetByID(ctx context.Context, id domain.CustomerID) (*Profile, error) {
	var profile Profile
	path := fmt.Sprintf("/api/admin/customers/%d", id)
	if err := c.doer.Do(ctx, "GET", path, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateByAdmin applies an admin edit to a verified customer's profile.
func (c *Client) UpdateByAdmin(ctx context.Context, id domain.CustomerID, req UpdateRequest) (*Profile, error) {
	var profile Profile
	path := fmt.Sprintf("/api/admin/customers/%d", id)
	if err := c.doer.Do(ctx, "PUT", path, req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Search returns verified customers matching the keyword.
func (c *Client) Search(ctx context.Context, keyword string) ([]Profile, error) {
	var profiles []Profile
	path := "/api/admin/customers/search?keyword=" + url.QueryEscape(keyword)
	if err := c.doer.Do(ctx, "GET", path, nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// FindByPAN looks up a verified customer by PAN. Returns
// sentinel.ErrNotFound when no customer holds it.
func (c *Client) FindByPAN(ctx context.Context, pan string) (*Profile, error) {
	var profile Profile
	path := "/api/customers/find-by-pan?pan=" + url.QueryEscape(pan)
	if err := c.doer.Do(ctx, "GET", path, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
