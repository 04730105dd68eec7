package models

import (
	"time"

	"onboarding/internal/document"
	"onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
)

// Application is the aggregate root for a KYC application.
//
// Invariants:
//   - Status is one of PENDING, VERIFIED, REJECTED
//   - CustomerID is non-zero iff Status is VERIFIED, with one deliberate
//     exception: a PENDING application may carry a CustomerID checkpoint
//     after a partial provisioning failure, which is what makes approval
//     retries idempotent (the orchestrator resumes at account creation
//     instead of creating a second customer)
//   - RejectionReason is non-empty iff Status is REJECTED
//   - Email, Username, PAN, Aadhaar, and a nominee's Aadhaar are globally
//     unique across the onboarding system; the store is the final arbiter
//   - Applications are never deleted by this core
type Application struct {
	ID domain.ApplicationID `json:"id"`

	// Identity profile. Once the application is VERIFIED these become stale
	// copies retained for pre-verification display; the customer service is
	// the system of record from then on.
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

	// Identity documents, each globally unique.
	PAN     string `json:"pan"`
	Aadhaar string `json:"aadhaar"`

	// Credentials chosen at intake; the hash travels to the customer
	// service on approval.
	Username     string `json:"username"`
	PasswordHash string `json:"-"`

	// Requested account shape.
	RequestedAccountType string `json:"requestedAccountType"`
	NetBankingEnabled    bool   `json:"netBankingEnabled"`
	DebitCardIssued      bool   `json:"debitCardIssued"`
	ChequeBookIssued     bool   `json:"chequeBookIssued"`

	// Document slots, independently nullable.
	PassportPhoto document.Encoded `json:"-"`
	PANDocument   document.Encoded `json:"-"`
	AadhaarProof  document.Encoded `json:"-"`

	Nominee *Nominee `json:"nominee,omitempty"`

	Status          domain.KycStatus  `json:"status"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	CustomerID      domain.CustomerID `json:"customerId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Nominee is the optional beneficiary embedded in an application.
type Nominee struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
	Aadhaar string `json:"aadhaar"`
}

// Identity is the uniqueness tuple checked at submission and again at
// approval time.
type Identity struct {
	Email          string
	Username       string
	PAN            string
	Aadhaar        string
	NomineeAadhaar string
}

// Identity extracts the application's uniqueness tuple.
func (a *Application) Identity() Identity {
	id := Identity{
		Email:    a.Email,
		Username: a.Username,
		PAN:      a.PAN,
		Aadhaar:  a.Aadhaar,
	}
	if a.Nominee != nil {
		id.NomineeAadhaar = a.Nominee.Aadhaar
	}
	return id
}

// Document returns the named slot.
func (a *Application) Document(t document.Type) document.Encoded {
	switch t {
	case document.TypePassportPhoto:
		return a.PassportPhoto
	case document.TypePANDocument:
		return a.PANDocument
	case document.TypeAadhaarProof:
		return a.AadhaarProof
	}
	return document.Encoded{}
}

// CanDecide checks that an approve/reject decision is allowed. Only PENDING
// applications may be decided; anything else is an invalid transition and
// must not silently succeed or re-provision.
func (a *Application) CanDecide() error {
	if a.Status != domain.KycStatusPending {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"application %s is %s; only PENDING applications can be processed", a.ID, a.Status)
	}
	return nil
}

// ApplyCustomerID records the provisioning checkpoint after the customer
// service committed but before the account exists. Status stays PENDING so a
// retried approval resumes at account creation.
func (a *Application) ApplyCustomerID(customerID domain.CustomerID, now time.Time) {
	a.CustomerID = customerID
	a.UpdatedAt = now
}

// ApplyVerified completes a successful approval. Call CanDecide first.
func (a *Application) ApplyVerified(customerID domain.CustomerID, now time.Time) {
	a.Status = domain.KycStatusVerified
	a.CustomerID = customerID
	a.RejectionReason = ""
	a.UpdatedAt = now
}

// ApplyRejection records a rejection with its reason. Call CanDecide first.
func (a *Application) ApplyRejection(reason string, now time.Time) {
	a.Status = domain.KycStatusRejected
	a.RejectionReason = reason
	a.UpdatedAt = now
}

// CanReapply checks that the application is in the re-enterable REJECTED
// state. REJECTED implies the applicant was never provisioned, so CustomerID
// is guaranteed zero here.
func (a *Application) CanReapply() error {
	if !a.Status.CanTransitionTo(domain.KycStatusPending) {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"application %s is %s; only REJECTED applications can reapply", a.ID, a.Status)
	}
	return nil
}

// ApplyReapplication moves a REJECTED application back to PENDING and clears
// the rejection reason. Field merging happens in the service; this method
// only owns the state transition. Call CanReapply first.
func (a *Application) ApplyReapplication(now time.Time) {
	a.Status = domain.KycStatusPending
	a.RejectionReason = ""
	a.UpdatedAt = now
}
