package domain

import dErrors "onboarding/pkg/domain-errors"

// KycStatus is the lifecycle state of a KYC application.
//
// PENDING is the initial state. VERIFIED is terminal for identity (profile
// edits happen in the customer service afterwards). REJECTED is re-enterable:
// a rejected applicant may reapply, which moves the application back to
// PENDING.
type KycStatus string

const (
	KycStatusPending  KycStatus = "PENDING"
	KycStatusVerified KycStatus = "VERIFIED"
	KycStatusRejected KycStatus = "REJECTED"
)

// validKycStatuses is the single source of truth for valid statuses.
var validKycStatuses = map[KycStatus]bool{
	KycStatusPending:  true,
	KycStatusVerified: true,
	KycStatusRejected: true,
}

// kycTransitions captures the allowed edges of the state machine.
var kycTransitions = map[KycStatus][]KycStatus{
	KycStatusPending:  {KycStatusVerified, KycStatusRejected},
	KycStatusRejected: {KycStatusPending},
	KycStatusVerified: {},
}

// ParseKycStatus constructs a KycStatus from external input.
// Returns CodeInvalidInput when the value is empty or unsupported.
func ParseKycStatus(s string) (KycStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := KycStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status: use PENDING, VERIFIED, or REJECTED")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s KycStatus) IsValid() bool {
	return validKycStatuses[s]
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s KycStatus) CanTransitionTo(next KycStatus) bool {
	for _, allowed := range kycTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s KycStatus) String() string { return string(s) }
