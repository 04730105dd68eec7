package domain

import (
	"github.com/google/uuid"

	dErrors "onboarding/pkg/domain-errors"
)

// ApplicationID identifies a KYC application. Distinct types per entity keep
// IDs from being mixed up at compile time.
type ApplicationID uuid.UUID

// CustomerID identifies a customer record in the downstream customer service.
// The customer service assigns it; zero means "not yet provisioned".
type CustomerID int64

// NewApplicationID returns a fresh random application ID.
func NewApplicationID() ApplicationID {
	return ApplicationID(uuid.New())
}

// ParseApplicationID constructs an ApplicationID from external input.
// Rejects empty, malformed, and nil UUIDs at the trust boundary.
func ParseApplicationID(s string) (ApplicationID, error) {
	if s == "" {
		return ApplicationID{}, dErrors.New(dErrors.CodeInvalidInput, "application id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ApplicationID{}, dErrors.New(dErrors.CodeInvalidInput, "application id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return ApplicationID{}, dErrors.New(dErrors.CodeInvalidInput, "application id cannot be the nil UUID")
	}
	return ApplicationID(parsed), nil
}

func (id ApplicationID) String() string { return uuid.UUID(id).String() }

func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the ID as its canonical UUID string in JSON and logs.
func (id ApplicationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses an ID from JSON with the same rules as
// ParseApplicationID.
func (id *ApplicationID) UnmarshalText(text []byte) error {
	parsed, err := ParseApplicationID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id CustomerID) IsNil() bool { return id == 0 }
