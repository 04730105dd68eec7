// Package store persists KYC applications. Implementations come in memory
// and Postgres flavors behind one interface so domain logic stays testable.
package store

import (
	"context"
	"time"

	"onboarding/internal/kyc/models"
	"onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
)

// DuplicateError reports which identity field collided. It unwraps to
// sentinel.ErrAlreadyUsed so callers can branch on the class without losing
// the field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string { return e.Field + " already in use" }

func (e *DuplicateError) Unwrap() error { return sentinel.ErrAlreadyUsed }

// Store is the persistence port for KYC applications.
//
// Create and CheckIdentityAvailable enforce the global uniqueness of
// email/username/PAN/Aadhaar/nominee-Aadhaar; the store is the final arbiter
// when two submissions race on the same identity.
//
// Execute atomically runs validate-then-mutate while holding the row
// (mutex in memory, SELECT ... FOR UPDATE in Postgres). It is the primitive
// behind every status transition.
type Store interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id domain.ApplicationID) (*models.Application, error)

	// FindByKeyword returns the single best match for an identity lookup:
	// case-insensitive substring on full name, username, and email; exact
	// match on PAN and Aadhaar. sentinel.ErrNotFound when nothing matches.
	FindByKeyword(ctx context.Context, keyword string) (*models.Application, error)

	// Search returns all keyword matches for the admin dashboard:
	// case-insensitive substring on name/email/phone/address/status, exact
	// on PAN, Aadhaar, and ID.
	Search(ctx context.Context, keyword string) ([]*models.Application, error)

	List(ctx context.Context, offset, limit int) ([]*models.Application, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status domain.KycStatus) (int64, error)
	LatestByStatus(ctx context.Context, status domain.KycStatus, limit int) ([]*models.Application, error)
	CreatedBetween(ctx context.Context, start, end time.Time) ([]*models.Application, error)

	// CheckIdentityAvailable reports *DuplicateError for the first taken
	// field. exclude skips one application (a reapplication does not
	// collide with itself); pass a nil UUID to check all rows.
	CheckIdentityAvailable(ctx context.Context, identity models.Identity, exclude domain.ApplicationID) error

	Execute(ctx context.Context, id domain.ApplicationID,
		validate func(*models.Application) error,
		mutate func(*models.Application)) (*models.Application, error)
}
