package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
)

func pendingApplication() *Application {
	now := time.Now()
	return &Application{
		ID:        domain.NewApplicationID(),
		FullName:  "Asha Rao",
		Email:     "asha.rao@example.com",
		Username:  "asharao",
		PAN:       "ABCDE1234F",
		Aadhaar:   "123412341234",
		Status:    domain.KycStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCanDecide(t *testing.T) {
	t.Run("pending application can be decided", func(t *testing.T) {
		require.NoError(t, pendingApplication().CanDecide())
	})

	t.Run("verified application cannot be decided again", func(t *testing.T) {
		app := pendingApplication()
		app.ApplyVerified(domain.CustomerID(7), time.Now())

		err := app.CanDecide()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("rejected application cannot be decided again", func(t *testing.T) {
		app := pendingApplication()
		app.ApplyRejection("document unclear", time.Now())

		err := app.CanDecide()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

// TestCustomerIDInvariant pins the provisioning invariant: VERIFIED always
// carries a customer ID, and the PENDING-with-ID checkpoint keeps the
// application decidable so a retry can resume.
func TestCustomerIDInvariant(t *testing.T) {
	app := pendingApplication()

	app.ApplyCustomerID(domain.CustomerID(42), time.Now())
	assert.Equal(t, domain.KycStatusPending, app.Status)
	assert.Equal(t, domain.CustomerID(42), app.CustomerID)
	require.NoError(t, app.CanDecide(), "checkpointed application must stay resumable")

	app.ApplyVerified(app.CustomerID, time.Now())
	assert.Equal(t, domain.KycStatusVerified, app.Status)
	assert.False(t, app.CustomerID.IsNil())
}

func TestReapplication(t *testing.T) {
	t.Run("rejected application reapplies back to pending", func(t *testing.T) {
		app := pendingApplication()
		app.ApplyRejection("blurry photo", time.Now())

		require.NoError(t, app.CanReapply())
		app.ApplyReapplication(time.Now())

		assert.Equal(t, domain.KycStatusPending, app.Status)
		assert.Empty(t, app.RejectionReason, "rejection reason must clear on leaving REJECTED")
		assert.True(t, app.CustomerID.IsNil())
	})

	t.Run("pending application cannot reapply", func(t *testing.T) {
		err := pendingApplication().CanReapply()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("verified application cannot reapply", func(t *testing.T) {
		app := pendingApplication()
		app.ApplyVerified(domain.CustomerID(9), time.Now())

		err := app.CanReapply()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func TestIdentityIncludesNominee(t *testing.T) {
	app := pendingApplication()
	assert.Empty(t, app.Identity().NomineeAadhaar)

	app.Nominee = &Nominee{Name: "Ravi Rao", Aadhaar: "999912341234"}
	assert.Equal(t, "999912341234", app.Identity().NomineeAadhaar)
}
