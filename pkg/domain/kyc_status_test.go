package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "onboarding/pkg/domain-errors"
)

func TestParseKycStatus(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseKycStatus("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := ParseKycStatus("APPROVED")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts supported statuses", func(t *testing.T) {
		for _, raw := range []string{"PENDING", "VERIFIED", "REJECTED"} {
			st, err := ParseKycStatus(raw)
			require.NoError(t, err)
			assert.Equal(t, KycStatus(raw), st)
		}
	})
}

// TestKycTransitions pins the lifecycle state machine: PENDING fans out to the
// two terminal decisions, REJECTED can re-enter PENDING, VERIFIED is terminal.
func TestKycTransitions(t *testing.T) {
	cases := []struct {
		from, to KycStatus
		allowed  bool
	}{
		{KycStatusPending, KycStatusVerified, true},
		{KycStatusPending, KycStatusRejected, true},
		{KycStatusRejected, KycStatusPending, true},
		{KycStatusRejected, KycStatusVerified, false},
		{KycStatusVerified, KycStatusPending, false},
		{KycStatusVerified, KycStatusRejected, false},
		{KycStatusPending, KycStatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}
