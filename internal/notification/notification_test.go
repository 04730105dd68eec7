package notification

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding/pkg/attrs"
	"onboarding/pkg/domain"
	"onboarding/pkg/testutil"
)

// captureHandler collects each record's attributes as a flat key-value slice.
type captureHandler struct {
	mu      sync.Mutex
	records [][]any
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	kv := []any{"msg", r.Message}
	r.Attrs(func(a slog.Attr) bool {
		kv = append(kv, a.Key, a.Value.Any())
		return true
	})
	h.mu.Lock()
	h.records = append(h.records, kv)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func TestLogEmitter(t *testing.T) {
	handler := &captureHandler{}
	emitter := NewLogEmitter(slog.New(handler))
	appID := domain.NewApplicationID()

	testutil.When(t, "a new application event is emitted", func(t *testing.T) {
		emitter.EmitNewApplication(context.Background(), NewApplicationEvent{
			ApplicationID:  appID,
			ApplicantName:  "Asha Rao",
			ApplicantEmail: "asha@example.com",
		})

		require.Len(t, handler.records, 1)
		record := handler.records[0]
		assert.Equal(t, "new application event", attrs.ExtractString(record, "msg"))
		assert.Equal(t, "asha@example.com", attrs.ExtractString(record, "applicant_email"))
	})

	testutil.When(t, "a status update event is emitted", func(t *testing.T) {
		emitter.EmitStatusUpdate(context.Background(), StatusUpdateEvent{
			ApplicationID: appID,
			NewStatus:     domain.KycStatusVerified,
			AccountNumber: "ACC-0001",
		})

		require.Len(t, handler.records, 2)
		record := handler.records[1]
		assert.Equal(t, "status update event", attrs.ExtractString(record, "msg"))
		assert.Equal(t, "ACC-0001", attrs.ExtractString(record, "account_number"))
	})
}

func TestCaptureEmitter(t *testing.T) {
	emitter := NewCaptureEmitter()
	emitter.EmitNewApplication(context.Background(), NewApplicationEvent{ApplicantEmail: "a@example.com"})
	emitter.EmitStatusUpdate(context.Background(), StatusUpdateEvent{NewStatus: domain.KycStatusRejected})

	captured := emitter.CapturedNewApplications()
	require.Len(t, captured, 1)

	// Snapshots are copies: appending to one must not alias the internal slice.
	captured[0].ApplicantEmail = "mutated@example.com"
	assert.Equal(t, "a@example.com", emitter.CapturedNewApplications()[0].ApplicantEmail)

	updates := emitter.CapturedStatusUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, domain.KycStatusRejected, updates[0].NewStatus)
}
