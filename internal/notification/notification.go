// Package notification publishes onboarding lifecycle events to the message
// bus. Emission is fire-and-forget: a broker outage must never fail or delay
// the operation that triggered the event.
package notification

import (
	"context"
	"log/slog"
	"sync"

	"onboarding/pkg/domain"
)

// NewApplicationEvent announces a freshly submitted or resubmitted
// application to downstream consumers (email, back-office queues).
type NewApplicationEvent struct {
	ApplicationID   domain.ApplicationID `json:"applicationId"`
	ApplicantName   string               `json:"applicantName"`
	ApplicantEmail  string               `json:"applicantEmail"`
	IsReapplication bool                 `json:"isReapplication"`
}

// StatusUpdateEvent announces a decision outcome. Account fields are set only
// for approvals.
type StatusUpdateEvent struct {
	ApplicationID   domain.ApplicationID `json:"applicationId"`
	ApplicantName   string               `json:"applicantName"`
	ApplicantEmail  string               `json:"applicantEmail"`
	NewStatus       domain.KycStatus     `json:"newStatus"`
	RejectionReason string               `json:"rejectionReason,omitempty"`
	AccountNumber   string               `json:"accountNumber,omitempty"`
	AccountType     string               `json:"accountType,omitempty"`
	RoutingCode     string               `json:"routingCode,omitempty"`
}

// Emitter is the outbound event port. Implementations must not block on
// broker availability.
type Emitter interface {
	EmitNewApplication(ctx context.Context, event NewApplicationEvent)
	EmitStatusUpdate(ctx context.Context, event StatusUpdateEvent)
}

// LogEmitter writes events to the log. Used when no broker is configured.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) EmitNewApplication(ctx context.Context, event NewApplicationEvent) {
	e.logger.InfoContext(ctx, "new application event",
		"application_id", event.ApplicationID,
		"applicant_email", event.ApplicantEmail,
		"reapplication", event.IsReapplication)
}

func (e *LogEmitter) EmitStatusUpdate(ctx context.Context, event StatusUpdateEvent) {
	e.logger.InfoContext(ctx, "status update event",
		"application_id", event.ApplicationID,
		"new_status", event.NewStatus,
		"account_number", event.AccountNumber)
}

// CaptureEmitter records events for assertions in tests.
type CaptureEmitter struct {
	mu              sync.Mutex
	NewApplications []NewApplicationEvent
	StatusUpdates   []StatusUpdateEvent
}

func NewCaptureEmitter() *CaptureEmitter { return &CaptureEmitter{} }

func (e *CaptureEmitter) EmitNewApplication(_ context.Context, event NewApplicationEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewApplications = append(e.NewApplications, event)
}

func (e *CaptureEmitter) EmitStatusUpdate(_ context.Context, event StatusUpdateEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.StatusUpdates = append(e.StatusUpdates, event)
}

// CapturedNewApplications returns a snapshot safe to inspect concurrently.
func (e *CaptureEmitter) CapturedNewApplications() []NewApplicationEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]NewApplicationEvent, len(e.NewApplications))
	copy(out, e.NewApplications)
	return out
}

// CapturedStatusUpdates returns a snapshot safe to inspect concurrently.
func (e *CaptureEmitter) CapturedStatusUpdates() []StatusUpdateEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StatusUpdateEvent, len(e.StatusUpdates))
	copy(out, e.StatusUpdates)
	return out
}
