// Package onboarding orchestrates approval and rejection decisions across
// the customer and account collaborators.
//
// The approval protocol is a three-stage sequence: create the customer,
// create an inactive account, activate it. Only after all three does the
// application flip to VERIFIED. The customer ID is checkpointed on the
// PENDING application as soon as stage one commits, so a retried approval
// after a later failure resumes at account creation instead of provisioning
// a second customer.
package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"onboarding/internal/collaborator/account"
	"onboarding/internal/collaborator/customer"
	"onboarding/internal/kyc/models"
	"onboarding/internal/kyc/store"
	"onboarding/internal/notification"
	"onboarding/internal/onboarding/metrics"
	"onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/requestcontext"
)

//go:generate mockgen -source=orchestrator.go -destination=mocks/mocks.go -package=mocks CustomerProvisioner,AccountProvisioner

// CustomerProvisioner is the slice of the customer service the orchestrator
// needs.
type CustomerProvisioner interface {
	CreateFromApplication(ctx context.Context, req customer.CreateRequest) (domain.CustomerID, error)
}

// AccountProvisioner is the slice of the account service the orchestrator
// needs.
type AccountProvisioner interface {
	CreateInactive(ctx context.Context, req account.CreateRequest) (*account.Account, error)
	Activate(ctx context.Context, customerID domain.CustomerID) (*account.Account, error)
}

// UniquenessGuard re-checks identity availability. The approval path runs it
// immediately before provisioning the customer: an identity that became taken
// after submission must fail the decision as a conflict, not as a retryable
// collaborator error.
type UniquenessGuard interface {
	GuardUniqueness(ctx context.Context, identity models.Identity, exclude domain.ApplicationID) error
}

// storeGuard is the local-only fallback guard. The service-backed guard adds
// the remote PAN check on top.
type storeGuard struct {
	store store.Store
}

func (g storeGuard) GuardUniqueness(ctx context.Context, identity models.Identity, exclude domain.ApplicationID) error {
	return g.store.CheckIdentityAvailable(ctx, identity, exclude)
}

// Decision is an admin's verdict on a PENDING application.
type Decision struct {
	Approve bool
	Reason  string
}

// Outcome reports the post-decision state. Account is set only for
// approvals.
type Outcome struct {
	Application *models.Application
	Account     *account.Account
}

// Orchestrator drives the decision protocol.
type Orchestrator struct {
	store     store.Store
	customers CustomerProvisioner
	accounts  AccountProvisioner
	guard     UniquenessGuard
	emitter   notification.Emitter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	locks     decisionLocks
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithUniquenessGuard replaces the local-only guard, typically with the
// intake service so the pre-provisioning check covers verified customers too.
func WithUniquenessGuard(guard UniquenessGuard) Option {
	return func(o *Orchestrator) { o.guard = guard }
}

// WithEmitter sets the notification emitter.
func WithEmitter(emitter notification.Emitter) Option {
	return func(o *Orchestrator) { o.emitter = emitter }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics enables decision metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New wires the orchestrator.
func New(st store.Store, customers CustomerProvisioner, accounts AccountProvisioner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     st,
		customers: customers,
		accounts:  accounts,
		guard:     storeGuard{store: st},
		emitter:   notification.NewLogEmitter(nil),
		logger:    slog.Default(),
		tracer:    otel.Tracer("onboarding/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessDecision applies an approve or reject decision to a PENDING
// application. Safe to retry: a failed approval leaves the application
// PENDING (with a customer checkpoint if stage one committed) and the next
// call resumes where it left off. Concurrent decisions on one application
// serialize; the loser gets an invalid-state error.
func (o *Orchestrator) ProcessDecision(ctx context.Context, id domain.ApplicationID, decision Decision) (*Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "onboarding.decision",
		trace.WithAttributes(
			attribute.String("application.id", id.String()),
			attribute.Bool("decision.approve", decision.Approve),
		))
	defer span.End()

	start := time.Now()
	unlock := o.locks.lock(id)
	defer unlock()

	var (
		outcome *Outcome
		err     error
	)
	if decision.Approve {
		outcome, err = o.approve(ctx, id)
		o.metrics.ObserveDecisionDuration("approve", time.Since(start).Seconds())
	} else {
		outcome, err = o.reject(ctx, id, decision.Reason)
		o.metrics.ObserveDecisionDuration("reject", time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		o.recordFailure(err)
		return nil, err
	}
	return outcome, nil
}

func (o *Orchestrator) approve(ctx context.Context, id domain.ApplicationID) (*Outcome, error) {
	app, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := app.CanDecide(); err != nil {
		return nil, err
	}

	customerID := app.CustomerID
	if customerID.IsNil() {
		// The identity may have become taken since submission (another
		// approval, a direct customer registration). Re-check before spending
		// a customer-service call; a checkpointed retry skips this, its
		// customer already exists.
		if err := o.guard.GuardUniqueness(ctx, app.Identity(), app.ID); err != nil {
			return nil, translateStoreErr(err)
		}
		customerID, err = o.provisionCustomer(ctx, app)
		if err != nil {
			return nil, err
		}
		// Persist the checkpoint before touching the account service: if the
		// process dies past this point, a retry must find the customer ID and
		// skip stage one.
		app, err = o.store.Execute(ctx, id,
			func(a *models.Application) error { return a.CanDecide() },
			func(a *models.Application) { a.ApplyCustomerID(customerID, requestcontext.Now(ctx)) })
		if err != nil {
			return nil, translateStoreErr(err)
		}
	} else {
		o.logger.InfoContext(ctx, "resuming approval from customer checkpoint",
			"application_id", id, "customer_id", int64(customerID))
	}

	acct, err := o.provisionAccount(ctx, app, customerID)
	if err != nil {
		return nil, err
	}

	app, err = o.store.Execute(ctx, id,
		func(a *models.Application) error { return a.CanDecide() },
		func(a *models.Application) { a.ApplyVerified(customerID, requestcontext.Now(ctx)) })
	if err != nil {
		return nil, translateStoreErr(err)
	}

	o.logger.InfoContext(ctx, "application approved",
		"application_id", id,
		"customer_id", int64(customerID),
		"account_number", acct.AccountNumber,
		"actor", requestcontext.Actor(ctx),
		"request_id", requestcontext.RequestID(ctx))
	o.metrics.RecordDecision("approved")

	o.emitter.EmitStatusUpdate(ctx, notification.StatusUpdateEvent{
		ApplicationID:  app.ID,
		ApplicantName:  app.FullName,
		ApplicantEmail: app.Email,
		NewStatus:      domain.KycStatusVerified,
		AccountNumber:  acct.AccountNumber,
		AccountType:    acct.Type,
		RoutingCode:    acct.RoutingCode,
	})
	return &Outcome{Application: app, Account: acct}, nil
}

func (o *Orchestrator) reject(ctx context.Context, id domain.ApplicationID, reason string) (*Outcome, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a rejection reason is required")
	}

	app, err := o.store.Execute(ctx, id,
		func(a *models.Application) error { return a.CanDecide() },
		func(a *models.Application) { a.ApplyRejection(reason, requestcontext.Now(ctx)) })
	if err != nil {
		return nil, translateStoreErr(err)
	}

	o.logger.InfoContext(ctx, "application rejected",
		"application_id", id,
		"reason", reason,
		"actor", requestcontext.Actor(ctx),
		"request_id", requestcontext.RequestID(ctx))
	o.metrics.RecordDecision("rejected")

	o.emitter.EmitStatusUpdate(ctx, notification.StatusUpdateEvent{
		ApplicationID:   app.ID,
		ApplicantName:   app.FullName,
		ApplicantEmail:  app.Email,
		NewStatus:       domain.KycStatusRejected,
		RejectionReason: reason,
	})
	return &Outcome{Application: app}, nil
}

func (o *Orchestrator) provisionCustomer(ctx context.Context, app *models.Application) (domain.CustomerID, error) {
	ctx, span := o.tracer.Start(ctx, "onboarding.provision.customer")
	defer span.End()

	req := customer.CreateRequest{
		ApplicationID: app.ID.String(),
		FullName:      app.FullName,
		DOB:           app.DOB,
		Gender:        app.Gender,
		MaritalStatus: app.MaritalStatus,
		FathersName:   app.FathersName,
		Nationality:   app.Nationality,
		Profession:    app.Profession,
		Address:       app.Address,
		Email:         app.Email,
		Phone:         app.Phone,
		PAN:           app.PAN,
		Aadhaar:       app.Aadhaar,
		Username:      app.Username,
		PasswordHash:  app.PasswordHash,
	}
	if app.Nominee != nil {
		req.Nominee = &customer.Nominee{
			Name:    app.Nominee.Name,
			Mobile:  app.Nominee.Mobile,
			Address: app.Nominee.Address,
			Aadhaar: app.Nominee.Aadhaar,
		}
	}

	customerID, err := o.customers.CreateFromApplication(ctx, req)
	if err != nil {
		span.RecordError(err)
		// A conflict from the customer service is permanent; retrying the
		// approval cannot succeed, so it must not wear the retryable code.
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return 0, dErrors.Wrap(err, dErrors.CodeConflict, "identity already belongs to a customer")
		}
		return 0, o.provisioningFailed(ctx, app.ID, StageCustomer, err)
	}
	span.SetAttributes(attribute.Int64("customer.id", int64(customerID)))
	return customerID, nil
}

func (o *Orchestrator) provisionAccount(ctx context.Context, app *models.Application, customerID domain.CustomerID) (*account.Account, error) {
	ctx, span := o.tracer.Start(ctx, "onboarding.provision.account",
		trace.WithAttributes(attribute.Int64("customer.id", int64(customerID))))
	defer span.End()

	created, err := o.accounts.CreateInactive(ctx, account.CreateRequest{
		CustomerID:        customerID,
		ApplicationID:     app.ID.String(),
		AccountType:       app.RequestedAccountType,
		NetBankingEnabled: app.NetBankingEnabled,
		DebitCardIssued:   app.DebitCardIssued,
		ChequeBookIssued:  app.ChequeBookIssued,
	})
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("account.number", created.AccountNumber))
	case dErrors.HasCode(err, dErrors.CodeConflict) || errors.Is(err, sentinel.ErrConflict):
		// The account survived an earlier attempt that died before
		// activation; activation is the only remaining step.
		o.logger.InfoContext(ctx, "account already provisioned, resuming with activation",
			"application_id", app.ID, "customer_id", int64(customerID))
	default:
		span.RecordError(err)
		return nil, o.provisioningFailed(ctx, app.ID, StageAccount, err)
	}

	activated, err := o.accounts.Activate(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		return nil, o.provisioningFailed(ctx, app.ID, StageActivation, err)
	}
	return activated, nil
}

func (o *Orchestrator) provisioningFailed(ctx context.Context, id domain.ApplicationID, stage Stage, err error) error {
	o.logger.ErrorContext(ctx, "approval provisioning failed",
		"application_id", id,
		"stage", string(stage),
		"error", err)
	o.metrics.RecordProvisioningFailure(string(stage))
	return dErrors.Wrap(&ProvisioningError{Stage: stage, Err: err},
		dErrors.CodeDependencyFailed, "approval left incomplete; retry when the collaborator recovers")
}

func (o *Orchestrator) load(ctx context.Context, id domain.ApplicationID) (*models.Application, error) {
	app, err := o.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return app, nil
}

func (o *Orchestrator) recordFailure(err error) {
	switch {
	case dErrors.HasCode(err, dErrors.CodeInvalidState):
		o.metrics.RecordDecision("invalid_state")
	case dErrors.HasCode(err, dErrors.CodeDependencyFailed):
		o.metrics.RecordDecision("failed")
	}
}

func translateStoreErr(err error) error {
	var dup *store.DuplicateError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &dup):
		return dErrors.Newf(dErrors.CodeConflict, "%s already in use", dup.Field)
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "identity already in use")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "application not found")
	default:
		return err
	}
}
