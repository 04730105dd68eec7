package onboarding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"onboarding/internal/collaborator/account"
	"onboarding/internal/collaborator/customer"
	"onboarding/internal/kyc/models"
	"onboarding/internal/kyc/store"
	"onboarding/internal/notification"
	"onboarding/internal/onboarding/mocks"
	"onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
)

type OrchestratorSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	mockCustomers *mocks.MockCustomerProvisioner
	mockAccounts  *mocks.MockAccountProvisioner
	store         *store.MemoryStore
	emitter       *notification.CaptureEmitter
	orchestrator  *Orchestrator
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockCustomers = mocks.NewMockCustomerProvisioner(s.ctrl)
	s.mockAccounts = mocks.NewMockAccountProvisioner(s.ctrl)
	s.store = store.NewMemoryStore()
	s.emitter = notification.NewCaptureEmitter()
	s.orchestrator = New(s.store, s.mockCustomers, s.mockAccounts,
		WithEmitter(s.emitter),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *OrchestratorSuite) TearDownTest() {
	s.ctrl.Finish()
}

// newPendingApplication seeds a PENDING fixture. Identity fields are
// randomized so repeated seeding within one test does not trip the store's
// uniqueness check.
func (s *OrchestratorSuite) newPendingApplication() *models.Application {
	now := time.Now()
	suffix := uuid.NewString()[:8]
	app := &models.Application{
		ID:                   domain.NewApplicationID(),
		FullName:             "Asha Rao",
		Email:                fmt.Sprintf("asha-%s@example.com", suffix),
		Username:             "asha" + suffix,
		Phone:                "9876543210",
		PAN:                  "AB" + suffix[:4] + "34F",
		Aadhaar:              "1234" + suffix,
		PasswordHash:         "$2a$10$abcdefghijklmnopqrstuv",
		RequestedAccountType: "SAVINGS",
		Status:               domain.KycStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	s.Require().NoError(s.store.Create(context.Background(), app))
	return app
}

// recordingGuard stands in for the intake service's identity check.
type recordingGuard struct {
	calls int
	err   error
}

func (g *recordingGuard) GuardUniqueness(context.Context, models.Identity, domain.ApplicationID) error {
	g.calls++
	return g.err
}

func activeAccount(customerID domain.CustomerID) *account.Account {
	return &account.Account{
		AccountNumber: "ACC-0001",
		CustomerID:    customerID,
		Type:          "SAVINGS",
		Status:        account.StatusActive,
		RoutingCode:   "ONBD0001234",
	}
}

func (s *OrchestratorSuite) TestApprove() {
	ctx := context.Background()
	app := s.newPendingApplication()

	s.mockCustomers.EXPECT().
		CreateFromApplication(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req customer.CreateRequest) (domain.CustomerID, error) {
			s.Equal(app.Email, req.Email)
			s.Equal(app.PasswordHash, req.PasswordHash, "the hash travels to the customer service")
			return domain.CustomerID(42), nil
		})
	s.mockAccounts.EXPECT().
		CreateInactive(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req account.CreateRequest) (*account.Account, error) {
			s.Equal(domain.CustomerID(42), req.CustomerID)
			s.Equal("SAVINGS", req.AccountType)
			acct := activeAccount(42)
			acct.Status = account.StatusInactive
			return acct, nil
		})
	s.mockAccounts.EXPECT().
		Activate(gomock.Any(), domain.CustomerID(42)).
		Return(activeAccount(42), nil)

	outcome, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Approve: true})
	s.Require().NoError(err)

	s.Equal(domain.KycStatusVerified, outcome.Application.Status)
	s.Equal(domain.CustomerID(42), outcome.Application.CustomerID)
	s.Equal("ACC-0001", outcome.Account.AccountNumber)

	events := s.emitter.CapturedStatusUpdates()
	s.Require().Len(events, 1)
	s.Equal(domain.KycStatusVerified, events[0].NewStatus)
	s.Equal("ACC-0001", events[0].AccountNumber)
	s.Empty(events[0].RejectionReason)
}

// TestApproveRechecksIdentity pins the pre-provisioning guard: an identity
// that became taken after submission fails the approval as a conflict before
// any collaborator call, and a checkpointed retry skips the re-check.
func (s *OrchestratorSuite) TestApproveRechecksIdentity() {
	ctx := context.Background()

	s.Run("a taken identity blocks provisioning", func() {
		app := s.newPendingApplication()
		guard := &recordingGuard{err: dErrors.New(dErrors.CodeConflict, "pan already belongs to a verified customer")}
		o := New(s.store, s.mockCustomers, s.mockAccounts,
			WithUniquenessGuard(guard),
			WithEmitter(s.emitter),
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)

		// No provisioner expectations: the conflict must stop the approval
		// before any collaborator is touched.
		_, err := o.ProcessDecision(ctx, app.ID, Decision{Approve: true})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict), err.Error())
		s.Equal(1, guard.calls)

		got, err := s.store.FindByID(ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(domain.KycStatusPending, got.Status)
		s.Empty(s.emitter.CapturedStatusUpdates())
	})

	s.Run("a checkpointed retry skips the re-check", func() {
		app := s.newPendingApplication()
		_, err := s.store.Execute(ctx, app.ID,
			func(*models.Application) error { return nil },
			func(a *models.Application) { a.ApplyCustomerID(42, time.Now()) })
		s.Require().NoError(err)

		guard := &recordingGuard{err: dErrors.New(dErrors.CodeConflict, "would wrongly block the retry")}
		o := New(s.store, s.mockCustomers, s.mockAccounts,
			WithUniquenessGuard(guard),
			WithEmitter(s.emitter),
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		s.mockAccounts.EXPECT().
			CreateInactive(gomock.Any(), gomock.Any()).
			Return(activeAccount(42), nil)
		s.mockAccounts.EXPECT().
			Activate(gomock.Any(), domain.CustomerID(42)).
			Return(activeAccount(42), nil)

		outcome, err := o.ProcessDecision(ctx, app.ID, Decision{Approve: true})
		s.Require().NoError(err)
		s.Equal(domain.KycStatusVerified, outcome.Application.Status)
		s.Zero(guard.calls, "the checkpointed customer already exists")
	})
}

// TestCustomerConflictIsNotRetryable: a conflict answer from the customer
// service is permanent, so it must not wear the retryable dependency code.
func (s *OrchestratorSuite) TestCustomerConflictIsNotRetryable() {
	ctx := context.Background()
	app := s.newPendingApplication()

	s.mockCustomers.EXPECT().
		CreateFromApplication(gomock.Any(), gomock.Any()).
		Return(domain.CustomerID(0), dErrors.New(dErrors.CodeConflict, "email already registered"))

	_, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Approve: true})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), err.Error())
	s.False(dErrors.HasCode(err, dErrors.CodeDependencyFailed))

	got, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(domain.KycStatusPending, got.Status)
	s.True(got.CustomerID.IsNil())
}

func (s *OrchestratorSuite) TestReject() {
	ctx := context.Background()

	s.Run("stores the reason and emits it", func() {
		app := s.newPendingApplication()

		outcome, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Reason: "document unclear"})
		s.Require().NoError(err)

		s.Equal(domain.KycStatusRejected, outcome.Application.Status)
		s.Equal("document unclear", outcome.Application.RejectionReason)
		s.True(outcome.Application.CustomerID.IsNil(), "rejection must not provision anything")
		s.Nil(outcome.Account)

		events := s.emitter.CapturedStatusUpdates()
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(domain.KycStatusRejected, last.NewStatus)
		s.Equal("document unclear", last.RejectionReason)
	})

	s.Run("requires a reason", func() {
		app := s.newPendingApplication()

		_, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Reason: "   "})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		got, err := s.store.FindByID(ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(domain.KycStatusPending, got.Status)
	})
}

func (s *OrchestratorSuite) TestDecisionOnSettledApplication() {
	ctx := context.Background()
	app := s.newPendingApplication()

	_, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Reason: "document unclear"})
	s.Require().NoError(err)

	// No provisioning expectations are registered: a second decision must
	// fail before touching any collaborator.
	_, err = s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Approve: true})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *OrchestratorSuite) TestUnknownApplication() {
	_, err := s.orchestrator.ProcessDecision(context.Background(), domain.NewApplicationID(), Decision{Approve: true})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// TestApprovalRetryResumesFromCheckpoint is the partial-failure contract: a
// failure after customer creation leaves a PENDING application carrying the
// customer ID, and the retry skips straight to account provisioning.
func (s *OrchestratorSuite) TestApprovalRetryResumesFromCheckpoint() {
	ctx := context.Background()
	app := s.newPendingApplication()
	downstream := errors.New("account-service: connection refused")

	// Exactly one customer creation across both attempts.
	s.mockCustomers.EXPECT().
		CreateFromApplication(gomock.Any(), gomock.Any()).
		Return(domain.CustomerID(42), nil).
		Times(1)
	first := s.mockAccounts.EXPECT().
		CreateInactive(gomock.Any(), gomock.Any()).
		Return(nil, downstream)
	s.mockAccounts.EXPECT().
		CreateInactive(gomock.Any(), gomock.Any()).
		Return(activeAccount(42), nil).
		After(first)
	s.mockAccounts.EXPECT().
		Activate(gomock.Any(), domain.CustomerID(42)).
		Return(activeAccount(42), nil)

	_, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Approve: true})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDependencyFailed))

	var provErr *ProvisioningError
	s.Require().ErrorAs(err, &provErr)
	s.Equal(StageAccount, provErr.Stage)

	checkpointed, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(domain.KycStatusPending, checkpointed.Status, "failed approval must stay PENDING")
	s.Equal(domain.CustomerID(42), checkpointed.CustomerID, "checkpoint must persist")
	s.Empty(s.emitter.CapturedStatusUpdates(), "no event until the decision completes")

	outcome, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Approve: true})
	s.Require().NoError(err)
	s.Equal(domain.KycStatusVerified, outcome.Application.Status)
	s.Equal(domain.CustomerID(42), outcome.Application.CustomerID)
}

// TestRetryAfterAccountConflict covers the crash window between account
// creation and activation: the retry's CreateInactive reports the account
// already exists, and the approval resumes with activation instead of
// failing forever on the same conflict.
func (s *OrchestratorSuite) TestRetryAfterAccountConflict() {
	ctx := context.Background()
	app := s.newPendingApplication()

	s.mockCustomers.EXPECT().
		CreateFromApplication(gomock.Any(), gomock.Any()).
		Return(domain.CustomerID(42), nil).
		Times(1)
	inactive := activeAccount(42)
	inactive.Status = account.StatusInactive
	firstCreate := s.mockAccounts.EXPECT().
		CreateInactive(gomock.Any(), gomock.Any()).
		Return(inactive, nil)
	firstActivate := s.mockAccounts.EXPECT().
		Activate(gomock.Any(), domain.CustomerID(42)).
		Return(nil, errors.New("account-service: connection reset")).
		After(firstCreate)
	s.mockAccounts.EXPECT().
		CreateInactive(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "account already exists for customer")).
		After(firstActivate)
	s.mockAccounts.EXPECT().
		Activate(gomock.Any(), domain.CustomerID(42)).
		Return(activeAccount(42), nil).
		After(firstActivate)

	_, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Approve: true})
	s.Require().Error(err)

	var provErr *ProvisioningError
	s.Require().ErrorAs(err, &provErr)
	s.Equal(StageActivation, provErr.Stage)

	outcome, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Approve: true})
	s.Require().NoError(err)
	s.Equal(domain.KycStatusVerified, outcome.Application.Status)
	s.Equal("ACC-0001", outcome.Account.AccountNumber)

	events := s.emitter.CapturedStatusUpdates()
	s.Require().Len(events, 1)
	s.Equal(domain.KycStatusVerified, events[0].NewStatus)
}

func (s *OrchestratorSuite) TestCustomerStageFailureLeavesNoCheckpoint() {
	ctx := context.Background()
	app := s.newPendingApplication()

	s.mockCustomers.EXPECT().
		CreateFromApplication(gomock.Any(), gomock.Any()).
		Return(domain.CustomerID(0), errors.New("customer-service: 503"))

	_, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Approve: true})
	s.Require().Error(err)

	var provErr *ProvisioningError
	s.Require().ErrorAs(err, &provErr)
	s.Equal(StageCustomer, provErr.Stage)

	got, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(domain.KycStatusPending, got.Status)
	s.True(got.CustomerID.IsNil(), "stage-one failure must not record a customer")
}

func (s *OrchestratorSuite) TestActivationFailureRetainsCheckpoint() {
	ctx := context.Background()
	app := s.newPendingApplication()

	s.mockCustomers.EXPECT().
		CreateFromApplication(gomock.Any(), gomock.Any()).
		Return(domain.CustomerID(42), nil)
	inactive := activeAccount(42)
	inactive.Status = account.StatusInactive
	s.mockAccounts.EXPECT().
		CreateInactive(gomock.Any(), gomock.Any()).
		Return(inactive, nil)
	s.mockAccounts.EXPECT().
		Activate(gomock.Any(), domain.CustomerID(42)).
		Return(nil, errors.New("account-service: timeout"))

	_, err := s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Approve: true})
	s.Require().Error(err)

	var provErr *ProvisioningError
	s.Require().ErrorAs(err, &provErr)
	s.Equal(StageActivation, provErr.Stage)

	got, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(domain.KycStatusPending, got.Status)
	s.Equal(domain.CustomerID(42), got.CustomerID)
}

// TestConcurrentApprovals pins the serialization contract: N simultaneous
// approvals of one application provision exactly once; the rest observe the
// committed VERIFIED state.
func (s *OrchestratorSuite) TestConcurrentApprovals() {
	ctx := context.Background()
	app := s.newPendingApplication()

	s.mockCustomers.EXPECT().
		CreateFromApplication(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, customer.CreateRequest) (domain.CustomerID, error) {
			time.Sleep(20 * time.Millisecond) // widen the race window
			return domain.CustomerID(42), nil
		}).
		Times(1)
	s.mockAccounts.EXPECT().
		CreateInactive(gomock.Any(), gomock.Any()).
		Return(activeAccount(42), nil).
		Times(1)
	s.mockAccounts.EXPECT().
		Activate(gomock.Any(), domain.CustomerID(42)).
		Return(activeAccount(42), nil).
		Times(1)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.orchestrator.ProcessDecision(ctx, app.ID, Decision{Approve: true})
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), err.Error())
		}
	}
	s.Equal(1, wins, "exactly one approval must win")

	s.Len(s.emitter.CapturedStatusUpdates(), 1, "exactly one event for the winning approval")
}
