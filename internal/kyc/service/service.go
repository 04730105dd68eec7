// Package service implements KYC application intake: validation, the
// uniqueness guard, credential hashing, document encoding, and the
// reapplication cycle after rejection.
package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"onboarding/internal/collaborator/customer"
	"onboarding/internal/document"
	"onboarding/internal/kyc/models"
	"onboarding/internal/kyc/store"
	"onboarding/internal/notification"
	"onboarding/internal/platform/metrics"
	"onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/sentinel"
	"onboarding/pkg/requestcontext"
)

var (
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadhaarPattern = regexp.MustCompile(`^[0-9]{12}$`)
	phonePattern   = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// PanDirectory answers whether a PAN already belongs to a verified customer.
// Satisfied by the customer service client.
type PanDirectory interface {
	FindByPAN(ctx context.Context, pan string) (*customer.Profile, error)
	Available() bool
}

// Service owns application intake and reapplication.
type Service struct {
	store   store.Store
	pans    PanDirectory
	emitter notification.Emitter
	hasher  PasswordHasher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithPanDirectory enables the remote half of the uniqueness guard.
func WithPanDirectory(pans PanDirectory) Option {
	return func(s *Service) { s.pans = pans }
}

// WithEmitter sets the notification emitter.
func WithEmitter(emitter notification.Emitter) Option {
	return func(s *Service) { s.emitter = emitter }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithHasher replaces the bcrypt hasher, mainly to keep unit tests fast.
func WithHasher(hasher PasswordHasher) Option {
	return func(s *Service) { s.hasher = hasher }
}

// WithMetrics enables intake counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the intake service. Defaults: no remote PAN check, log
// emitter, bcrypt hashing.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		emitter: notification.NewLogEmitter(nil),
		hasher:  NewBcryptHasher(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DocumentUpload is a raw uploaded file prior to encoding.
type DocumentUpload struct {
	Data        []byte
	ContentType string
}

// SubmitRequest carries a first-time application.
type SubmitRequest struct {
	FullName      string
	DOB           string
	Gender        string
	MaritalStatus string
	FathersName   string
	Nationality   string
	Profession    string
	Address       string
	Email         string
	Phone         string

	PAN     string
	Aadhaar string

	Username string
	Password string

	RequestedAccountType string
	NetBankingEnabled    bool
	DebitCardIssued      bool
	ChequeBookIssued     bool

	Nominee *models.Nominee

	PassportPhoto *DocumentUpload
	PANDocument   *DocumentUpload
	AadhaarProof  *DocumentUpload
}

// ReapplyRequest carries the editable fields of a reapplication. Identity
// fields (email, username, PAN, Aadhaar) and credentials are immutable after
// first submission.
type ReapplyRequest struct {
	FullName      string
	Gender        string
	MaritalStatus string
	FathersName   string
	Nationality   string
	Profession    string
	Address       string
	Phone         string

	RequestedAccountType string
	NetBankingEnabled    bool
	DebitCardIssued      bool
	ChequeBookIssued     bool

	// Nil clears any existing nominee.
	Nominee *models.Nominee

	// Nil slots retain the documents from the prior submission.
	PassportPhoto *DocumentUpload
	PANDocument   *DocumentUpload
	AadhaarProof  *DocumentUpload
}

// Submit validates, guards uniqueness, and persists a new PENDING
// application, then emits the submission event.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Application, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	app := &models.Application{
		ID:                   domain.NewApplicationID(),
		FullName:             req.FullName,
		DOB:                  req.DOB,
		Gender:               req.Gender,
		MaritalStatus:        req.MaritalStatus,
		FathersName:          req.FathersName,
		Nationality:          req.Nationality,
		Profession:           req.Profession,
		Address:              req.Address,
		Email:                req.Email,
		Phone:                req.Phone,
		PAN:                  req.PAN,
		Aadhaar:              req.Aadhaar,
		Username:             req.Username,
		RequestedAccountType: req.RequestedAccountType,
		NetBankingEnabled:    req.NetBankingEnabled,
		DebitCardIssued:      req.DebitCardIssued,
		ChequeBookIssued:     req.ChequeBookIssued,
		Nominee:              req.Nominee,
		Status:               domain.KycStatusPending,
		CreatedAt:            requestcontext.Now(ctx),
		UpdatedAt:            requestcontext.Now(ctx),
	}
	applyUploads(app, req.PassportPhoto, req.PANDocument, req.AadhaarProof)

	if err := s.guardUniqueness(ctx, app.Identity(), domain.ApplicationID{}); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash credentials")
	}
	app.PasswordHash = hash

	if err := s.store.Create(ctx, app); err != nil {
		return nil, translateStoreErr(err)
	}

	s.logger.InfoContext(ctx, "application submitted",
		"application_id", app.ID, "username", app.Username,
		"request_id", requestcontext.RequestID(ctx))
	if s.metrics != nil {
		s.metrics.IncrementApplicationsSubmitted()
	}
	s.emitter.EmitNewApplication(ctx, notification.NewApplicationEvent{
		ApplicationID:  app.ID,
		ApplicantName:  app.FullName,
		ApplicantEmail: app.Email,
	})
	return app, nil
}

// Reapply merges updated fields into a REJECTED application, clears the
// rejection reason, returns it to PENDING, and emits a reapplication-flagged
// event. Document slots without replacements keep their prior contents.
func (s *Service) Reapply(ctx context.Context, id domain.ApplicationID, req ReapplyRequest) (*models.Application, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	// Identity fields are immutable, but a new or changed nominee can still
	// collide with another applicant; the guard must not be bypassed.
	merged := current.Identity()
	merged.NomineeAadhaar = ""
	if req.Nominee != nil {
		merged.NomineeAadhaar = req.Nominee.Aadhaar
	}
	if err := s.guardUniqueness(ctx, merged, id); err != nil {
		return nil, err
	}

	updated, err := s.store.Execute(ctx, id,
		func(app *models.Application) error { return app.CanReapply() },
		func(app *models.Application) {
			app.FullName = req.FullName
			app.Gender = req.Gender
			app.MaritalStatus = req.MaritalStatus
			app.FathersName = req.FathersName
			app.Nationality = req.Nationality
			app.Profession = req.Profession
			app.Address = req.Address
			app.Phone = req.Phone
			app.RequestedAccountType = req.RequestedAccountType
			app.NetBankingEnabled = req.NetBankingEnabled
			app.DebitCardIssued = req.DebitCardIssued
			app.ChequeBookIssued = req.ChequeBookIssued
			app.Nominee = req.Nominee
			applyUploads(app, req.PassportPhoto, req.PANDocument, req.AadhaarProof)
			app.ApplyReapplication(requestcontext.Now(ctx))
		})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	s.logger.InfoContext(ctx, "application resubmitted",
		"application_id", updated.ID,
		"request_id", requestcontext.RequestID(ctx))
	if s.metrics != nil {
		s.metrics.IncrementReapplications()
	}
	s.emitter.EmitNewApplication(ctx, notification.NewApplicationEvent{
		ApplicationID:   updated.ID,
		ApplicantName:   updated.FullName,
		ApplicantEmail:  updated.Email,
		IsReapplication: true,
	})
	return updated, nil
}

// Get fetches one application.
func (s *Service) Get(ctx context.Context, id domain.ApplicationID) (*models.Application, error) {
	app, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return app, nil
}

// GetDocument decodes one of the application's document slots.
func (s *Service) GetDocument(ctx context.Context, id domain.ApplicationID, docType document.Type) ([]byte, string, error) {
	app, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, "", translateStoreErr(err)
	}
	raw, contentType, err := document.Decode(app.Document(docType))
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, "", dErrors.Newf(dErrors.CodeNotFound,
			"application %s has no %s document", id, docType)
	case errors.Is(err, document.ErrMalformed):
		return nil, "", dErrors.Wrap(err, dErrors.CodeBadRequest, "stored document is unreadable")
	case err != nil:
		return nil, "", err
	}
	return raw, contentType, nil
}

// GuardUniqueness re-runs the identity check for an existing application.
// The approval orchestrator calls it immediately before provisioning the
// customer, so an identity taken since submission fails as a conflict.
func (s *Service) GuardUniqueness(ctx context.Context, identity models.Identity, exclude domain.ApplicationID) error {
	return s.guardUniqueness(ctx, identity, exclude)
}

// guardUniqueness runs the two-source identity check: the local store first,
// then verified customers by PAN. A remote outage degrades to local-only; the
// approval path re-checks before provisioning.
func (s *Service) guardUniqueness(ctx context.Context, identity models.Identity, exclude domain.ApplicationID) error {
	if err := s.store.CheckIdentityAvailable(ctx, identity, exclude); err != nil {
		return translateStoreErr(err)
	}
	if s.pans == nil {
		return nil
	}
	_, err := s.pans.FindByPAN(ctx, identity.PAN)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeConflict, "pan already belongs to a verified customer")
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case dErrors.HasCode(err, dErrors.CodeUnavailable):
		s.logger.WarnContext(ctx, "pan directory unavailable, continuing with local uniqueness only",
			"error", err)
		return nil
	default:
		return err
	}
}

func applyUploads(app *models.Application, passport, pan, aadhaar *DocumentUpload) {
	if passport != nil {
		app.PassportPhoto = document.Encode(passport.Data, passport.ContentType)
	}
	if pan != nil {
		app.PANDocument = document.Encode(pan.Data, pan.ContentType)
	}
	if aadhaar != nil {
		app.AadhaarProof = document.Encode(aadhaar.Data, aadhaar.ContentType)
	}
}

// translateStoreErr maps store sentinels onto the error taxonomy, preserving
// the colliding field for duplicates.
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

func (r *SubmitRequest) normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
	r.PAN = strings.ToUpper(strings.TrimSpace(r.PAN))
	r.Aadhaar = strings.TrimSpace(r.Aadhaar)
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Nominee != nil && strings.TrimSpace(r.Nominee.Name) == "" {
		r.Nominee = nil
	}
}

func (r *SubmitRequest) validate() error {
	switch {
	case r.FullName == "":
		return dErrors.New(dErrors.CodeInvalidInput, "full name is required")
	case !emailPattern.MatchString(r.Email):
		return dErrors.New(dErrors.CodeInvalidInput, "a valid email address is required")
	case r.Username == "":
		return dErrors.New(dErrors.CodeInvalidInput, "username is required")
	case len(r.Password) < 8:
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	case !panPattern.MatchString(r.PAN):
		return dErrors.New(dErrors.CodeInvalidInput, "pan must match AAAAA9999A")
	case !aadhaarPattern.MatchString(r.Aadhaar):
		return dErrors.New(dErrors.CodeInvalidInput, "aadhaar must be 12 digits")
	case !phonePattern.MatchString(r.Phone):
		return dErrors.New(dErrors.CodeInvalidInput, "phone must be a valid 10-digit mobile number")
	case r.RequestedAccountType == "":
		return dErrors.New(dErrors.CodeInvalidInput, "requested account type is required")
	}
	if r.Nominee != nil && !aadhaarPattern.MatchString(r.Nominee.Aadhaar) {
		return dErrors.New(dErrors.CodeInvalidInput, "nominee aadhaar must be 12 digits")
	}
	return nil
}

func (r *ReapplyRequest) normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Nominee != nil && strings.TrimSpace(r.Nominee.Name) == "" {
		r.Nominee = nil
	}
}

func (r *ReapplyRequest) validate() error {
	switch {
	case r.FullName == "":
		return dErrors.New(dErrors.CodeInvalidInput, "full name is required")
	case !phonePattern.MatchString(r.Phone):
		return dErrors.New(dErrors.CodeInvalidInput, "phone must be a valid 10-digit mobile number")
	case r.RequestedAccountType == "":
		return dErrors.New(dErrors.CodeInvalidInput, "requested account type is required")
	}
	if r.Nominee != nil && !aadhaarPattern.MatchString(r.Nominee.Aadhaar) {
		return dErrors.New(dErrors.CodeInvalidInput, "nominee aadhaar must be 12 digits")
	}
	return nil
}
