// Package handler exposes the public application intake endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboarding/internal/document"
	"onboarding/internal/kyc/models"
	"onboarding/internal/kyc/service"
	"onboarding/pkg/domain"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/httputil"
	"onboarding/pkg/requestcontext"
)

// Service is the application lifecycle surface the handler needs.
type Service interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*models.Application, error)
	Reapply(ctx context.Context, id domain.ApplicationID, req service.ReapplyRequest) (*models.Application, error)
	Get(ctx context.Context, id domain.ApplicationID) (*models.Application, error)
	GetDocument(ctx context.Context, id domain.ApplicationID, docType document.Type) ([]byte, string, error)
}

// Handler handles the applicant-facing endpoints.
type Handler struct {
	logger *slog.Logger
	kyc    Service
}

// New creates the application Handler.
func New(kyc Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, kyc: kyc}
}

// Register mounts the application routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/applications", h.handleSubmit)
	r.Put("/api/applications/{id}", h.handleReapply)
	r.Get("/api/applications/{id}", h.handleGet)
	r.Get("/api/applications/{id}/documents/{type}", h.handleGetDocument)
}

// documentPayload is a base64 document in the JSON body. encoding/json
// decodes the base64 string into Data directly.
type documentPayload struct {
	Data        []byte `json:"data"`
	ContentType string `json:"contentType"`
}

func (p *documentPayload) toUpload() *service.DocumentUpload {
	if p == nil {
		return nil
	}
	return &service.DocumentUpload{Data: p.Data, ContentType: p.ContentType}
}

type nomineePayload struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
	Aadhaar string `json:"aadhaar"`
}

func (p *nomineePayload) toModel() *models.Nominee {
	if p == nil {
		return nil
	}
	return &models.Nominee{Name: p.Name, Mobile: p.Mobile, Address: p.Address, Aadhaar: p.Aadhaar}
}

type submitRequest struct {
	FullName      string `json:"fullName"`
	DOB           string `json:"dob"`
	Gender        string `json:"gender"`
	MaritalStatus string `json:"maritalStatus"`
	FathersName   string `json:"fathersName"`
	Nationality   string `json:"nationality"`
	Profession    string `json:"profession"`
	Address       string `json:"address"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`

	PAN     string `json:"pan"`
	Aadhaar string `json:"aadhaar"`

	Username string `json:"username"`
	Password string `json:"password"`

	RequestedAccountType string `json:"requestedAccountType"`
	NetBankingEnabled    bool   `json:"netBankingEnabled"`
	DebitCardIssued      bool   `json:"debitCardIssued"`
	ChequeBookIssued     bool   `json:"chequeBookIssued"`

	Nominee *nomineePayload `json:"nominee,omitempty"`

	PassportPhoto *documentPayload `json:"passportPhoto,omitempty"`
	PANDocument   *documentPayload `json:"panDocument,omitempty"`
	AadhaarProof  *documentPayload `json:"aadhaarProof,omitempty"`
}

type reapplyRequest struct {
	FullName      string `json:"fullName"`
	Gender        string `json:"gender"`
	MaritalStatus string `json:"maritalStatus"`
	FathersName   string `json:"fathersName"`
	Nationality   string `json:"nationality"`
	Profession    string `json:"profession"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`

	RequestedAccountType string `json:"requestedAccountType"`
	NetBankingEnabled    bool   `json:"netBankingEnabled"`
	DebitCardIssued      bool   `json:"debitCardIssued"`
	ChequeBookIssued     bool   `json:"chequeBookIssued"`

	Nominee *nomineePayload `json:"nominee,omitempty"`

	PassportPhoto *documentPayload `json:"passportPhoto,omitempty"`
	PANDocument   *documentPayload `json:"panDocument,omitempty"`
	AadhaarProof  *documentPayload `json:"aadhaarProof,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[submitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.kyc.Submit(ctx, service.SubmitRequest{
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
		Password:             req.Password,
		RequestedAccountType: req.RequestedAccountType,
		NetBankingEnabled:    req.NetBankingEnabled,
		DebitCardIssued:      req.DebitCardIssued,
		ChequeBookIssued:     req.ChequeBookIssued,
		Nominee:              req.Nominee.toModel(),
		PassportPhoto:        req.PassportPhoto.toUpload(),
		PANDocument:          req.PANDocument.toUpload(),
		AadhaarProof:         req.AadhaarProof.toUpload(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "application submission failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) handleReapply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[reapplyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.kyc.Reapply(ctx, id, service.ReapplyRequest{
		FullName:             req.FullName,
		Gender:               req.Gender,
		MaritalStatus:        req.MaritalStatus,
		FathersName:          req.FathersName,
		Nationality:          req.Nationality,
		Profession:           req.Profession,
		Address:              req.Address,
		Phone:                req.Phone,
		RequestedAccountType: req.RequestedAccountType,
		NetBankingEnabled:    req.NetBankingEnabled,
		DebitCardIssued:      req.DebitCardIssued,
		ChequeBookIssued:     req.ChequeBookIssued,
		Nominee:              req.Nominee.toModel(),
		PassportPhoto:        req.PassportPhoto.toUpload(),
		PANDocument:          req.PANDocument.toUpload(),
		AadhaarProof:         req.AadhaarProof.toUpload(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "reapplication failed",
			"request_id", requestID,
			"application_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return
	}

	app, err := h.kyc.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return
	}
	docType, ok := document.ParseType(chi.URLParam(r, "type"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown document type"))
		return
	}

	raw, contentType, err := h.kyc.GetDocument(ctx, id, docType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
