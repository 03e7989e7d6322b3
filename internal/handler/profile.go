package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/service"
	"github.com/DukeRupert/rateflow/internal/storage"
)

// logoFormField is the multipart field carrying the logo image.
const logoFormField = "logo"

// ProfileHandler serves the business profile and account lifecycle.
type ProfileHandler struct {
	businesses service.BusinessService
	quota      service.QuotaService
	logger     *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(businesses service.BusinessService, quota service.QuotaService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		businesses: businesses,
		quota:      quota,
		logger:     logger,
	}
}

// RegisterRoutes registers profile routes on the provided mux.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux, requireSession func(http.Handler) http.Handler) {
	mux.Handle("GET /api/profile", requireSession(http.HandlerFunc(h.Show)))
	mux.Handle("PUT /api/profile", requireSession(http.HandlerFunc(h.Update)))
	mux.Handle("POST /api/profile/logo", requireSession(http.HandlerFunc(h.UploadLogo)))
	mux.Handle("POST /api/profile/tax-id", requireSession(http.HandlerFunc(h.VerifyTaxID)))
	mux.Handle("POST /api/profile/email/verify-request", requireSession(http.HandlerFunc(h.RequestEmailVerification)))
	mux.Handle("POST /api/profile/email/verify", requireSession(http.HandlerFunc(h.VerifyEmail)))
	mux.Handle("DELETE /api/account", requireSession(http.HandlerFunc(h.DeleteAccount)))
}

func (h *ProfileHandler) respond(w http.ResponseWriter, r *http.Request, status int, message string, b *domain.Business) {
	SuccessResponse(w, status, message, newBusinessView(b, h.businesses.LogoURL(r.Context(), b)))
}

// Show returns the profile with the upload counter.
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	b, err := h.businesses.Get(r.Context(), sess.BusinessID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	view := newBusinessView(b, h.businesses.LogoURL(r.Context(), b))

	snap, err := h.quota.Usage(r.Context(), sess.BusinessID, domain.UsageTypeInvoiceUpload)
	if err != nil {
		h.logger.Warn("upload counter unavailable for profile", "business_id", sess.BusinessID, "error", err)
	} else {
		view.DailyUploadCount = &snap.DailyCount
		view.LastDailyReset = &snap.LastReset
	}
	SuccessResponse(w, http.StatusOK, "Profile retrieved", view)
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Update changes the display name and contact email.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	b, err := h.businesses.UpdateProfile(r.Context(), sess, domain.UpdateProfileParams{
		BusinessID: sess.BusinessID,
		Name:       req.Name,
		Email:      req.Email,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.respond(w, r, http.StatusOK, "Profile updated", b)
}

// UploadLogo accepts a multipart image upload.
func (h *ProfileHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxLogoUploadSize+(64<<10))
	file, header, err := r.FormFile(logoFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, "", "Logo must be at most 5 MB"))
			return
		}
		BadRequestResponse(w, r, h.logger, "A logo file is required")
		return
	}
	defer file.Close()

	contentType := storage.DetectContentType(header.Header.Get("Content-Type"), header.Filename, nil)
	b, err := h.businesses.UploadLogo(r.Context(), sess, file, contentType)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.respond(w, r, http.StatusOK, "Logo updated", b)
}

type taxIDRequest struct {
	TaxID string `json:"taxId"`
}

// VerifyTaxID checks the tax ID with the registry.
func (h *ProfileHandler) VerifyTaxID(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	var req taxIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	b, err := h.businesses.VerifyTaxID(r.Context(), sess, req.TaxID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	message := "Tax ID verified"
	if !b.TaxIDVerified {
		message = "Tax ID could not be verified"
	}
	h.respond(w, r, http.StatusOK, message, b)
}

// RequestEmailVerification emails a one-time code to the contact address.
func (h *ProfileHandler) RequestEmailVerification(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.businesses.RequestEmailVerification(r.Context(), sess); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusAccepted, "Verification code sent", nil)
}

type verifyEmailRequest struct {
	Code string `json:"code"`
}

// VerifyEmail consumes the emailed code.
func (h *ProfileHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	b, err := h.businesses.VerifyEmail(r.Context(), sess, req.Code)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.respond(w, r, http.StatusOK, "Email verified", b)
}

// DeleteAccount removes the business and everything it owns.
func (h *ProfileHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.businesses.DeleteAccount(r.Context(), sess); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Account deleted", nil)
}
