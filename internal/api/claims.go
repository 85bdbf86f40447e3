package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/heron/internal/claims"
	"github.com/opensource-finance/heron/internal/domain"
)

// documentsField is the multipart field carrying supporting documents.
const documentsField = "supportingDocuments"

// SubmitClaim handles POST /claims. The body is multipart/form-data, or
// application/x-www-form-urlencoded when there are no documents.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	sub, cleanup, err := h.parseSubmission(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "Invalid form submission.",
		})
		return
	}
	defer cleanup()

	claim, err := h.svc.Claims.Submit(r.Context(), sub)
	if err != nil {
		var (
			verr  *claims.ValidationError
			ferr  *claims.FileValidationError
			inerr *claims.IneligibleError
		)
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "Validation failed.",
				"errors":  verr.Errors,
			})
		case errors.As(err, &ferr):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "File validation failed.",
				"errors":  ferr,
			})
		case errors.As(err, &inerr):
			writeJSON(w, http.StatusConflict, map[string]any{
				"message": "Claim is not eligible for submission.",
				"reasons": inerr.Reasons,
			})
		default:
			slog.Error("claim submission failed",
				"policy_number", sub.PolicyNumber,
				"trace_id", GetTraceID(r.Context()),
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"message": "An unexpected error occurred while processing the claim.",
			})
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"referenceId": claim.ClaimNumber,
	})
}

func (h *Handler) parseSubmission(r *http.Request) (claims.Submission, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.svc.MaxFormMemory); err != nil {
			return claims.Submission{}, noop, err
		}
	} else if err := r.ParseForm(); err != nil {
		return claims.Submission{}, noop, err
	}

	sub := claims.Submission{
		PolicyNumber:     r.PostFormValue("policyNumber"),
		ClaimantName:     r.PostFormValue("claimantName"),
		ClaimantEmail:    r.PostFormValue("claimantEmail"),
		IncidentDate:     r.PostFormValue("incidentDate"),
		IncidentTime:     r.PostFormValue("incidentTime"),
		IncidentLocation: r.PostFormValue("incidentLocation"),
		ClaimType:        r.PostFormValue("claimType"),
		Description:      r.PostFormValue("description"),
		ClaimAmount:      r.PostFormValue("claimAmount"),
		AdditionalNotes:  r.PostFormValue("additionalNotes"),
	}

	if r.MultipartForm == nil {
		return sub, noop, nil
	}
	for _, fh := range r.MultipartForm.File[documentsField] {
		sub.Files = append(sub.Files, uploadedFile(fh))
	}
	return sub, func() { r.MultipartForm.RemoveAll() }, nil
}

func uploadedFile(fh *multipart.FileHeader) claims.File {
	return claims.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// CheckEligibility handles POST /eligibility.
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	var req domain.EligibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Claims.CheckEligibility(r.Context(), req))
}

// ListClaims handles GET /claims, scoped by the caller's role.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	actor := GetActor(r.Context())
	list, err := h.svc.Claims.List(r.Context(), actor.Role, actor.UserID)
	if err != nil {
		writeServiceError(w, err, "list claims")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// GetClaim handles GET /claims/{id}; id is the claim id or claim number.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.svc.Claims.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "get claim")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": claim})
}

// DecideClaim handles POST /claims/{id}/decision.
func (h *Handler) DecideClaim(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	actor := GetActor(r.Context())
	action := strings.ToLower(strings.TrimSpace(req.Action))
	claim, err := h.svc.Claims.Decide(r.Context(), chi.URLParam(r, "id"), action, actor.UserID)
	if errors.Is(err, claims.ErrInvalidAction) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid action"})
		return
	}
	if err != nil {
		writeServiceError(w, err, "decide claim")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": claim})
}
