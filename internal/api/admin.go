package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/renewal"
)

// SLASummary handles GET /sla. It reports the trailing 30 days per entity type and
// then persists breach flags.
func (h *Handler) SLASummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.svc.SLA.Summary(ctx)
	if err != nil {
		writeServiceError(w, err, "sla summary")
		return
	}
	if _, err := h.svc.SLA.Sweep(ctx); err != nil {
		slog.Error("sla sweep failed", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"slaData": summary})
}

// ScheduleRenewal handles POST /renewals.
func (h *Handler) ScheduleRenewal(w http.ResponseWriter, r *http.Request) {
	var req renewal.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	record, err := h.svc.Renewals.Schedule(r.Context(), req)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "Validation failed.",
				"errors":  verr.Errors,
			})
		case errors.Is(err, renewal.ErrEmptySchedule):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"message": renewal.EmptyScheduleMessage,
			})
		default:
			slog.Error("failed to schedule renewal reminder", "policy_number", req.PolicyNumber, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"message": "An unexpected error occurred while scheduling the renewal reminder.",
			})
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"reminder": record})
}

// ListRenewals handles GET /renewals.
func (h *Handler) ListRenewals(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Renewals.List(r.Context())
	if err != nil {
		slog.Error("failed to list renewal reminders", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "Unable to load renewal reminders.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": records})
}

// SweepRenewals handles POST /renewals/sweep.
func (h *Handler) SweepRenewals(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Renewals.Sweep(r.Context())
	if err != nil {
		writeServiceError(w, err, "renewal sweep")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListNotifications handles GET /notifications for the calling user.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := GetActor(r.Context()).UserID
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	list, err := h.svc.Notifier.List(r.Context(), userID, notify.DefaultListLimit)
	if err != nil {
		writeServiceError(w, err, "list notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

// MarkNotificationRead handles PATCH /notifications.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateRequest(&req); err != nil {
		writeServiceError(w, err, "mark notification read")
		return
	}

	if err := h.svc.Notifier.MarkRead(r.Context(), req.ID); err != nil {
		writeServiceError(w, err, "mark notification read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListWorkflows handles GET /workflows.
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Workflows.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "list workflows")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// CreateWorkflow handles POST /workflows by cloning a template.
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateRequest(&req); err != nil {
		writeServiceError(w, err, "create workflow")
		return
	}

	wf, err := h.svc.Workflows.CreateFromTemplate(r.Context(), req.Key, req.Name, GetActor(r.Context()).UserID)
	if err != nil {
		writeServiceError(w, err, "create workflow")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": wf})
}

// GetWorkflow handles GET /workflows/{id}.
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.svc.Workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "get workflow")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": wf})
}

// UpdateWorkflow handles PATCH /workflows/{id}.
func (h *Handler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var patch domain.WorkflowPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	wf, err := h.svc.Workflows.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, err, "update workflow")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": wf})
}

// DeleteWorkflow handles DELETE /workflows/{id}.
func (h *Handler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Workflows.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "delete workflow")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
