package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/policy"
)

// ApplyPolicy handles POST /policies.
func (h *Handler) ApplyPolicy(w http.ResponseWriter, r *http.Request) {
	var req policy.ApplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.svc.Policies.Apply(r.Context(), req, GetActor(r.Context()).UserID)
	if err != nil {
		writeServiceError(w, err, "apply policy")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"policyId":     p.ID,
		"policyNumber": p.PolicyNumber,
	})
}

// ListPolicies handles GET /policies, scoped by the caller's role.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	actor := GetActor(r.Context())
	list, err := h.svc.Policies.List(r.Context(), actor.Role, actor.UserID)
	if err != nil {
		writeServiceError(w, err, "list policies")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": list})
}

// GetPolicy handles GET /policies/{id}; id is the policy id or number.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Policies.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "get policy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": p})
}

// UpdatePolicy handles PATCH /policies/{id} with a new status.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateRequest(&req); err != nil {
		writeServiceError(w, err, "update policy")
		return
	}

	status, ok := domain.ParsePolicyStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	p, err := h.svc.Policies.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, GetActor(r.Context()).UserID)
	if err != nil {
		writeServiceError(w, err, "update policy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": p})
}

// UnderwritingQueue handles GET /underwriting?underwriterId=.
func (h *Handler) UnderwritingQueue(w http.ResponseWriter, r *http.Request) {
	underwriterID := r.URL.Query().Get("underwriterId")
	if underwriterID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "underwriterId is required"})
		return
	}

	list, err := h.svc.Policies.Queue(r.Context(), underwriterID)
	if err != nil {
		writeServiceError(w, err, "underwriting queue")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}
