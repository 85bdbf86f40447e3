package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/fraud"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// Handler holds dependencies for API handlers.
type Handler struct {
	svc     Services
	version string
	now     func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(svc Services, version string) *Handler {
	if svc.MaxFormMemory <= 0 {
		svc.MaxFormMemory = 32 << 20
	}
	return &Handler{svc: svc, version: version, now: time.Now}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.svc.Repo != nil {
		if err := h.svc.Repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.svc.Cache != nil {
		if err := h.svc.Cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.svc.Bus != nil {
		if err := h.svc.Bus.Ping(r.Context()); err != nil {
			slog.Warn("event bus health check failed", "error", err)
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns the rules loaded in the scoring engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.svc.Scorer.Engine().GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateRule validates a rule by compiling it and saves it to the rule store.
// It takes effect after POST /rules/reload.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateRequest(&req); err != nil {
		writeServiceError(w, err, "create rule")
		return
	}

	rule := &domain.FraudRule{
		ID:          strings.TrimSpace(req.ID),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Expression:  req.Expression,
		Points:      req.Points,
		Reason:      req.Reason,
		Priority:    req.Priority,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}

	if err := h.svc.Scorer.Engine().ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.svc.Repo.SaveFraudRule(r.Context(), rule); err != nil {
		slog.Error("failed to save fraud rule", "rule_id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("fraud rule saved", "rule_id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads the rule store into the scoring engine without a restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	count, err := fraud.SyncRules(r.Context(), h.svc.Repo, h.svc.Scorer.Engine())
	if err != nil {
		slog.Error("failed to reload fraud rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

// CreateUser registers a portal user.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateRequest(&req); err != nil {
		writeServiceError(w, err, "create user")
		return
	}

	role, _ := domain.ParseRole(req.Role)
	user := &domain.User{
		ID:        uuid.New().String(),
		Email:     strings.TrimSpace(req.Email),
		Name:      strings.TrimSpace(req.Name),
		Role:      role,
		CreatedAt: h.now().UTC(),
	}
	if err := h.svc.Repo.SaveUser(r.Context(), user); err != nil {
		writeServiceError(w, err, "create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

// ListUsers lists users, optionally only the holders of ?role=.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		users []*domain.User
		err   error
	)
	if name := r.URL.Query().Get("role"); name != "" {
		role, ok := domain.ParseRole(name)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown role"})
			return
		}
		users, err = h.svc.Repo.ListUsersByRole(ctx, role)
	} else {
		users, err = h.svc.Repo.ListUsers(ctx)
	}
	if err != nil {
		writeServiceError(w, err, "list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// ListAudit returns the newest audit entries, ?limit= of them (default 100).
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxAuditLimit)
	}

	entries, err := h.svc.Repo.ListAudit(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err, "list audit")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes the request body into v. On failure it writes a 400 and
// returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return false
	}
	return true
}

// writeServiceError maps service errors onto status codes. Unexpected errors are
// logged with op and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, err error, op string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Validation failed.",
			"errors":  verr.Errors,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("request failed", "op", op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
