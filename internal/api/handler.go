package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/axle/internal/domain"
	"github.com/opensource-finance/axle/internal/observability"
	"github.com/opensource-finance/axle/internal/plate"
	"github.com/opensource-finance/axle/internal/rules"
)

// Dependencies are the collaborators behind the HTTP handlers. Any of them
// may be nil; the matching routes then degrade to 503 or skip the feature.
type Dependencies struct {
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Engine    *rules.Engine
	Extractor *plate.Extractor
	Stream    http.Handler
	Metrics   *observability.Metrics
}

// Handler holds dependencies for API handlers.
type Handler struct {
	Dependencies

	cfg     *domain.Config
	version string
	started time.Time
}

// NewHandler creates a new API handler.
func NewHandler(cfg *domain.Config, deps Dependencies, version string) *Handler {
	if cfg == nil {
		cfg = domain.DefaultConfig()
	}
	return &Handler{
		Dependencies: deps,
		cfg:          cfg,
		version:      version,
		started:      time.Now(),
	}
}

// Root answers GET / with a liveness payload.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "axle",
		"status":  "running",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// Info answers GET /info with a static description of the scoring model and
// configured capabilities.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "axle",
		"version": h.version,
		"model": map[string]any{
			"type":       "rule-based additive risk score",
			"confidence": domain.ModelConfidence,
			"inputs": []string{
				"currentLoad", "maxLoad", "suspension", "tirePressure",
				"weight", "speed", "registrationNumber",
			},
			"thresholds": map[string]any{
				"overload": "score > 70",
				"warning":  "40 <= score <= 70",
				"high":     "warning with score >= 55",
			},
			"tirePressureOptimal": []float64{28, 35},
		},
		"features": map[string]any{
			"plateDetection": h.Extractor.Enabled(),
			"ocrProvider":    h.cfg.OCR.Provider,
			"alerts":         h.cfg.Alerts.Enabled && h.Bus != nil,
			"advisoryRules":  h.rulesCount(),
			"stream":         h.Stream != nil,
		},
		"upload": map[string]any{
			"maxBytes":     h.cfg.Upload.MaxBytes,
			"allowedTypes": h.cfg.Upload.AllowedTypes,
		},
		"plateFormat": plate.Pattern.String(),
	})
}

func (h *Handler) rulesCount() int {
	if h.Engine == nil {
		return 0
	}
	return h.Engine.RulesCount()
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	checks := map[string]string{}
	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			return
		}
		checks[name] = "ok"
	}

	if h.Repo != nil {
		check("repository", func() error { return h.Repo.Ping(r.Context()) })
	}
	if h.Cache != nil {
		check("cache", func() error { return h.Cache.Ping(r.Context()) })
	}
	if h.Bus != nil {
		check("eventbus", func() error { return h.Bus.Ping(r.Context()) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListAlerts answers GET /alerts, newest first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	alerts, err := h.Repo.ListAlerts(r.Context(), domain.AlertFilter{
		RegistrationNumber: r.URL.Query().Get("registration"),
		Limit:              limit,
	})
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert answers GET /alerts/{id}.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	id := chi.URLParam(r, "id")
	alert, err := h.Repo.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "alert not found",
			})
			return
		}
		slog.Error("failed to get alert", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get alert",
		})
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// ListNotifications answers GET /notifications, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	status := domain.NotificationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown notification status: " + string(status),
		})
		return
	}

	notifications, err := h.Repo.ListNotifications(r.Context(), domain.NotificationFilter{
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		slog.Error("failed to list notifications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list notifications",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// UpdateNotificationRequest is the request body for PATCH /notifications/{id}.
type UpdateNotificationRequest struct {
	Status domain.NotificationStatus `json:"status"`
}

// UpdateNotification moves a notification forward in the dashboard workflow.
func (h *Handler) UpdateNotification(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var req UpdateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	id := chi.URLParam(r, "id")
	n, err := h.Repo.UpdateNotificationStatus(r.Context(), id, req.Status)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "notification not found"})
		return
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	default:
		slog.Error("failed to update notification", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update notification",
		})
		return
	}

	slog.Info("notification updated", "id", id, "status", n.Status)
	writeJSON(w, http.StatusOK, n)
}

// ListRules returns all loaded rules from the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule engine not available",
		})
		return
	}

	loaded := h.Engine.GetLoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules, falling back
// to the store for disabled rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if h.Engine != nil {
		for _, rule := range h.Engine.GetLoadedRules() {
			if rule.ID == ruleID {
				writeJSON(w, http.StatusOK, rule)
				return
			}
		}
	}

	if h.Repo != nil {
		rule, err := h.Repo.GetRuleConfig(r.Context(), ruleID)
		if err == nil {
			writeJSON(w, http.StatusOK, rule)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get rule", "id", ruleID, "error", err)
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule compiles a rule and saves it. Call POST /rules/reload to apply.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil || h.Repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule management not available",
		})
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Severity == "" {
		req.Severity = domain.SeverityInfo
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Severity:    req.Severity,
		Message:     req.Message,
		Enabled:     req.Enabled,
	}

	if err := h.Engine.ValidateRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.Repo.SaveRuleConfig(r.Context(), ruleConfig); err != nil {
		slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil || h.Repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule management not available",
		})
		return
	}

	dbRules, err := h.Repo.ListRuleConfigs(r.Context())
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.Engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "stored", len(dbRules), "loaded", h.Engine.RulesCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   h.Engine.RulesCount(),
	})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "limit must be a non-negative integer",
		})
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}
