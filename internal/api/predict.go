package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensource-finance/axle/internal/domain"
	"github.com/opensource-finance/axle/internal/scoring"
)

// PredictResponse is the response for POST /predict.
type PredictResponse struct {
	Success        bool              `json:"success"`
	Probability    float64           `json:"probability"`
	Status         domain.Status     `json:"status"`
	RiskLevel      domain.RiskLevel  `json:"riskLevel"`
	ExcessLoad     float64           `json:"excessLoad"`
	Confidence     float64           `json:"confidence"`
	Recommendation string            `json:"recommendation"`
	LoadRatio      float64           `json:"loadRatio"`
	Score          float64           `json:"score"`
	Advisories     []domain.Advisory `json:"advisories,omitempty"`
	AlertQueued    bool              `json:"alertQueued,omitempty"`
}

// ValidationErrorResponse is returned with 400 when input validation fails.
type ValidationErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

// Predict handles POST /predict. Scoring is synchronous; an OVERLOAD result is
// handed to the alert worker and never delays the response.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Metrics.ObserveValidationFailure()
		writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Success: false,
			Error:   "Validation failed",
			Details: []string{"invalid JSON request body"},
		})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		h.Metrics.ObserveValidationFailure()
		writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Success: false,
			Error:   "Validation failed",
			Details: details,
		})
		return
	}

	state := req.VehicleState()
	assessment := scoring.Assess(state)
	h.Metrics.ObservePrediction(string(assessment.Status))

	resp := PredictResponse{
		Success:        true,
		Probability:    assessment.Probability,
		Status:         assessment.Status,
		RiskLevel:      assessment.RiskLevel,
		ExcessLoad:     assessment.ExcessLoad,
		Confidence:     assessment.Confidence,
		Recommendation: assessment.Recommendation,
		LoadRatio:      assessment.LoadRatio,
		Score:          assessment.Score,
	}

	if h.Engine != nil {
		resp.Advisories = h.Engine.Evaluate(ctx, state, assessment)
	}

	if assessment.IsOverload() {
		resp.AlertQueued = h.queueAlert(ctx, state, assessment, req.Location)
	}

	writeJSON(w, http.StatusOK, resp)
}

// queueAlert publishes the overload for the alert worker. Failures are
// logged and reported only through the alertQueued flag.
func (h *Handler) queueAlert(ctx context.Context, state domain.VehicleState, a domain.RiskAssessment, loc *domain.Location) bool {
	if !h.cfg.Alerts.Enabled || h.Bus == nil {
		return false
	}

	traceID := GetTraceID(ctx)
	payload, err := json.Marshal(domain.OverloadEvent{
		State:       state,
		Assessment:  a,
		Location:    loc,
		TraceID:     traceID,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("failed to encode overload event", "error", err)
		return false
	}

	// The request context may be canceled as soon as the response is written.
	if err := h.Bus.Publish(context.WithoutCancel(ctx), domain.TopicOverloadDetected, payload); err != nil {
		slog.Error("failed to queue overload alert",
			"registration", state.RegistrationNumber,
			"trace_id", traceID,
			"error", err,
		)
		return false
	}

	slog.Debug("overload alert queued",
		"registration", state.RegistrationNumber,
		"score", a.Score,
		"trace_id", traceID,
	)
	return true
}
