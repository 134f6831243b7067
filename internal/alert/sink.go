// Package alert persists overload alerts and their dashboard notifications.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/opensource-finance/axle/internal/domain"
)

// Result messages.
const (
	MsgNotOverloaded      = "Vehicle not overloaded, no alert sent"
	MsgStoreUnavailable   = "alert store not configured"
	MsgAlertFailed        = "failed to save alert"
	MsgNotificationFailed = "alert saved but notification failed"
	MsgSent               = "Overload alert sent"
)

var tracer = otel.Tracer("axle-alert")

// Sink writes an Alert and a derived Notification for OVERLOAD assessments.
// The two writes are not atomic: a failed notification leaves the alert in
// place.
type Sink struct {
	store domain.AlertStore
}

// NewSink creates a sink. A nil store makes every overload submission a
// non-success result.
func NewSink(store domain.AlertStore) *Sink {
	return &Sink{store: store}
}

// SendAlert persists the overload records. It never returns an error: every
// failure is reported through the result.
func (s *Sink) SendAlert(ctx context.Context, state domain.VehicleState, assessment domain.RiskAssessment, location *domain.Location) domain.AlertResult {
	if !assessment.IsOverload() {
		return domain.AlertResult{Success: false, Message: MsgNotOverloaded}
	}
	if s.store == nil {
		return domain.AlertResult{Success: false, Message: MsgStoreUnavailable}
	}

	ctx, span := tracer.Start(ctx, "alert.send")
	defer span.End()
	span.SetAttributes(attribute.String("vehicle.registration", state.RegistrationNumber))

	alert := NewAlert(state, assessment, location)
	if err := s.store.SaveAlert(ctx, alert); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, MsgAlertFailed)
		slog.Error("failed to save alert",
			"registration", state.RegistrationNumber,
			"error", err,
		)
		return domain.AlertResult{
			Success: false,
			Message: fmt.Sprintf("%s: %v", MsgAlertFailed, err),
		}
	}

	notification := NewNotification(alert)
	if err := s.store.SaveNotification(ctx, notification); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, MsgNotificationFailed)
		slog.Warn("alert persisted without notification",
			"alert_id", alert.ID,
			"registration", state.RegistrationNumber,
			"error", err,
		)
		return domain.AlertResult{
			Success: false,
			AlertID: alert.ID,
			Message: fmt.Sprintf("%s: %v", MsgNotificationFailed, err),
		}
	}

	slog.Info("overload alert sent",
		"alert_id", alert.ID,
		"notification_id", notification.ID,
		"registration", state.RegistrationNumber,
		"score", assessment.Score,
	)

	return domain.AlertResult{
		Success:        true,
		AlertID:        alert.ID,
		NotificationID: notification.ID,
		Message:        MsgSent,
	}
}

// NewAlert builds the full alert record. CreatedAt is left for the store.
func NewAlert(state domain.VehicleState, a domain.RiskAssessment, location *domain.Location) *domain.Alert {
	return &domain.Alert{
		ID:                 uuid.New().String(),
		RegistrationNumber: state.RegistrationNumber,
		CurrentLoad:        state.CurrentLoad,
		MaxLoad:            state.MaxLoad,
		SuspensionHealth:   state.SuspensionHealth,
		TirePressure:       state.TirePressure,
		Weight:             state.Weight,
		Speed:              state.Speed,
		LoadRatio:          a.LoadRatio,
		Score:              a.Score,
		Probability:        a.Probability,
		Status:             a.Status,
		RiskLevel:          a.RiskLevel,
		ExcessLoad:         a.ExcessLoad,
		Confidence:         a.Confidence,
		Recommendation:     a.Recommendation,
		Location:           location,
	}
}

// NewNotification projects an alert into a PENDING, HIGH priority notification.
func NewNotification(alert *domain.Alert) *domain.Notification {
	return &domain.Notification{
		ID:                 uuid.New().String(),
		AlertID:            alert.ID,
		RegistrationNumber: alert.RegistrationNumber,
		Message: fmt.Sprintf("Vehicle %s is overloaded at %.2f%% of capacity (%.2f tons excess)",
			alert.RegistrationNumber, alert.LoadRatio, alert.ExcessLoad),
		LoadRatio:  alert.LoadRatio,
		ExcessLoad: alert.ExcessLoad,
		Score:      alert.Score,
		RiskLevel:  alert.RiskLevel,
		Location:   alert.Location,
		Priority:   domain.PriorityHigh,
		Status:     domain.NotificationPending,
	}
}
