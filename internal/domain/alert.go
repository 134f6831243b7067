package domain

import (
	"context"
	"time"
)

// Alert is the full record persisted when a vehicle is assessed as OVERLOAD.
// It is written once and never updated.
type Alert struct {
	ID string `json:"id"`

	// Vehicle input
	RegistrationNumber string  `json:"registrationNumber"`
	CurrentLoad        float64 `json:"currentLoad"`
	MaxLoad            float64 `json:"maxLoad"`
	SuspensionHealth   float64 `json:"suspensionHealth"`
	TirePressure       float64 `json:"tirePressure"`
	Weight             float64 `json:"weight"`
	Speed              float64 `json:"speed"`

	// Assessment
	LoadRatio      float64   `json:"loadRatio"`
	Score          float64   `json:"score"`
	Probability    float64   `json:"probability"`
	Status         Status    `json:"status"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	ExcessLoad     float64   `json:"excessLoad"`
	Confidence     float64   `json:"confidence"`
	Recommendation string    `json:"recommendation"`

	Location *Location `json:"location,omitempty"`

	// Assigned by the store on write
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationStatus is the dashboard workflow state of a notification.
type NotificationStatus string

const (
	NotificationPending      NotificationStatus = "PENDING"
	NotificationAcknowledged NotificationStatus = "ACKNOWLEDGED"
	NotificationResolved     NotificationStatus = "RESOLVED"
)

// Valid reports whether s is a known workflow state.
func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationPending, NotificationAcknowledged, NotificationResolved:
		return true
	}
	return false
}

// CanTransitionTo reports whether the workflow allows moving from s to next.
// The workflow only moves forward.
func (s NotificationStatus) CanTransitionTo(next NotificationStatus) bool {
	switch s {
	case NotificationPending:
		return next == NotificationAcknowledged || next == NotificationResolved
	case NotificationAcknowledged:
		return next == NotificationResolved
	}
	return false
}

// Priority of a notification. Overload notifications are always HIGH.
type Priority string

const PriorityHigh Priority = "HIGH"

// Notification is the reduced projection of an Alert consumed by dashboards.
type Notification struct {
	ID                 string             `json:"id"`
	AlertID            string             `json:"alertId"`
	RegistrationNumber string             `json:"registrationNumber"`
	Message            string             `json:"message"`
	LoadRatio          float64            `json:"loadRatio"`
	ExcessLoad         float64            `json:"excessLoad"`
	Score              float64            `json:"score"`
	RiskLevel          RiskLevel          `json:"riskLevel"`
	Location           *Location          `json:"location,omitempty"`
	Priority           Priority           `json:"priority"`
	Status             NotificationStatus `json:"status"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// AlertResult reports the outcome of an alert submission. A non-success
// result is not an error: persistence is best-effort.
type AlertResult struct {
	Success        bool   `json:"success"`
	AlertID        string `json:"alertId,omitempty"`
	NotificationID string `json:"notificationId,omitempty"`
	Message        string `json:"message"`
}

// AlertStore is the collection-scoped write side used by the alert sink.
// SaveAlert and SaveNotification set CreatedAt on the passed record.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *Alert) error
	SaveNotification(ctx context.Context, n *Notification) error
}

// AlertFilter narrows alert queries.
type AlertFilter struct {
	RegistrationNumber string
	Limit              int
}

// NotificationFilter narrows notification queries.
type NotificationFilter struct {
	Status NotificationStatus
	Limit  int
}

// OverloadEvent is published on TopicOverloadDetected when a prediction ends
// in OVERLOAD. The alert worker turns it into persisted records.
type OverloadEvent struct {
	State       VehicleState   `json:"state"`
	Assessment  RiskAssessment `json:"assessment"`
	Location    *Location      `json:"location,omitempty"`
	TraceID     string         `json:"traceId,omitempty"`
	SubmittedAt time.Time      `json:"submittedAt"`
}
