package domain

import "time"

// RuleConfig defines an operator advisory rule.
// Advisory rules annotate a prediction; they never change its score or status.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression over the vehicle state and assessment, must return bool
	Expression string `json:"expression"`

	// Severity shown with the advisory: "info", "warning" or "critical"
	Severity string `json:"severity"`

	// Message returned when the rule triggers
	Message string `json:"message"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Advisory is a triggered advisory rule.
type Advisory struct {
	RuleID   string `json:"ruleId"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Advisory severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// ValidSeverity reports whether s is a known advisory severity.
func ValidSeverity(s string) bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityCritical
}
