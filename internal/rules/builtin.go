package rules

import "github.com/opensource-finance/axle/internal/domain"

// BuiltinRules returns the advisory rules seeded into an empty rule store.
func BuiltinRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:          "tire-outside-guidance",
			Name:        "Tire pressure outside guidance",
			Description: "Pressure accepted by validation but outside the 20-50 PSI operating guidance",
			Expression:  "tire_pressure < 20.0 || tire_pressure > 50.0",
			Severity:    domain.SeverityWarning,
			Message:     "Tire pressure is outside the 20-50 PSI operating range; verify the sensor reading",
			Enabled:     true,
		},
		{
			ID:          "suspension-critical",
			Name:        "Suspension critical",
			Description: "Suspension health low enough to need workshop attention",
			Expression:  "suspension < 30.0",
			Severity:    domain.SeverityCritical,
			Message:     "Suspension health below 30%; schedule workshop inspection",
			Enabled:     true,
		},
		{
			ID:          "fast-near-capacity",
			Name:        "Fast near capacity",
			Description: "Highway speed while loaded close to the rated maximum",
			Expression:  "speed > 80.0 && load_ratio >= 90.0",
			Severity:    domain.SeverityWarning,
			Message:     "Vehicle is near rated capacity at highway speed; increase braking distance",
			Enabled:     true,
		},
		{
			ID:          "hidden-overload",
			Name:        "Overload without excess load",
			Description: "OVERLOAD status reached from wear penalties alone",
			Expression:  `status == "OVERLOAD" && load_ratio <= 100.0`,
			Severity:    domain.SeverityInfo,
			Message:     "Risk is driven by vehicle condition rather than cargo weight",
			Enabled:     true,
		},
	}
}
