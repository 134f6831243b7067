// Package scoring computes the heuristic overload risk assessment of a vehicle.
package scoring

import (
	"fmt"
	"math"

	"github.com/opensource-finance/axle/internal/domain"
)

// Penalty constants. The ranges are not harmonized with the request
// validation ranges.
const (
	overloadPenalty = 50.0

	suspensionThreshold = 80.0
	suspensionWeight    = 0.3

	tireLow        = 28.0
	tireHigh       = 35.0
	tireLowWeight  = 2.0
	tireHighWeight = 1.5

	speedThreshold = 80.0
	speedPenalty   = 5.0

	maxScore = 100.0

	overloadScore = 70.0 // strictly above
	warningScore  = 40.0 // inclusive
	highScore     = 55.0 // inclusive, within WARNING
)

// Assess scores a validated vehicle state. It is pure and total.
func Assess(state domain.VehicleState) domain.RiskAssessment {
	ratio := state.CurrentLoad / state.MaxLoad
	overloaded := ratio > 1.0

	score := 0.0
	if overloaded {
		score = overloadPenalty
	}

	if state.SuspensionHealth < suspensionThreshold {
		score += (suspensionThreshold - state.SuspensionHealth) * suspensionWeight
	}

	switch {
	case state.TirePressure < tireLow:
		score += (tireLow - state.TirePressure) * tireLowWeight
	case state.TirePressure > tireHigh:
		score += (state.TirePressure - tireHigh) * tireHighWeight
	}

	if state.Speed > speedThreshold {
		score += speedPenalty
	}

	score = math.Min(score, maxScore)

	excess := 0.0
	if overloaded {
		excess = state.CurrentLoad - state.MaxLoad
	}

	status := Classify(score)
	loadPct := ratio * 100

	return domain.RiskAssessment{
		LoadRatio:      round(loadPct, 2),
		Score:          round(score, 2),
		Probability:    round(score/100, 3),
		Status:         status,
		RiskLevel:      Level(status, score),
		ExcessLoad:     round(excess, 2),
		Confidence:     domain.ModelConfidence,
		Recommendation: recommendation(status, state, loadPct, excess),
	}
}

// Classify maps an unrounded score to a status.
func Classify(score float64) domain.Status {
	switch {
	case score > overloadScore:
		return domain.StatusOverload
	case score >= warningScore:
		return domain.StatusWarning
	default:
		return domain.StatusNormal
	}
}

// Level refines a status into a risk level using the unrounded score.
func Level(status domain.Status, score float64) domain.RiskLevel {
	switch status {
	case domain.StatusOverload:
		return domain.RiskCritical
	case domain.StatusWarning:
		if score >= highScore {
			return domain.RiskHigh
		}
		return domain.RiskModerate
	default:
		return domain.RiskSafe
	}
}

func recommendation(status domain.Status, s domain.VehicleState, loadPct, excess float64) string {
	switch status {
	case domain.StatusOverload:
		return fmt.Sprintf(
			"CRITICAL: Vehicle is overloaded at %.2f%% of rated capacity (%.2f tons over limit). "+
				"Stop and unload immediately. Inspect suspension (%.1f%% health) and tire pressure (%.1f PSI) "+
				"before continuing; current speed %.1f km/h.",
			loadPct, excess, s.SuspensionHealth, s.TirePressure, s.Speed)
	case domain.StatusWarning:
		return fmt.Sprintf(
			"WARNING: Load at %.2f%% of rated capacity (%.2f tons over limit). "+
				"Reduce load or speed (%.1f km/h) and schedule a check of suspension (%.1f%% health) "+
				"and tire pressure (%.1f PSI).",
			loadPct, excess, s.Speed, s.SuspensionHealth, s.TirePressure)
	default:
		return fmt.Sprintf(
			"Vehicle operating within safe parameters. Load at %.2f%% of rated capacity, "+
				"tire pressure %.1f PSI, suspension %.1f%% health, speed %.1f km/h.",
			loadPct, s.TirePressure, s.SuspensionHealth, s.Speed)
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
