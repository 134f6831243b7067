package scoring

import (
	"math"
	"strings"
	"testing"

	"github.com/opensource-finance/axle/internal/domain"
)

func state(current, max, suspension, tire, speed float64) domain.VehicleState {
	return domain.VehicleState{
		CurrentLoad:        current,
		MaxLoad:            max,
		SuspensionHealth:   suspension,
		TirePressure:       tire,
		Weight:             8000,
		Speed:              speed,
		RegistrationNumber: "MH12AB1234",
	}
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name       string
		in         domain.VehicleState
		score      float64
		status     domain.Status
		level      domain.RiskLevel
		loadRatio  float64
		excessLoad float64
	}{
		{"WorkedExample", state(15, 10, 50, 30, 70), 59, domain.StatusWarning, domain.RiskHigh, 150, 5},
		{"ExactlySeventyIsWarning", state(11, 10, 80, 18, 50), 70, domain.StatusWarning, domain.RiskHigh, 110, 1},
		{"ClampedAtHundred", state(20, 10, 0, 0, 100), 100, domain.StatusOverload, domain.RiskCritical, 200, 10},
		{"OverloadWithoutExcessLoad", state(5, 10, 0, 0, 90), 85, domain.StatusOverload, domain.RiskCritical, 50, 0},
		{"RatioOneHasNoBasePenalty", state(10, 10, 80, 30, 50), 0, domain.StatusNormal, domain.RiskSafe, 100, 0},
		{"HighTirePressure", state(5, 10, 80, 45, 50), 15, domain.StatusNormal, domain.RiskSafe, 50, 0},
		{"SpeedPenaltyIsFlat", state(5, 10, 80, 30, 200), 5, domain.StatusNormal, domain.RiskSafe, 50, 0},
		{"ModerateWarning", state(11, 10, 80, 30, 50), 50, domain.StatusWarning, domain.RiskModerate, 110, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.in)

			if got.Score != tt.score {
				t.Errorf("score = %v, want %v", got.Score, tt.score)
			}
			if got.Status != tt.status {
				t.Errorf("status = %s, want %s", got.Status, tt.status)
			}
			if got.RiskLevel != tt.level {
				t.Errorf("riskLevel = %s, want %s", got.RiskLevel, tt.level)
			}
			if got.LoadRatio != tt.loadRatio {
				t.Errorf("loadRatio = %v, want %v", got.LoadRatio, tt.loadRatio)
			}
			if got.ExcessLoad != tt.excessLoad {
				t.Errorf("excessLoad = %v, want %v", got.ExcessLoad, tt.excessLoad)
			}
			if got.Confidence != domain.ModelConfidence {
				t.Errorf("confidence = %v, want %v", got.Confidence, domain.ModelConfidence)
			}
			if want := math.Round(tt.score*10) / 1000; got.Probability != want {
				t.Errorf("probability = %v, want %v", got.Probability, want)
			}
		})
	}
}

func TestAssessDeterministic(t *testing.T) {
	in := state(13.7, 10, 42.5, 26.3, 95)
	first := Assess(in)
	for i := 0; i < 10; i++ {
		if got := Assess(in); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	for _, current := range []float64{0, 5, 10, 50, 1000} {
		for _, susp := range []float64{0, 40, 80, 100} {
			for _, tire := range []float64{0, 20, 30, 50, 100} {
				for _, speed := range []float64{0, 80, 81, 200} {
					got := Assess(state(current, 10, susp, tire, speed))
					if got.Score < 0 || got.Score > 100 {
						t.Fatalf("score %v out of range for load=%v susp=%v tire=%v speed=%v",
							got.Score, current, susp, tire, speed)
					}
					if current <= 10 && got.ExcessLoad != 0 {
						t.Fatalf("excess load %v with ratio <= 1", got.ExcessLoad)
					}
				}
			}
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.Status
	}{
		{0, domain.StatusNormal},
		{39.99, domain.StatusNormal},
		{40, domain.StatusWarning},
		{70, domain.StatusWarning},
		{70.01, domain.StatusOverload},
		{100, domain.StatusOverload},
	}
	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		status domain.Status
		score  float64
		want   domain.RiskLevel
	}{
		{domain.StatusWarning, 55, domain.RiskHigh},
		{domain.StatusWarning, 54.999, domain.RiskModerate},
		{domain.StatusWarning, 40, domain.RiskModerate},
		{domain.StatusOverload, 71, domain.RiskCritical},
		{domain.StatusNormal, 10, domain.RiskSafe},
	}
	for _, tt := range tests {
		if got := Level(tt.status, tt.score); got != tt.want {
			t.Errorf("Level(%s, %v) = %s, want %s", tt.status, tt.score, got, tt.want)
		}
	}
}

func TestRecommendation(t *testing.T) {
	t.Run("Overload", func(t *testing.T) {
		got := Assess(state(20, 10, 0, 0, 100)).Recommendation
		if !strings.HasPrefix(got, "CRITICAL") {
			t.Errorf("unexpected recommendation: %s", got)
		}
		if !strings.Contains(got, "200.00%") || !strings.Contains(got, "10.00 tons") {
			t.Errorf("recommendation missing load figures: %s", got)
		}
	})

	t.Run("Warning", func(t *testing.T) {
		got := Assess(state(15, 10, 50, 30, 70)).Recommendation
		if !strings.HasPrefix(got, "WARNING") {
			t.Errorf("unexpected recommendation: %s", got)
		}
		if !strings.Contains(got, "50.0% health") {
			t.Errorf("recommendation missing suspension: %s", got)
		}
	})

	t.Run("Normal", func(t *testing.T) {
		got := Assess(state(5, 10, 90, 30, 60)).Recommendation
		if !strings.Contains(got, "safe parameters") || !strings.Contains(got, "30.0 PSI") {
			t.Errorf("unexpected recommendation: %s", got)
		}
	})
}
