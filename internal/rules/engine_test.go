package rules

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/opensource-finance/axle/internal/domain"
	"github.com/opensource-finance/axle/internal/scoring"
)

func rule(id, expr string) *domain.RuleConfig {
	return &domain.RuleConfig{
		ID:         id,
		Name:       id,
		Expression: expr,
		Severity:   domain.SeverityWarning,
		Message:    id + " triggered",
		Enabled:    true,
	}
}

func vehicle(current, max, suspension, tire, speed float64) (domain.VehicleState, domain.RiskAssessment) {
	s := domain.VehicleState{
		CurrentLoad:        current,
		MaxLoad:            max,
		SuspensionHealth:   suspension,
		TirePressure:       tire,
		Weight:             8000,
		Speed:              speed,
		RegistrationNumber: "MH12AB1234",
	}
	return s, scoring.Assess(s)
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.LoadRule(rule("speed-check", "speed > 100.0")); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}

	disabled := rule("speed-check", "speed > 100.0")
	disabled.Enabled = false
	if err := engine.LoadRule(disabled); err != nil {
		t.Fatalf("failed to load disabled rule: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("disabled rule should unload, got %d", engine.RulesCount())
	}
}

func TestValidateRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	tests := []struct {
		name string
		cfg  *domain.RuleConfig
	}{
		{"Nil", nil},
		{"InvalidCEL", rule("bad", "this is not valid CEL !!!")},
		{"NonBool", rule("double", "speed * 2.0")},
		{"UnknownVariable", rule("unknown", "amount > 1.0")},
		{"MissingID", rule("", "speed > 1.0")},
		{"BadSeverity", func() *domain.RuleConfig { r := rule("sev", "speed > 1.0"); r.Severity = "urgent"; return r }()},
		{"MissingMessage", func() *domain.RuleConfig { r := rule("msg", "speed > 1.0"); r.Message = ""; return r }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := engine.ValidateRule(tt.cfg); !errors.Is(err, ErrInvalidRule) {
				t.Errorf("expected ErrInvalidRule, got %v", err)
			}
		})
	}

	if err := engine.ValidateRule(rule("ok", `registration.startsWith("MH") && score >= 40.0`)); err != nil {
		t.Errorf("expected valid rule, got %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Error("ValidateRule must not load the rule")
	}
}

func TestEvaluate(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	_ = engine.LoadRule(rule("b-overloaded", `status == "OVERLOAD"`))
	_ = engine.LoadRule(rule("a-fast", "speed > 80.0"))
	_ = engine.LoadRule(rule("c-ratio", "load_ratio > 150.0"))

	ctx := context.Background()

	t.Run("TriggeredOrderedByID", func(t *testing.T) {
		s, a := vehicle(20, 10, 0, 0, 100)
		got := engine.Evaluate(ctx, s, a)
		if len(got) != 3 {
			t.Fatalf("expected 3 advisories, got %d: %+v", len(got), got)
		}
		for i, id := range []string{"a-fast", "b-overloaded", "c-ratio"} {
			if got[i].RuleID != id {
				t.Errorf("advisory %d: expected %s, got %s", i, id, got[i].RuleID)
			}
		}
		if got[0].Message != "a-fast triggered" || got[0].Severity != domain.SeverityWarning {
			t.Errorf("unexpected advisory: %+v", got[0])
		}
	})

	t.Run("NoneTriggered", func(t *testing.T) {
		s, a := vehicle(5, 10, 90, 30, 50)
		if got := engine.Evaluate(ctx, s, a); len(got) != 0 {
			t.Errorf("expected no advisories, got %+v", got)
		}
	})

	t.Run("DoesNotChangeAssessment", func(t *testing.T) {
		s, a := vehicle(20, 10, 0, 0, 100)
		before := a
		engine.Evaluate(ctx, s, a)
		if a != before {
			t.Error("assessment changed")
		}
	})
}

func TestEvaluateRuntimeErrorSkipped(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	// Compiles, but divides by zero at runtime.
	if err := engine.LoadRule(rule("div", "int(speed) / int(max_load - max_load) > 0")); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	_ = engine.LoadRule(rule("ok", "speed >= 0.0"))

	s, a := vehicle(5, 10, 90, 30, 50)
	got := engine.Evaluate(context.Background(), s, a)
	if len(got) != 1 || got[0].RuleID != "ok" {
		t.Errorf("expected only the healthy rule, got %+v", got)
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	_ = engine.LoadRule(rule("old", "speed > 1.0"))

	disabled := rule("off", "speed > 1.0")
	disabled.Enabled = false
	if err := engine.ReloadRules([]*domain.RuleConfig{rule("new-1", "speed > 1.0"), rule("new-2", "score > 1.0"), disabled}); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	loaded := engine.GetLoadedRules()
	if len(loaded) != 2 || loaded[0].ID != "new-1" || loaded[1].ID != "new-2" {
		t.Errorf("unexpected loaded rules: %v", loaded)
	}

	// A bad rule keeps the current set.
	if err := engine.ReloadRules([]*domain.RuleConfig{rule("broken", "speed >")}); err == nil {
		t.Error("expected reload error")
	}
	if engine.RulesCount() != 2 {
		t.Errorf("expected previous 2 rules to stay loaded, got %d", engine.RulesCount())
	}
}

func TestParallelExecution(t *testing.T) {
	engine, _ := NewEngine(3)
	defer engine.Close()

	for i := 0; i < 20; i++ {
		_ = engine.LoadRule(rule(fmt.Sprintf("rule-%02d", i), "current_load > 0.0"))
	}

	s, a := vehicle(5, 10, 90, 30, 50)
	got := engine.Evaluate(context.Background(), s, a)
	if len(got) != 20 {
		t.Fatalf("expected 20 advisories, got %d", len(got))
	}
	if got[0].RuleID != "rule-00" || got[19].RuleID != "rule-19" {
		t.Errorf("advisories not ordered: first %s last %s", got[0].RuleID, got[19].RuleID)
	}
}

func TestBuiltinRules(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.ReloadRules(BuiltinRules()); err != nil {
		t.Fatalf("builtin rules must compile: %v", err)
	}
	if engine.RulesCount() != len(BuiltinRules()) {
		t.Errorf("expected %d rules, got %d", len(BuiltinRules()), engine.RulesCount())
	}

	t.Run("HiddenOverload", func(t *testing.T) {
		s, a := vehicle(5, 10, 0, 0, 90)
		ids := map[string]bool{}
		for _, adv := range engine.Evaluate(context.Background(), s, a) {
			ids[adv.RuleID] = true
		}
		for _, want := range []string{"hidden-overload", "suspension-critical", "tire-outside-guidance"} {
			if !ids[want] {
				t.Errorf("expected %s to trigger, got %v", want, ids)
			}
		}
		if ids["fast-near-capacity"] {
			t.Error("fast-near-capacity should not trigger at 50% load")
		}
	})

	t.Run("HealthyVehicle", func(t *testing.T) {
		s, a := vehicle(5, 10, 90, 30, 60)
		if got := engine.Evaluate(context.Background(), s, a); len(got) != 0 {
			t.Errorf("expected no advisories, got %+v", got)
		}
	})
}
