// Package rules provides the CEL-Go based advisory rule engine.
//
// Advisory rules annotate a prediction for the operator. They run after
// scoring and never change the score, the status or alerting.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/axle/internal/domain"
)

// ErrInvalidRule is returned when a rule config fails validation.
var ErrInvalidRule = errors.New("invalid rule")

// Engine evaluates compiled advisory rules against scored vehicles.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a new rule engine. maxWorkers bounds parallel evaluation.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("current_load", cel.DoubleType),
		cel.Variable("max_load", cel.DoubleType),
		cel.Variable("load_ratio", cel.DoubleType), // percent
		cel.Variable("suspension", cel.DoubleType),
		cel.Variable("tire_pressure", cel.DoubleType),
		cel.Variable("weight", cel.DoubleType),
		cel.Variable("speed", cel.DoubleType),
		cel.Variable("registration", cel.StringType),
		cel.Variable("score", cel.DoubleType),
		cel.Variable("status", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule checks a rule config and compiles it without loading it.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: rule config is required", ErrInvalidRule)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine. Disabled rules are
// removed instead.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !cfg.Enabled {
		delete(e.compiledRules, cfg.ID)
		return nil
	}

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// ReloadRules replaces all loaded rules. On a compile error the previous set
// stays loaded.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// Evaluate runs every loaded rule in parallel and returns the triggered
// advisories ordered by rule ID. Rules that fail at runtime are logged and
// skipped.
func (e *Engine) Evaluate(ctx context.Context, state domain.VehicleState, a domain.RiskAssessment) []domain.Advisory {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"current_load":  state.CurrentLoad,
		"max_load":      state.MaxLoad,
		"load_ratio":    a.LoadRatio,
		"suspension":    state.SuspensionHealth,
		"tire_pressure": state.TirePressure,
		"weight":        state.Weight,
		"speed":         state.Speed,
		"registration":  state.RegistrationNumber,
		"score":         a.Score,
		"status":        string(a.Status),
	}

	triggered := make([]bool, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			triggered[idx] = e.evaluateRule(ctx, r, activation)
		}(i, rule)
	}

	wg.Wait()

	var advisories []domain.Advisory
	for i, hit := range triggered {
		if !hit {
			continue
		}
		cfg := rules[i].Config
		advisories = append(advisories, domain.Advisory{
			RuleID:   cfg.ID,
			Severity: cfg.Severity,
			Message:  cfg.Message,
		})
	}

	sort.Slice(advisories, func(i, j int) bool {
		return advisories[i].RuleID < advisories[j].RuleID
	})
	return advisories
}

func (e *Engine) evaluateRule(ctx context.Context, rule *CompiledRule, activation map[string]any) bool {
	out, _, err := rule.Program.ContextEval(ctx, activation)
	if err != nil {
		slog.Warn("advisory rule evaluation failed",
			"rule_id", rule.Config.ID,
			"error", err,
		)
		return false
	}

	b, ok := out.(types.Bool)
	return ok && bool(b)
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations ordered by ID.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRule)
	}
	if !domain.ValidSeverity(cfg.Severity) {
		return nil, fmt.Errorf("%w: rule %s: unknown severity %q", ErrInvalidRule, cfg.ID, cfg.Severity)
	}
	if cfg.Message == "" {
		return nil, fmt.Errorf("%w: rule %s: message is required", ErrInvalidRule, cfg.ID)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: failed to compile rule %s: %v", ErrInvalidRule, cfg.ID, issues.Err())
	}

	if outputType := ast.OutputType(); outputType != cel.BoolType {
		return nil, fmt.Errorf("%w: rule %s: expression must return bool, got %s", ErrInvalidRule, cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
