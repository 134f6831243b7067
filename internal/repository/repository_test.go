package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/axle/internal/domain"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "axle-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	// Deterministic, strictly increasing timestamps
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func testAlert(id, registration string) *domain.Alert {
	return &domain.Alert{
		ID:                 id,
		RegistrationNumber: registration,
		CurrentLoad:        15.5,
		MaxLoad:            10,
		SuspensionHealth:   40,
		TirePressure:       24,
		Weight:             9000,
		Speed:              90,
		LoadRatio:          155,
		Score:              75,
		Probability:        0.75,
		Status:             domain.StatusOverload,
		RiskLevel:          domain.RiskCritical,
		ExcessLoad:         5.5,
		Confidence:         domain.ModelConfidence,
		Recommendation:     "CRITICAL: unload",
	}
}

func testNotification(id, alertID string) *domain.Notification {
	return &domain.Notification{
		ID:                 id,
		AlertID:            alertID,
		RegistrationNumber: "MH12AB1234",
		Message:            "overloaded",
		LoadRatio:          155,
		ExcessLoad:         5.5,
		Score:              75,
		RiskLevel:          domain.RiskCritical,
		Priority:           domain.PriorityHigh,
		Status:             domain.NotificationPending,
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetAlert", func(t *testing.T) {
		a := testAlert("alert-001", "MH12AB1234")
		a.Location = &domain.Location{Latitude: 19.076, Longitude: 72.8777, Address: "Mumbai"}

		if err := repo.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
		if a.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be assigned")
		}

		got, err := repo.GetAlert(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if got.RegistrationNumber != a.RegistrationNumber || got.Score != a.Score || got.ExcessLoad != a.ExcessLoad {
			t.Errorf("alert mismatch: %+v", got)
		}
		if got.Status != domain.StatusOverload || got.RiskLevel != domain.RiskCritical {
			t.Errorf("unexpected status fields: %s %s", got.Status, got.RiskLevel)
		}
		if got.Location == nil || got.Location.Address != "Mumbai" {
			t.Errorf("location not round-tripped: %+v", got.Location)
		}
		if !got.CreatedAt.Equal(a.CreatedAt) {
			t.Errorf("expected CreatedAt %v, got %v", a.CreatedAt, got.CreatedAt)
		}
	})

	t.Run("AlertWithoutLocation", func(t *testing.T) {
		a := testAlert("alert-002", "KA01MN0001")
		if err := repo.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
		got, err := repo.GetAlert(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if got.Location != nil {
			t.Errorf("expected nil location, got %+v", got.Location)
		}
	})

	t.Run("DuplicateAlertID", func(t *testing.T) {
		if err := repo.SaveAlert(ctx, testAlert("alert-001", "MH12AB1234")); err == nil {
			t.Error("expected error for duplicate id")
		}
	})

	t.Run("ListAlerts", func(t *testing.T) {
		all, err := repo.ListAlerts(ctx, domain.AlertFilter{})
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 alerts, got %d", len(all))
		}
		if all[0].ID != "alert-002" {
			t.Errorf("expected newest first, got %s", all[0].ID)
		}

		filtered, err := repo.ListAlerts(ctx, domain.AlertFilter{RegistrationNumber: "MH12AB1234"})
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(filtered) != 1 || filtered[0].ID != "alert-001" {
			t.Errorf("unexpected filtered alerts: %v", filtered)
		}

		limited, _ := repo.ListAlerts(ctx, domain.AlertFilter{Limit: 1})
		if len(limited) != 1 {
			t.Errorf("expected 1 alert with limit, got %d", len(limited))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetAlert(ctx, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		_, err = repo.GetNotification(ctx, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		_, err = repo.GetRuleConfig(ctx, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if err := repo.SaveAlert(ctx, &domain.Alert{}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		n := testNotification("n-bad", "alert-001")
		n.Status = "UNKNOWN"
		if err := repo.SaveNotification(ctx, n); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestStoreAssignsTimestamps(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	stale := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	a := testAlert("alert-ts", "MH12AB1234")
	a.CreatedAt = stale
	if err := repo.SaveAlert(ctx, a); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}
	got, err := repo.GetAlert(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got.CreatedAt.Equal(stale) || !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("caller timestamp kept: stored %v, returned %v", got.CreatedAt, a.CreatedAt)
	}

	n := testNotification("n-ts", a.ID)
	n.CreatedAt = stale
	n.UpdatedAt = stale
	if err := repo.SaveNotification(ctx, n); err != nil {
		t.Fatalf("SaveNotification failed: %v", err)
	}
	gotN, err := repo.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if gotN.CreatedAt.Equal(stale) || gotN.UpdatedAt.Equal(stale) {
		t.Errorf("caller timestamps kept: %+v", gotN)
	}
	if !gotN.CreatedAt.After(got.CreatedAt) {
		t.Errorf("expected notification after alert: %v <= %v", gotN.CreatedAt, got.CreatedAt)
	}
}

func TestNotificationWorkflow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n := testNotification("n-001", "alert-001")
	if err := repo.SaveNotification(ctx, n); err != nil {
		t.Fatalf("SaveNotification failed: %v", err)
	}
	if n.CreatedAt.IsZero() || !n.UpdatedAt.Equal(n.CreatedAt) {
		t.Error("expected store-assigned timestamps")
	}

	t.Run("Get", func(t *testing.T) {
		got, err := repo.GetNotification(ctx, n.ID)
		if err != nil {
			t.Fatalf("GetNotification failed: %v", err)
		}
		if got.Status != domain.NotificationPending || got.Priority != domain.PriorityHigh {
			t.Errorf("unexpected workflow fields: %s %s", got.Status, got.Priority)
		}
	})

	t.Run("Acknowledge", func(t *testing.T) {
		got, err := repo.UpdateNotificationStatus(ctx, n.ID, domain.NotificationAcknowledged)
		if err != nil {
			t.Fatalf("UpdateNotificationStatus failed: %v", err)
		}
		if got.Status != domain.NotificationAcknowledged {
			t.Errorf("expected ACKNOWLEDGED, got %s", got.Status)
		}
		if !got.UpdatedAt.After(got.CreatedAt) {
			t.Error("expected UpdatedAt to advance")
		}
	})

	t.Run("BackwardsRejected", func(t *testing.T) {
		_, err := repo.UpdateNotificationStatus(ctx, n.ID, domain.NotificationPending)
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("Resolve", func(t *testing.T) {
		got, err := repo.UpdateNotificationStatus(ctx, n.ID, domain.NotificationResolved)
		if err != nil {
			t.Fatalf("UpdateNotificationStatus failed: %v", err)
		}
		if got.Status != domain.NotificationResolved {
			t.Errorf("expected RESOLVED, got %s", got.Status)
		}
	})

	t.Run("ResolvedIsTerminal", func(t *testing.T) {
		_, err := repo.UpdateNotificationStatus(ctx, n.ID, domain.NotificationAcknowledged)
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		_, err := repo.UpdateNotificationStatus(ctx, n.ID, "DONE")
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("UnknownID", func(t *testing.T) {
		_, err := repo.UpdateNotificationStatus(ctx, "missing", domain.NotificationResolved)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListByStatus", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if err := repo.SaveNotification(ctx, testNotification(fmt.Sprintf("n-p%d", i), "alert-x")); err != nil {
				t.Fatalf("SaveNotification failed: %v", err)
			}
		}

		pending, err := repo.ListNotifications(ctx, domain.NotificationFilter{Status: domain.NotificationPending})
		if err != nil {
			t.Fatalf("ListNotifications failed: %v", err)
		}
		if len(pending) != 3 {
			t.Errorf("expected 3 pending, got %d", len(pending))
		}
		if pending[0].ID != "n-p2" {
			t.Errorf("expected newest first, got %s", pending[0].ID)
		}

		all, _ := repo.ListNotifications(ctx, domain.NotificationFilter{})
		if len(all) != 4 {
			t.Errorf("expected 4 notifications, got %d", len(all))
		}
	})
}

func TestRuleConfigs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := &domain.RuleConfig{
		ID:         "high-speed-heavy",
		Name:       "High speed while heavy",
		Expression: "speed > 90.0 && load_ratio > 90.0",
		Severity:   domain.SeverityWarning,
		Message:    "Reduce speed",
		Enabled:    true,
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		if err := repo.SaveRuleConfig(ctx, rule); err != nil {
			t.Fatalf("SaveRuleConfig failed: %v", err)
		}

		got, err := repo.GetRuleConfig(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetRuleConfig failed: %v", err)
		}
		if got.Expression != rule.Expression || !got.Enabled || got.Description != "" {
			t.Errorf("rule mismatch: %+v", got)
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		updated := *rule
		updated.Enabled = false
		updated.Message = "Slow down"
		if err := repo.SaveRuleConfig(ctx, &updated); err != nil {
			t.Fatalf("SaveRuleConfig failed: %v", err)
		}

		got, _ := repo.GetRuleConfig(ctx, rule.ID)
		if got.Enabled || got.Message != "Slow down" {
			t.Errorf("update not applied: %+v", got)
		}
	})

	t.Run("ListOrderedByID", func(t *testing.T) {
		_ = repo.SaveRuleConfig(ctx, &domain.RuleConfig{
			ID: "a-first", Name: "First", Expression: "true", Severity: domain.SeverityInfo, Message: "m", Enabled: true,
		})

		rules, err := repo.ListRuleConfigs(ctx)
		if err != nil {
			t.Fatalf("ListRuleConfigs failed: %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("expected 2 rules, got %d", len(rules))
		}
		if rules[0].ID != "a-first" {
			t.Errorf("expected ordered by id, got %s", rules[0].ID)
		}
	})
}

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultListLimit},
		{-3, DefaultListLimit},
		{10, 10},
		{MaxListLimit, MaxListLimit},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tt := range tests {
		if got := NormalizeLimit(tt.in); got != tt.want {
			t.Errorf("NormalizeLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestInMemorySQLite(t *testing.T) {
	repo, err := New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	if err := repo.SaveAlert(context.Background(), testAlert("mem-1", "MH12AB1234")); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}
	if _, err := repo.GetAlert(context.Background(), "mem-1"); err != nil {
		t.Errorf("GetAlert failed: %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "mysql"})
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{PostgresUser: "axle", PostgresPassword: "secret"})
	for _, part := range []string{"host=localhost", "port=5432", "dbname=axle", "sslmode=disable", "user=axle"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("dsn %q missing %q", dsn, part)
		}
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}

	sqlite := &SQLRepository{driver: "sqlite"}
	if got := sqlite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}
