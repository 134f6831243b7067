// Package repository provides the SQL document store behind alerts,
// notifications and advisory rules.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/axle/internal/domain"
)

// List limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var _ domain.Repository = (*SQLRepository)(nil)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string

	// now is the store clock. Every created_at and updated_at comes from
	// it; timestamps set by callers are overwritten.
	now func() time.Time
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAlert stores an alert and sets its CreatedAt.
func (r *SQLRepository) SaveAlert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: alert id is required", domain.ErrInvalidInput)
	}

	location, err := encodeLocation(a.Location)
	if err != nil {
		return err
	}
	createdAt := r.now()

	query := `
		INSERT INTO alerts (
			id, registration_number, current_load, max_load, suspension_health,
			tire_pressure, weight, speed, load_ratio, score, probability,
			status, risk_level, excess_load, confidence, recommendation,
			location, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.RegistrationNumber, a.CurrentLoad, a.MaxLoad, a.SuspensionHealth,
		a.TirePressure, a.Weight, a.Speed, a.LoadRatio, a.Score, a.Probability,
		string(a.Status), string(a.RiskLevel), a.ExcessLoad, a.Confidence, a.Recommendation,
		location, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	a.CreatedAt = createdAt
	return nil
}

const alertColumns = `
	id, registration_number, current_load, max_load, suspension_health,
	tire_pressure, weight, speed, load_ratio, score, probability,
	status, risk_level, excess_load, confidence, recommendation,
	location, created_at
`

// GetAlert retrieves an alert by ID.
func (r *SQLRepository) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`

	a, err := scanAlert(r.db.QueryRowContext(ctx, r.rebind(query), alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// ListAlerts returns alerts newest first.
func (r *SQLRepository) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	var (
		where []string
		args  []any
	)
	if filter.RegistrationNumber != "" {
		where = append(where, "registration_number = ?")
		args = append(args, filter.RegistrationNumber)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts` + whereClause(where) +
		` ORDER BY created_at DESC LIMIT ?`
	args = append(args, NormalizeLimit(filter.Limit))

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]*domain.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// SaveNotification stores a notification and sets CreatedAt and UpdatedAt.
func (r *SQLRepository) SaveNotification(ctx context.Context, n *domain.Notification) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("%w: notification id is required", domain.ErrInvalidInput)
	}
	if !n.Status.Valid() {
		return fmt.Errorf("%w: unknown notification status %q", domain.ErrInvalidInput, n.Status)
	}

	location, err := encodeLocation(n.Location)
	if err != nil {
		return err
	}
	now := r.now()

	query := `
		INSERT INTO notifications (
			id, alert_id, registration_number, message, load_ratio, excess_load,
			score, risk_level, location, priority, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		n.ID, n.AlertID, n.RegistrationNumber, n.Message, n.LoadRatio, n.ExcessLoad,
		n.Score, string(n.RiskLevel), location, string(n.Priority), string(n.Status),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	n.CreatedAt = now
	n.UpdatedAt = now
	return nil
}

const notificationColumns = `
	id, alert_id, registration_number, message, load_ratio, excess_load,
	score, risk_level, location, priority, status, created_at, updated_at
`

// GetNotification retrieves a notification by ID.
func (r *SQLRepository) GetNotification(ctx context.Context, notificationID string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`

	n, err := scanNotification(r.db.QueryRowContext(ctx, r.rebind(query), notificationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return n, err
}

// ListNotifications returns notifications newest first.
func (r *SQLRepository) ListNotifications(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications` + whereClause(where) +
		` ORDER BY created_at DESC LIMIT ?`
	args = append(args, NormalizeLimit(filter.Limit))

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UpdateNotificationStatus moves a notification forward in the workflow.
// The update is conditional on the status read, so concurrent moves cannot
// skip the transition check.
func (r *SQLRepository) UpdateNotificationStatus(ctx context.Context, notificationID string, status domain.NotificationStatus) (*domain.Notification, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown notification status %q", domain.ErrInvalidInput, status)
	}

	current, err := r.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, current.Status, status)
	}

	now := r.now()
	query := `UPDATE notifications SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

	res, err := r.db.ExecContext(ctx, r.rebind(query), string(status), now, notificationID, string(current.Status))
	if err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: notification %s changed concurrently", domain.ErrInvalidTransition, notificationID)
	}

	current.Status = status
	current.UpdatedAt = now
	return current, nil
}

// SaveRuleConfig inserts or replaces an advisory rule.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", domain.ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := r.now()

	query := `
		INSERT INTO rule_configs (
			id, name, description, expression, severity, message, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			message = excluded.message,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		rule.Severity, rule.Message, enabled, now, now,
	)
	if err != nil {
		return fmt.Errorf("save rule config: %w", err)
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	return nil
}

// GetRuleConfig retrieves an advisory rule by ID.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, expression, severity, message, enabled, created_at, updated_at
		FROM rule_configs
		WHERE id = ?
	`

	rule, err := scanRuleConfig(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rule, err
}

// ListRuleConfigs returns every stored advisory rule ordered by ID.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, expression, severity, message, enabled, created_at, updated_at
		FROM rule_configs
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*domain.RuleConfig, 0)
	for rows.Next() {
		rule, err := scanRuleConfig(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// NormalizeLimit applies the default and maximum list sizes.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(s scanner) (*domain.Alert, error) {
	var (
		a        domain.Alert
		status   string
		level    string
		location sql.NullString
	)
	err := s.Scan(
		&a.ID, &a.RegistrationNumber, &a.CurrentLoad, &a.MaxLoad, &a.SuspensionHealth,
		&a.TirePressure, &a.Weight, &a.Speed, &a.LoadRatio, &a.Score, &a.Probability,
		&status, &level, &a.ExcessLoad, &a.Confidence, &a.Recommendation,
		&location, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = domain.Status(status)
	a.RiskLevel = domain.RiskLevel(level)
	if a.Location, err = decodeLocation(location); err != nil {
		return nil, fmt.Errorf("alert %s: %w", a.ID, err)
	}
	return &a, nil
}

func scanNotification(s scanner) (*domain.Notification, error) {
	var (
		n        domain.Notification
		level    string
		priority string
		status   string
		location sql.NullString
	)
	err := s.Scan(
		&n.ID, &n.AlertID, &n.RegistrationNumber, &n.Message, &n.LoadRatio, &n.ExcessLoad,
		&n.Score, &level, &location, &priority, &status, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.RiskLevel = domain.RiskLevel(level)
	n.Priority = domain.Priority(priority)
	n.Status = domain.NotificationStatus(status)
	if n.Location, err = decodeLocation(location); err != nil {
		return nil, fmt.Errorf("notification %s: %w", n.ID, err)
	}
	return &n, nil
}

func scanRuleConfig(s scanner) (*domain.RuleConfig, error) {
	var (
		rule        domain.RuleConfig
		description sql.NullString
		enabled     int
	)
	err := s.Scan(
		&rule.ID, &rule.Name, &description, &rule.Expression,
		&rule.Severity, &rule.Message, &enabled, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Enabled = enabled == 1
	return &rule, nil
}

func encodeLocation(loc *domain.Location) (sql.NullString, error) {
	if loc == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode location: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeLocation(s sql.NullString) (*domain.Location, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var loc domain.Location
	if err := json.Unmarshal([]byte(s.String), &loc); err != nil {
		return nil, fmt.Errorf("decode location: %w", err)
	}
	return &loc, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
