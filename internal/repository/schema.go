package repository

// Schema definitions for the Axle document store.
// Compatible with both SQLite and PostgreSQL.

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    registration_number TEXT NOT NULL,
    current_load DOUBLE PRECISION NOT NULL,
    max_load DOUBLE PRECISION NOT NULL,
    suspension_health DOUBLE PRECISION NOT NULL,
    tire_pressure DOUBLE PRECISION NOT NULL,
    weight DOUBLE PRECISION NOT NULL,
    speed DOUBLE PRECISION NOT NULL,
    load_ratio DOUBLE PRECISION NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    probability DOUBLE PRECISION NOT NULL,
    status TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    excess_load DOUBLE PRECISION NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    recommendation TEXT NOT NULL,
    location TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_registration ON alerts(registration_number);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
`

// schemaNotifications holds the dashboard projection of alerts.
// alert_id is not a foreign key: the two writes are independent.
const schemaNotifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    alert_id TEXT NOT NULL,
    registration_number TEXT NOT NULL,
    message TEXT NOT NULL,
    load_ratio DOUBLE PRECISION NOT NULL,
    excess_load DOUBLE PRECISION NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    risk_level TEXT NOT NULL,
    location TEXT,
    priority TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
CREATE INDEX IF NOT EXISTS idx_notifications_alert ON notifications(alert_id);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAlerts,
		schemaNotifications,
		schemaRuleConfigs,
	}
}
