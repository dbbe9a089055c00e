// Package history persists report summaries and numeric finding details in DuckDB.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const healthChecksSchema = `
	CREATE SEQUENCE IF NOT EXISTS health_checks_id_seq START 1;
	CREATE TABLE IF NOT EXISTS health_checks (
		id BIGINT PRIMARY KEY DEFAULT nextval('health_checks_id_seq'),
		database_name VARCHAR NOT NULL,
		checked_at TIMESTAMP NOT NULL,
		worst_severity VARCHAR NOT NULL,
		has_issues BOOLEAN NOT NULL,
		total_checks INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		criticals INTEGER NOT NULL,
		checks_json JSON,
		connection_hash VARCHAR
	);
`

const metricsSchema = `
	CREATE SEQUENCE IF NOT EXISTS metrics_id_seq START 1;
	CREATE TABLE IF NOT EXISTS metrics (
		id BIGINT PRIMARY KEY DEFAULT nextval('metrics_id_seq'),
		database_name VARCHAR NOT NULL,
		checked_at TIMESTAMP NOT NULL,
		metric_name VARCHAR NOT NULL,
		metric_value DOUBLE NOT NULL,
		connection_hash VARCHAR
	);
`

const indexesSchema = `
	CREATE INDEX IF NOT EXISTS idx_health_checks_db_time ON health_checks (database_name, checked_at);
	CREATE INDEX IF NOT EXISTS idx_metrics_db_name_time ON metrics (database_name, metric_name, checked_at);
`

var bootQueries = []string{
	healthChecksSchema,
	metricsSchema,
	indexesSchema,
}

// OpenDB opens the DuckDB file at path, creating the schema when missing.
// ":memory:" gives a private in-process database.
func OpenDB(path string) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", path), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			if _, err := exec.ExecContext(context.Background(), query, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open history database %s: %w", path, err)
	}
	return sql.OpenDB(c), nil
}
