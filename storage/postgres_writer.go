package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"car-price-predictor/models"
	"car-price-predictor/utils"
)

// PostgresWriter persists training and evaluation runs to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 10, BaseDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS training_runs (
			id                 UUID PRIMARY KEY,
			bundle_id          UUID          NOT NULL,
			kind               VARCHAR(16)   NOT NULL,
			variant            VARCHAR(64)   NOT NULL,
			row_count          INTEGER       NOT NULL DEFAULT 0,
			rmse               NUMERIC(14,4) NOT NULL DEFAULT 0,
			mae                NUMERIC(14,4) NOT NULL DEFAULT 0,
			mape               NUMERIC(10,4) NOT NULL DEFAULT 0,
			tolerance_accuracy NUMERIC(7,4)  NOT NULL DEFAULT 0,
			r2                 NUMERIC(10,6) NOT NULL DEFAULT 0,
			duration_ms        BIGINT        NOT NULL DEFAULT 0,
			created_at         TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_training_runs_variant ON training_runs(variant, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_training_runs_bundle  ON training_runs(bundle_id);
	`)
	return err
}

const insertRunSQL = `
	INSERT INTO training_runs
		(id, bundle_id, kind, variant, row_count, rmse, mae, mape, tolerance_accuracy, r2, duration_ms, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (id) DO NOTHING
`

// runArgs lays out run in insertRunSQL column order.
func runArgs(run models.TrainingRun) []any {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m := run.Metrics
	return []any{
		run.ID.String(), run.BundleID.String(), string(run.Kind), run.Variant, run.Rows,
		m.RMSE, m.MAE, m.MAPE, m.ToleranceAccuracy, m.R2,
		run.Duration.Milliseconds(), run.CreatedAt,
	}
}

// WriteRun inserts one run; re-inserting the same id is a no-op.
func (pw *PostgresWriter) WriteRun(ctx context.Context, run models.TrainingRun) error {
	if _, err := pw.db.ExecContext(ctx, insertRunSQL, runArgs(run)...); err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}
	return nil
}

// FetchRecent returns up to limit runs, newest first, optionally for one variant.
func (pw *PostgresWriter) FetchRecent(ctx context.Context, variant string, limit int) ([]models.TrainingRun, error) {
	rows, err := pw.db.QueryContext(ctx, `
		SELECT id, bundle_id, kind, variant, row_count, rmse, mae, mape, tolerance_accuracy, r2, duration_ms, created_at
		FROM training_runs
		WHERE $1::text = '' OR variant = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, variant, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch recent: %w", err)
	}
	defer rows.Close()

	var runs []models.TrainingRun
	for rows.Next() {
		var (
			r          models.TrainingRun
			id, bundle string
			kind       string
			durationMS int64
		)
		if err := rows.Scan(
			&id, &bundle, &kind, &r.Variant, &r.Metrics.Count,
			&r.Metrics.RMSE, &r.Metrics.MAE, &r.Metrics.MAPE, &r.Metrics.ToleranceAccuracy, &r.Metrics.R2,
			&durationMS, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		r.ID, _ = uuid.Parse(id)
		r.BundleID, _ = uuid.Parse(bundle)
		r.Kind = models.RunKind(kind)
		r.Rows = r.Metrics.Count
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
