// Package repository persists the local run ledger: one row per
// collection run plus its drafts and classified errors, so an operator
// can audit what past runs did.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-collector/internal/collector"
	"github.com/garyjia/invoice-collector/pkg/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunRecord is a persisted run summary.
type RunRecord struct {
	ID            int64
	RunDate       time.Time
	DryRun        bool
	DraftsCreated int
	ErrorCount    int
	RowsUpdated   int
	CreatedAt     time.Time
}

// RunRepository stores run history in SQLite.
type RunRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRunRepository creates the repository and applies pending schema
// migrations.
func NewRunRepository(db *database.DB, logger *zap.Logger) (*RunRepository, error) {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	if err := database.NewMigrator(db, logger).Run(fsys); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return &RunRepository{db: db, logger: logger}, nil
}

// RecordRun writes one run with its drafts and errors atomically.
func (r *RunRepository) RecordRun(ctx context.Context, result *collector.RunResult) error {
	err := r.db.WithTransaction(func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO runs (run_date, dry_run, drafts_created, error_count, rows_updated)
			VALUES (?, ?, ?, ?, ?)`,
			result.Date.Format("2006-01-02"),
			result.DryRun,
			len(result.Drafts),
			len(result.Errors),
			result.RowsUpdated,
		)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}
		runID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading run id: %w", err)
		}

		for _, d := range result.Drafts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO run_drafts (run_id, invoice_id, stage, client_email, subject, draft_id, days_overdue)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				runID, d.InvoiceID, d.Stage, d.ClientEmail, d.Subject, d.DraftID, d.DaysOverdue,
			); err != nil {
				return fmt.Errorf("inserting draft %s: %w", d.InvoiceID, err)
			}
		}

		for _, e := range result.Errors {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO run_errors (run_id, invoice_id, kind, message)
				VALUES (?, ?, ?, ?)`,
				runID, e.InvoiceID, e.Kind.String(), e.Err.Error(),
			); err != nil {
				return fmt.Errorf("inserting error: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("Recorded run in ledger",
		zap.Int("drafts", len(result.Drafts)),
		zap.Int("errors", len(result.Errors)))
	return nil
}

// ListRecent returns the most recent runs, newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_date, dry_run, drafts_created, error_count, rows_updated, created_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var runDate string
		if err := rows.Scan(&rec.ID, &runDate, &rec.DryRun, &rec.DraftsCreated, &rec.ErrorCount, &rec.RowsUpdated, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if rec.RunDate, err = time.Parse("2006-01-02", runDate); err != nil {
			return nil, fmt.Errorf("parsing run date %q: %w", runDate, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
