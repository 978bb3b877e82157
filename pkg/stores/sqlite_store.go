package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/floatingatoll/puppet/pkg/engine"
	"github.com/floatingatoll/puppet/pkg/transaction"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists convergence reports in SQLite. It implements the
// engine.ReportStore interface.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded filesystem.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// SaveReport stores a completed report with its per-resource statuses and
// events in a single transaction.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *engine.Report) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (id, platform, noop, status, started_at, finished_at,
			resource_count, changed_count, failed_count, skipped_count, out_of_sync_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Platform,
		report.Noop,
		string(report.Status),
		report.StartedAt.UTC(),
		report.FinishedAt.UTC(),
		report.ResourceCount,
		report.ChangedCount,
		report.FailedCount,
		report.SkippedCount,
		report.OutOfSyncCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	for pos, snap := range report.Statuses {
		containment, err := json.Marshal(snap.ContainmentPath)
		if err != nil {
			return fmt.Errorf("failed to encode containment path: %w", err)
		}
		tags, err := json.Marshal(snap.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO report_resources (report_id, position, resource_type, title,
				file, line, containment_path, tags,
				change_count, out_of_sync_count,
				changed, out_of_sync, skipped, failed,
				failed_to_restart, restarted, scheduled,
				evaluation_time_ns, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.ID,
			pos,
			snap.ResourceType,
			snap.Title,
			snap.File,
			snap.Line,
			string(containment),
			string(tags),
			snap.ChangeCount,
			snap.OutOfSyncCount,
			snap.Changed,
			snap.OutOfSync,
			snap.Skipped,
			snap.Failed,
			snap.FailedToRestart,
			snap.Restarted,
			snap.Scheduled,
			int64(snap.EvaluationTime),
			snap.Time.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert report resource: %w", err)
		}

		resourceID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get resource row ID: %w", err)
		}

		for seq, ev := range snap.Events {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO report_events (resource_id, sequence, kind, status, message, timestamp)
				VALUES (?, ?, ?, ?, ?, ?)
			`,
				resourceID,
				seq,
				ev.Kind,
				string(ev.Status),
				ev.Message,
				ev.Timestamp.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert report event: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// GetReport retrieves a full report, statuses and events included.
func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*engine.Report, error) {
	report := &engine.Report{}
	var status string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, platform, noop, status, started_at, finished_at,
			resource_count, changed_count, failed_count, skipped_count, out_of_sync_count
		FROM reports
		WHERE id = ?
	`, id).Scan(
		&report.ID,
		&report.Platform,
		&report.Noop,
		&status,
		&report.StartedAt,
		&report.FinishedAt,
		&report.ResourceCount,
		&report.ChangedCount,
		&report.FailedCount,
		&report.SkippedCount,
		&report.OutOfSyncCount,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	report.Status = engine.ReportStatus(status)

	statuses, err := s.loadResources(ctx, id)
	if err != nil {
		return nil, err
	}
	report.Statuses = statuses

	return report, nil
}

// loadResources loads the per-resource snapshots of a report in evaluation
// order.
func (s *SQLiteStore) loadResources(ctx context.Context, reportID string) ([]transaction.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, resource_type, title, file, line, containment_path, tags,
			change_count, out_of_sync_count,
			changed, out_of_sync, skipped, failed,
			failed_to_restart, restarted, scheduled,
			evaluation_time_ns, recorded_at
		FROM report_resources
		WHERE report_id = ?
		ORDER BY position ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list report resources: %w", err)
	}
	defer rows.Close()

	var statuses []transaction.Snapshot
	var rowIDs []int64

	for rows.Next() {
		var (
			snap        transaction.Snapshot
			rowID       int64
			containment string
			tags        string
			evalNS      int64
		)
		err := rows.Scan(
			&rowID,
			&snap.ResourceType,
			&snap.Title,
			&snap.File,
			&snap.Line,
			&containment,
			&tags,
			&snap.ChangeCount,
			&snap.OutOfSyncCount,
			&snap.Changed,
			&snap.OutOfSync,
			&snap.Skipped,
			&snap.Failed,
			&snap.FailedToRestart,
			&snap.Restarted,
			&snap.Scheduled,
			&evalNS,
			&snap.Time,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report resource: %w", err)
		}

		if err := json.Unmarshal([]byte(containment), &snap.ContainmentPath); err != nil {
			return nil, fmt.Errorf("failed to decode containment path: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &snap.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
		snap.EvaluationTime = time.Duration(evalNS)

		statuses = append(statuses, snap)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report resources: %w", err)
	}

	for i, rowID := range rowIDs {
		events, err := s.loadEvents(ctx, rowID)
		if err != nil {
			return nil, err
		}
		statuses[i].Events = events
	}

	return statuses, nil
}

// loadEvents loads the ordered event log for one resource row.
func (s *SQLiteStore) loadEvents(ctx context.Context, resourceID int64) ([]transaction.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, status, message, timestamp
		FROM report_events
		WHERE resource_id = ?
		ORDER BY sequence ASC
	`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list report events: %w", err)
	}
	defer rows.Close()

	events := []transaction.Event{}
	for rows.Next() {
		var (
			ev     transaction.Event
			status string
		)
		if err := rows.Scan(&ev.Kind, &status, &ev.Message, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan report event: %w", err)
		}
		ev.Status = transaction.EventStatus(status)
		if err := ev.Status.Validate(); err != nil {
			return nil, fmt.Errorf("stored event is invalid: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report events: %w", err)
	}

	return events, nil
}

// ListReports returns summaries of the stored reports, newest first.
func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]*engine.ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, platform, noop, status, started_at, finished_at,
			resource_count, changed_count, failed_count
		FROM reports
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	summaries := []*engine.ReportSummary{}
	for rows.Next() {
		summary := &engine.ReportSummary{}
		var status string
		err := rows.Scan(
			&summary.ID,
			&summary.Platform,
			&summary.Noop,
			&status,
			&summary.StartedAt,
			&summary.FinishedAt,
			&summary.ResourceCount,
			&summary.ChangedCount,
			&summary.FailedCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report summary: %w", err)
		}
		summary.Status = engine.ReportStatus(status)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return summaries, nil
}

// DeleteReport deletes a report and its resources and events.
func (s *SQLiteStore) DeleteReport(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("report not found: %s", id)
	}
	return nil
}
