// Package history provides PostgreSQL persistence for the audit trail:
// terminal task outcomes and escalated notifications.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/nadmax/vigil/internal/notify"
	"github.com/nadmax/vigil/internal/task"
)

type PostgresArchive struct {
	db *sql.DB
}

type NotificationRow struct {
	AlertID      int64     `json:"alert_id"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Icon         string    `json:"icon"`
	Severity     int       `json:"severity"`
	DurationMs   int64     `json:"duration_ms"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

type OutcomeStats struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func NewPostgresArchive(connectionString string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresArchive{db: db}, nil
}

// RecordTaskOutcome upserts the final record of a finished task.
func (a *PostgresArchive) RecordTaskOutcome(ctx context.Context, rec task.Record) error {
	query := `
		INSERT INTO task_outcomes (
			task_id, kind, status, result, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			completed_at = EXCLUDED.completed_at
	`

	var result any
	if len(rec.Result) > 0 {
		result = []byte(rec.Result)
	}

	_, err := a.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.Kind,
		string(rec.Status),
		result,
		rec.CreatedAt,
		rec.LastCheckedAt,
	)

	return err
}

// RecordNotification archives one escalated notification. Re-dispatching the
// same alert id is a no-op.
func (a *PostgresArchive) RecordNotification(ctx context.Context, n notify.Notification) error {
	query := `
		INSERT INTO notifications (
			alert_id, title, message, icon, severity, duration_ms, dispatched_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (alert_id) DO NOTHING
	`

	_, err := a.db.ExecContext(
		ctx,
		query,
		n.AlertID,
		n.Title,
		n.Message,
		n.Icon,
		n.Severity,
		n.Duration.Milliseconds(),
	)

	return err
}

// RecentNotifications returns the latest archived notifications, newest first.
func (a *PostgresArchive) RecentNotifications(ctx context.Context, limit int) ([]NotificationRow, error) {
	query := `
		SELECT alert_id, title, message, icon, severity, duration_ms, dispatched_at
		FROM notifications
		ORDER BY dispatched_at DESC
		LIMIT $1
	`

	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []NotificationRow
	for rows.Next() {
		var row NotificationRow
		if err := rows.Scan(
			&row.AlertID,
			&row.Title,
			&row.Message,
			&row.Icon,
			&row.Severity,
			&row.DurationMs,
			&row.DispatchedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// TaskOutcomeStats aggregates finished tasks by kind and status over the last
// N hours.
func (a *PostgresArchive) TaskOutcomeStats(ctx context.Context, hours int) ([]OutcomeStats, error) {
	query := `
		SELECT kind, status, COUNT(*) as count
		FROM task_outcomes
		WHERE completed_at > NOW() - ($1 || ' hours')::INTERVAL
		GROUP BY kind, status
		ORDER BY kind, status
	`

	rows, err := a.db.QueryContext(ctx, query, hours)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []OutcomeStats
	for rows.Next() {
		var stat OutcomeStats
		if err := rows.Scan(&stat.Kind, &stat.Status, &stat.Count); err != nil {
			return nil, err
		}
		out = append(out, stat)
	}

	return out, rows.Err()
}

func (a *PostgresArchive) Close() error {
	return a.db.Close()
}
