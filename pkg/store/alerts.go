package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/avative-pat/FiberMonitorMap/pkg/models"
)

// InsertAlert appends a newly created alert to the alert log.
func (s *Store) InsertAlert(ctx context.Context, alert *models.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	affected, err := json.Marshal(alert.AffectedOnts)
	if err != nil {
		return fmt.Errorf("%w: %w", errSaveAlert, err)
	}

	const insert = `
        INSERT INTO alerts (id, rule_name, target_key, severity, message, affected, created_at, resolved_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
    `

	if _, err := s.db.ExecContext(ctx, insert,
		alert.ID, alert.RuleName, alert.TargetKey, string(alert.Severity),
		alert.Message, string(affected), alert.CreatedAt,
	); err != nil {
		return fmt.Errorf("%w: %w", errSaveAlert, err)
	}

	return nil
}

// ResolveAlert records the resolution time of an alert.
func (s *Store) ResolveAlert(ctx context.Context, alert *models.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET resolved_at = ? WHERE id = ?`,
		alert.ResolvedAt, alert.ID,
	); err != nil {
		return fmt.Errorf("%w: %w", errSaveAlert, err)
	}

	return nil
}

// LoadActiveAlerts returns the unresolved alerts, used at startup to
// rebuild the engine's active-alert index.
func (s *Store) LoadActiveAlerts(ctx context.Context) ([]*models.Alert, error) {
	return s.queryAlerts(ctx, `
        SELECT id, rule_name, target_key, severity, message, affected, created_at, resolved_at
        FROM alerts WHERE resolved_at IS NULL ORDER BY created_at
    `)
}

// ListAlerts returns the alert log, newest first, capped at limit.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	return s.queryAlerts(ctx, `
        SELECT id, rule_name, target_key, severity, message, affected, created_at, resolved_at
        FROM alerts ORDER BY created_at DESC LIMIT ?
    `, limit)
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errQueryAlerts, err)
	}
	defer rows.Close()

	var alerts []*models.Alert

	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errQueryAlerts, err)
	}

	return alerts, nil
}

func scanAlert(rows *sql.Rows) (*models.Alert, error) {
	var (
		alert    models.Alert
		severity string
		affected string
		resolved sql.NullTime
	)

	if err := rows.Scan(&alert.ID, &alert.RuleName, &alert.TargetKey, &severity,
		&alert.Message, &affected, &alert.CreatedAt, &resolved); err != nil {
		return nil, fmt.Errorf("%w: %w", errScanRow, err)
	}

	alert.Severity = models.AlertSeverity(severity)

	if err := json.Unmarshal([]byte(affected), &alert.AffectedOnts); err != nil {
		return nil, fmt.Errorf("%w: %w", errScanRow, err)
	}

	if resolved.Valid {
		t := resolved.Time.UTC()
		alert.ResolvedAt = &t
	}

	alert.CreatedAt = alert.CreatedAt.UTC()

	return &alert, nil
}
