package database

import (
	"context"
	"time"
)

// InsertAlertLog inserts a new alert log entry
func (db *DB) InsertAlertLog(ctx context.Context, alert *AlertLog) error {
	query := `
		INSERT INTO alerts_log (
			user_id, rule, severity, breach_value, start_time, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING alert_id
	`

	return db.QueryRowContext(ctx,
		query,
		alert.UserID,
		alert.Rule,
		alert.Severity,
		alert.BreachValue,
		alert.StartTime,
		alert.Status,
	).Scan(&alert.AlertID)
}

// UpdateAlertLogCleared marks an alert log entry as cleared
func (db *DB) UpdateAlertLogCleared(ctx context.Context, alertID int64, endTime time.Time) error {
	query := `
		UPDATE alerts_log
		SET status = $1, end_time = $2, updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $3
	`

	_, err := db.ExecContext(ctx, query, AlertStatusCleared, endTime, alertID)
	return err
}
