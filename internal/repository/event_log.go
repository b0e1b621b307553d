package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"restaurant_live/internal/model"
)

const sqliteTimeFormat = "2006-01-02 15:04:05"

// EventLogRepository: gives access to Event_Log, the append-only record of writes that feeds
// live subscriptions.
type EventLogRepository interface {
	// GetLogsAfter: returns up to limit events with log_id > afterID, oldest first.
	GetLogsAfter(ctx context.Context, afterID int64, limit int) ([]model.EventLog, error)

	// LatestLogID: the newest log_id, or 0 for an empty log. Subscribers start from it.
	LatestLogID(ctx context.Context) (int64, error)
}

type EventLogRepoImpl struct {
	DB *sql.DB
}

func NewEventLogRepository(conn *sql.DB) EventLogRepository {
	return &EventLogRepoImpl{DB: conn}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertLog: appends one event inside the write that caused it and sets its LogID.
func insertLog(ctx context.Context, exec execer, log *model.EventLog) error {
	if log.EventType == "" {
		return errors.New("event type is required")
	}

	query := `
	INSERT INTO Event_Log (
	event_type,
	payload,
	target_record_id
	) VALUES (?, ?, ?)`

	res, err := exec.ExecContext(ctx, query, log.EventType, log.Payload, log.TargetRecordID)
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read log id: %w", err)
	}
	log.LogID = id
	return nil
}

func (r *EventLogRepoImpl) GetLogsAfter(ctx context.Context, afterID int64, limit int) ([]model.EventLog, error) {
	query := `
	SELECT log_id, event_type, payload, target_record_id, logged_at
	FROM Event_Log
	WHERE log_id > ?
	ORDER BY log_id ASC
	LIMIT ?`

	rows, err := r.DB.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var logs []model.EventLog
	for rows.Next() {
		var log model.EventLog
		var loggedAtStr string

		err := rows.Scan(
			&log.LogID,
			&log.EventType,
			&log.Payload,
			&log.TargetRecordID,
			&loggedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		parsedTime, err := time.Parse(sqliteTimeFormat, loggedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse logged at: %w", err)
		}
		log.LoggedAt = parsedTime
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return logs, nil
}

func (r *EventLogRepoImpl) LatestLogID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(log_id) FROM Event_Log`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to query latest log id: %w", err)
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}
