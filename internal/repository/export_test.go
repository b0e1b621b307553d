package repository

import (
	"context"
	"database/sql"

	"restaurant_live/internal/model"
)

// AddLog: exposes the event log insert to the external test package.
func AddLog(ctx context.Context, conn *sql.DB, log *model.EventLog) error {
	return insertLog(ctx, conn, log)
}
