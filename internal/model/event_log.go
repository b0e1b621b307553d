package model

import (
	"time"
)

const (
	EventCreate = "CREATE"
	EventDelete = "DELETE"
)

// EventLog: one entry of the local backend's Event_Log table.
type EventLog struct {
	// log_id INTEGER PRIMARY KEY AUTOINCREMENT, also the delivery cursor
	LogID int64 `db:"log_id"`

	// event_type TEXT NOT NULL -- CREATE, DELETE
	EventType string `db:"event_type"`

	// payload TEXT NOT NULL -- json of the affected Restaurant
	Payload string `db:"payload"`

	// target_record_id TEXT NOT NULL
	TargetRecordID string `db:"target_record_id"`

	// logged_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%S', 'now'))
	LoggedAt time.Time `db:"logged_at"`
}
