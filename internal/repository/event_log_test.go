package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"restaurant_live/internal/db"
	"restaurant_live/internal/model"
	"restaurant_live/internal/repository"
)

// setupTestDB: opens a private in-memory database with the schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	conn, err := db.OpenDSN(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("could not open database connection: %v", err)
	}
	return conn
}

// TestAddLog: an appended event gets an id and is stored.
func TestAddLog(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	ctx := context.Background()

	// 1. Given
	mockLog := model.EventLog{
		EventType:      model.EventCreate,
		Payload:        `{"id":"r1","name":"Le Central"}`,
		TargetRecordID: "r1",
	}

	// 2. When
	err := repository.AddLog(ctx, conn, &mockLog)

	// 3. Then
	if err != nil {
		t.Fatalf("AddLog failed: %v", err)
	}
	if mockLog.LogID <= 0 {
		t.Errorf("Expected LogID to be assigned, got %d", mockLog.LogID)
	}

	var count int
	err = conn.QueryRow("SELECT COUNT(*) FROM Event_Log WHERE target_record_id = 'r1'").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count log: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 log, got %d", count)
	}
}

func TestAddLogRequiresType(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	if err := repository.AddLog(context.Background(), conn, &model.EventLog{Payload: "{}"}); err == nil {
		t.Errorf("Expected an error for a log without event type")
	}
}

// TestCursorLifecycle: walks the cursor over the log the way the dispatch worker does.
func TestCursorLifecycle(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	repo := repository.NewEventLogRepository(conn)
	ctx := context.Background()

	// --- 1. Given: an empty log starts at cursor 0 ---
	latest, err := repo.LatestLogID(ctx)
	if err != nil {
		t.Fatalf("LatestLogID failed: %v", err)
	}
	if latest != 0 {
		t.Errorf("Expected 0 for an empty log, got %d", latest)
	}

	for i := 1; i <= 5; i++ {
		log := model.EventLog{
			EventType:      model.EventCreate,
			Payload:        fmt.Sprintf(`{"id":"r%d"}`, i),
			TargetRecordID: fmt.Sprintf("r%d", i),
		}
		if err := repository.AddLog(ctx, conn, &log); err != nil {
			t.Fatalf("AddLog failed: %v", err)
		}
	}

	// --- 2. When: read 3 from the start ---
	const limit = 3
	logs, err := repo.GetLogsAfter(ctx, 0, limit)
	if err != nil {
		t.Fatalf("GetLogsAfter failed: %v", err)
	}
	if len(logs) != limit {
		t.Fatalf("Expected %d logs, got %d", limit, len(logs))
	}
	if logs[0].LogID != 1 || logs[0].TargetRecordID != "r1" {
		t.Errorf("Expected first log to be 1/r1, got %d/%s", logs[0].LogID, logs[0].TargetRecordID)
	}
	if logs[0].LoggedAt.IsZero() {
		t.Errorf("Expected logged_at to be parsed")
	}

	// --- 3. Then: the rest follows the cursor ---
	rest, err := repo.GetLogsAfter(ctx, logs[len(logs)-1].LogID, limit)
	if err != nil {
		t.Fatalf("GetLogsAfter failed: %v", err)
	}
	if len(rest) != 2 {
		t.Errorf("Expected 2 remaining logs, got %d", len(rest))
	}
	if rest[0].LogID != 4 {
		t.Errorf("Expected remaining log ID to be 4, got %d", rest[0].LogID)
	}

	latest, err = repo.LatestLogID(ctx)
	if err != nil {
		t.Fatalf("LatestLogID failed: %v", err)
	}
	if latest != 5 {
		t.Errorf("Expected latest log id 5, got %d", latest)
	}
}
