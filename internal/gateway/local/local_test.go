package local_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"restaurant_live/internal/db"
	"restaurant_live/internal/gateway"
	"restaurant_live/internal/gateway/local"
	"restaurant_live/internal/logging"
	"restaurant_live/internal/model"
)

func newGateway(t *testing.T, path string) *local.Gateway {
	t.Helper()
	conn, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return local.New(conn, 5*time.Millisecond, logging.NewTest())
}

func receive(t *testing.T, sub gateway.Subscription) model.Restaurant {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription closed early")
		}
		return ev.Restaurant
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for an event")
	}
	return model.Restaurant{}
}

func TestCreateListDelete(t *testing.T) {
	gw := newGateway(t, filepath.Join(t.TempDir(), "r.db"))
	ctx := context.Background()

	created, err := gw.CreateOne(ctx, model.CreateRestaurantInput{Name: "Le Central", Description: "Bistro", City: "Lyon"})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}
	if created.ID == "" || created.Name != "Le Central" {
		t.Fatalf("Unexpected restaurant %+v", created)
	}

	list, err := gw.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(list) != 1 || list[0] != created {
		t.Errorf("Expected [%+v], got %+v", created, list)
	}

	if err := gw.DeleteOne(ctx, created.ID); err != nil {
		t.Fatalf("DeleteOne failed: %v", err)
	}
	err = gw.DeleteOne(ctx, created.ID)
	if !errors.Is(err, gateway.ErrOperationFailed) {
		t.Errorf("Expected a gateway failure for an unknown id, got %v", err)
	}
}

func TestSubscribeOnlySeesNewCreations(t *testing.T) {
	gw := newGateway(t, filepath.Join(t.TempDir(), "r.db"))
	ctx := context.Background()

	if _, err := gw.CreateOne(ctx, model.CreateRestaurantInput{Name: "before"}); err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}

	sub, err := gw.SubscribeOnCreate(ctx)
	if err != nil {
		t.Fatalf("SubscribeOnCreate failed: %v", err)
	}
	defer sub.Close()

	for _, name := range []string{"first", "second"} {
		if _, err := gw.CreateOne(ctx, model.CreateRestaurantInput{Name: name}); err != nil {
			t.Fatalf("CreateOne failed: %v", err)
		}
	}
	// deletes are not part of the stream
	list, _ := gw.ListAll(ctx)
	if err := gw.DeleteOne(ctx, list[0].ID); err != nil {
		t.Fatalf("DeleteOne failed: %v", err)
	}

	if got := receive(t, sub).Name; got != "first" {
		t.Errorf("Expected first, got %q", got)
	}
	if got := receive(t, sub).Name; got != "second" {
		t.Errorf("Expected second, got %q", got)
	}
}

func TestSubscribeAcrossConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	reader := newGateway(t, path)
	writer := newGateway(t, path)
	ctx := context.Background()

	sub, err := reader.SubscribeOnCreate(ctx)
	if err != nil {
		t.Fatalf("SubscribeOnCreate failed: %v", err)
	}
	defer sub.Close()

	created, err := writer.CreateOne(ctx, model.CreateRestaurantInput{Name: "elsewhere", City: "Paris"})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}

	if got := receive(t, sub); got != created {
		t.Errorf("Expected %+v, got %+v", created, got)
	}
}

func TestCloseEndsStream(t *testing.T) {
	gw := newGateway(t, filepath.Join(t.TempDir(), "r.db"))

	sub, err := gw.SubscribeOnCreate(context.Background())
	if err != nil {
		t.Fatalf("SubscribeOnCreate failed: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// idempotent
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Errorf("Expected events to be closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("events channel not closed")
	}
}
