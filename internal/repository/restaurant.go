package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"restaurant_live/internal/db"
	"restaurant_live/internal/model"
)

var ErrNotFound = errors.New("restaurant not found")

// RestaurantRepository: access to the Restaurant table for the local backend.
type RestaurantRepository interface {
	// List: returns every restaurant in insertion order.
	List(ctx context.Context) ([]model.Restaurant, error)
	// FindByID: returns nil, nil when no row has the id.
	FindByID(ctx context.Context, restaurantID string) (*model.Restaurant, error)
	// Create: assigns a new id to r, inserts it and logs a CREATE event in the same transaction.
	Create(ctx context.Context, r *model.Restaurant) error
	// Delete: removes the row and logs a DELETE event. Unknown ids return ErrNotFound.
	Delete(ctx context.Context, restaurantID string) error
}

type RestaurantRepoImpl struct {
	DB *sql.DB
}

func NewRestaurantRepository(conn *sql.DB) RestaurantRepository {
	return &RestaurantRepoImpl{DB: conn}
}

func (r *RestaurantRepoImpl) List(ctx context.Context) ([]model.Restaurant, error) {
	query := `
	SELECT restaurant_id, name, description, city
	FROM Restaurant
	ORDER BY seq ASC`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query restaurants: %w", err)
	}
	defer rows.Close()

	restaurants := []model.Restaurant{}
	for rows.Next() {
		var rest model.Restaurant
		if err := rows.Scan(&rest.ID, &rest.Name, &rest.Description, &rest.City); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		restaurants = append(restaurants, rest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return restaurants, nil
}

func (r *RestaurantRepoImpl) FindByID(ctx context.Context, restaurantID string) (*model.Restaurant, error) {
	query := `
	SELECT restaurant_id, name, description, city
	FROM Restaurant
	WHERE restaurant_id = ?`

	rest := &model.Restaurant{}
	err := r.DB.QueryRowContext(ctx, query, restaurantID).Scan(&rest.ID, &rest.Name, &rest.Description, &rest.City)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find restaurant by ID: %w", err)
	}
	return rest, nil
}

func (r *RestaurantRepoImpl) Create(ctx context.Context, rest *model.Restaurant) error {
	if rest.ID != "" {
		return errors.New("restaurant id is assigned by the backend")
	}
	created := *rest
	created.ID = uuid.NewString()

	payload, err := json.Marshal(created)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	err = db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		query := `
		INSERT INTO Restaurant (
		restaurant_id,
		name,
		description,
		city
		) VALUES (?, ?, ?, ?)`

		if _, err := tx.ExecContext(ctx, query, created.ID, created.Name, created.Description, created.City); err != nil {
			return fmt.Errorf("failed to insert restaurant: %w", err)
		}
		return insertLog(ctx, tx, &model.EventLog{
			EventType:      model.EventCreate,
			Payload:        string(payload),
			TargetRecordID: created.ID,
		})
	})
	if err != nil {
		return err
	}

	*rest = created
	return nil
}

// Delete: removes the row and logs a DELETE whose payload is the removed record.
func (r *RestaurantRepoImpl) Delete(ctx context.Context, restaurantID string) error {
	// read before the tx: the pool holds a single connection
	existing, err := r.FindByID(ctx, restaurantID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, restaurantID)
	}
	payload, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM Restaurant WHERE restaurant_id = ?`, restaurantID)
		if err != nil {
			return fmt.Errorf("failed to delete restaurant: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, restaurantID)
		}

		return insertLog(ctx, tx, &model.EventLog{
			EventType:      model.EventDelete,
			Payload:        string(payload),
			TargetRecordID: restaurantID,
		})
	})
}
