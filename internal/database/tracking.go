package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wbwatch/wbwatch/internal/models"
)

var ErrTrackingNotFound = errors.New("tracking not found")

// CreateTracking inserts a new subscription. A (chat, article) pair is
// unique; re-creating it updates the target price and reactivates it.
func (db *DB) CreateTracking(ctx context.Context, t *models.Tracking) error {
	query := `
		INSERT INTO trackings (id, chat_id, article, target_price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (chat_id, article) DO UPDATE SET
			target_price = EXCLUDED.target_price,
			is_active = TRUE,
			notified_at = NULL,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	err := db.pool.QueryRow(ctx, query,
		t.ID, t.ChatID, t.Article, t.TargetPrice,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tracking: %w", err)
	}

	t.IsActive = true
	return nil
}

// ListActiveTrackings returns every subscription the scheduler must check.
func (db *DB) ListActiveTrackings(ctx context.Context) ([]*models.Tracking, error) {
	query := `
		SELECT id, chat_id, article, target_price, is_active, notified_at, created_at, updated_at
		FROM trackings
		WHERE is_active = TRUE
		ORDER BY created_at`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list trackings: %w", err)
	}
	defer rows.Close()

	var trackings []*models.Tracking
	for rows.Next() {
		t := &models.Tracking{}
		if err := rows.Scan(&t.ID, &t.ChatID, &t.Article, &t.TargetPrice,
			&t.IsActive, &t.NotifiedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracking: %w", err)
		}
		trackings = append(trackings, t)
	}

	return trackings, rows.Err()
}

func (db *DB) GetTracking(ctx context.Context, id uuid.UUID) (*models.Tracking, error) {
	query := `
		SELECT id, chat_id, article, target_price, is_active, notified_at, created_at, updated_at
		FROM trackings
		WHERE id = $1`

	t := &models.Tracking{}
	err := db.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.ChatID, &t.Article,
		&t.TargetPrice, &t.IsActive, &t.NotifiedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTrackingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking: %w", err)
	}

	return t, nil
}

// DeactivateTracking stops future scheduled checks without losing history.
func (db *DB) DeactivateTracking(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE trackings SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate tracking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTrackingNotFound
	}
	return nil
}

// MarkNotified records that the target-price alert for this tracking has
// been published, so the scheduler does not fire it again on every check.
func (db *DB) MarkNotified(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE trackings SET notified_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark tracking notified: %w", err)
	}
	return nil
}
