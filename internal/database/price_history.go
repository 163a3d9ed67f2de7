package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wbwatch/wbwatch/internal/models"
)

// InsertPriceHistory persists one snapshot for a tracking. Rows are
// append-only; snapshots are never mutated after capture.
func (db *DB) InsertPriceHistory(ctx context.Context, h *models.PriceHistory) error {
	query := `
		INSERT INTO price_history (
			id, tracking_id, article, name, price, brand,
			rating, feedback_count, method, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := db.pool.Exec(ctx, query,
		h.ID, h.TrackingID, h.Article, h.Name, h.Price, h.Brand,
		h.Rating, h.FeedbackCount, string(h.Method), h.CapturedAt)
	if err != nil {
		return fmt.Errorf("failed to insert price history: %w", err)
	}

	return nil
}

// ListPriceHistory returns recent snapshots for a tracking, newest first.
func (db *DB) ListPriceHistory(ctx context.Context, trackingID uuid.UUID, limit int) ([]*models.PriceHistory, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tracking_id, article, name, price, brand,
		       rating, feedback_count, method, captured_at
		FROM price_history
		WHERE tracking_id = $1
		ORDER BY captured_at DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, trackingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	defer rows.Close()

	var history []*models.PriceHistory
	for rows.Next() {
		h := &models.PriceHistory{}
		var method string
		if err := rows.Scan(&h.ID, &h.TrackingID, &h.Article, &h.Name, &h.Price,
			&h.Brand, &h.Rating, &h.FeedbackCount, &method, &h.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		h.Method = models.ExtractionMethod(method)
		history = append(history, h)
	}

	return history, rows.Err()
}

// LatestPrice returns the most recent determined price for a tracking, or
// nil when no snapshot carried one yet.
func (db *DB) LatestPrice(ctx context.Context, trackingID uuid.UUID) (*int, error) {
	query := `
		SELECT price
		FROM price_history
		WHERE tracking_id = $1 AND price IS NOT NULL
		ORDER BY captured_at DESC
		LIMIT 1`

	var price *int
	err := db.pool.QueryRow(ctx, query, trackingID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		// A fresh tracking has no priced snapshot yet.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest price: %w", err)
	}

	return price, nil
}
