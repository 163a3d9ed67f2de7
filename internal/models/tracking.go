package models

import (
	"time"

	"github.com/google/uuid"
)

// Tracking is one user's subscription to a product's price.
type Tracking struct {
	ID          uuid.UUID  `json:"id"`
	ChatID      int64      `json:"chat_id"`
	Article     string     `json:"article"`
	TargetPrice int        `json:"target_price"`
	IsActive    bool       `json:"is_active"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PriceHistory is one persisted snapshot for a tracking.
type PriceHistory struct {
	ID            uuid.UUID        `json:"id"`
	TrackingID    uuid.UUID        `json:"tracking_id"`
	Article       string           `json:"article"`
	Name          *string          `json:"name,omitempty"`
	Price         *int             `json:"price,omitempty"`
	Brand         *string          `json:"brand,omitempty"`
	Rating        *float64         `json:"rating,omitempty"`
	FeedbackCount *int             `json:"feedback_count,omitempty"`
	Method        ExtractionMethod `json:"method"`
	CapturedAt    time.Time        `json:"captured_at"`
}

// HistoryFromSnapshot builds a history row from a fresh snapshot.
func HistoryFromSnapshot(trackingID uuid.UUID, s *Snapshot) *PriceHistory {
	return &PriceHistory{
		ID:            uuid.New(),
		TrackingID:    trackingID,
		Article:       s.ProductID,
		Name:          s.Name,
		Price:         s.Price,
		Brand:         s.Brand,
		Rating:        s.Rating,
		FeedbackCount: s.FeedbackCount,
		Method:        s.ExtractionMethod,
		CapturedAt:    s.CapturedAt,
	}
}
