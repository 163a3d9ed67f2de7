package models

import (
	"time"
)

// ExtractionMethod records which fetcher produced a snapshot.
type ExtractionMethod string

const (
	MethodStructuredFetch   ExtractionMethod = "structured-fetch"
	MethodBrowserAutomation ExtractionMethod = "browser-automation"
)

// Snapshot is one structured extraction result for a product at one point
// in time. Optional fields are pointers: nil means "not determined", which
// is distinct from a genuine zero value. A Snapshot is never mutated after
// construction.
type Snapshot struct {
	ProductID        string           `json:"product_id"`
	Name             *string          `json:"name,omitempty"`
	Price            *int             `json:"price,omitempty"`
	Brand            *string          `json:"brand,omitempty"`
	Rating           *float64         `json:"rating,omitempty"`
	FeedbackCount    *int             `json:"feedback_count,omitempty"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	CapturedAt       time.Time        `json:"captured_at"`
}

func NewSnapshot(productID string, method ExtractionMethod) *Snapshot {
	return &Snapshot{
		ProductID:        productID,
		ExtractionMethod: method,
		CapturedAt:       time.Now(),
	}
}

// IsDegenerate reports whether every optional field is missing. A degenerate
// snapshot signals likely blocking rather than a genuinely empty listing and
// must never be treated as success.
func (s *Snapshot) IsDegenerate() bool {
	return s.Name == nil && s.Price == nil && s.Brand == nil &&
		s.Rating == nil && s.FeedbackCount == nil
}

func String(v string) *string    { return &v }
func Int(v int) *int             { return &v }
func Float64(v float64) *float64 { return &v }
