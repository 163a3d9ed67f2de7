package fetcher

import (
	"context"

	"github.com/wbwatch/wbwatch/internal/models"
)

// StructuredFetcher obtains a compact structured record for an article
// without a browser. Fast but frequently incomplete or blocked.
type StructuredFetcher interface {
	Fetch(ctx context.Context, article string) (*models.Snapshot, error)
}

// PageFetcher obtains the fully rendered product page HTML for an article.
type PageFetcher interface {
	Fetch(ctx context.Context, article string) (string, error)
}
