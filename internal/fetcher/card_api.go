package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wbwatch/wbwatch/internal/models"
)

const defaultCardAPIBaseURL = "https://wbx-content-v2.wbstatic.net/ru"

// cardRecord is the subset of the WB card endpoint payload the engine cares
// about. Prices come in kopecks.
type cardRecord struct {
	Name       string   `json:"imt_name"`
	SalePriceU int      `json:"salePriceU"`
	Rating     *float64 `json:"reviewRating"`
	Feedbacks  *int     `json:"feedbacks"`
	Selling    struct {
		BrandName string `json:"brand_name"`
	} `json:"selling"`
}

// CardAPIFetcher is the structured fetch strategy: one sub-second HTTP
// request against the card data endpoint. It spawns no browser and needs no
// resource isolation.
type CardAPIFetcher struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewCardAPIFetcher(logger *slog.Logger) *CardAPIFetcher {
	return &CardAPIFetcher{
		baseURL: defaultCardAPIBaseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger.With("component", "card_api_fetcher"),
	}
}

// NewCardAPIFetcherWithBaseURL is used by tests to point at a local server.
func NewCardAPIFetcherWithBaseURL(baseURL string, logger *slog.Logger) *CardAPIFetcher {
	f := NewCardAPIFetcher(logger)
	f.baseURL = baseURL
	return f
}

func (f *CardAPIFetcher) Fetch(ctx context.Context, article string) (*models.Snapshot, error) {
	url := fmt.Sprintf("%s/%s.json", f.baseURL, article)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.WrapExtractionError(models.ErrFetchTransport, "failed to build card request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, models.WrapExtractionError(models.ErrFetchTransport, "card request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, models.NewExtractionError(models.ErrFetchTransport,
			fmt.Sprintf("card endpoint returned %d for article %s", resp.StatusCode, article))
	}

	var record cardRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, models.WrapExtractionError(models.ErrFetchTransport, "failed to decode card payload", err)
	}

	snapshot := models.NewSnapshot(article, models.MethodStructuredFetch)

	if record.Name != "" {
		snapshot.Name = models.String(record.Name)
	}
	if record.SalePriceU > 0 {
		snapshot.Price = models.Int(record.SalePriceU / 100)
	}
	if record.Selling.BrandName != "" {
		snapshot.Brand = models.String(record.Selling.BrandName)
	}
	if record.Rating != nil && *record.Rating >= 0 && *record.Rating <= 5 {
		snapshot.Rating = record.Rating
	}
	if record.Feedbacks != nil && *record.Feedbacks >= 0 {
		snapshot.FeedbackCount = record.Feedbacks
	}

	f.logger.Debug("card fetch complete", "article", article, "hasPrice", snapshot.Price != nil)

	return snapshot, nil
}
