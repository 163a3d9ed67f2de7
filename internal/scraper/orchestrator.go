package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/wbwatch/wbwatch/internal/fetcher"
	"github.com/wbwatch/wbwatch/internal/models"
	"github.com/wbwatch/wbwatch/internal/parser"
)

// articlePattern is the identifier format gate: WB articles are numeric and
// at least five digits long.
var articlePattern = regexp.MustCompile(`^\d{5,}$`)

// ValidateArticle fails fast on malformed identifiers so no fetch is ever
// attempted for them.
func ValidateArticle(article string) error {
	if !articlePattern.MatchString(article) {
		return models.NewExtractionError(models.ErrInvalidIdentifier,
			fmt.Sprintf("article %q is not a numeric identifier of at least 5 digits", article))
	}
	return nil
}

// Orchestrator runs one extraction: structured fetch first because it is
// cheap, browser fetch as the authoritative fallback, then degenerate-result
// validation. It performs no retries; retry policy belongs to the caller.
type Orchestrator struct {
	structured fetcher.StructuredFetcher
	page       fetcher.PageFetcher
	parser     parser.Parser
	logger     *slog.Logger
}

func NewOrchestrator(structured fetcher.StructuredFetcher, page fetcher.PageFetcher, p parser.Parser, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		structured: structured,
		page:       page,
		parser:     p,
		logger:     logger.With("component", "orchestrator"),
	}
}

func (o *Orchestrator) Extract(ctx context.Context, article string) (*models.Snapshot, error) {
	if err := ValidateArticle(article); err != nil {
		return nil, err
	}

	// Structured fetch failing is a routing decision, not an error state.
	if o.structured != nil {
		snapshot, err := o.structured.Fetch(ctx, article)
		switch {
		case err != nil:
			o.logger.Debug("structured fetch failed, falling back to browser", "article", article, "error", err)
		case snapshot.IsDegenerate():
			o.logger.Debug("structured fetch returned no usable fields, falling back to browser", "article", article)
		default:
			return snapshot, nil
		}
	}

	html, err := o.page.Fetch(ctx, article)
	if err != nil {
		if models.CodeOf(err) != "" {
			return nil, err
		}
		return nil, models.WrapExtractionError(models.ErrFetchTransport, "browser fetch failed", err)
	}

	snapshot, err := o.parser.ParseProductPage(html, article)
	if err != nil {
		return nil, err
	}

	if snapshot.IsDegenerate() {
		return nil, models.NewExtractionError(models.ErrNoUsableData,
			"every field came back empty, likely an anti-automation block")
	}

	return snapshot, nil
}
