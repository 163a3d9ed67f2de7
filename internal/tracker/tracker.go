package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wbwatch/wbwatch/internal/models"
	"github.com/wbwatch/wbwatch/internal/ratelimit"
)

// Extractor runs one supervised extraction.
type Extractor interface {
	Run(ctx context.Context, article string) (*models.Snapshot, error)
}

// Store is the persistence surface the scheduler needs (for testing).
type Store interface {
	ListActiveTrackings(ctx context.Context) ([]*models.Tracking, error)
	InsertPriceHistory(ctx context.Context, h *models.PriceHistory) error
	MarkNotified(ctx context.Context, id uuid.UUID) error
}

// AlertPublisher emits target-price-reached events.
type AlertPublisher interface {
	PublishPriceAlert(ctx context.Context, tracking *models.Tracking, snapshot *models.Snapshot) error
}

// Tracker periodically re-extracts every active subscription, records the
// snapshot and fires an alert once the target price is reached.
type Tracker struct {
	extractor Extractor
	store     Store
	publisher AlertPublisher
	limiter   *ratelimit.Limiter
	interval  time.Duration
	logger    *slog.Logger
}

func New(extractor Extractor, store Store, publisher AlertPublisher, limiter *ratelimit.Limiter, interval time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{
		extractor: extractor,
		store:     store,
		publisher: publisher,
		limiter:   limiter,
		interval:  interval,
		logger:    logger.With("component", "tracker"),
	}
}

// Start runs the check loop until ctx is done.
func (t *Tracker) Start(ctx context.Context) {
	t.logger.Info("tracker started", "interval", t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopping")
			return
		case <-ticker.C:
			t.CheckAll(ctx)
		}
	}
}

// CheckAll runs one pass over every active tracking. Failures on one
// tracking never abort the pass.
func (t *Tracker) CheckAll(ctx context.Context) {
	trackings, err := t.store.ListActiveTrackings(ctx)
	if err != nil {
		t.logger.Error("failed to list trackings", "error", err)
		return
	}

	t.logger.Info("checking active trackings", "count", len(trackings))

	for _, tracking := range trackings {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := t.limiter.Wait(ctx); err != nil {
			return
		}

		if err := t.checkOne(ctx, tracking); err != nil {
			t.logger.Error("tracking check failed",
				"tracking", tracking.ID, "article", tracking.Article, "error", err)
		}
	}
}

func (t *Tracker) checkOne(ctx context.Context, tracking *models.Tracking) error {
	snapshot, err := t.extract(ctx, tracking.Article)
	if err != nil {
		if models.IsCode(err, models.ErrOutOfStock) {
			// A legitimate listing state, not worth an alert or a retry.
			t.logger.Info("listing out of stock", "article", tracking.Article)
			return nil
		}
		return err
	}

	if err := t.store.InsertPriceHistory(ctx, models.HistoryFromSnapshot(tracking.ID, snapshot)); err != nil {
		return err
	}

	return t.maybeAlert(ctx, tracking, snapshot)
}

// extract retries exactly once on a crashed worker; everything else is
// surfaced as is.
func (t *Tracker) extract(ctx context.Context, article string) (*models.Snapshot, error) {
	snapshot, err := t.extractor.Run(ctx, article)
	if err != nil && models.IsCode(err, models.ErrWorkerCrashed) {
		t.logger.Warn("worker crashed, retrying once", "article", article)
		snapshot, err = t.extractor.Run(ctx, article)
	}
	return snapshot, err
}

func (t *Tracker) maybeAlert(ctx context.Context, tracking *models.Tracking, snapshot *models.Snapshot) error {
	if snapshot.Price == nil || *snapshot.Price > tracking.TargetPrice {
		return nil
	}
	if tracking.NotifiedAt != nil {
		return nil
	}

	t.logger.Info("target price reached",
		"article", tracking.Article, "price", *snapshot.Price, "target", tracking.TargetPrice)

	if err := t.publisher.PublishPriceAlert(ctx, tracking, snapshot); err != nil {
		return err
	}

	return t.store.MarkNotified(ctx, tracking.ID)
}
