package tracker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbwatch/wbwatch/internal/models"
	"github.com/wbwatch/wbwatch/internal/ratelimit"
)

type stubExtractor struct {
	results []extractResult
	calls   int
}

type extractResult struct {
	snapshot *models.Snapshot
	err      error
}

func (s *stubExtractor) Run(ctx context.Context, article string) (*models.Snapshot, error) {
	result := s.results[s.calls]
	s.calls++
	return result.snapshot, result.err
}

type stubStore struct {
	trackings []*models.Tracking
	history   []*models.PriceHistory
	notified  []uuid.UUID
}

func (s *stubStore) ListActiveTrackings(ctx context.Context) ([]*models.Tracking, error) {
	return s.trackings, nil
}

func (s *stubStore) InsertPriceHistory(ctx context.Context, h *models.PriceHistory) error {
	s.history = append(s.history, h)
	return nil
}

func (s *stubStore) MarkNotified(ctx context.Context, id uuid.UUID) error {
	s.notified = append(s.notified, id)
	return nil
}

type stubPublisher struct {
	alerts []*models.Tracking
}

func (s *stubPublisher) PublishPriceAlert(ctx context.Context, tracking *models.Tracking, snapshot *models.Snapshot) error {
	s.alerts = append(s.alerts, tracking)
	return nil
}

func newTestTracker(extractor Extractor, store Store, publisher AlertPublisher) *Tracker {
	limiter := ratelimit.New(time.Millisecond, 2*time.Millisecond)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(extractor, store, publisher, limiter, time.Hour, logger)
}

func activeTracking(target int) *models.Tracking {
	return &models.Tracking{
		ID:          uuid.New(),
		ChatID:      42,
		Article:     "184729357",
		TargetPrice: target,
		IsActive:    true,
	}
}

func snapshotWithPrice(price int) *models.Snapshot {
	snapshot := models.NewSnapshot("184729357", models.MethodStructuredFetch)
	snapshot.Name = models.String("Кроссовки")
	snapshot.Price = models.Int(price)
	return snapshot
}

func TestCheckAllRecordsHistoryAndAlerts(t *testing.T) {
	tracking := activeTracking(1200)
	store := &stubStore{trackings: []*models.Tracking{tracking}}
	publisher := &stubPublisher{}
	extractor := &stubExtractor{results: []extractResult{{snapshot: snapshotWithPrice(1196)}}}

	tr := newTestTracker(extractor, store, publisher)
	tr.CheckAll(context.Background())

	require.Len(t, store.history, 1)
	require.NotNil(t, store.history[0].Price)
	assert.Equal(t, 1196, *store.history[0].Price)
	assert.Equal(t, tracking.ID, store.history[0].TrackingID)

	require.Len(t, publisher.alerts, 1)
	assert.Equal(t, tracking.ID, publisher.alerts[0].ID)
	assert.Equal(t, []uuid.UUID{tracking.ID}, store.notified)
}

func TestCheckAllNoAlertAboveTarget(t *testing.T) {
	store := &stubStore{trackings: []*models.Tracking{activeTracking(1000)}}
	publisher := &stubPublisher{}
	extractor := &stubExtractor{results: []extractResult{{snapshot: snapshotWithPrice(1196)}}}

	tr := newTestTracker(extractor, store, publisher)
	tr.CheckAll(context.Background())

	assert.Len(t, store.history, 1, "history is recorded regardless of the target")
	assert.Empty(t, publisher.alerts)
	assert.Empty(t, store.notified)
}

func TestCheckAllAlertFiresOnlyOnce(t *testing.T) {
	already := time.Now().Add(-time.Hour)
	tracking := activeTracking(1200)
	tracking.NotifiedAt = &already

	store := &stubStore{trackings: []*models.Tracking{tracking}}
	publisher := &stubPublisher{}
	extractor := &stubExtractor{results: []extractResult{{snapshot: snapshotWithPrice(1196)}}}

	tr := newTestTracker(extractor, store, publisher)
	tr.CheckAll(context.Background())

	assert.Empty(t, publisher.alerts, "an already-notified tracking must stay silent")
	assert.Empty(t, store.notified)
}

func TestCheckAllSkipsOutOfStock(t *testing.T) {
	store := &stubStore{trackings: []*models.Tracking{activeTracking(1200)}}
	publisher := &stubPublisher{}
	extractor := &stubExtractor{results: []extractResult{
		{err: models.NewExtractionError(models.ErrOutOfStock, "listing unavailable")},
	}}

	tr := newTestTracker(extractor, store, publisher)
	tr.CheckAll(context.Background())

	assert.Empty(t, store.history, "out of stock is a terminal state, not a price point")
	assert.Empty(t, publisher.alerts)
}

func TestCheckAllRetriesCrashedWorkerOnce(t *testing.T) {
	store := &stubStore{trackings: []*models.Tracking{activeTracking(1200)}}
	publisher := &stubPublisher{}
	extractor := &stubExtractor{results: []extractResult{
		{err: models.NewExtractionError(models.ErrWorkerCrashed, "killed")},
		{snapshot: snapshotWithPrice(1196)},
	}}

	tr := newTestTracker(extractor, store, publisher)
	tr.CheckAll(context.Background())

	assert.Equal(t, 2, extractor.calls)
	assert.Len(t, store.history, 1)
}

func TestCheckAllContinuesAfterFailure(t *testing.T) {
	store := &stubStore{trackings: []*models.Tracking{activeTracking(1200), activeTracking(900)}}
	publisher := &stubPublisher{}
	extractor := &stubExtractor{results: []extractResult{
		{err: models.NewExtractionError(models.ErrNoUsableData, "blocked")},
		{snapshot: snapshotWithPrice(850)},
	}}

	tr := newTestTracker(extractor, store, publisher)
	tr.CheckAll(context.Background())

	assert.Equal(t, 2, extractor.calls, "one failed tracking must not abort the pass")
	assert.Len(t, store.history, 1)
	assert.Len(t, publisher.alerts, 1)
}
