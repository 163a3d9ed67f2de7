package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wbwatch/wbwatch/internal/models"
)

// RedisClient is the subset of redis operations the publisher needs,
// narrowed for testing.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// PriceAlertPayload is the event body pushed to the alert stream when a
// tracked product reaches its target price. The notification bot consumes
// the stream; delivery itself is not this service's concern.
type PriceAlertPayload struct {
	EventID      string    `json:"event_id"`
	Timestamp    time.Time `json:"timestamp"`
	TrackingID   string    `json:"tracking_id"`
	ChatID       int64     `json:"chat_id"`
	Article      string    `json:"article"`
	ProductName  string    `json:"product_name,omitempty"`
	CurrentPrice int       `json:"current_price"`
	TargetPrice  int       `json:"target_price"`
	Savings      int       `json:"savings"`
}

// Publisher pushes price alerts onto a redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "alert_publisher"),
	}
}

// PublishPriceAlert emits one target-price-reached event.
func (p *Publisher) PublishPriceAlert(ctx context.Context, tracking *models.Tracking, snapshot *models.Snapshot) error {
	if snapshot.Price == nil {
		return fmt.Errorf("cannot publish alert without a price")
	}

	payload := PriceAlertPayload{
		EventID:      uuid.New().String(),
		Timestamp:    time.Now(),
		TrackingID:   tracking.ID.String(),
		ChatID:       tracking.ChatID,
		Article:      tracking.Article,
		CurrentPrice: *snapshot.Price,
		TargetPrice:  tracking.TargetPrice,
		Savings:      tracking.TargetPrice - *snapshot.Price,
	}
	if snapshot.Name != nil {
		payload.ProductName = *snapshot.Name
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	if err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_type": "PRICE_TARGET_REACHED",
			"payload":    string(data),
		},
	}).Err(); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	p.logger.Info("price alert published",
		"event_id", payload.EventID,
		"article", payload.Article,
		"current_price", payload.CurrentPrice,
		"target_price", payload.TargetPrice,
	)

	return nil
}
