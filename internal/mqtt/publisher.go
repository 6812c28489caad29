package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/logger"
	"github.com/wildlens/wildlens-go/internal/ranking"
)

// RankingPublisher publishes ranking-updated events as JSON.
type RankingPublisher struct {
	client Client
	topic  string
}

// NewRankingPublisher creates a publisher sending to topic through c.
func NewRankingPublisher(c Client, topic string) *RankingPublisher {
	return &RankingPublisher{client: c, topic: topic}
}

// PublishRankingUpdated implements ranking.Publisher. It reconnects once
// when the client is not connected.
func (p *RankingPublisher) PublishRankingUpdated(ctx context.Context, event ranking.RankingEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.New(fmt.Errorf("failed to encode ranking event: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			return err
		}
	}
	if err := p.client.Publish(ctx, p.topic, payload); err != nil {
		return err
	}

	GetLogger().WithContext(ctx).Debug("published ranking update",
		logger.String("topic", p.topic),
		logger.String("run_id", event.RunID),
		logger.Int("ranked", event.Ranked),
		logger.Int("bytes", len(payload)))
	return nil
}

var _ ranking.Publisher = (*RankingPublisher)(nil)
