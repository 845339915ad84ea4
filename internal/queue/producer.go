package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"nfc.app/facilitator/internal/model"
)

// EventTypeInterventionPublished is emitted after the AI persona's message is stored.
const EventTypeInterventionPublished = "intervention_published"

// InterventionEvent tells downstream chat fan-out that the AI spoke.
type InterventionEvent struct {
	InterventionID   int64
	MessageID        int64
	TriggerMessageID int64
	CommunityID      string
	UserID           string
	Type             model.InterventionType
	Pattern          model.PatternKind
	TraceID          *string
}

type Producer interface {
	Publish(ctx context.Context, evt InterventionEvent) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Publish(ctx context.Context, evt InterventionEvent) error {
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: eventFields(evt),
	}).Err(); err != nil {
		return fmt.Errorf("publish intervention: %w", err)
	}

	p.logger.InfoContext(ctx, "published intervention event",
		"intervention_id", evt.InterventionID,
		"message_id", evt.MessageID,
		"community_id", evt.CommunityID,
		"type", evt.Type)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

func eventFields(evt InterventionEvent) map[string]any {
	fields := map[string]any{
		"event_type":         EventTypeInterventionPublished,
		"intervention_id":    evt.InterventionID,
		"message_id":         evt.MessageID,
		"trigger_message_id": evt.TriggerMessageID,
		"community_id":       evt.CommunityID,
		"user_id":            evt.UserID,
		"intervention_type":  string(evt.Type),
		"pattern":            string(evt.Pattern),
	}
	if evt.TraceID != nil && *evt.TraceID != "" {
		fields["trace_id"] = *evt.TraceID
	}
	return fields
}

// NopProducer drops events. Used when Redis is not configured.
type NopProducer struct{}

func (NopProducer) Publish(context.Context, InterventionEvent) error { return nil }
func (NopProducer) Close() error                                     { return nil }
