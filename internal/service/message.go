package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"nfc.app/facilitator/common/id"
	"nfc.app/facilitator/common/logger"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/lock"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/queue"
	"nfc.app/facilitator/internal/store"
)

// MaxMessageLength bounds message content, in characters.
const MaxMessageLength = 4000

var ErrInvalidMessage = errors.New("invalid message")

// Decider is the part of the facilitator engine the ingestion flow drives.
type Decider interface {
	Decide(ctx context.Context, communityID, userID string, trigger model.Message) facilitator.Decision
}

// ReplyRecorder resolves pending follow-ups when their user posts again.
type ReplyRecorder interface {
	RecordUserReply(ctx context.Context, communityID, userID string, reply model.Message) (facilitator.FollowUpOutcome, error)
}

// CadenceRecorder counts human messages toward the next intervention.
type CadenceRecorder interface {
	RecordHumanMessage(ctx context.Context, communityID string, at time.Time) error
}

// PostResult is what happened after a human message was stored.
type PostResult struct {
	Message   model.Message
	FollowUp  facilitator.FollowUpOutcome
	Decision  facilitator.Decision
	AIMessage *model.Message
}

type MessageService interface {
	Post(ctx context.Context, communityID, authorID, content string) (*PostResult, error)
}

type messageService struct {
	messages  store.MessageStore
	locker    lock.Locker
	replies   ReplyRecorder
	cadence   CadenceRecorder
	engine    Decider
	producer  queue.Producer
	settings  *facilitator.Settings
	clock     facilitator.Clock
	onPublish func(ctx context.Context, communityID string)
	onResolve func(ctx context.Context, communityID string)
}

type MessageOption func(*messageService)

// OnPublish registers a callback run after an AI message is published.
func OnPublish(fn func(ctx context.Context, communityID string)) MessageOption {
	return func(s *messageService) { s.onPublish = fn }
}

// OnFollowUpResolved registers a callback run after a message answers a
// follow-up or finds it ignored.
func OnFollowUpResolved(fn func(ctx context.Context, communityID string)) MessageOption {
	return func(s *messageService) { s.onResolve = fn }
}

func NewMessageService(
	messages store.MessageStore,
	locker lock.Locker,
	replies ReplyRecorder,
	cadence CadenceRecorder,
	engine Decider,
	producer queue.Producer,
	settings *facilitator.Settings,
	clock facilitator.Clock,
	opts ...MessageOption,
) MessageService {
	if producer == nil {
		producer = queue.NopProducer{}
	}
	if clock == nil {
		clock = facilitator.SystemClock
	}
	s := &messageService{
		messages: messages,
		locker:   locker,
		replies:  replies,
		cadence:  cadence,
		engine:   engine,
		producer: producer,
		settings: settings,
		clock:    clock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Post stores a human message and lets the facilitator react to it. The whole
// flow holds the community lock so decisions follow append order. Once the
// message is stored, later failures are logged and never fail the post.
func (s *messageService) Post(ctx context.Context, communityID, authorID, content string) (*PostResult, error) {
	cfg := s.settings.Load()
	content = strings.TrimSpace(content)
	if err := validateMessage(cfg.AIPersonaID, communityID, authorID, content); err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		CommunityID: logger.Ptr(communityID),
		UserID:      logger.Ptr(authorID),
		Component:   "facilitator.service.message",
	})

	unlock, err := s.locker.Lock(ctx, "community:"+communityID)
	if err != nil {
		return nil, fmt.Errorf("locking community: %w", err)
	}
	defer unlock()

	msg := &model.Message{
		ID:          id.New(),
		CommunityID: communityID,
		AuthorID:    authorID,
		Content:     content,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to append message", "error", err)
		return nil, fmt.Errorf("appending message: %w", err)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(msg.ID)})

	result := &PostResult{Message: *msg, FollowUp: facilitator.FollowUpNone}

	outcome, err := s.replies.RecordUserReply(ctx, communityID, authorID, *msg)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve follow-up", "error", err)
	} else {
		result.FollowUp = outcome
		if outcome.Resolved() && s.onResolve != nil {
			s.onResolve(ctx, communityID)
		}
	}

	if err := s.cadence.RecordHumanMessage(ctx, communityID, msg.CreatedAt); err != nil {
		slog.ErrorContext(ctx, "failed to record cadence", "error", err)
		result.Decision = facilitator.Suppressed(facilitator.ReasonStoreError)
		return result, nil
	}

	result.Decision = s.engine.Decide(ctx, communityID, authorID, *msg)
	if !result.Decision.Intervene {
		return result, nil
	}

	result.AIMessage = s.publish(ctx, cfg.AIPersonaID, *msg, result.Decision)
	return result, nil
}

// publish appends the AI persona's message and announces it downstream. AI
// messages never count toward cadence.
func (s *messageService) publish(ctx context.Context, personaID string, trigger model.Message, d facilitator.Decision) *model.Message {
	ai := &model.Message{
		ID:          id.New(),
		CommunityID: trigger.CommunityID,
		AuthorID:    personaID,
		Content:     d.Content,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.messages.Append(ctx, ai); err != nil {
		slog.ErrorContext(ctx, "failed to append ai message", "error", err)
		return nil
	}

	evt := queue.InterventionEvent{
		MessageID:        ai.ID,
		TriggerMessageID: trigger.ID,
		CommunityID:      trigger.CommunityID,
		UserID:           trigger.AuthorID,
		Type:             d.Type,
		Pattern:          d.Pattern,
	}
	if d.Intervention != nil {
		evt.InterventionID = d.Intervention.ID
	}
	traceID := queue.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = logger.TraceID(ctx)
	}
	if traceID != "" {
		evt.TraceID = &traceID
	}
	if err := s.producer.Publish(ctx, evt); err != nil {
		slog.WarnContext(ctx, "failed to publish intervention event", "error", err)
	}
	if s.onPublish != nil {
		s.onPublish(ctx, trigger.CommunityID)
	}

	slog.InfoContext(ctx, "ai message published",
		"ai_message_id", ai.ID,
		"type", d.Type,
		"pattern", d.Pattern)
	return ai
}

func validateMessage(personaID, communityID, authorID, content string) error {
	switch {
	case strings.TrimSpace(communityID) == "":
		return fmt.Errorf("%w: community id is required", ErrInvalidMessage)
	case strings.TrimSpace(authorID) == "":
		return fmt.Errorf("%w: author id is required", ErrInvalidMessage)
	case authorID == personaID:
		return fmt.Errorf("%w: author id is reserved", ErrInvalidMessage)
	case content == "":
		return fmt.Errorf("%w: content is required", ErrInvalidMessage)
	case utf8.RuneCountInString(content) > MaxMessageLength:
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidMessage, MaxMessageLength)
	}
	return nil
}
