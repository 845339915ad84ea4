package facilitator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nfc.app/facilitator/common/logger"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

// ErrWatchPending is returned when the user already has an unresolved follow-up
// in the community.
var ErrWatchPending = errors.New("follow-up watch already pending")

// FollowUpOutcome is what a user's message did to their pending follow-up.
type FollowUpOutcome string

const (
	FollowUpNone     FollowUpOutcome = "none"
	FollowUpPending  FollowUpOutcome = "pending"
	FollowUpAnswered FollowUpOutcome = "answered"
	FollowUpIgnored  FollowUpOutcome = "ignored"
)

// Resolved reports whether the outcome closed a follow-up.
func (o FollowUpOutcome) Resolved() bool {
	return o == FollowUpAnswered || o == FollowUpIgnored
}

// FollowUpTracker resolves pending follow-up questions lazily, when the user
// next posts, and feeds the result to the probability adjuster.
type FollowUpTracker struct {
	tx       store.TxRunner
	settings *Settings
	clock    Clock
	matcher  ReplyMatcher
}

// NewFollowUpTracker builds a tracker. A nil matcher uses the embedded policy.
func NewFollowUpTracker(tx store.TxRunner, settings *Settings, clock Clock, matcher ReplyMatcher) *FollowUpTracker {
	if matcher == nil {
		matcher = NewKeywordReplyMatcher(DefaultPolicy())
	}
	return &FollowUpTracker{tx: tx, settings: settings, clock: clock, matcher: matcher}
}

// RegisterExpectedFollowUp starts watching for the user's reply. Returns
// ErrWatchPending when a watch already exists for the user and community.
func (t *FollowUpTracker) RegisterExpectedFollowUp(ctx context.Context, interventionID int64, userID, communityID string, deadline time.Time) error {
	return t.tx.WithTx(ctx, func(s store.Provider) error {
		return registerWatch(ctx, s.FollowUps(), &model.FollowUpWatch{
			InterventionID: interventionID,
			UserID:         userID,
			CommunityID:    communityID,
			Deadline:       deadline,
			CreatedAt:      t.clock.Now(),
		})
	})
}

// RecordUserReply resolves the user's pending follow-up, if any. Before the
// deadline only a message that answers the question resolves it; anything
// else leaves it pending. The first message at or after the deadline marks
// it ignored.
func (t *FollowUpTracker) RecordUserReply(ctx context.Context, communityID, userID string, reply model.Message) (FollowUpOutcome, error) {
	at := reply.CreatedAt
	if at.IsZero() {
		at = t.clock.Now()
	}

	var (
		outcome FollowUpOutcome
		watch   *model.FollowUpWatch
	)
	err := t.tx.WithTx(ctx, func(s store.Provider) error {
		outcome = FollowUpNone

		w, err := s.FollowUps().Get(ctx, userID, communityID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("get follow-up watch: %w", err)
		}
		watch = w

		iv, err := s.Interventions().GetByID(ctx, w.InterventionID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("get intervention: %w", err)
		}
		if iv == nil || !iv.Pending() {
			// Already resolved elsewhere; just drop the stale watch.
			return s.FollowUps().Delete(ctx, userID, communityID)
		}

		answered := false
		if !w.Lapsed(at) {
			if !t.matcher.IsReply(iv.Question(), reply.Content) {
				outcome = FollowUpPending
				return nil
			}
			answered = true
		}

		var answerID *int64
		if answered {
			answerID = &reply.ID
		}

		if err := s.FollowUps().Delete(ctx, userID, communityID); err != nil {
			return err
		}
		if err := s.Interventions().Resolve(ctx, w.InterventionID, answered, answerID, at); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}

		adjuster := NewProbabilityAdjuster(s.UserStates(), t.settings, nil)
		if answered {
			outcome = FollowUpAnswered
			return adjuster.OnFollowUpAnswered(ctx, userID, communityID)
		}
		outcome = FollowUpIgnored
		return adjuster.OnFollowUpIgnored(ctx, userID, communityID)
	})
	if err != nil {
		return FollowUpNone, fmt.Errorf("record user reply: %w", err)
	}

	switch {
	case outcome.Resolved():
		ctx = logger.WithLogFields(ctx, logger.LogFields{InterventionID: logger.Ptr(watch.InterventionID)})
		slog.InfoContext(ctx, "follow-up resolved",
			"outcome", outcome,
			"deadline", watch.Deadline,
			"reply_at", at)
	case outcome == FollowUpPending:
		slog.DebugContext(ctx, "message does not answer the pending follow-up",
			"intervention_id", watch.InterventionID,
			"deadline", watch.Deadline)
	}
	return outcome, nil
}

func registerWatch(ctx context.Context, s store.FollowUpStore, w *model.FollowUpWatch) error {
	if err := s.Create(ctx, w); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrWatchPending
		}
		return fmt.Errorf("register follow-up watch: %w", err)
	}
	return nil
}
