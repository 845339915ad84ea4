package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"nfc.app/facilitator/core/db"
	"nfc.app/facilitator/internal/model"
)

type interventionStore struct {
	q db.DBTX
}

func newInterventionStore(q db.DBTX) InterventionStore {
	return &interventionStore{q: q}
}

func (s *interventionStore) Create(ctx context.Context, iv *model.Intervention) error {
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO interventions (
			id, community_id, user_id, trigger_message_id, type, pattern,
			body, follow_up_question, content, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		iv.ID, iv.CommunityID, iv.UserID, iv.TriggerMessageID, string(iv.Type), string(iv.Pattern),
		iv.Body, iv.FollowUpQuestion, iv.Content, iv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create intervention: %w", err)
	}
	return nil
}

func (s *interventionStore) GetByID(ctx context.Context, id int64) (*model.Intervention, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, community_id, user_id, trigger_message_id, type, pattern, body,
		       follow_up_question, content, answered, ignored, answer_message_id,
		       resolved_at, created_at
		FROM interventions WHERE id = $1`, id)

	var (
		iv      model.Intervention
		typ     string
		pattern string
	)
	err := row.Scan(
		&iv.ID, &iv.CommunityID, &iv.UserID, &iv.TriggerMessageID, &typ, &pattern, &iv.Body,
		&iv.FollowUpQuestion, &iv.Content, &iv.Answered, &iv.Ignored, &iv.AnswerMessageID,
		&iv.ResolvedAt, &iv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	iv.Type = model.InterventionType(typ)
	iv.Pattern = model.PatternKind(pattern)
	return &iv, nil
}

func (s *interventionStore) Resolve(ctx context.Context, id int64, answered bool, answerMessageID *int64, at time.Time) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE interventions
		SET answered = $2, ignored = NOT $2, answer_message_id = $3, resolved_at = $4
		WHERE id = $1 AND NOT answered AND NOT ignored`,
		id, answered, answerMessageID, at,
	)
	if err != nil {
		return fmt.Errorf("resolve intervention: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *interventionStore) CountByCommunity(ctx context.Context, communityID string, since time.Time) (InterventionCounts, error) {
	var c InterventionCounts
	err := s.q.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE created_at >= $2),
		       count(*) FILTER (WHERE answered),
		       count(*) FILTER (WHERE ignored)
		FROM interventions WHERE community_id = $1`, communityID, since,
	).Scan(&c.Total, &c.Since, &c.Answered, &c.Ignored)
	if err != nil {
		return InterventionCounts{}, fmt.Errorf("count interventions: %w", err)
	}
	return c, nil
}
