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

type followUpStore struct {
	q db.DBTX
}

func newFollowUpStore(q db.DBTX) FollowUpStore {
	return &followUpStore{q: q}
}

func (s *followUpStore) Get(ctx context.Context, userID, communityID string) (*model.FollowUpWatch, error) {
	row := s.q.QueryRow(ctx, `
		SELECT user_id, community_id, intervention_id, deadline, created_at
		FROM follow_up_watches WHERE user_id = $1 AND community_id = $2`, userID, communityID)

	var w model.FollowUpWatch
	if err := row.Scan(&w.UserID, &w.CommunityID, &w.InterventionID, &w.Deadline, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (s *followUpStore) Create(ctx context.Context, watch *model.FollowUpWatch) error {
	if watch.CreatedAt.IsZero() {
		watch.CreatedAt = time.Now().UTC()
	}
	tag, err := s.q.Exec(ctx, `
		INSERT INTO follow_up_watches (user_id, community_id, intervention_id, deadline, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, community_id) DO NOTHING`,
		watch.UserID, watch.CommunityID, watch.InterventionID, watch.Deadline, watch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create follow-up watch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *followUpStore) Delete(ctx context.Context, userID, communityID string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM follow_up_watches WHERE user_id = $1 AND community_id = $2`, userID, communityID)
	if err != nil {
		return fmt.Errorf("delete follow-up watch: %w", err)
	}
	return nil
}

func (s *followUpStore) CountByCommunity(ctx context.Context, communityID string) (int, error) {
	var n int
	if err := s.q.QueryRow(ctx, `SELECT count(*) FROM follow_up_watches WHERE community_id = $1`, communityID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count follow-up watches: %w", err)
	}
	return n, nil
}
