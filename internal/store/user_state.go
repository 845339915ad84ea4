package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"nfc.app/facilitator/core/db"
	"nfc.app/facilitator/internal/model"
)

type userStateStore struct {
	q db.DBTX
}

func newUserStateStore(q db.DBTX) UserStateStore {
	return &userStateStore{q: q}
}

func (s *userStateStore) Get(ctx context.Context, userID, scopeKey string) (*model.UserInterventionState, error) {
	row := s.q.QueryRow(ctx, `
		SELECT user_id, scope_key, last_intervention_at, count_day, today_count, probability,
		       consecutive_ignored, answered_total, ignored_total, bridges_today, version
		FROM user_intervention_state
		WHERE user_id = $1 AND scope_key = $2`, userID, scopeKey)

	var u model.UserInterventionState
	err := row.Scan(
		&u.UserID, &u.ScopeKey, &u.LastInterventionAt, &u.CountDay, &u.TodayCount, &u.Probability,
		&u.ConsecutiveIgnored, &u.AnsweredTotal, &u.IgnoredTotal, &u.BridgesToday, &u.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *userStateStore) Save(ctx context.Context, state *model.UserInterventionState) error {
	args := []any{
		state.UserID, state.ScopeKey, state.LastInterventionAt, state.CountDay, state.TodayCount,
		state.Probability, state.ConsecutiveIgnored, state.AnsweredTotal, state.IgnoredTotal,
		state.BridgesToday,
	}

	var sql string
	if state.Version == 0 {
		sql = `
			INSERT INTO user_intervention_state (
				user_id, scope_key, last_intervention_at, count_day, today_count, probability,
				consecutive_ignored, answered_total, ignored_total, bridges_today, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
			ON CONFLICT (user_id, scope_key) DO NOTHING`
	} else {
		sql = `
			UPDATE user_intervention_state
			SET last_intervention_at = $3, count_day = $4, today_count = $5, probability = $6,
			    consecutive_ignored = $7, answered_total = $8, ignored_total = $9,
			    bridges_today = $10, version = version + 1, updated_at = now()
			WHERE user_id = $1 AND scope_key = $2 AND version = $11`
		args = append(args, state.Version)
	}

	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("save user state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	state.Version++
	return nil
}
