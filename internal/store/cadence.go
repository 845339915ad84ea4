package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"nfc.app/facilitator/core/db"
	"nfc.app/facilitator/internal/model"
)

type cadenceStore struct {
	q db.DBTX
}

func newCadenceStore(q db.DBTX) CadenceStore {
	return &cadenceStore{q: q}
}

func (s *cadenceStore) Get(ctx context.Context, communityID string) (*model.CommunityCadenceState, error) {
	row := s.q.QueryRow(ctx, `
		SELECT community_id, human_messages_since, last_human_message_at, last_intervention_at, version
		FROM community_cadence WHERE community_id = $1`, communityID)

	var c model.CommunityCadenceState
	if err := row.Scan(&c.CommunityID, &c.HumanMessagesSince, &c.LastHumanMessageAt, &c.LastInterventionAt, &c.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *cadenceStore) Save(ctx context.Context, state *model.CommunityCadenceState) error {
	var (
		sql  string
		args = []any{state.CommunityID, state.HumanMessagesSince, state.LastHumanMessageAt, state.LastInterventionAt}
	)
	if state.Version == 0 {
		sql = `
			INSERT INTO community_cadence (community_id, human_messages_since, last_human_message_at, last_intervention_at, version)
			VALUES ($1, $2, $3, $4, 1)
			ON CONFLICT (community_id) DO NOTHING`
	} else {
		sql = `
			UPDATE community_cadence
			SET human_messages_since = $2, last_human_message_at = $3, last_intervention_at = $4, version = version + 1
			WHERE community_id = $1 AND version = $5`
		args = append(args, state.Version)
	}

	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("save cadence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	state.Version++
	return nil
}
