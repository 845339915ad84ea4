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

type messageStore struct {
	q db.DBTX
}

func newMessageStore(q db.DBTX) MessageStore {
	return &messageStore{q: q}
}

const appendMessageSQL = `
WITH seq AS (
	INSERT INTO community_sequences (community_id, last_sequence)
	VALUES ($2, 1)
	ON CONFLICT (community_id)
	DO UPDATE SET last_sequence = community_sequences.last_sequence + 1
	RETURNING last_sequence
)
INSERT INTO community_messages (id, community_id, author_id, content, sequence, created_at)
SELECT $1, $2, $3, $4, seq.last_sequence, $5 FROM seq
RETURNING sequence`

func (s *messageStore) Append(ctx context.Context, msg *model.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	err := s.q.QueryRow(ctx, appendMessageSQL,
		msg.ID, msg.CommunityID, msg.AuthorID, msg.Content, msg.CreatedAt,
	).Scan(&msg.Sequence)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *messageStore) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, community_id, author_id, content, sequence, created_at
		FROM community_messages WHERE id = $1`, id)

	var m model.Message
	if err := row.Scan(&m.ID, &m.CommunityID, &m.AuthorID, &m.Content, &m.Sequence, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *messageStore) ListRecent(ctx context.Context, communityID string, limit int) ([]model.Message, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, community_id, author_id, content, sequence, created_at FROM (
			SELECT id, community_id, author_id, content, sequence, created_at
			FROM community_messages
			WHERE community_id = $1
			ORDER BY sequence DESC
			LIMIT $2
		) recent
		ORDER BY sequence ASC`, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Message, error) {
		var m model.Message
		err := row.Scan(&m.ID, &m.CommunityID, &m.AuthorID, &m.Content, &m.Sequence, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent messages: %w", err)
	}
	return msgs, nil
}
