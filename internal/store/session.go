package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"nfc.app/facilitator/core/db"
	"nfc.app/facilitator/internal/model"
)

type sessionStore struct {
	q db.DBTX
}

func newSessionStore(q db.DBTX) SessionStore {
	return &sessionStore{q: q}
}

func (s *sessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, user_id, expires_at, created_at
		FROM sessions WHERE id = $1 AND expires_at > now()`, id)

	var sess model.Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}
