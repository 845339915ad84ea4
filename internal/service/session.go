package service

import (
	"context"
	"errors"
	"fmt"

	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

var ErrSessionExpired = errors.New("session expired")

// SessionService resolves the authenticated user behind a session id.
// Sessions are created by the auth frontend; this service only reads them.
type SessionService interface {
	ValidateSession(ctx context.Context, sessionID int64) (*model.Session, error)
}

type sessionService struct {
	sessions store.SessionStore
}

func NewSessionService(sessions store.SessionStore) SessionService {
	return &sessionService{sessions: sessions}
}

func (s *sessionService) ValidateSession(ctx context.Context, sessionID int64) (*model.Session, error) {
	session, err := s.sessions.GetValid(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return session, nil
}
