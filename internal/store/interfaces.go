package store

import (
	"context"
	"errors"
	"time"

	"nfc.app/facilitator/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an optimistic version check fails.
var ErrConflict = errors.New("version conflict")

// ErrAlreadyExists is returned when a uniqueness constraint rejects an insert.
var ErrAlreadyExists = errors.New("already exists")

// MessageStore defines the contract for community message data access
type MessageStore interface {
	// Append assigns the next per-community Sequence and persists msg.
	Append(ctx context.Context, msg *model.Message) error
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	// ListRecent returns up to limit latest messages in ascending sequence order.
	ListRecent(ctx context.Context, communityID string, limit int) ([]model.Message, error)
}

// CadenceStore defines the contract for community cadence data access
type CadenceStore interface {
	Get(ctx context.Context, communityID string) (*model.CommunityCadenceState, error)
	// Save inserts when Version is zero, otherwise updates only if the stored
	// version matches. On success Version is bumped in place.
	Save(ctx context.Context, state *model.CommunityCadenceState) error
}

// UserStateStore defines the contract for per-user intervention state
type UserStateStore interface {
	Get(ctx context.Context, userID, scopeKey string) (*model.UserInterventionState, error)
	// Save follows the same compare-and-swap contract as CadenceStore.Save.
	Save(ctx context.Context, state *model.UserInterventionState) error
}

// InterventionCounts aggregates interventions for a community.
type InterventionCounts struct {
	Total    int
	Since    int
	Answered int
	Ignored  int
}

// InterventionStore defines the contract for intervention data access
type InterventionStore interface {
	Create(ctx context.Context, iv *model.Intervention) error
	GetByID(ctx context.Context, id int64) (*model.Intervention, error)
	// Resolve marks a pending intervention answered or ignored. Returns
	// ErrNotFound when the intervention is missing or already resolved.
	Resolve(ctx context.Context, id int64, answered bool, answerMessageID *int64, at time.Time) error
	CountByCommunity(ctx context.Context, communityID string, since time.Time) (InterventionCounts, error)
}

// FollowUpStore defines the contract for pending follow-up watches
type FollowUpStore interface {
	Get(ctx context.Context, userID, communityID string) (*model.FollowUpWatch, error)
	Create(ctx context.Context, watch *model.FollowUpWatch) error // ErrAlreadyExists when one is pending
	Delete(ctx context.Context, userID, communityID string) error
	CountByCommunity(ctx context.Context, communityID string) (int, error)
}

// SessionStore defines the contract for session data access
type SessionStore interface {
	GetValid(ctx context.Context, id int64) (*model.Session, error) // checks expiry
}

// Provider exposes the stores bound to one connection or transaction.
type Provider interface {
	Messages() MessageStore
	Cadence() CadenceStore
	UserStates() UserStateStore
	Interventions() InterventionStore
	FollowUps() FollowUpStore
	Sessions() SessionStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores Provider) error) error
}
