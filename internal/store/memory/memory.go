// Package memory implements the store ports in process. It backs the replay
// CLI and tests; transactions are serialized and roll back by discarding a copy.
package memory

import (
	"context"
	"sync"
	"time"

	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

type userKey struct {
	userID   string
	scopeKey string
}

type watchKey struct {
	userID      string
	communityID string
}

type dataset struct {
	messages      map[int64]model.Message
	byCommunity   map[string][]int64
	sequences     map[string]int64
	cadence       map[string]model.CommunityCadenceState
	userStates    map[userKey]model.UserInterventionState
	interventions map[int64]model.Intervention
	watches       map[watchKey]model.FollowUpWatch
	sessions      map[int64]model.Session
}

func newDataset() *dataset {
	return &dataset{
		messages:      make(map[int64]model.Message),
		byCommunity:   make(map[string][]int64),
		sequences:     make(map[string]int64),
		cadence:       make(map[string]model.CommunityCadenceState),
		userStates:    make(map[userKey]model.UserInterventionState),
		interventions: make(map[int64]model.Intervention),
		watches:       make(map[watchKey]model.FollowUpWatch),
		sessions:      make(map[int64]model.Session),
	}
}

// clone copies the maps; values are plain structs so a shallow copy of each
// entry is enough as long as pointer fields are never mutated in place.
func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.messages {
		c.messages[k] = v
	}
	for k, v := range d.byCommunity {
		c.byCommunity[k] = append([]int64(nil), v...)
	}
	for k, v := range d.sequences {
		c.sequences[k] = v
	}
	for k, v := range d.cadence {
		c.cadence[k] = v
	}
	for k, v := range d.userStates {
		c.userStates[k] = v
	}
	for k, v := range d.interventions {
		c.interventions[k] = v
	}
	for k, v := range d.watches {
		c.watches[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	return c
}

// access runs fn against the dataset, taking the lock when needed.
type access interface {
	with(fn func(d *dataset) error) error
	now() time.Time
}

type lockedAccess struct {
	db *DB
}

func (a lockedAccess) with(fn func(d *dataset) error) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	return fn(a.db.data)
}

func (a lockedAccess) now() time.Time { return a.db.clock() }

// txAccess is used while WithTx already holds the lock.
type txAccess struct {
	data  *dataset
	clock func() time.Time
}

func (a txAccess) with(fn func(d *dataset) error) error { return fn(a.data) }

func (a txAccess) now() time.Time { return a.clock() }

// DB is an in-memory database.
type DB struct {
	mu    sync.Mutex
	data  *dataset
	clock func() time.Time
}

type Option func(*DB)

// WithClock overrides the clock used for session expiry and default timestamps.
func WithClock(clock func() time.Time) Option {
	return func(db *DB) { db.clock = clock }
}

func New(opts ...Option) *DB {
	db := &DB{data: newDataset(), clock: time.Now}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Stores returns non-transactional stores; each call is atomic on its own.
func (db *DB) Stores() store.Provider {
	return newStores(lockedAccess{db: db})
}

// WithTx runs fn with exclusive access to a copy of the data and publishes the
// copy only when fn succeeds.
func (db *DB) WithTx(ctx context.Context, fn func(stores store.Provider) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	work := db.data.clone()
	if err := fn(newStores(txAccess{data: work, clock: db.clock})); err != nil {
		return err
	}
	db.data = work
	return nil
}

// PutSession seeds a session, standing in for the external auth frontend.
func (db *DB) PutSession(s model.Session) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data.sessions[s.ID] = s
}

var _ store.TxRunner = (*DB)(nil)
