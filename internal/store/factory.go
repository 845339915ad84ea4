package store

import (
	"nfc.app/facilitator/core/db"
)

type Stores struct {
	q db.DBTX
}

func NewStores(q db.DBTX) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Messages() MessageStore {
	return newMessageStore(s.q)
}

func (s *Stores) Cadence() CadenceStore {
	return newCadenceStore(s.q)
}

func (s *Stores) UserStates() UserStateStore {
	return newUserStateStore(s.q)
}

func (s *Stores) Interventions() InterventionStore {
	return newInterventionStore(s.q)
}

func (s *Stores) FollowUps() FollowUpStore {
	return newFollowUpStore(s.q)
}

func (s *Stores) Sessions() SessionStore {
	return newSessionStore(s.q)
}

var _ Provider = (*Stores)(nil)
