package memory

import (
	"context"
	"sort"
	"time"

	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

type stores struct {
	a access
}

func newStores(a access) *stores {
	return &stores{a: a}
}

func (s *stores) Messages() store.MessageStore { return messageStore(*s) }

func (s *stores) Cadence() store.CadenceStore { return cadenceStore(*s) }

func (s *stores) UserStates() store.UserStateStore { return userStateStore(*s) }

func (s *stores) Interventions() store.InterventionStore { return interventionStore(*s) }

func (s *stores) FollowUps() store.FollowUpStore { return followUpStore(*s) }

func (s *stores) Sessions() store.SessionStore { return sessionStore(*s) }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ── Messages ─────────────────────────────────────────────────────────────────

type messageStore stores

func (s messageStore) Append(_ context.Context, msg *model.Message) error {
	return s.a.with(func(d *dataset) error {
		if _, ok := d.messages[msg.ID]; ok {
			return store.ErrAlreadyExists
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = s.a.now().UTC()
		}
		d.sequences[msg.CommunityID]++
		msg.Sequence = d.sequences[msg.CommunityID]
		d.messages[msg.ID] = *msg
		d.byCommunity[msg.CommunityID] = append(d.byCommunity[msg.CommunityID], msg.ID)
		return nil
	})
}

func (s messageStore) GetByID(_ context.Context, id int64) (*model.Message, error) {
	var out *model.Message
	err := s.a.with(func(d *dataset) error {
		m, ok := d.messages[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

func (s messageStore) ListRecent(_ context.Context, communityID string, limit int) ([]model.Message, error) {
	var out []model.Message
	err := s.a.with(func(d *dataset) error {
		ids := d.byCommunity[communityID]
		if limit > 0 && len(ids) > limit {
			ids = ids[len(ids)-limit:]
		}
		out = make([]model.Message, 0, len(ids))
		for _, id := range ids {
			out = append(out, d.messages[id])
		}
		return nil
	})
	return out, err
}

// ── Cadence ──────────────────────────────────────────────────────────────────

type cadenceStore stores

func (s cadenceStore) Get(_ context.Context, communityID string) (*model.CommunityCadenceState, error) {
	var out *model.CommunityCadenceState
	err := s.a.with(func(d *dataset) error {
		c, ok := d.cadence[communityID]
		if !ok {
			return store.ErrNotFound
		}
		c.LastHumanMessageAt = cloneTime(c.LastHumanMessageAt)
		c.LastInterventionAt = cloneTime(c.LastInterventionAt)
		out = &c
		return nil
	})
	return out, err
}

func (s cadenceStore) Save(_ context.Context, state *model.CommunityCadenceState) error {
	return s.a.with(func(d *dataset) error {
		current, ok := d.cadence[state.CommunityID]
		switch {
		case state.Version == 0 && ok:
			return store.ErrConflict
		case state.Version != 0 && (!ok || current.Version != state.Version):
			return store.ErrConflict
		}
		saved := *state
		saved.Version++
		saved.LastHumanMessageAt = cloneTime(state.LastHumanMessageAt)
		saved.LastInterventionAt = cloneTime(state.LastInterventionAt)
		d.cadence[state.CommunityID] = saved
		state.Version = saved.Version
		return nil
	})
}

// ── User intervention state ──────────────────────────────────────────────────

type userStateStore stores

func (s userStateStore) Get(_ context.Context, userID, scopeKey string) (*model.UserInterventionState, error) {
	var out *model.UserInterventionState
	err := s.a.with(func(d *dataset) error {
		u, ok := d.userStates[userKey{userID, scopeKey}]
		if !ok {
			return store.ErrNotFound
		}
		u.LastInterventionAt = cloneTime(u.LastInterventionAt)
		out = &u
		return nil
	})
	return out, err
}

func (s userStateStore) Save(_ context.Context, state *model.UserInterventionState) error {
	return s.a.with(func(d *dataset) error {
		key := userKey{state.UserID, state.ScopeKey}
		current, ok := d.userStates[key]
		switch {
		case state.Version == 0 && ok:
			return store.ErrConflict
		case state.Version != 0 && (!ok || current.Version != state.Version):
			return store.ErrConflict
		}
		saved := *state
		saved.Version++
		saved.LastInterventionAt = cloneTime(state.LastInterventionAt)
		d.userStates[key] = saved
		state.Version = saved.Version
		return nil
	})
}

// ── Interventions ────────────────────────────────────────────────────────────

type interventionStore stores

func (s interventionStore) Create(_ context.Context, iv *model.Intervention) error {
	return s.a.with(func(d *dataset) error {
		if _, ok := d.interventions[iv.ID]; ok {
			return store.ErrAlreadyExists
		}
		if _, ok := d.messages[iv.TriggerMessageID]; !ok {
			return store.ErrNotFound
		}
		if iv.CreatedAt.IsZero() {
			iv.CreatedAt = s.a.now().UTC()
		}
		d.interventions[iv.ID] = *iv
		return nil
	})
}

func (s interventionStore) GetByID(_ context.Context, id int64) (*model.Intervention, error) {
	var out *model.Intervention
	err := s.a.with(func(d *dataset) error {
		iv, ok := d.interventions[id]
		if !ok {
			return store.ErrNotFound
		}
		iv.ResolvedAt = cloneTime(iv.ResolvedAt)
		iv.AnswerMessageID = cloneInt64(iv.AnswerMessageID)
		out = &iv
		return nil
	})
	return out, err
}

func (s interventionStore) Resolve(_ context.Context, id int64, answered bool, answerMessageID *int64, at time.Time) error {
	return s.a.with(func(d *dataset) error {
		iv, ok := d.interventions[id]
		if !ok || !iv.Pending() {
			return store.ErrNotFound
		}
		iv.Answered = answered
		iv.Ignored = !answered
		iv.AnswerMessageID = cloneInt64(answerMessageID)
		iv.ResolvedAt = &at
		d.interventions[id] = iv
		return nil
	})
}

func (s interventionStore) CountByCommunity(_ context.Context, communityID string, since time.Time) (store.InterventionCounts, error) {
	var c store.InterventionCounts
	err := s.a.with(func(d *dataset) error {
		for _, iv := range d.interventions {
			if iv.CommunityID != communityID {
				continue
			}
			c.Total++
			if !iv.CreatedAt.Before(since) {
				c.Since++
			}
			if iv.Answered {
				c.Answered++
			}
			if iv.Ignored {
				c.Ignored++
			}
		}
		return nil
	})
	return c, err
}

// ListByCommunity returns a community's interventions oldest first.
func ListByCommunity(db *DB, communityID string) []model.Intervention {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []model.Intervention
	for _, iv := range db.data.interventions {
		if iv.CommunityID == communityID {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ── Follow-up watches ────────────────────────────────────────────────────────

type followUpStore stores

func (s followUpStore) Get(_ context.Context, userID, communityID string) (*model.FollowUpWatch, error) {
	var out *model.FollowUpWatch
	err := s.a.with(func(d *dataset) error {
		w, ok := d.watches[watchKey{userID, communityID}]
		if !ok {
			return store.ErrNotFound
		}
		out = &w
		return nil
	})
	return out, err
}

func (s followUpStore) Create(_ context.Context, watch *model.FollowUpWatch) error {
	return s.a.with(func(d *dataset) error {
		key := watchKey{watch.UserID, watch.CommunityID}
		if _, ok := d.watches[key]; ok {
			return store.ErrAlreadyExists
		}
		if watch.CreatedAt.IsZero() {
			watch.CreatedAt = s.a.now().UTC()
		}
		d.watches[key] = *watch
		return nil
	})
}

func (s followUpStore) Delete(_ context.Context, userID, communityID string) error {
	return s.a.with(func(d *dataset) error {
		delete(d.watches, watchKey{userID, communityID})
		return nil
	})
}

func (s followUpStore) CountByCommunity(_ context.Context, communityID string) (int, error) {
	var n int
	err := s.a.with(func(d *dataset) error {
		for k := range d.watches {
			if k.communityID == communityID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ── Sessions ─────────────────────────────────────────────────────────────────

type sessionStore stores

func (s sessionStore) GetValid(_ context.Context, id int64) (*model.Session, error) {
	var out *model.Session
	err := s.a.with(func(d *dataset) error {
		sess, ok := d.sessions[id]
		if !ok || sess.Expired(s.a.now()) {
			return store.ErrNotFound
		}
		out = &sess
		return nil
	})
	return out, err
}
