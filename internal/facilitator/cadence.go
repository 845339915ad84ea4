package facilitator

import (
	"context"
	"time"

	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

// CadenceTracker counts human messages since the AI last spoke in a community.
type CadenceTracker struct {
	store    store.CadenceStore
	settings *Settings
}

func NewCadenceTracker(s store.CadenceStore, settings *Settings) *CadenceTracker {
	return &CadenceTracker{store: s, settings: settings}
}

// RecordHumanMessage increments the community counter.
func (t *CadenceTracker) RecordHumanMessage(ctx context.Context, communityID string, at time.Time) error {
	return updateCadence(ctx, t.store, communityID, func(st *model.CommunityCadenceState) {
		countHumanMessage(st, at)
	})
}

// RecordIntervention resets the counter to zero.
func (t *CadenceTracker) RecordIntervention(ctx context.Context, communityID string, at time.Time) error {
	return updateCadence(ctx, t.store, communityID, func(st *model.CommunityCadenceState) {
		resetCadence(st, at)
	})
}

// MeetsThreshold reports whether enough human messages were posted. Read only.
func (t *CadenceTracker) MeetsThreshold(ctx context.Context, communityID string) (bool, error) {
	st, err := t.State(ctx, communityID)
	if err != nil {
		return false, err
	}
	return meetsCadence(st, t.settings.Load().MinHumanMessages), nil
}

// State returns the community's cadence, zero-valued when never recorded.
func (t *CadenceTracker) State(ctx context.Context, communityID string) (model.CommunityCadenceState, error) {
	return loadCadence(ctx, t.store, communityID)
}

func countHumanMessage(st *model.CommunityCadenceState, at time.Time) {
	st.HumanMessagesSince++
	st.LastHumanMessageAt = &at
}

func resetCadence(st *model.CommunityCadenceState, at time.Time) {
	st.HumanMessagesSince = 0
	st.LastInterventionAt = &at
}

func meetsCadence(st model.CommunityCadenceState, minHumanMessages int) bool {
	return st.HumanMessagesSince >= minHumanMessages
}
