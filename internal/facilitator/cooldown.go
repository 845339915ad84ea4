package facilitator

import (
	"context"
	"time"

	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

// CooldownLedger enforces a minimum delay between interventions for a user.
type CooldownLedger struct {
	store    store.UserStateStore
	settings *Settings
	clock    Clock
}

func NewCooldownLedger(s store.UserStateStore, settings *Settings, clock Clock) *CooldownLedger {
	return &CooldownLedger{store: s, settings: settings, clock: clock}
}

// IsOnCooldown reports whether the user's last intervention is too recent.
// A user with no recorded intervention is never on cooldown.
func (l *CooldownLedger) IsOnCooldown(ctx context.Context, userID, communityID string) (bool, error) {
	cfg := l.settings.Load()
	st, err := loadUserState(ctx, l.store, cfg, userID, cfg.ScopeKey(communityID))
	if err != nil {
		return false, err
	}
	return onCooldown(st, l.clock.Now(), cfg.Cooldown), nil
}

func (l *CooldownLedger) RecordIntervention(ctx context.Context, userID, communityID string, now time.Time) error {
	cfg := l.settings.Load()
	return updateUserState(ctx, l.store, cfg, userID, cfg.ScopeKey(communityID), func(st *model.UserInterventionState) {
		recordCooldown(st, now)
	})
}

func onCooldown(st model.UserInterventionState, now time.Time, cooldown time.Duration) bool {
	if st.LastInterventionAt == nil {
		return false
	}
	return now.Sub(*st.LastInterventionAt) < cooldown
}

func recordCooldown(st *model.UserInterventionState, now time.Time) {
	st.LastInterventionAt = &now
}
