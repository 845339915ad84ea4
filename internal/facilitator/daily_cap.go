package facilitator

import (
	"context"
	"time"

	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

// DailyCapCounter limits interventions per user per calendar day in the
// configured timezone. Counts from a previous day read as zero.
type DailyCapCounter struct {
	store    store.UserStateStore
	settings *Settings
	clock    Clock
}

func NewDailyCapCounter(s store.UserStateStore, settings *Settings, clock Clock) *DailyCapCounter {
	return &DailyCapCounter{store: s, settings: settings, clock: clock}
}

func (c *DailyCapCounter) HasReachedCap(ctx context.Context, userID, communityID string) (bool, error) {
	cfg := c.settings.Load()
	st, err := loadUserState(ctx, c.store, cfg, userID, cfg.ScopeKey(communityID))
	if err != nil {
		return false, err
	}
	return capReached(st, cfg, c.clock.Now()), nil
}

// TodayCount returns the number of interventions already counted today.
func (c *DailyCapCounter) TodayCount(ctx context.Context, userID, communityID string) (int, error) {
	cfg := c.settings.Load()
	st, err := loadUserState(ctx, c.store, cfg, userID, cfg.ScopeKey(communityID))
	if err != nil {
		return 0, err
	}
	return st.CountFor(cfg.DayKey(c.clock.Now())), nil
}

// BridgesToday returns the article and app bridges already sent today.
func (c *DailyCapCounter) BridgesToday(ctx context.Context, userID, communityID string) (int, error) {
	cfg := c.settings.Load()
	st, err := loadUserState(ctx, c.store, cfg, userID, cfg.ScopeKey(communityID))
	if err != nil {
		return 0, err
	}
	return st.BridgesFor(cfg.DayKey(c.clock.Now())), nil
}

func (c *DailyCapCounter) Increment(ctx context.Context, userID, communityID string) error {
	cfg := c.settings.Load()
	now := c.clock.Now()
	return updateUserState(ctx, c.store, cfg, userID, cfg.ScopeKey(communityID), func(st *model.UserInterventionState) {
		incrementDaily(st, cfg.DayKey(now), false)
	})
}

func capReached(st model.UserInterventionState, cfg config.FacilitatorConfig, now time.Time) bool {
	return st.CountFor(cfg.DayKey(now)) >= cfg.DailyCap
}

// incrementDaily counts one intervention, and one bridge when bridge is set,
// restarting both counts on a new day.
func incrementDaily(st *model.UserInterventionState, day string, bridge bool) {
	bridges := st.BridgesFor(day)
	if bridge {
		bridges++
	}
	st.TodayCount = st.CountFor(day) + 1
	st.BridgesToday = bridges
	st.CountDay = day
}
