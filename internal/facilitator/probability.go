package facilitator

import (
	"context"

	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

// ProbabilityAdjuster keeps a per-user acceptance probability. It decays when the
// user ignores follow-up questions and recovers toward the base when they answer.
type ProbabilityAdjuster struct {
	store    store.UserStateStore
	settings *Settings
	sampler  Sampler
}

func NewProbabilityAdjuster(s store.UserStateStore, settings *Settings, sampler Sampler) *ProbabilityAdjuster {
	return &ProbabilityAdjuster{store: s, settings: settings, sampler: sampler}
}

// CurrentProbability is the base probability for users never seen before.
func (a *ProbabilityAdjuster) CurrentProbability(ctx context.Context, userID, communityID string) (float64, error) {
	cfg := a.settings.Load()
	st, err := loadUserState(ctx, a.store, cfg, userID, cfg.ScopeKey(communityID))
	if err != nil {
		return 0, err
	}
	return probabilityOf(st, cfg), nil
}

// SampleShouldIntervene draws once from the sampler and compares it to the
// user's current probability.
func (a *ProbabilityAdjuster) SampleShouldIntervene(ctx context.Context, userID, communityID string) (bool, error) {
	p, err := a.CurrentProbability(ctx, userID, communityID)
	if err != nil {
		return false, err
	}
	return sample(a.sampler, p), nil
}

func (a *ProbabilityAdjuster) OnFollowUpIgnored(ctx context.Context, userID, communityID string) error {
	cfg := a.settings.Load()
	return updateUserState(ctx, a.store, cfg, userID, cfg.ScopeKey(communityID), func(st *model.UserInterventionState) {
		applyIgnored(st, cfg)
	})
}

func (a *ProbabilityAdjuster) OnFollowUpAnswered(ctx context.Context, userID, communityID string) error {
	cfg := a.settings.Load()
	return updateUserState(ctx, a.store, cfg, userID, cfg.ScopeKey(communityID), func(st *model.UserInterventionState) {
		applyAnswered(st, cfg)
	})
}

func sample(s Sampler, p float64) bool {
	return s.Float64() < p
}

// probabilityOf clamps the stored value into [floor, 1] so a config change
// that raises the floor takes effect immediately.
func probabilityOf(st model.UserInterventionState, cfg config.FacilitatorConfig) float64 {
	return min(max(st.Probability, cfg.ProbabilityFloor), 1)
}

func applyIgnored(st *model.UserInterventionState, cfg config.FacilitatorConfig) {
	st.Probability = max(cfg.ProbabilityFloor, probabilityOf(*st, cfg)-cfg.ProbabilityDecrement)
	st.ConsecutiveIgnored++
	st.IgnoredTotal++
}

// applyAnswered moves the probability up by the recovery step without passing the
// base value. A value already at or above base is left alone.
func applyAnswered(st *model.UserInterventionState, cfg config.FacilitatorConfig) {
	if p := probabilityOf(*st, cfg); p < cfg.BaseProbability {
		st.Probability = min(cfg.BaseProbability, p+cfg.ProbabilityRecovery)
	}
	st.ConsecutiveIgnored = 0
	st.AnsweredTotal++
}
