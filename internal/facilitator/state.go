package facilitator

import (
	"context"
	"errors"
	"fmt"

	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

// maxCASAttempts bounds optimistic retries for standalone state updates.
const maxCASAttempts = 3

// loadCadence returns the stored cadence state, or a fresh unsaved one.
func loadCadence(ctx context.Context, s store.CadenceStore, communityID string) (model.CommunityCadenceState, error) {
	st, err := s.Get(ctx, communityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.CommunityCadenceState{CommunityID: communityID}, nil
		}
		return model.CommunityCadenceState{}, fmt.Errorf("load cadence: %w", err)
	}
	return *st, nil
}

// loadUserState returns the stored user state, or one at base probability.
// New states are created lazily and only persisted by a write.
func loadUserState(ctx context.Context, s store.UserStateStore, cfg config.FacilitatorConfig, userID, scopeKey string) (model.UserInterventionState, error) {
	st, err := s.Get(ctx, userID, scopeKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.UserInterventionState{
				UserID:      userID,
				ScopeKey:    scopeKey,
				Probability: cfg.BaseProbability,
			}, nil
		}
		return model.UserInterventionState{}, fmt.Errorf("load user state: %w", err)
	}
	return *st, nil
}

func updateCadence(ctx context.Context, s store.CadenceStore, communityID string, mutate func(*model.CommunityCadenceState)) error {
	var err error
	for range maxCASAttempts {
		var st model.CommunityCadenceState
		if st, err = loadCadence(ctx, s, communityID); err != nil {
			return err
		}
		mutate(&st)
		if err = s.Save(ctx, &st); !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return err
}

func updateUserState(ctx context.Context, s store.UserStateStore, cfg config.FacilitatorConfig, userID, scopeKey string, mutate func(*model.UserInterventionState)) error {
	var err error
	for range maxCASAttempts {
		var st model.UserInterventionState
		if st, err = loadUserState(ctx, s, cfg, userID, scopeKey); err != nil {
			return err
		}
		mutate(&st)
		if err = s.Save(ctx, &st); !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return err
}
