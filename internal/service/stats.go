package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nfc.app/facilitator/common/cache"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
)

type StatsService interface {
	Get(ctx context.Context, communityID string) (*model.FacilitatorStats, error)
	Invalidate(ctx context.Context, communityID string)
}

type statsService struct {
	stores   store.Provider
	settings *facilitator.Settings
	clock    facilitator.Clock
	loader   *cache.Loader[model.FacilitatorStats]
}

func NewStatsService(stores store.Provider, c cache.Cache, settings *facilitator.Settings, clock facilitator.Clock) StatsService {
	if clock == nil {
		clock = facilitator.SystemClock
	}
	return &statsService{
		stores:   stores,
		settings: settings,
		clock:    clock,
		loader:   cache.NewLoader[model.FacilitatorStats](c),
	}
}

func statsKey(communityID string) string {
	return "facilitator:stats:" + communityID
}

func (s *statsService) Get(ctx context.Context, communityID string) (*model.FacilitatorStats, error) {
	stats, err := s.loader.Get(ctx, statsKey(communityID), func(ctx context.Context) (model.FacilitatorStats, error) {
		return s.compute(ctx, communityID)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Invalidate drops cached stats after the AI speaks in a community.
func (s *statsService) Invalidate(ctx context.Context, communityID string) {
	_ = s.loader.Invalidate(ctx, statsKey(communityID))
}

func (s *statsService) compute(ctx context.Context, communityID string) (model.FacilitatorStats, error) {
	now := s.clock.Now()
	stats := model.FacilitatorStats{CommunityID: communityID, ComputedAt: now}

	cadence, err := s.stores.Cadence().Get(ctx, communityID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return stats, fmt.Errorf("getting cadence: %w", err)
	default:
		stats.HumanMessagesSince = cadence.HumanMessagesSince
	}

	counts, err := s.stores.Interventions().CountByCommunity(ctx, communityID, startOfDay(now, s.settings.Load().Location()))
	if err != nil {
		return stats, fmt.Errorf("counting interventions: %w", err)
	}
	stats.InterventionsTotal = counts.Total
	stats.InterventionsToday = counts.Since
	stats.Answered = counts.Answered
	stats.Ignored = counts.Ignored

	pending, err := s.stores.FollowUps().CountByCommunity(ctx, communityID)
	if err != nil {
		return stats, fmt.Errorf("counting follow-ups: %w", err)
	}
	stats.PendingFollowUps = pending

	return stats, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
