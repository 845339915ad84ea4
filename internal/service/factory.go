package service

import (
	"nfc.app/facilitator/common/cache"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/lock"
	"nfc.app/facilitator/internal/queue"
	"nfc.app/facilitator/internal/store"
)

// Deps are the collaborators the services are built from. A nil Replies
// matcher uses the embedded observer policy.
type Deps struct {
	Stores     store.Provider
	TxRunner   store.TxRunner
	Engine     Decider
	Locker     lock.Locker
	Producer   queue.Producer
	StatsCache cache.Cache
	Settings   *facilitator.Settings
	Clock      facilitator.Clock
	Replies    facilitator.ReplyMatcher
}

type Services struct {
	messages MessageService
	stats    StatsService
	sessions SessionService
}

func NewServices(d Deps) *Services {
	if d.Clock == nil {
		d.Clock = facilitator.SystemClock
	}

	stats := NewStatsService(d.Stores, d.StatsCache, d.Settings, d.Clock)

	messages := NewMessageService(
		d.Stores.Messages(),
		d.Locker,
		facilitator.NewFollowUpTracker(d.TxRunner, d.Settings, d.Clock, d.Replies),
		facilitator.NewCadenceTracker(d.Stores.Cadence(), d.Settings),
		d.Engine,
		d.Producer,
		d.Settings,
		d.Clock,
		OnPublish(stats.Invalidate),
		OnFollowUpResolved(stats.Invalidate),
	)

	return &Services{
		messages: messages,
		stats:    stats,
		sessions: NewSessionService(d.Stores.Sessions()),
	}
}

func (s *Services) Messages() MessageService {
	return s.messages
}

func (s *Services) Stats() StatsService {
	return s.stats
}

func (s *Services) Sessions() SessionService {
	return s.sessions
}
