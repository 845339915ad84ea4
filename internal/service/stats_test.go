package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/common/cache"
	"nfc.app/facilitator/common/id"
	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/service"
	"nfc.app/facilitator/internal/store/memory"
)

var _ = Describe("StatsService", func() {
	const community = "c1"

	var (
		ctx   context.Context
		clock *fixedClock
		db    *memory.DB
		svc   service.StatsService
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = &fixedClock{now: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)}
		db = memory.New(memory.WithClock(clock.Now))
		settings := facilitator.NewSettings(config.DefaultFacilitator())
		svc = service.NewStatsService(db.Stores(), cache.NewMemoryCache(16, time.Minute), settings, clock)
	})

	intervention := func(at time.Time) model.Intervention {
		msg := model.Message{ID: id.New(), CommunityID: community, AuthorID: "u1", Content: "oi", CreatedAt: at}
		Expect(db.Stores().Messages().Append(ctx, &msg)).To(Succeed())
		iv := model.Intervention{
			ID:               id.New(),
			CommunityID:      community,
			UserID:           "u1",
			TriggerMessageID: msg.ID,
			Type:             model.InterventionQuestion,
			Pattern:          model.PatternRecurringQuestion,
			CreatedAt:        at,
		}
		Expect(db.Stores().Interventions().Create(ctx, &iv)).To(Succeed())
		return iv
	}

	It("reports zeros for a quiet community", func() {
		stats, err := svc.Get(ctx, "empty")
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.CommunityID).To(Equal("empty"))
		Expect(stats.HumanMessagesSince).To(BeZero())
		Expect(stats.InterventionsTotal).To(BeZero())
		Expect(stats.PendingFollowUps).To(BeZero())
	})

	It("counts today in the configured timezone", func() {
		// 02:00 UTC is still March 9th in Sao Paulo.
		intervention(time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC))
		intervention(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

		stats, err := svc.Get(ctx, community)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.InterventionsTotal).To(Equal(2))
		Expect(stats.InterventionsToday).To(Equal(1))
		Expect(stats.ComputedAt).To(Equal(clock.now))
	})

	It("reports cadence, resolutions and pending follow-ups", func() {
		answered := intervention(clock.now)
		ignored := intervention(clock.now)
		pending := intervention(clock.now)

		Expect(db.Stores().Interventions().Resolve(ctx, answered.ID, true, nil, clock.now)).To(Succeed())
		Expect(db.Stores().Interventions().Resolve(ctx, ignored.ID, false, nil, clock.now)).To(Succeed())
		Expect(db.Stores().FollowUps().Create(ctx, &model.FollowUpWatch{
			InterventionID: pending.ID,
			UserID:         "u1",
			CommunityID:    community,
			Deadline:       clock.now.Add(30 * time.Minute),
		})).To(Succeed())
		Expect(db.Stores().Cadence().Save(ctx, &model.CommunityCadenceState{CommunityID: community, HumanMessagesSince: 3})).To(Succeed())

		stats, err := svc.Get(ctx, community)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.HumanMessagesSince).To(Equal(3))
		Expect(stats.Answered).To(Equal(1))
		Expect(stats.Ignored).To(Equal(1))
		Expect(stats.PendingFollowUps).To(Equal(1))
	})

	It("serves cached stats until invalidated", func() {
		stats, err := svc.Get(ctx, community)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.InterventionsTotal).To(BeZero())

		intervention(clock.now)

		stats, err = svc.Get(ctx, community)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.InterventionsTotal).To(BeZero())

		svc.Invalidate(ctx, community)

		stats, err = svc.Get(ctx, community)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.InterventionsTotal).To(Equal(1))
	})
})
