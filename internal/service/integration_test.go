package service_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/common/cache"
	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/generator"
	"nfc.app/facilitator/internal/lock"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/service"
	"nfc.app/facilitator/internal/store/memory"
)

var _ = Describe("Services end to end", func() {
	const community = "c1"

	var (
		ctx      context.Context
		clock    *fixedClock
		db       *memory.DB
		producer *mockProducer
		services *service.Services
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = &fixedClock{now: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)}
		db = memory.New(memory.WithClock(clock.Now))
		producer = &mockProducer{}

		settings := facilitator.NewSettings(config.DefaultFacilitator())
		templates := generator.NewTemplateGenerator(generator.DefaultTemplates(), generator.WithPicker(func(int) int { return 0 }))
		engine := facilitator.NewEngine(db.Stores(), db, facilitator.NewKeywordObserver(facilitator.DefaultPolicy()), templates, settings,
			facilitator.WithClock(clock),
			facilitator.WithSampler(facilitator.SamplerFunc(func() float64 { return 0 })),
		)

		services = service.NewServices(service.Deps{
			Stores:     db.Stores(),
			TxRunner:   db,
			Engine:     engine,
			Locker:     lock.NewKeyedMutex(),
			Producer:   producer,
			StatsCache: cache.NewMemoryCache(16, time.Minute),
			Settings:   settings,
			Clock:      clock,
		})
	})

	post := func(author, content string) *service.PostResult {
		result, err := services.Messages().Post(ctx, community, author, content)
		Expect(err).NotTo(HaveOccurred())
		clock.Advance(10 * time.Second)
		return result
	}

	It("intervenes on a recurring doubt and tracks the reply", func() {
		for _, content := range []string{"bom dia", "oi gente", "tudo bem por ai", "hoje fui na academia", "acordei cedo", "que calor"} {
			Expect(post("u9", content).Decision.Intervene).To(BeFalse())
		}
		Expect(post("u1", "alguem sabe como faco agachamento").Decision.Intervene).To(BeFalse())

		// Prime the stats cache so the intervention has to invalidate it.
		_, err := services.Stats().Get(ctx, community)
		Expect(err).NotTo(HaveOccurred())

		result := post("u1", "como faco pra nao doer o joelho?")
		Expect(result.Decision.Intervene).To(BeTrue())
		Expect(result.Decision.Type).To(Equal(model.InterventionQuestion))
		Expect(result.AIMessage).NotTo(BeNil())
		Expect(result.AIMessage.Content).To(ContainSubstring("\n-> "))
		Expect(strings.HasSuffix(result.AIMessage.Content, "?")).To(BeTrue())

		recent, err := db.Stores().Messages().ListRecent(ctx, community, 20)
		Expect(err).NotTo(HaveOccurred())
		Expect(recent).To(HaveLen(9))
		Expect(recent[8].AuthorID).To(Equal(config.DefaultAIPersonaID))

		Expect(producer.events).To(HaveLen(1))
		Expect(producer.events[0].UserID).To(Equal("u1"))

		stats, err := services.Stats().Get(ctx, community)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.HumanMessagesSince).To(BeZero())
		Expect(stats.InterventionsToday).To(Equal(1))
		Expect(stats.PendingFollowUps).To(Equal(1))

		chatter := post("u1", "kkkkk")
		Expect(chatter.FollowUp).To(Equal(facilitator.FollowUpPending))

		reply := post("u1", "acho que vou diminuir a carga")
		Expect(reply.FollowUp).To(Equal(facilitator.FollowUpAnswered))
		Expect(reply.Decision.Reason).To(Equal(facilitator.ReasonCadence))

		// The resolved follow-up must not be served from the cached stats.
		stats, err = services.Stats().Get(ctx, community)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Answered).To(Equal(1))
		Expect(stats.PendingFollowUps).To(BeZero())

		ivs := memory.ListByCommunity(db, community)
		Expect(ivs).To(HaveLen(1))
		Expect(ivs[0].Answered).To(BeTrue())
		Expect(*ivs[0].AnswerMessageID).To(Equal(reply.Message.ID))
	})

	It("keeps the AI persona out of the human message flow", func() {
		for i := 0; i < 3; i++ {
			post("u9", "bom dia")
		}
		stats, err := services.Stats().Get(ctx, community)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.HumanMessagesSince).To(Equal(3))

		_, err = services.Messages().Post(ctx, community, config.DefaultAIPersonaID, "ola")
		Expect(err).To(MatchError(service.ErrInvalidMessage))
	})
})
