package facilitator_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/common/id"
	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/store"
	"nfc.app/facilitator/internal/store/memory"
)

var _ = Describe("FollowUpTracker", func() {
	const community = "c1"

	var (
		ctx      context.Context
		db       *memory.DB
		clock    *fakeClock
		settings *facilitator.Settings
		tracker  *facilitator.FollowUpTracker
		iv       *model.Intervention
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = &fakeClock{now: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)}
		db = memory.New(memory.WithClock(clock.Now))
		settings = facilitator.NewSettings(config.DefaultFacilitator())
		tracker = facilitator.NewFollowUpTracker(db, settings, clock, facilitator.NewKeywordReplyMatcher(facilitator.DefaultPolicy()))

		trigger := model.Message{ID: id.New(), CommunityID: community, AuthorID: "u1", Content: "alguem sabe?"}
		Expect(db.Stores().Messages().Append(ctx, &trigger)).To(Succeed())
		iv = &model.Intervention{
			ID: id.New(), CommunityID: community, UserID: "u1", TriggerMessageID: trigger.ID,
			Type: model.InterventionQuestion, Body: "Oi", FollowUpQuestion: "Como tem sido sua energia durante as janelas de jejum?",
			Content: "Oi\n-> Como tem sido sua energia durante as janelas de jejum?",
		}
		Expect(db.Stores().Interventions().Create(ctx, iv)).To(Succeed())
	})

	say := func(content string, at time.Time) model.Message {
		m := model.Message{ID: id.New(), CommunityID: community, AuthorID: "u1", Content: content, CreatedAt: at}
		Expect(db.Stores().Messages().Append(ctx, &m)).To(Succeed())
		return m
	}

	reply := func(at time.Time) model.Message {
		return say("sim, bem melhor que antes", at)
	}

	probability := func() float64 {
		p, err := facilitator.NewProbabilityAdjuster(db.Stores().UserStates(), settings, nil).CurrentProbability(ctx, "u1", community)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	It("allows only one pending watch per user and community", func() {
		deadline := clock.Now().Add(30 * time.Minute)
		Expect(tracker.RegisterExpectedFollowUp(ctx, iv.ID, "u1", community, deadline)).To(Succeed())
		Expect(tracker.RegisterExpectedFollowUp(ctx, iv.ID+1, "u1", community, deadline)).To(MatchError(facilitator.ErrWatchPending))
		Expect(tracker.RegisterExpectedFollowUp(ctx, iv.ID+1, "u1", "c2", deadline)).To(Succeed())

		n, err := db.Stores().FollowUps().CountByCommunity(ctx, community)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})

	It("does nothing without a pending watch", func() {
		outcome, err := tracker.RecordUserReply(ctx, community, "u1", reply(clock.Now()))
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(facilitator.FollowUpNone))
	})

	It("marks the intervention answered when the reply beats the deadline", func() {
		Expect(db.Stores().UserStates().Save(ctx, &model.UserInterventionState{
			UserID: "u1", ScopeKey: community, Probability: 0.2, ConsecutiveIgnored: 2,
		})).To(Succeed())
		Expect(tracker.RegisterExpectedFollowUp(ctx, iv.ID, "u1", community, clock.Now().Add(30*time.Minute))).To(Succeed())

		answer := reply(clock.Now().Add(29 * time.Minute))
		outcome, err := tracker.RecordUserReply(ctx, community, "u1", answer)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(facilitator.FollowUpAnswered))

		got, err := db.Stores().Interventions().GetByID(ctx, iv.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Answered).To(BeTrue())
		Expect(got.Ignored).To(BeFalse())
		Expect(*got.AnswerMessageID).To(Equal(answer.ID))

		Expect(probability()).To(BeNumerically("~", 0.30, 1e-9))
		_, err = db.Stores().FollowUps().Get(ctx, "u1", community)
		Expect(err).To(MatchError(store.ErrNotFound))
	})

	It("marks the intervention ignored on the next message after the deadline", func() {
		Expect(tracker.RegisterExpectedFollowUp(ctx, iv.ID, "u1", community, clock.Now().Add(30*time.Minute))).To(Succeed())

		late := reply(clock.Now().Add(31 * time.Minute))
		outcome, err := tracker.RecordUserReply(ctx, community, "u1", late)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(facilitator.FollowUpIgnored))

		got, err := db.Stores().Interventions().GetByID(ctx, iv.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Ignored).To(BeTrue())
		Expect(got.AnswerMessageID).To(BeNil())

		Expect(probability()).To(BeNumerically("~", 0.30, 1e-9))
		st, err := db.Stores().UserStates().Get(ctx, "u1", community)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.ConsecutiveIgnored).To(Equal(1))

		outcome, err = tracker.RecordUserReply(ctx, community, "u1", reply(clock.Now().Add(32*time.Minute)))
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(facilitator.FollowUpNone))
	})

	It("leaves the follow-up pending when the message does not answer it", func() {
		Expect(tracker.RegisterExpectedFollowUp(ctx, iv.ID, "u1", community, clock.Now().Add(30*time.Minute))).To(Succeed())

		outcome, err := tracker.RecordUserReply(ctx, community, "u1", say("kkkkk", clock.Now().Add(5*time.Second)))
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(facilitator.FollowUpPending))

		got, err := db.Stores().Interventions().GetByID(ctx, iv.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Pending()).To(BeTrue())
		_, err = db.Stores().FollowUps().Get(ctx, "u1", community)
		Expect(err).NotTo(HaveOccurred())
		Expect(probability()).To(BeNumerically("~", 0.40, 1e-9))

		answer := say("minha energia cai muito no fim da tarde", clock.Now().Add(10*time.Minute))
		outcome, err = tracker.RecordUserReply(ctx, community, "u1", answer)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(facilitator.FollowUpAnswered))

		got, err = db.Stores().Interventions().GetByID(ctx, iv.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*got.AnswerMessageID).To(Equal(answer.ID))
	})

	It("marks an unanswered follow-up ignored once the deadline passes", func() {
		Expect(tracker.RegisterExpectedFollowUp(ctx, iv.ID, "u1", community, clock.Now().Add(30*time.Minute))).To(Succeed())

		for _, content := range []string{"kkkkk", "bom dia", "que calor hoje"} {
			outcome, err := tracker.RecordUserReply(ctx, community, "u1", say(content, clock.Now().Add(time.Minute)))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(facilitator.FollowUpPending))
		}

		outcome, err := tracker.RecordUserReply(ctx, community, "u1", say("voltei", clock.Now().Add(40*time.Minute)))
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(facilitator.FollowUpIgnored))
		Expect(probability()).To(BeNumerically("~", 0.30, 1e-9))
	})

	It("treats a reply exactly at the deadline as late", func() {
		deadline := clock.Now().Add(30 * time.Minute)
		Expect(tracker.RegisterExpectedFollowUp(ctx, iv.ID, "u1", community, deadline)).To(Succeed())

		outcome, err := tracker.RecordUserReply(ctx, community, "u1", reply(deadline))
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(facilitator.FollowUpIgnored))
	})

	It("drops a stale watch whose intervention was already resolved", func() {
		Expect(tracker.RegisterExpectedFollowUp(ctx, iv.ID, "u1", community, clock.Now().Add(30*time.Minute))).To(Succeed())
		Expect(db.Stores().Interventions().Resolve(ctx, iv.ID, true, nil, clock.Now())).To(Succeed())

		outcome, err := tracker.RecordUserReply(ctx, community, "u1", reply(clock.Now()))
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(facilitator.FollowUpNone))

		_, err = db.Stores().FollowUps().Get(ctx, "u1", community)
		Expect(err).To(MatchError(store.ErrNotFound))
		Expect(probability()).To(BeNumerically("~", 0.40, 1e-9))
	})
})

var _ = Describe("KeywordReplyMatcher", func() {
	const question = "Como tem sido sua energia durante as janelas de jejum?"

	var matcher *facilitator.KeywordReplyMatcher

	BeforeEach(func() {
		matcher = facilitator.NewKeywordReplyMatcher(facilitator.DefaultPolicy())
	})

	DescribeTable("recognizes answers",
		func(reply string, expected bool) {
			Expect(matcher.IsReply(question, reply)).To(Equal(expected))
		},
		Entry("shares a keyword", "minha energia ta otima", true),
		Entry("keyword with accents", "As JANELAS de 16h são tranquilas", true),
		Entry("opens with yes", "sim, tranquilo", true),
		Entry("opens with an opinion", "acho que melhorou", true),
		Entry("opens with personal experience", "no meu caso foi dificil", true),
		Entry("laughter", "kkkkk", false),
		Entry("unrelated chatter", "bom dia gente", false),
		Entry("only stopwords shared", "como assim durante", false),
		Entry("empty", "   ", false),
	)

	It("reads openers and stopwords from the policy", func() {
		p := facilitator.DefaultPolicy()
		p.Reply.Openers = []string{"respondendo"}
		p.Reply.Stopwords = []string{"energia"}
		m := facilitator.NewKeywordReplyMatcher(p)

		Expect(m.IsReply(question, "sim, tranquilo")).To(BeFalse())
		Expect(m.IsReply(question, "minha energia ta otima")).To(BeFalse())
		Expect(m.IsReply(question, "respondendo: tudo bem")).To(BeTrue())
		Expect(m.IsReply(question, "o jejum ta tranquilo")).To(BeTrue())
	})
})
