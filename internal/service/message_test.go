package service_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/queue"
	"nfc.app/facilitator/internal/service"
)

var _ = Describe("MessageService", func() {
	var (
		ctx       context.Context
		clock     *fixedClock
		messages  *mockMessageStore
		locker    *mockLocker
		replies   *mockReplyRecorder
		cadence   *mockCadenceRecorder
		decider   *mockDecider
		producer  *mockProducer
		published []string
		resolved  []string
		svc       service.MessageService
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = &fixedClock{now: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)}
		messages = &mockMessageStore{}
		locker = &mockLocker{}
		replies = &mockReplyRecorder{}
		cadence = &mockCadenceRecorder{}
		decider = &mockDecider{}
		producer = &mockProducer{}
		published = nil
		resolved = nil

		settings := facilitator.NewSettings(config.DefaultFacilitator())
		svc = service.NewMessageService(messages, locker, replies, cadence, decider, producer, settings, clock,
			service.OnPublish(func(_ context.Context, communityID string) { published = append(published, communityID) }),
			service.OnFollowUpResolved(func(_ context.Context, communityID string) { resolved = append(resolved, communityID) }))
	})

	intervene := func(context.Context, string, string, model.Message) facilitator.Decision {
		return facilitator.Decision{
			Intervene:    true,
			Type:         model.InterventionQuestion,
			Pattern:      model.PatternRecurringQuestion,
			Content:      "Boa pergunta.\n-> O que voces ja tentaram?",
			Intervention: &model.Intervention{ID: 77},
		}
	}

	DescribeTable("rejects invalid messages",
		func(communityID, authorID, content string) {
			_, err := svc.Post(ctx, communityID, authorID, content)
			Expect(err).To(MatchError(service.ErrInvalidMessage))
			Expect(messages.appended).To(BeEmpty())
			Expect(locker.keys).To(BeEmpty())
		},
		Entry("missing community", "", "u1", "oi"),
		Entry("missing author", "c1", " ", "oi"),
		Entry("reserved persona author", "c1", "ia", "oi"),
		Entry("blank content", "c1", "u1", "   \n"),
		Entry("content too long", "c1", "u1", strings.Repeat("a", service.MaxMessageLength+1)),
	)

	It("stores the message and reports a silent decision", func() {
		replies.recordFn = func(context.Context, string, string, model.Message) (facilitator.FollowUpOutcome, error) {
			return facilitator.FollowUpAnswered, nil
		}

		result, err := svc.Post(ctx, "c1", "u1", "  bom dia  ")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Message.Content).To(Equal("bom dia"))
		Expect(result.Message.CreatedAt).To(Equal(clock.now))
		Expect(result.Message.ID).NotTo(BeZero())
		Expect(result.FollowUp).To(Equal(facilitator.FollowUpAnswered))
		Expect(result.Decision.Reason).To(Equal(facilitator.ReasonCadence))
		Expect(result.AIMessage).To(BeNil())
		Expect(messages.appended).To(HaveLen(1))
		Expect(producer.events).To(BeEmpty())
	})

	DescribeTable("notifies when a follow-up is resolved",
		func(outcome facilitator.FollowUpOutcome, notified bool) {
			replies.recordFn = func(context.Context, string, string, model.Message) (facilitator.FollowUpOutcome, error) {
				return outcome, nil
			}

			_, err := svc.Post(ctx, "c1", "u1", "oi")
			Expect(err).NotTo(HaveOccurred())
			if notified {
				Expect(resolved).To(Equal([]string{"c1"}))
			} else {
				Expect(resolved).To(BeEmpty())
			}
			Expect(published).To(BeEmpty())
		},
		Entry("answered", facilitator.FollowUpAnswered, true),
		Entry("ignored", facilitator.FollowUpIgnored, true),
		Entry("still pending", facilitator.FollowUpPending, false),
		Entry("no follow-up", facilitator.FollowUpNone, false),
	)

	It("holds the community lock for the whole flow", func() {
		decider.decideFn = func(context.Context, string, string, model.Message) facilitator.Decision {
			Expect(locker.unlocked).To(BeZero())
			return facilitator.Suppressed(facilitator.ReasonCooldown)
		}

		_, err := svc.Post(ctx, "c1", "u1", "oi")
		Expect(err).NotTo(HaveOccurred())
		Expect(locker.keys).To(Equal([]string{"community:c1"}))
		Expect(locker.unlocked).To(Equal(1))
	})

	It("resolves follow-ups and counts cadence before deciding", func() {
		var order []string
		replies.recordFn = func(context.Context, string, string, model.Message) (facilitator.FollowUpOutcome, error) {
			order = append(order, "follow-up")
			return facilitator.FollowUpNone, nil
		}
		cadence.recordFn = func(_ context.Context, _ string, at time.Time) error {
			Expect(at).To(Equal(clock.now))
			order = append(order, "cadence")
			return nil
		}
		decider.decideFn = func(context.Context, string, string, model.Message) facilitator.Decision {
			order = append(order, "decide")
			return facilitator.Suppressed(facilitator.ReasonProbability)
		}

		_, err := svc.Post(ctx, "c1", "u1", "oi")
		Expect(err).NotTo(HaveOccurred())
		Expect(order).To(Equal([]string{"follow-up", "cadence", "decide"}))
	})

	It("publishes the AI message when the engine intervenes", func() {
		decider.decideFn = intervene

		result, err := svc.Post(ctx, "c1", "u1", "como faco isso?")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision.Intervene).To(BeTrue())
		Expect(result.AIMessage).NotTo(BeNil())
		Expect(result.AIMessage.AuthorID).To(Equal(config.DefaultAIPersonaID))
		Expect(result.AIMessage.Content).To(Equal("Boa pergunta.\n-> O que voces ja tentaram?"))
		Expect(messages.appended).To(HaveLen(2))
		Expect(cadence.calls).To(Equal(1))

		Expect(producer.events).To(HaveLen(1))
		evt := producer.events[0]
		Expect(evt.InterventionID).To(Equal(int64(77)))
		Expect(evt.MessageID).To(Equal(result.AIMessage.ID))
		Expect(evt.TriggerMessageID).To(Equal(result.Message.ID))
		Expect(evt.Type).To(Equal(model.InterventionQuestion))
		Expect(published).To(Equal([]string{"c1"}))
	})

	It("tags the event with the caller's trace id", func() {
		decider.decideFn = intervene

		_, err := svc.Post(queue.WithTraceID(ctx, "trace-123"), "c1", "u1", "como faco isso?")
		Expect(err).NotTo(HaveOccurred())
		Expect(producer.events).To(HaveLen(1))
		Expect(producer.events[0].TraceID).NotTo(BeNil())
		Expect(*producer.events[0].TraceID).To(Equal("trace-123"))
	})

	It("fails when the message cannot be stored", func() {
		messages.appendFn = func(context.Context, *model.Message) error { return errBoom }

		_, err := svc.Post(ctx, "c1", "u1", "oi")
		Expect(err).To(MatchError(errBoom))
		Expect(decider.calls).To(BeZero())
		Expect(locker.unlocked).To(Equal(1))
	})

	It("fails when the lock cannot be taken", func() {
		locker.lockFn = func(context.Context, string) (func(), error) { return nil, context.DeadlineExceeded }

		_, err := svc.Post(ctx, "c1", "u1", "oi")
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(messages.appended).To(BeEmpty())
	})

	It("still decides when the follow-up cannot be resolved", func() {
		replies.recordFn = func(context.Context, string, string, model.Message) (facilitator.FollowUpOutcome, error) {
			return facilitator.FollowUpNone, errBoom
		}

		result, err := svc.Post(ctx, "c1", "u1", "oi")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.FollowUp).To(Equal(facilitator.FollowUpNone))
		Expect(decider.calls).To(Equal(1))
	})

	It("stays silent when cadence cannot be recorded", func() {
		cadence.recordFn = func(context.Context, string, time.Time) error { return errBoom }

		result, err := svc.Post(ctx, "c1", "u1", "oi")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision.Reason).To(Equal(facilitator.ReasonStoreError))
		Expect(decider.calls).To(BeZero())
	})

	It("keeps the AI message when the event cannot be published", func() {
		decider.decideFn = intervene
		producer.publishFn = func(context.Context, queue.InterventionEvent) error { return errBoom }

		result, err := svc.Post(ctx, "c1", "u1", "como faco isso?")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.AIMessage).NotTo(BeNil())
	})

	It("reports no AI message when it cannot be stored", func() {
		decider.decideFn = intervene
		messages.appendFn = func(_ context.Context, m *model.Message) error {
			if m.AuthorID == config.DefaultAIPersonaID {
				return errBoom
			}
			return nil
		}

		result, err := svc.Post(ctx, "c1", "u1", "como faco isso?")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision.Intervene).To(BeTrue())
		Expect(result.AIMessage).To(BeNil())
		Expect(producer.events).To(BeEmpty())
	})
})
