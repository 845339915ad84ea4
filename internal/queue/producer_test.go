package queue_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/queue"
)

var _ = Describe("intervention events", func() {
	evt := queue.InterventionEvent{
		InterventionID:   10,
		MessageID:        11,
		TriggerMessageID: 9,
		CommunityID:      "c1",
		UserID:           "u1",
		Type:             model.InterventionQuestion,
		Pattern:          model.PatternFrustration,
	}

	It("flattens the event into stream fields", func() {
		fields := queue.EventFields(evt)
		Expect(fields).To(HaveKeyWithValue("event_type", queue.EventTypeInterventionPublished))
		Expect(fields).To(HaveKeyWithValue("intervention_id", int64(10)))
		Expect(fields).To(HaveKeyWithValue("intervention_type", "question"))
		Expect(fields).To(HaveKeyWithValue("pattern", "frustration"))
		Expect(fields).NotTo(HaveKey("trace_id"))
	})

	It("carries the trace id when present", func() {
		trace := "abc123"
		withTrace := evt
		withTrace.TraceID = &trace
		Expect(queue.EventFields(withTrace)).To(HaveKeyWithValue("trace_id", "abc123"))
	})

	It("drops events without redis", func() {
		var p queue.Producer = queue.NopProducer{}
		Expect(p.Publish(context.Background(), evt)).To(Succeed())
		Expect(p.Close()).To(Succeed())
	})
})
