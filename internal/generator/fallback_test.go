package generator_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/generator"
	"nfc.app/facilitator/internal/model"
)

type stubGenerator struct {
	out   facilitator.Generated
	err   error
	calls int
}

func (s *stubGenerator) Generate(context.Context, facilitator.GenerationRequest) (facilitator.Generated, error) {
	s.calls++
	return s.out, s.err
}

var _ = Describe("Fallback", func() {
	ctx := context.Background()
	req := request(model.InterventionQuestion, "oi")

	It("returns the first successful result", func() {
		primary := &stubGenerator{out: facilitator.Generated{Body: "llm", FollowUpQuestion: "q?"}}
		secondary := &stubGenerator{out: facilitator.Generated{Body: "template", FollowUpQuestion: "q?"}}

		out, err := generator.NewFallback(primary, secondary).Generate(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Body).To(Equal("llm"))
		Expect(secondary.calls).To(BeZero())
	})

	It("moves on after an error", func() {
		primary := &stubGenerator{err: errors.New("timeout")}
		secondary := &stubGenerator{out: facilitator.Generated{Body: "template", FollowUpQuestion: "q?"}}

		out, err := generator.NewFallback(primary, secondary).Generate(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Body).To(Equal("template"))
	})

	It("moves on after content without a follow-up question", func() {
		primary := &stubGenerator{out: facilitator.Generated{Body: "llm"}}
		secondary := &stubGenerator{out: facilitator.Generated{Body: "template", FollowUpQuestion: "q?"}}

		out, err := generator.NewFallback(primary, secondary).Generate(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Body).To(Equal("template"))
	})

	It("joins every failure", func() {
		boom := errors.New("boom")
		_, err := generator.NewFallback(
			&stubGenerator{err: boom},
			&stubGenerator{out: facilitator.Generated{FollowUpQuestion: "q?"}},
		).Generate(ctx, req)
		Expect(err).To(MatchError(boom))
		Expect(err).To(MatchError(facilitator.ErrEmptyBody))
	})

	It("fails without generators", func() {
		_, err := generator.NewFallback().Generate(ctx, req)
		Expect(err).To(HaveOccurred())
	})
})
