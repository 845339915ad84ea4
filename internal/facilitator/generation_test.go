package facilitator_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/internal/facilitator"
)

var _ = Describe("ComposeContent", func() {
	DescribeTable("renders body and follow-up question",
		func(body, question, expected string) {
			_, content, err := facilitator.ComposeContent(facilitator.Generated{Body: body, FollowUpQuestion: question})
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal(expected))
		},
		Entry("already a question", "Resumo.", "Concordam?", "Resumo.\n-> Concordam?"),
		Entry("question mark appended", "Resumo.", "O que acham", "Resumo.\n-> O que acham?"),
		Entry("trailing punctuation replaced", "Resumo.", "Contem pra gente.", "Resumo.\n-> Contem pra gente?"),
		Entry("ellipsis replaced", "Resumo.", "E voces...", "Resumo.\n-> E voces?"),
		Entry("whitespace trimmed", "  Resumo. \n", "  Concordam? ", "Resumo.\n-> Concordam?"),
	)

	DescribeTable("rejects incomplete content",
		func(body, question string, expected error) {
			_, _, err := facilitator.ComposeContent(facilitator.Generated{Body: body, FollowUpQuestion: question})
			Expect(err).To(MatchError(expected))
		},
		Entry("no question", "Resumo.", "", facilitator.ErrEmptyFollowUp),
		Entry("blank question", "Resumo.", "   ", facilitator.ErrEmptyFollowUp),
		Entry("ellipsis only", "Resumo.", "...", facilitator.ErrEmptyFollowUp),
		Entry("exclamation only", "Resumo.", "!", facilitator.ErrEmptyFollowUp),
		Entry("bare question mark", "Resumo.", "?", facilitator.ErrEmptyFollowUp),
		Entry("no body", "", "Concordam?", facilitator.ErrEmptyBody),
	)
})
