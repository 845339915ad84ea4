package arangodb_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/common/arangodb"
)

var _ = Describe("Config", func() {
	DescribeTable("Validate",
		func(cfg arangodb.Config, msg string) {
			err := cfg.Validate()
			if msg == "" {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("complete", arangodb.Config{URL: "http://localhost:8529", Username: "root", Database: "nfc"}, ""),
		Entry("missing url", arangodb.Config{Username: "root", Database: "nfc"}, "URL"),
		Entry("missing username", arangodb.Config{URL: "http://localhost:8529", Database: "nfc"}, "username"),
		Entry("missing database", arangodb.Config{URL: "http://localhost:8529", Username: "root"}, "database"),
	)

	It("refuses to build a client from an invalid config", func() {
		_, err := arangodb.New(context.Background(), arangodb.Config{})
		Expect(err).To(MatchError(ContainSubstring("arangodb config")))
	})
})

var _ = Describe("article documents", func() {
	articles := []arangodb.Article{
		{Key: "jejum", Title: "Jejum", URL: "/blog/jejum", Topics: []string{"jejum", "protocolo"}},
		{Key: "deficit", Title: "Deficit", URL: "/blog/deficit", Topics: []string{"deficit", "protocolo"}},
	}

	It("creates one topic document per distinct topic", func() {
		articleDocs, topicDocs, edgeDocs := arangodb.ArticleDocuments(articles)
		Expect(articleDocs).To(HaveLen(2))
		Expect(topicDocs).To(HaveLen(3))
		Expect(edgeDocs).To(HaveLen(4))
	})

	It("points covers edges from articles to topics", func() {
		_, _, edgeDocs := arangodb.ArticleDocuments(articles[:1])
		Expect(edgeDocs[0]["_from"]).To(Equal("articles/" + arangodb.MakeKey("jejum")))
		Expect(edgeDocs[0]["_to"]).To(Equal("topics/" + arangodb.MakeKey("jejum")))
	})

	It("derives stable keys", func() {
		Expect(arangodb.MakeKey("jejum")).To(Equal(arangodb.MakeKey("jejum")))
		Expect(arangodb.MakeKey("jejum")).To(HaveLen(16))
		Expect(arangodb.MakeKey("jejum")).NotTo(Equal(arangodb.MakeKey("deficit")))
	})
})
