package generator_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/common/arangodb"
	"nfc.app/facilitator/internal/generator"
)

type mockArticleGraph struct {
	findFn func(ctx context.Context, topics []string, limit int) ([]arangodb.ArticleMatch, error)
	calls  int
	terms  []string
}

func (m *mockArticleGraph) FindArticles(ctx context.Context, topics []string, limit int) ([]arangodb.ArticleMatch, error) {
	m.calls++
	m.terms = topics
	if m.findFn != nil {
		return m.findFn(ctx, topics, limit)
	}
	return nil, nil
}

var _ = Describe("StaticCatalog", func() {
	ctx := context.Background()
	catalog := generator.NewStaticCatalog(generator.DefaultArticles())

	It("loads the embedded catalog with normalized topics", func() {
		articles := generator.DefaultArticles()
		Expect(articles).To(HaveLen(8))
		Expect(articles[3].Topics).To(ContainElement("16 8"))
	})

	DescribeTable("FindArticle",
		func(topics []string, expectedKey string) {
			article, err := catalog.FindArticle(ctx, topics)
			Expect(err).NotTo(HaveOccurred())
			if expectedKey == "" {
				Expect(article).To(BeNil())
				return
			}
			Expect(article).NotTo(BeNil())
			Expect(article.Key).To(Equal(expectedKey))
		},
		Entry("multi-word topic", []string{"deficit calorico"}, "deficit-calorico-como-funciona"),
		Entry("accents are folded", []string{"Hormônio"}, "tireoide-emagrecimento"),
		Entry("most covered topics win", []string{"lipedema", "hormonio", "metabolismo"}, "tireoide-emagrecimento"),
		Entry("single topic", []string{"lipedema"}, "lipedema-guia-completo"),
		Entry("myth phrase", []string{"carboidrato engorda"}, "deficit-calorico-como-funciona"),
		Entry("no match", []string{"astronomia"}, ""),
		Entry("no topics", nil, ""),
	)
})

var _ = Describe("GraphCatalog", func() {
	var (
		ctx   context.Context
		graph *mockArticleGraph
	)

	BeforeEach(func() {
		ctx = context.Background()
		graph = &mockArticleGraph{}
	})

	It("queries normalized topics and their words", func() {
		_, err := generator.NewGraphCatalog(graph).FindArticle(ctx, []string{"Déficit Calórico", "lipedema", "deficit"})
		Expect(err).NotTo(HaveOccurred())
		Expect(graph.terms).To(Equal([]string{"deficit calorico", "deficit", "calorico", "lipedema"}))
	})

	It("returns the best match", func() {
		graph.findFn = func(_ context.Context, _ []string, limit int) ([]arangodb.ArticleMatch, error) {
			Expect(limit).To(Equal(1))
			return []arangodb.ArticleMatch{{
				Article: arangodb.Article{Key: "lipedema-guia-completo", Title: "Lipedema", URL: "/blog/lipedema-guia-completo"},
				Hits:    1,
			}}, nil
		}

		article, err := generator.NewGraphCatalog(graph).FindArticle(ctx, []string{"lipedema"})
		Expect(err).NotTo(HaveOccurred())
		Expect(article.URL).To(Equal("/blog/lipedema-guia-completo"))
	})

	It("returns nil when nothing matches", func() {
		article, err := generator.NewGraphCatalog(graph).FindArticle(ctx, []string{"astronomia"})
		Expect(err).NotTo(HaveOccurred())
		Expect(article).To(BeNil())
	})

	It("skips the query without topics", func() {
		article, err := generator.NewGraphCatalog(graph).FindArticle(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(article).To(BeNil())
		Expect(graph.calls).To(BeZero())
	})

	It("wraps graph errors", func() {
		graph.findFn = func(context.Context, []string, int) ([]arangodb.ArticleMatch, error) {
			return nil, errors.New("unavailable")
		}
		_, err := generator.NewGraphCatalog(graph).FindArticle(ctx, []string{"lipedema"})
		Expect(err).To(MatchError(ContainSubstring("find articles")))
	})

	It("converts a catalog for ingestion", func() {
		articles := generator.GraphArticles(generator.DefaultArticles())
		Expect(articles).To(HaveLen(8))
		Expect(articles[0].Key).To(Equal("deficit-calorico-como-funciona"))
	})
})
