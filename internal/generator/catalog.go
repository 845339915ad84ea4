package generator

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"nfc.app/facilitator/common/arangodb"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/model"
)

//go:embed articles.yaml
var defaultArticlesYAML []byte

// DefaultArticles returns the embedded blog catalog.
func DefaultArticles() []model.Article {
	articles, err := parseArticles(defaultArticlesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded articles: %v", err))
	}
	return articles
}

// LoadArticles reads an article catalog from path. An empty path returns the defaults.
func LoadArticles(path string) ([]model.Article, error) {
	if path == "" {
		return DefaultArticles(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read articles %s: %w", path, err)
	}
	return parseArticles(data)
}

func parseArticles(data []byte) ([]model.Article, error) {
	var articles []model.Article
	if err := yaml.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("parse articles: %w", err)
	}
	for i := range articles {
		if articles[i].Key == "" || articles[i].URL == "" {
			return nil, fmt.Errorf("article %d needs a key and url", i)
		}
		for j, t := range articles[i].Topics {
			articles[i].Topics[j] = facilitator.NormalizeText(t)
		}
	}
	return articles, nil
}

// StaticCatalog finds articles in a fixed in-memory list.
type StaticCatalog struct {
	articles []model.Article
}

func NewStaticCatalog(articles []model.Article) *StaticCatalog {
	return &StaticCatalog{articles: articles}
}

// FindArticle returns the article covering the most topics. Ties go to the
// article listed first.
func (c *StaticCatalog) FindArticle(_ context.Context, topics []string) (*model.Article, error) {
	var best *model.Article
	bestHits := 0
	for i := range c.articles {
		hits := 0
		for _, topic := range topics {
			if covers(c.articles[i], facilitator.NormalizeText(topic)) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = &c.articles[i], hits
		}
	}
	if best == nil {
		return nil, nil
	}
	article := *best
	return &article, nil
}

func covers(a model.Article, topic string) bool {
	for _, t := range a.Topics {
		if t == topic || facilitator.ContainsPhrase(topic, t) {
			return true
		}
	}
	return false
}

// ArticleGraph is the part of the knowledge graph client the catalog reads.
type ArticleGraph interface {
	FindArticles(ctx context.Context, topics []string, limit int) ([]arangodb.ArticleMatch, error)
}

// GraphCatalog finds articles through topic vertices in the knowledge graph.
type GraphCatalog struct {
	graph ArticleGraph
}

func NewGraphCatalog(graph ArticleGraph) *GraphCatalog {
	return &GraphCatalog{graph: graph}
}

func (c *GraphCatalog) FindArticle(ctx context.Context, topics []string) (*model.Article, error) {
	terms := expandTopics(topics)
	if len(terms) == 0 {
		return nil, nil
	}

	matches, err := c.graph.FindArticles(ctx, terms, 1)
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	m := matches[0]
	return &model.Article{
		Key:     m.Key,
		Title:   m.Title,
		URL:     m.URL,
		Summary: m.Summary,
		Topics:  m.Topics,
	}, nil
}

// expandTopics normalizes topics and adds their single words, so
// "deficit calorico" also reaches articles tagged "deficit".
func expandTopics(topics []string) []string {
	var terms []string
	seen := make(map[string]bool)
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	for _, topic := range topics {
		n := facilitator.NormalizeText(topic)
		add(n)
		if strings.Contains(n, " ") {
			for _, w := range strings.Fields(n) {
				add(w)
			}
		}
	}
	return terms
}

// GraphArticles converts a catalog for ingestion into the knowledge graph.
func GraphArticles(articles []model.Article) []arangodb.Article {
	out := make([]arangodb.Article, len(articles))
	for i, a := range articles {
		out[i] = arangodb.Article{
			Key:     a.Key,
			Title:   a.Title,
			URL:     a.URL,
			Summary: a.Summary,
			Topics:  a.Topics,
		}
	}
	return out
}

var (
	_ facilitator.ArticleFinder = (*StaticCatalog)(nil)
	_ facilitator.ArticleFinder = (*GraphCatalog)(nil)
	_ facilitator.Generator     = (*TemplateGenerator)(nil)
	_ facilitator.Generator     = (*LLMGenerator)(nil)
	_ facilitator.Generator     = (*Fallback)(nil)
)
