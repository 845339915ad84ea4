package arangodb

// Article is a blog article document in the knowledge graph.
type Article struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

// ArticleMatch is an article found by topic lookup, with how many of the
// requested topics it covers.
type ArticleMatch struct {
	Article
	Hits int `json:"hits"`
}

const (
	graphName          = "knowledge"
	articlesCollection = "articles"
	topicsCollection   = "topics"
	coversCollection   = "covers"
)

var (
	nodeCollections = []string{articlesCollection, topicsCollection}
	edgeCollections = []string{coversCollection}
)
