package arangodb

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
)

var ErrNotFound = errors.New("document not found")

type Client interface {
	// Setup operations
	EnsureDatabase(ctx context.Context) error
	EnsureCollections(ctx context.Context) error
	EnsureGraph(ctx context.Context) error

	// Write operations (for catalog ingestion)
	IngestArticles(ctx context.Context, articles []Article) error
	TruncateCollections(ctx context.Context) error

	// Read operations (for article bridging)
	FindArticles(ctx context.Context, topics []string, limit int) ([]ArticleMatch, error)

	// Utility
	Close() error
}

type Config struct {
	URL      string
	Username string
	Password string
	Database string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("arangodb URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("arangodb username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("arangodb database name is required")
	}
	return nil
}

type client struct {
	conn         connection.Connection
	arangoClient arangodb.Client
	db           arangodb.Database
	cfg          Config
}

func New(ctx context.Context, cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arangodb config: %w", err)
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))

	auth := connection.NewBasicAuth(cfg.Username, cfg.Password)
	if err := conn.SetAuthentication(auth); err != nil {
		return nil, fmt.Errorf("arangodb auth: %w", err)
	}

	c := &client{
		conn:         conn,
		arangoClient: arangodb.NewClient(conn),
		cfg:          cfg,
	}

	return c, nil
}

func (c *client) Close() error {
	return nil
}

func (c *client) EnsureDatabase(ctx context.Context) error {
	start := time.Now()

	exists, err := c.arangoClient.DatabaseExists(ctx, c.cfg.Database)
	if err != nil {
		return fmt.Errorf("check database exists: %w", err)
	}

	if !exists {
		_, err = c.arangoClient.CreateDatabase(ctx, c.cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		slog.InfoContext(ctx, "arangodb database created",
			"database", c.cfg.Database,
			"duration_ms", time.Since(start).Milliseconds())
	}

	db, err := c.arangoClient.GetDatabase(ctx, c.cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("get database: %w", err)
	}
	c.db = db

	return nil
}

func (c *client) EnsureCollections(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized, call EnsureDatabase first")
	}

	for _, name := range nodeCollections {
		if err := c.ensureCollection(ctx, name, false); err != nil {
			return err
		}
	}

	for _, name := range edgeCollections {
		if err := c.ensureCollection(ctx, name, true); err != nil {
			return err
		}
	}

	return nil
}

func (c *client) ensureCollection(ctx context.Context, name string, isEdge bool) error {
	exists, err := c.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s exists: %w", name, err)
	}
	if exists {
		return nil
	}

	colType := arangodb.CollectionTypeDocument
	if isEdge {
		colType = arangodb.CollectionTypeEdge
	}
	props := &arangodb.CreateCollectionPropertiesV2{Type: &colType}

	if _, err = c.db.CreateCollectionV2(ctx, name, props); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	slog.InfoContext(ctx, "arangodb collection created",
		"collection", name,
		"is_edge", isEdge)

	return nil
}

func (c *client) EnsureGraph(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized, call EnsureDatabase first")
	}

	exists, err := c.db.GraphExists(ctx, graphName)
	if err != nil {
		return fmt.Errorf("check graph exists: %w", err)
	}
	if exists {
		return nil
	}

	graphDef := &arangodb.GraphDefinition{
		Name: graphName,
		EdgeDefinitions: []arangodb.EdgeDefinition{
			{Collection: coversCollection, From: []string{articlesCollection}, To: []string{topicsCollection}},
		},
	}

	if _, err = c.db.CreateGraph(ctx, graphName, graphDef, nil); err != nil {
		return fmt.Errorf("create graph: %w", err)
	}

	slog.InfoContext(ctx, "arangodb graph created", "graph", graphName)
	return nil
}

func (c *client) TruncateCollections(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}

	start := time.Now()
	all := append(append([]string{}, nodeCollections...), edgeCollections...)

	for _, name := range all {
		col, err := c.db.GetCollection(ctx, name, nil)
		if err != nil {
			return fmt.Errorf("get collection %s: %w", name, err)
		}
		if err := col.Truncate(ctx); err != nil {
			return fmt.Errorf("truncate collection %s: %w", name, err)
		}
	}

	slog.InfoContext(ctx, "arangodb collections truncated",
		"collections", len(all),
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// IngestArticles inserts articles, their topics and the covers edges between them.
// Duplicates (same _key) are silently ignored - existing documents are NOT updated.
// Use TruncateCollections before ingesting to rebuild the catalog.
func (c *client) IngestArticles(ctx context.Context, articles []Article) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if len(articles) == 0 {
		return nil
	}

	start := time.Now()
	articleDocs, topicDocs, edgeDocs := articleDocuments(articles)

	if err := c.createDocuments(ctx, articlesCollection, articleDocs); err != nil {
		return err
	}
	if err := c.createDocuments(ctx, topicsCollection, topicDocs); err != nil {
		return err
	}
	if err := c.createDocuments(ctx, coversCollection, edgeDocs); err != nil {
		return err
	}

	slog.InfoContext(ctx, "arangodb articles ingested",
		"articles", len(articleDocs),
		"topics", len(topicDocs),
		"edges", len(edgeDocs),
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

func (c *client) createDocuments(ctx context.Context, collection string, docs []map[string]any) error {
	if len(docs) == 0 {
		return nil
	}

	col, err := c.db.GetCollection(ctx, collection, nil)
	if err != nil {
		return fmt.Errorf("get collection %s: %w", collection, err)
	}

	reader, err := col.CreateDocuments(ctx, docs)
	if err != nil {
		return fmt.Errorf("create %s documents: %w", collection, err)
	}

	// Consume all responses (ignoring errors for duplicate keys)
	for {
		if _, readErr := reader.Read(); readErr != nil {
			break
		}
	}
	return nil
}

const findArticlesQuery = `
	FOR t IN topics
		FILTER t.name IN @topics
		FOR a IN 1..1 INBOUND t GRAPH "knowledge"
			OPTIONS { edgeCollections: ["covers"] }
			COLLECT article = a WITH COUNT INTO hits
			SORT hits DESC, article.key ASC
			LIMIT @limit
			RETURN {
				key: article.key,
				title: article.title,
				url: article.url,
				summary: article.summary,
				topics: article.topics,
				hits: hits
			}
`

// FindArticles returns the articles covering the most of topics, best first.
// Topics must already be normalized the way they were ingested.
func (c *client) FindArticles(ctx context.Context, topics []string, limit int) ([]ArticleMatch, error) {
	if c.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if len(topics) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 1
	}

	start := time.Now()

	cursor, err := c.db.Query(ctx, findArticlesQuery, &arangodb.QueryOptions{
		BindVars: map[string]any{
			"topics": topics,
			"limit":  limit,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer cursor.Close()

	var results []ArticleMatch
	for cursor.HasMore() {
		var match ArticleMatch
		if _, err := cursor.ReadDocument(ctx, &match); err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		if match.Key == "" {
			continue
		}
		results = append(results, match)
	}

	slog.DebugContext(ctx, "arangodb article lookup completed",
		"topics", topics,
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds())

	return results, nil
}

// articleDocuments flattens articles into article, topic and covers edge documents.
// Topics shared by several articles produce a single topic document.
func articleDocuments(articles []Article) (articleDocs, topicDocs, edgeDocs []map[string]any) {
	seenTopics := make(map[string]bool)
	for _, a := range articles {
		articleKey := makeKey(a.Key)
		articleDocs = append(articleDocs, map[string]any{
			"_key":    articleKey,
			"key":     a.Key,
			"title":   a.Title,
			"url":     a.URL,
			"summary": a.Summary,
			"topics":  a.Topics,
		})

		for _, topic := range a.Topics {
			topicKey := makeKey(topic)
			if !seenTopics[topic] {
				seenTopics[topic] = true
				topicDocs = append(topicDocs, map[string]any{
					"_key": topicKey,
					"name": topic,
				})
			}
			edgeDocs = append(edgeDocs, map[string]any{
				"_key":  makeEdgeKey(a.Key, topic),
				"_from": fmt.Sprintf("%s/%s", articlesCollection, articleKey),
				"_to":   fmt.Sprintf("%s/%s", topicsCollection, topicKey),
			})
		}
	}
	return articleDocs, topicDocs, edgeDocs
}

func makeKey(name string) string {
	hash := md5.Sum([]byte(name))
	return hex.EncodeToString(hash[:])[:16]
}

func makeEdgeKey(from, to string) string {
	combined := from + "->" + to
	hash := md5.Sum([]byte(combined))
	return hex.EncodeToString(hash[:])[:16]
}
