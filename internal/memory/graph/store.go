// Package graph implements the knowledge-graph store on Neo4j. Episodes are
// nodes; ranking is delegated to Neo4j's fulltext index, or to its vector
// index when an embedder is configured.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"

	"github.com/mementolabs/memento/internal/memory"
)

const (
	groupIndexName    = "episode_group_id"
	fulltextIndexName = "episode_content"
	vectorIndexName   = "episode_embedding"

	// vectorOverfetch widens vector queries before the group_id filter is
	// applied, since the index itself is not group-scoped.
	vectorOverfetch = 4
)

// Embedder computes vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Store is a Neo4j-backed episodic memory store.
type Store struct {
	driver   neo4j.Driver
	embedder Embedder // nil disables the vector index
}

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
}

// NewStore connects to Neo4j and verifies connectivity.
func NewStore(ctx context.Context, cfg Config, embedder Embedder) (*Store, error) {
	driver, err := neo4j.NewDriver(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", cfg.URI, err)
	}
	return &Store{driver: driver, embedder: embedder}, nil
}

// EnsureSchema creates the indexes episodes depend on. Statements are
// idempotent, so repeated startup is safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE INDEX %s IF NOT EXISTS FOR (e:Episode) ON (e.group_id)`, groupIndexName),
		fmt.Sprintf(`CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (e:Episode) ON EACH [e.name, e.body]`, fulltextIndexName),
	}
	if s.embedder != nil {
		// Index options don't accept parameters, so dimensions are inlined.
		statements = append(statements, fmt.Sprintf(
			"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (e:Episode) ON (e.embedding) "+
				"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
			vectorIndexName, s.embedder.Dimensions()))
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// AddEpisode persists one episode node. When an embedder is configured the
// body is embedded first; an embedding failure degrades to a plain store.
func (s *Store) AddEpisode(ctx context.Context, ep memory.Episode) error {
	params := episodeParams(ep)

	query := `
		MERGE (e:Episode {id: $id})
		SET e.name = $name,
			e.body = $body,
			e.source = $source,
			e.source_description = $source_description,
			e.reference_time = $reference_time,
			e.group_id = $group_id
	`

	if s.embedder != nil {
		vectors, err := s.embedder.Embed(ctx, []string{ep.Body})
		if err != nil || len(vectors) == 0 {
			slog.Warn("episode embedding failed, storing without vector", "error", err)
		} else {
			params["embedding"] = vectors[0]
			query += `
		SET e.embedding = $embedding`
		}
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if _, err := tx.Run(ctx, query, params); err != nil {
			return nil, fmt.Errorf("merge episode: %w", err)
		}
		return nil, nil
	})
	return err
}

// Search returns ranked episodes for query within groupID. Vector similarity
// is preferred when available; fulltext is the fallback path.
func (s *Store) Search(ctx context.Context, query, groupID string, limit int) ([]memory.SearchResult, error) {
	if s.embedder != nil {
		results, err := s.vectorSearch(ctx, query, groupID, limit)
		if err == nil {
			return results, nil
		}
		slog.Warn("vector search failed, falling back to fulltext", "error", err)
	}
	return s.fulltextSearch(ctx, query, groupID, limit)
}

func (s *Store) vectorSearch(ctx context.Context, query, groupID string, limit int) ([]memory.SearchResult, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: empty result")
	}

	cypher := fmt.Sprintf(`
		CALL db.index.vector.queryNodes('%s', $k, $embedding)
		YIELD node, score
		WHERE node.group_id = $group_id
		RETURN node, score
		ORDER BY score DESC
		LIMIT $limit
	`, vectorIndexName)

	return s.runSearch(ctx, cypher, map[string]any{
		"k":         limit * vectorOverfetch,
		"embedding": vectors[0],
		"group_id":  groupID,
		"limit":     limit,
	})
}

func (s *Store) fulltextSearch(ctx context.Context, query, groupID string, limit int) ([]memory.SearchResult, error) {
	lucene := sanitizeFulltextQuery(query)
	if lucene == "" {
		return nil, nil
	}

	cypher := fmt.Sprintf(`
		CALL db.index.fulltext.queryNodes('%s', $query)
		YIELD node, score
		WHERE node.group_id = $group_id
		RETURN node, score
		ORDER BY score DESC
		LIMIT $limit
	`, fulltextIndexName)

	return s.runSearch(ctx, cypher, map[string]any{
		"query":    lucene,
		"group_id": groupID,
		"limit":    limit,
	})
}

func (s *Store) runSearch(ctx context.Context, cypher string, params map[string]any) ([]memory.SearchResult, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		var results []memory.SearchResult
		for res.Next(ctx) {
			record := res.Record()
			nodeVal, _ := record.Get("node")
			node, ok := nodeVal.(neo4j.Node)
			if !ok {
				continue
			}
			score := 0.0
			if scoreVal, ok := record.Get("score"); ok {
				if f, ok := scoreVal.(float64); ok {
					score = f
				}
			}
			results = append(results, resultFromProps(node.Props, score))
		}
		return results, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]memory.SearchResult), nil
}

// Close releases the driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// episodeParams flattens an episode into Cypher parameters.
func episodeParams(ep memory.Episode) map[string]any {
	return map[string]any{
		"id":                 ep.ID,
		"name":               ep.Name,
		"body":               ep.Body,
		"source":             string(ep.Source),
		"source_description": ep.SourceDescription,
		"reference_time":     ep.ReferenceTime.UTC().Format(time.RFC3339),
		"group_id":           ep.GroupID,
	}
}

// resultFromProps converts node properties into a SearchResult.
func resultFromProps(props map[string]any, score float64) memory.SearchResult {
	r := memory.SearchResult{Score: score}
	if v, ok := props["name"].(string); ok {
		r.Name = v
	}
	if v, ok := props["body"].(string); ok {
		r.Content = v
	}
	if v, ok := props["group_id"].(string); ok {
		r.GroupID = v
	}
	if v, ok := props["reference_time"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			r.ReferenceTime = t
		}
	}
	return r
}

// sanitizeFulltextQuery strips Lucene operators from user text and ORs the
// remaining terms, so free-form questions can't break the fulltext parser.
func sanitizeFulltextQuery(query string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '+', '-', '&', '|', '!', '(', ')', '{', '}', '[', ']', '^', '"', '~', '*', '?', ':', '\\', '/':
			return ' '
		}
		return r
	}, query)

	terms := strings.Fields(cleaned)
	if len(terms) == 0 {
		return ""
	}
	return strings.Join(terms, " OR ")
}
