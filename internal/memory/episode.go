// Package memory provides the gateway mediating all reads and writes to the
// temporal knowledge-graph service. The graph engine itself (extraction,
// ranking) lives behind the GraphStore interface; this package owns episode
// shaping, context formatting, degradation, and write retries.
package memory

import (
	"context"
	"time"
)

// SourceKind identifies the format of an episode body.
type SourceKind string

const (
	SourceText     SourceKind = "text"
	SourceJSON     SourceKind = "json"
	SourceMarkdown SourceKind = "markdown"
)

// normalize maps loose spellings onto the service's accepted vocabulary.
// Anything unrecognized is stored as plain text.
func (k SourceKind) normalize() SourceKind {
	switch k {
	case SourceJSON:
		return SourceJSON
	case SourceMarkdown, "md":
		return SourceMarkdown
	default:
		return SourceText
	}
}

// Episode is one persisted memory unit, typically a completed conversation
// turn. GroupID is the sole isolation boundary between users' memories.
type Episode struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Body              string     `json:"body"`
	Source            SourceKind `json:"source"`
	SourceDescription string     `json:"source_description"`
	ReferenceTime     time.Time  `json:"reference_time"`
	GroupID           string     `json:"group_id"`
}

// SearchResult is one ranked hit from the knowledge graph.
type SearchResult struct {
	Name          string    `json:"name"`
	Content       string    `json:"content"`
	Score         float64   `json:"score"`
	GroupID       string    `json:"group_id"`
	ReferenceTime time.Time `json:"reference_time"`
}

// GraphStore is the knowledge-graph service boundary. Implementations must
// scope every read and write to the episode's group ID.
type GraphStore interface {
	// EnsureSchema establishes indexes required before first use.
	EnsureSchema(ctx context.Context) error

	// AddEpisode persists one episode.
	AddEpisode(ctx context.Context, ep Episode) error

	// Search returns ranked results for query, restricted to groupID.
	Search(ctx context.Context, query, groupID string, limit int) ([]SearchResult, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
