package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// contextCharBudget caps the formatted memory context so old conversations
	// can't bloat the system prompt.
	contextCharBudget = 2000

	msgNoMemories    = "No relevant memories found."
	msgMemoriesError = "Error retrieving memories."
	contextHeading   = "Relevant memories:"
)

// Gateway is the façade over the knowledge-graph service. It owns the
// connection lifecycle and converts every underlying failure into a degraded
// result rather than an error visible to the conversation.
type Gateway struct {
	store GraphStore

	writeAttempts  int
	writeBaseDelay time.Duration

	mu          sync.Mutex
	initialized bool
	closed      bool
}

// NewGateway creates a gateway over the given graph store.
func NewGateway(store GraphStore) *Gateway {
	return &Gateway{
		store:          store,
		writeAttempts:  3,
		writeBaseDelay: time.Second,
	}
}

// Initialize establishes the graph connection's schema and indexes. It must
// be called before first use.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("memory gateway is closed")
	}
	if g.initialized {
		return nil
	}
	if err := g.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("initialize memory gateway: %w", err)
	}
	g.initialized = true
	return nil
}

// AddEpisode persists one episode, filling in defaults: a generated ID, a
// time-derived name, reference time "now", and a normalized source kind.
func (g *Gateway) AddEpisode(ctx context.Context, ep Episode) error {
	if ep.GroupID == "" {
		return fmt.Errorf("add episode: group id is required")
	}
	if ep.ID == "" {
		ep.ID = uuid.New().String()
	}
	if ep.ReferenceTime.IsZero() {
		ep.ReferenceTime = time.Now()
	}
	if ep.Name == "" {
		ep.Name = "conversation_" + ep.ReferenceTime.Format(time.RFC3339)
	}
	if ep.SourceDescription == "" {
		ep.SourceDescription = fmt.Sprintf("Episode from %s", ep.Source.normalize())
	}
	ep.Source = ep.Source.normalize()

	if err := g.store.AddEpisode(ctx, ep); err != nil {
		return fmt.Errorf("add episode %q: %w", ep.Name, err)
	}
	return nil
}

// PersistEpisode writes an episode with exponential backoff, logging and
// swallowing the final failure. A lost episode degrades memory quality but is
// never a user-facing fault; this is the entry point for background writes.
func (g *Gateway) PersistEpisode(ctx context.Context, ep Episode) {
	delay := g.writeBaseDelay
	var err error
	for attempt := 1; attempt <= g.writeAttempts; attempt++ {
		err = g.AddEpisode(ctx, ep)
		if err == nil {
			slog.Debug("episode persisted", "group_id", ep.GroupID, "attempt", attempt)
			return
		}
		if attempt == g.writeAttempts || ctx.Err() != nil {
			break
		}
		slog.Warn("episode write failed, backing off",
			"group_id", ep.GroupID, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
		delay *= 2
	}
	slog.Error("episode write abandoned after retries", "group_id", ep.GroupID, "error", err)
}

// Search queries the knowledge graph, restricted to groupID.
func (g *Gateway) Search(ctx context.Context, query, groupID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	results, err := g.store.Search(ctx, query, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	return results, nil
}

// GetContextForQuery returns a formatted context blob for injection into the
// model's system instructions. It never returns an error: failures yield a
// fixed error string, empty results a fixed no-results string.
func (g *Gateway) GetContextForQuery(ctx context.Context, query, groupID string, limit int) string {
	results, err := g.Search(ctx, query, groupID, limit)
	if err != nil {
		slog.Warn("memory context retrieval failed", "group_id", groupID, "error", err)
		return msgMemoriesError
	}
	if len(results) == 0 {
		return msgNoMemories
	}

	var sb strings.Builder
	sb.WriteString(contextHeading)
	for _, r := range results {
		line := "\n- " + bestText(r)
		if sb.Len()+len(line) > contextCharBudget {
			break
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// bestText extracts the most useful text field from a result: content, then
// name, then a raw rendering as fallback.
func bestText(r SearchResult) string {
	if s := strings.TrimSpace(r.Content); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.Name); s != "" {
		return s
	}
	return fmt.Sprintf("%+v", r)
}

// Close releases the graph connection. Safe to call multiple times and on a
// never-initialized gateway.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	if err := g.store.Close(ctx); err != nil {
		return fmt.Errorf("close memory gateway: %w", err)
	}
	return nil
}
