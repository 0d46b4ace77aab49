package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mementolabs/memento/internal/ai"
	"github.com/mementolabs/memento/internal/memory"
	"github.com/mementolabs/memento/internal/tools"
)

// recordingStore implements memory.GraphStore for bridge lifecycle tests.
type recordingStore struct {
	mu       sync.Mutex
	episodes []memory.Episode
	closed   int
}

func (s *recordingStore) EnsureSchema(ctx context.Context) error { return nil }

func (s *recordingStore) AddEpisode(ctx context.Context, ep memory.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes = append(s.episodes, ep)
	return nil
}

func (s *recordingStore) Search(ctx context.Context, query, groupID string, limit int) ([]memory.SearchResult, error) {
	return nil, nil
}

func (s *recordingStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingStore) snapshot() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.episodes), s.closed
}

func newBridgeUnderTest(provider ai.Provider, gw *memory.Gateway) *Bridge {
	var mem Memory
	if gw != nil {
		mem = gw
	}
	a := New(provider, tools.NewRegistry(), mem, nil, testOptions())
	return NewBridge(a, gw)
}

func TestBridgeBlockingFacade(t *testing.T) {
	provider := &fakeProvider{responses: []*ai.ChatResponse{{Content: "synchronous answer"}}}
	b := newBridgeUnderTest(provider, nil)
	defer b.Close()

	got := b.ProcessMessage("hello")
	assert.Equal(t, "synchronous answer", got)
	assert.Equal(t, 2, b.Agent().History().Len())
}

func TestBridgeSubmitRunsTask(t *testing.T) {
	b := newBridgeUnderTest(&fakeProvider{}, nil)
	defer b.Close()

	done := make(chan struct{})
	queued := b.Submit("test-task", func(ctx context.Context) { close(done) })
	assert.True(t, queued)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued task never ran")
	}
}

func TestBridgeSubmitAfterCloseRunsDetached(t *testing.T) {
	b := newBridgeUnderTest(&fakeProvider{}, nil)
	b.Close()

	done := make(chan struct{})
	queued := b.Submit("late-task", func(ctx context.Context) { close(done) })
	assert.False(t, queued, "closed bridge falls back to detached execution")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("detached task never ran")
	}
}

func TestBridgeCloseDrainsWritesBeforeGateway(t *testing.T) {
	store := &recordingStore{}
	gw := memory.NewGateway(store)
	provider := &fakeProvider{responses: []*ai.ChatResponse{{Content: "remembered"}}}
	b := newBridgeUnderTest(provider, gw)

	got := b.ProcessMessage("my cat is named Luna")
	require.Equal(t, "remembered", got)

	b.Close()

	episodes, closed := store.snapshot()
	assert.Equal(t, 1, episodes, "episode write drained before shutdown")
	assert.Equal(t, 1, closed, "gateway closed exactly once")
}

func TestBridgeCloseIdempotent(t *testing.T) {
	store := &recordingStore{}
	gw := memory.NewGateway(store)
	b := newBridgeUnderTest(&fakeProvider{}, gw)

	b.Close()
	b.Close()

	_, closed := store.snapshot()
	assert.Equal(t, 1, closed)
}

func TestBridgeClearHistoryAndSwitchUser(t *testing.T) {
	provider := &fakeProvider{}
	b := newBridgeUnderTest(provider, nil)
	defer b.Close()

	b.ProcessMessage("first")
	require.NotZero(t, b.Agent().History().Len())

	b.ClearHistory()
	assert.Zero(t, b.Agent().History().Len())

	b.ProcessMessage("second")
	b.SwitchUser("bob")
	assert.Equal(t, "bob", b.Agent().GroupID())
	assert.Zero(t, b.Agent().History().Len())
}
