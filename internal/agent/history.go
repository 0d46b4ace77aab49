package agent

import (
	"sync"

	"github.com/mementolabs/memento/internal/ai"
)

// History holds the in-memory conversation for one user. The full history is
// retained for the session; only a trailing window is fed back to the model.
// The orchestrator is the single writer, but a mutex keeps concurrent
// inspection (CLI verbs) safe.
type History struct {
	mu    sync.Mutex
	turns []ai.Message
}

// Append adds turns to the history.
func (h *History) Append(turns ...ai.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
}

// Window returns a copy of the most recent n turns. n <= 0 returns everything.
func (h *History) Window(n int) []ai.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := 0
	if n > 0 && len(h.turns) > n {
		start = len(h.turns) - n
	}
	out := make([]ai.Message, len(h.turns)-start)
	copy(out, h.turns[start:])
	return out
}

// All returns a copy of the full history.
func (h *History) All() []ai.Message {
	return h.Window(0)
}

// Len returns the number of stored turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Clear discards all stored turns.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}
