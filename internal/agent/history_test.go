package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mementolabs/memento/internal/ai"
)

func TestHistoryWindow(t *testing.T) {
	h := &History{}
	for i := 0; i < 6; i++ {
		h.Append(ai.Message{Role: "user", Content: fmt.Sprintf("m%d", i)})
	}

	got := h.Window(4)
	require.Len(t, got, 4)
	assert.Equal(t, "m2", got[0].Content)
	assert.Equal(t, "m5", got[3].Content)

	assert.Len(t, h.Window(0), 6, "non-positive n returns everything")
	assert.Len(t, h.Window(100), 6)
}

func TestHistoryWindowReturnsCopy(t *testing.T) {
	h := &History{}
	h.Append(ai.Message{Role: "user", Content: "original"})

	got := h.Window(0)
	got[0].Content = "mutated"

	assert.Equal(t, "original", h.All()[0].Content)
}

func TestHistoryClear(t *testing.T) {
	h := &History{}
	h.Append(ai.Message{Role: "user", Content: "a"}, ai.Message{Role: "assistant", Content: "b"})
	require.Equal(t, 2, h.Len())

	h.Clear()
	assert.Zero(t, h.Len())
	assert.Empty(t, h.All())
}
