package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mementolabs/memento/internal/memory"
)

const (
	backgroundQueueSize = 16
	taskTimeout         = time.Minute
	drainTimeout        = 30 * time.Second
)

type task struct {
	name string
	fn   func(ctx context.Context)
}

// Bridge wraps the async-native Agent for blocking callers. It owns exactly
// one background worker for its lifetime: fire-and-forget episode writes run
// there so ProcessMessage returns without waiting for persistence.
type Bridge struct {
	agent   *Agent
	gateway *memory.Gateway // nil when memory is unavailable

	mu     sync.RWMutex // guards tasks sends vs. close
	closed bool
	tasks  chan task

	worker   sync.WaitGroup
	detached sync.WaitGroup
	closeOne sync.Once
}

// NewBridge creates the bridge and starts its background worker. The gateway
// may be nil; Close then only stops the worker.
func NewBridge(a *Agent, gw *memory.Gateway) *Bridge {
	b := &Bridge{
		agent:   a,
		gateway: gw,
		tasks:   make(chan task, backgroundQueueSize),
	}
	a.runner = b

	b.worker.Add(1)
	go b.runWorker()
	return b
}

// Agent returns the wrapped orchestrator.
func (b *Bridge) Agent() *Agent {
	return b.agent
}

// ProcessMessage drives one full turn to completion and blocks until the
// response is ready. Background episode writes are excluded: they may
// complete after this returns.
func (b *Bridge) ProcessMessage(userText string) string {
	return b.agent.ProcessMessage(context.Background(), userText)
}

// ClearHistory discards the conversation history.
func (b *Bridge) ClearHistory() {
	b.agent.History().Clear()
}

// SwitchUser switches the wrapped agent to a different user.
func (b *Bridge) SwitchUser(groupID string) {
	b.agent.SwitchUser(groupID)
}

// Submit schedules background work on the worker. When the queue cannot take
// the task — the worker is saturated or the bridge is closing — the task runs
// on a detached goroutine instead of blocking or deadlocking the caller.
// Returns true when the task was queued.
func (b *Bridge) Submit(name string, fn func(ctx context.Context)) bool {
	if b.trySend(task{name: name, fn: fn}) {
		slog.Debug("background task queued", "task", name)
		return true
	}

	slog.Debug("background queue unavailable, running task detached", "task", name)
	b.detached.Add(1)
	go func() {
		defer b.detached.Done()
		b.run(task{name: name, fn: fn})
	}()
	return false
}

func (b *Bridge) trySend(t task) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	select {
	case b.tasks <- t:
		return true
	default:
		return false
	}
}

func (b *Bridge) runWorker() {
	defer b.worker.Done()
	for t := range b.tasks {
		b.run(t)
	}
}

func (b *Bridge) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()
	t.fn(ctx)
}

// Close drains background work, closes the memory gateway, then stops the
// worker. Each step is attempted even when an earlier one fails; errors are
// logged, never returned to the conversational surface. Safe to call more
// than once.
func (b *Bridge) Close() {
	b.closeOne.Do(func() {
		closeInline := false

		b.mu.Lock()
		b.closed = true
		// The gateway close rides the worker queue so it runs strictly after
		// every queued write.
		if b.gateway != nil {
			t := b.gatewayCloseTask()
			select {
			case b.tasks <- t:
			default:
				closeInline = true
			}
		}
		close(b.tasks)
		b.mu.Unlock()

		if !waitTimeout(&b.worker, drainTimeout) {
			slog.Warn("background worker did not drain in time")
		}
		if !waitTimeout(&b.detached, drainTimeout) {
			slog.Warn("detached background tasks did not finish in time")
		}
		if closeInline {
			b.run(b.gatewayCloseTask())
		}
	})
}

func (b *Bridge) gatewayCloseTask() task {
	return task{name: "close-gateway", fn: func(ctx context.Context) {
		if err := b.gateway.Close(ctx); err != nil {
			slog.Error("failed to close memory gateway", "error", err)
		}
	}}
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
