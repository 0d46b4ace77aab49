// Package agent contains the conversation orchestrator: the per-turn decision
// logic combining memory retrieval, model invocation, tool execution,
// synthesis, history bookkeeping, and background episode writes — plus the
// execution bridge that lets a blocking caller drive it.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mementolabs/memento/internal/ai"
	"github.com/mementolabs/memento/internal/memory"
	"github.com/mementolabs/memento/internal/tools"
)

const (
	// msgEmptyInput is returned for empty or whitespace-only messages; no
	// model call or memory write happens.
	msgEmptyInput = "Please provide a message."

	// msgEmptySynthesis substitutes for an empty synthesis response so the
	// user never receives blank text after a tool round.
	msgEmptySynthesis = "I found some information but had trouble putting an answer together. Please try rephrasing your question."

	defaultTemperature = 0.7
)

// Memory is the slice of the memory gateway the orchestrator needs. It is nil
// when the memory subsystem is unavailable; every operation degrades.
type Memory interface {
	// GetContextForQuery returns a formatted context blob; it never fails.
	GetContextForQuery(ctx context.Context, query, groupID string, limit int) string

	// PersistEpisode writes an episode with retries, swallowing failures.
	PersistEpisode(ctx context.Context, ep memory.Episode)
}

// TaskRunner schedules fire-and-forget background work. Submit returns false
// when the task had to run detached from the queue (the work still happens).
type TaskRunner interface {
	Submit(name string, task func(ctx context.Context)) bool
}

// Options configures an Agent.
type Options struct {
	Name           string  // agent persona name
	GroupID        string  // user identifier, the memory isolation key
	HistoryLimit   int     // trailing turns per model request (default 10)
	ContextResults int     // memory results per context query (default 5)
	MaxTokens      int     // model output budget (default 1000)
	Temperature    float64 // sampling temperature (default 0.7)

	MemoryTimeout time.Duration // context retrieval budget (default 10s)
	ToolTimeout   time.Duration // per-tool-call budget (default 30s)

	Retry ai.RetryPolicy // zero value selects the default policy
}

func (o *Options) setDefaults() {
	if o.Name == "" {
		o.Name = "Memento"
	}
	if o.GroupID == "" {
		o.GroupID = "default_user"
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 10
	}
	if o.ContextResults <= 0 {
		o.ContextResults = 5
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1000
	}
	if o.Temperature == 0 {
		o.Temperature = defaultTemperature
	}
	if o.MemoryTimeout <= 0 {
		o.MemoryTimeout = 10 * time.Second
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = 30 * time.Second
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = ai.DefaultRetryPolicy()
	}
}

// Agent is the conversation orchestrator. It exclusively owns its History;
// one Agent serves one user at a time.
type Agent struct {
	provider ai.Provider
	tools    *tools.Registry
	memory   Memory     // nil when memory is unavailable
	runner   TaskRunner // nil runs background work in detached goroutines

	opts    Options
	history *History

	mu      sync.Mutex
	groupID string
}

// New creates an orchestrator. memory and runner may be nil.
func New(provider ai.Provider, registry *tools.Registry, mem Memory, runner TaskRunner, opts Options) *Agent {
	opts.setDefaults()
	return &Agent{
		provider: provider,
		tools:    registry,
		memory:   mem,
		runner:   runner,
		opts:     opts,
		history:  &History{},
		groupID:  opts.GroupID,
	}
}

// GroupID returns the current user identifier.
func (a *Agent) GroupID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.groupID
}

// SwitchUser switches the agent to a different user: history is cleared so
// one user's conversation never leaks into another's context.
func (a *Agent) SwitchUser(groupID string) {
	a.mu.Lock()
	a.groupID = groupID
	a.mu.Unlock()
	a.history.Clear()
}

// History exposes the conversation for inspection and clearing.
func (a *Agent) History() *History {
	return a.history
}

// ProcessMessage runs one full conversation turn and returns the response
// text. Failures never escape as errors: terminal model failures are returned
// as fixed user-safe messages, and everything else degrades.
func (a *Agent) ProcessMessage(ctx context.Context, userText string) string {
	if isBlank(userText) {
		return msgEmptyInput
	}
	groupID := a.GroupID()

	// Memory is best-effort: a slow or broken graph never blocks the turn
	// beyond its budget.
	memContext := ""
	if a.memory != nil {
		mctx, cancel := context.WithTimeout(ctx, a.opts.MemoryTimeout)
		memContext = a.memory.GetContextForQuery(mctx, userText, groupID, a.opts.ContextResults)
		cancel()
	}

	req := a.buildRequest(userText, memContext)
	resp, err := a.complete(ctx, req)
	if err != nil {
		slog.Error("model call failed after retries", "group_id", groupID, "error", err)
		return ai.UserMessage(err)
	}

	final := resp.Content
	if len(resp.ToolCalls) > 0 {
		final, err = a.runToolRound(ctx, req, resp)
		if err != nil {
			slog.Error("synthesis call failed after retries", "group_id", groupID, "error", err)
			return ai.UserMessage(err)
		}
	}
	if isBlank(final) {
		final = msgEmptySynthesis
	}

	// Transient failures are answered but kept out of long-term context, so
	// they can't pollute future turns or the knowledge graph.
	if ai.IsUserSafeMessage(final) {
		return final
	}

	a.history.Append(
		ai.Message{Role: "user", Content: userText},
		ai.Message{Role: "assistant", Content: final},
	)
	a.scheduleEpisodeWrite(userText, final, groupID)

	return final
}

// buildRequest assembles the first model request: persona + memory context +
// trailing history window + the new user turn + the tool schema.
func (a *Agent) buildRequest(userText, memContext string) *ai.ChatRequest {
	system := systemPrompt(a.opts.Name)
	if memContext != "" {
		system += "\n\nContext from your memories:\n" + memContext
	}

	messages := a.history.Window(a.opts.HistoryLimit)
	messages = append(messages, ai.Message{Role: "user", Content: userText})

	return &ai.ChatRequest{
		System:      system,
		Messages:    messages,
		Tools:       a.tools.Definitions(),
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	}
}

// runToolRound executes every requested tool concurrently, then issues the
// synthesis call with tool calling disabled.
func (a *Agent) runToolRound(ctx context.Context, req *ai.ChatRequest, resp *ai.ChatResponse) (string, error) {
	results := a.executeToolCalls(ctx, resp.ToolCalls)

	// Minimal synthesis request: system instructions, the user turn, the
	// assistant's tool-call intent, and every tool result.
	userTurn := req.Messages[len(req.Messages)-1]
	messages := []ai.Message{
		userTurn,
		{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls},
	}
	for i, tc := range resp.ToolCalls {
		messages = append(messages, ai.Message{
			Role:       "tool",
			Content:    results[i].Content,
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
		})
	}

	synthReq := &ai.ChatRequest{
		System:      req.System,
		Messages:    messages,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
		// Tools deliberately omitted: the model must answer in text.
	}

	synth, err := a.complete(ctx, synthReq)
	if err != nil {
		return "", err
	}
	return synth.Content, nil
}

// executeToolCalls runs all tool calls concurrently, each under its own
// timeout. The returned slice is index-aligned with calls; every call gets
// exactly one result, error-flavored when the tool failed or timed out.
func (a *Agent) executeToolCalls(ctx context.Context, calls []ai.ToolCall) []*tools.ToolResult {
	results := make([]*tools.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ai.ToolCall) {
			defer wg.Done()
			results[i] = a.executeWithTimeout(ctx, &call)
		}(i, call)
	}
	wg.Wait()

	return results
}

// executeWithTimeout bounds one tool call. A tool that ignores its context is
// abandoned at the deadline and its eventual result discarded.
func (a *Agent) executeWithTimeout(ctx context.Context, call *ai.ToolCall) *tools.ToolResult {
	tctx, cancel := context.WithTimeout(ctx, a.opts.ToolTimeout)
	defer cancel()

	done := make(chan *tools.ToolResult, 1)
	go func() {
		done <- a.tools.Execute(tctx, call)
	}()

	select {
	case result := <-done:
		return result
	case <-tctx.Done():
		slog.Warn("tool call timed out", "tool", call.Name, "tool_call_id", call.ID)
		return &tools.ToolResult{
			Content: fmt.Sprintf("Tool '%s' timed out", call.Name),
			IsError: true,
		}
	}
}

// scheduleEpisodeWrite submits the turn for background persistence. The
// caller gets its response without waiting for the write.
func (a *Agent) scheduleEpisodeWrite(userText, response, groupID string) {
	if a.memory == nil {
		return
	}

	now := time.Now()
	ep := memory.Episode{
		Name:              "conversation_" + now.Format(time.RFC3339),
		Body:              fmt.Sprintf("User: %s\nAgent: %s", userText, response),
		Source:            memory.SourceText,
		SourceDescription: fmt.Sprintf("Conversation turn between user and %s", a.opts.Name),
		ReferenceTime:     now,
		GroupID:           groupID,
	}

	task := func(ctx context.Context) {
		a.memory.PersistEpisode(ctx, ep)
	}

	if a.runner != nil {
		a.runner.Submit("persist-episode", task)
		return
	}
	// No runner configured: fire and forget on a detached goroutine.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		task(ctx)
	}()
}

// complete invokes the model under the retry policy.
func (a *Agent) complete(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error) {
	var resp *ai.ChatResponse
	err := a.opts.Retry.Do(ctx, "chat_completion", func(ctx context.Context) error {
		r, err := a.provider.Complete(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
