package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/mementolabs/memento/internal/agent"
	"github.com/mementolabs/memento/internal/ai"
	"github.com/mementolabs/memento/internal/config"
	"github.com/mementolabs/memento/internal/memory"
	"github.com/mementolabs/memento/internal/memory/graph"
	"github.com/mementolabs/memento/internal/session"
	"github.com/mementolabs/memento/internal/tools"
)

const startupTimeout = 15 * time.Second

// runChat wires the agent and either answers a one-shot prompt or runs the
// interactive loop.
func runChat(cfg *config.Config, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to initialize data directory: %w", err)
	}

	sessions, err := session.Open(cfg.DBPath())
	if err != nil {
		return err
	}
	defer sessions.Close()

	userID, err := resolveUser(sessions, len(args) == 0)
	if err != nil {
		return err
	}
	if err := sessions.Touch(userID); err != nil {
		return err
	}

	provider := ai.NewOpenAIProvider(ai.OpenAIOptions{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.ChatModel,
	})

	registry := tools.NewRegistry()
	if cfg.Search.APIKey != "" {
		registry.Register(tools.NewSearchTool(tools.SearchConfig{
			APIKey:     cfg.Search.APIKey,
			BaseURL:    cfg.Search.BaseURL,
			MaxResults: cfg.Search.MaxResults,
		}))
	} else {
		slog.Warn("TAVILY_API_KEY not set, web search disabled")
	}

	// The graph is best-effort at startup: an unreachable Neo4j degrades to a
	// memoryless session instead of refusing to start.
	gateway := openGateway(cfg)

	var mem agent.Memory
	if gateway != nil {
		mem = gateway
	}
	a := agent.New(provider, registry, mem, nil, agent.Options{
		Name:           cfg.Agent.Name,
		GroupID:        userID,
		HistoryLimit:   cfg.Agent.HistoryLimit,
		ContextResults: cfg.Agent.ContextResults,
		MaxTokens:      cfg.LLM.MaxTokens,
		MemoryTimeout:  cfg.Agent.MemoryTimeout,
		ToolTimeout:    cfg.Agent.ToolTimeout,
	})
	bridge := agent.NewBridge(a, gateway)
	defer bridge.Close()

	if len(args) > 0 {
		fmt.Println(bridge.ProcessMessage(strings.Join(args, " ")))
		return nil
	}
	runInteractive(bridge, sessions, cfg.Agent.Name, registry)
	return nil
}

func openGateway(cfg *config.Config) *memory.Gateway {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	var embedder graph.Embedder
	if cfg.LLM.APIKey != "" {
		embedder = graph.NewOpenAIEmbedder(graph.EmbedderConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.EmbeddingModel,
			BaseURL: cfg.LLM.EmbeddingBaseURL,
		})
	}

	store, err := graph.NewStore(ctx, graph.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
	}, embedder)
	if err != nil {
		slog.Warn("knowledge graph unavailable, continuing without memory", "error", err)
		return nil
	}

	gateway := memory.NewGateway(store)
	if err := gateway.Initialize(ctx); err != nil {
		slog.Warn("failed to initialize knowledge graph schema, continuing without memory", "error", err)
		store.Close(ctx)
		return nil
	}
	return gateway
}

// resolveUser picks the active user: the --user flag wins; interactive
// sessions on a terminal are prompted with the last active user as default;
// one-shot prompts fall back silently.
func resolveUser(sessions *session.Store, interactive bool) (string, error) {
	if flagUser != "" {
		if err := session.ValidateUserID(flagUser); err != nil {
			return "", err
		}
		return flagUser, nil
	}

	fallback := "default_user"
	last, err := sessions.LastUser()
	if err != nil {
		return "", err
	}
	if last != "" {
		fallback = last
	}

	if !interactive || !isatty.IsTerminal(os.Stdin.Fd()) {
		return fallback, nil
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("User ID [%s]: ", fallback)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fallback, nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return fallback, nil
		}
		if err := session.ValidateUserID(line); err != nil {
			fmt.Printf("Invalid user id: %v\n", err)
			continue
		}
		return line, nil
	}
}

func runInteractive(bridge *agent.Bridge, sessions *session.Store, name string, registry *tools.Registry) {
	fmt.Printf("%s - conversational agent with long-term memory\n", name)
	fmt.Printf("User: %s. Type /help for commands, /exit to quit.\n\n", bridge.Agent().GroupID())

	// Ctrl+C interrupts the read loop; shutdown still drains pending writes.
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Printf("\nReceived %v, shutting down...\n", sig)
			bridge.Close()
			os.Exit(0)
		case <-done:
		}
	}()
	defer close(done)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := handleCommand(line, bridge, sessions, registry); quit {
				return
			}
			continue
		}

		fmt.Printf("%s\n\n", bridge.ProcessMessage(line))
	}
}

// handleCommand handles interactive verbs. Returns true when the session
// should end.
func handleCommand(line string, bridge *agent.Bridge, sessions *session.Store, registry *tools.Registry) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		fmt.Println(`Commands:
  /help       - Show this help
  /clear      - Clear conversation history
  /user <id>  - Switch to another user
  /users      - List known users
  /tools      - List available tools
  /exit       - Quit`)

	case "/clear":
		bridge.ClearHistory()
		fmt.Println("History cleared.")

	case "/user":
		if arg == "" {
			fmt.Printf("Current user: %s\n", bridge.Agent().GroupID())
			return false
		}
		if err := session.ValidateUserID(arg); err != nil {
			fmt.Printf("Invalid user id: %v\n", err)
			return false
		}
		if err := sessions.Touch(arg); err != nil {
			fmt.Printf("Failed to switch user: %v\n", err)
			return false
		}
		bridge.SwitchUser(arg)
		fmt.Printf("Switched to user %s.\n", arg)

	case "/users":
		users, err := sessions.ListUsers()
		if err != nil {
			fmt.Printf("Failed to list users: %v\n", err)
			return false
		}
		current := bridge.Agent().GroupID()
		for _, u := range users {
			marker := " "
			if u.ID == current {
				marker = "*"
			}
			fmt.Printf("  %s %s (last seen: %s)\n", marker, u.ID, u.LastSeen.Format("2006-01-02 15:04"))
		}

	case "/tools":
		names := registry.Names()
		if len(names) == 0 {
			fmt.Println("No tools available.")
			return false
		}
		for _, n := range names {
			fmt.Printf("  %s\n", n)
		}

	case "/exit", "/quit":
		return true

	default:
		fmt.Printf("Unknown command %s. Type /help for commands.\n", cmd)
	}
	return false
}
