// Package cli implements the memento command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mementolabs/memento/internal/config"
	"github.com/mementolabs/memento/internal/logging"
)

var (
	flagConfig   string
	flagUser     string
	flagLogLevel string
)

// RootCmd builds the memento root command. Running it with no subcommand
// starts an interactive chat session.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memento [prompt]",
		Short: "Conversational agent with long-term memory",
		Long: `Memento is a conversational agent backed by a temporal knowledge graph.
It remembers what each user tells it across sessions and can search the web
for current information.

Examples:
  memento                          # interactive session as the last active user
  memento --user alice             # interactive session as alice
  memento "what did I tell you about my cat?"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runChat(cfg, args)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "user id (memory group)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(usersCmd())
	return cmd
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFrom(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.Setup(os.Stderr, level)
	return cfg, nil
}

// Execute runs the CLI.
func Execute() {
	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
