package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mementolabs/memento/internal/session"
)

// usersCmd lists known users without starting a chat session.
func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List known users",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDataDir(); err != nil {
				return err
			}

			sessions, err := session.Open(cfg.DBPath())
			if err != nil {
				return err
			}
			defer sessions.Close()

			users, err := sessions.ListUsers()
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Println("No users yet.")
				return nil
			}

			last, _ := sessions.LastUser()
			for _, u := range users {
				marker := " "
				if u.ID == last {
					marker = "*"
				}
				fmt.Printf("%s %s (first seen: %s, last seen: %s)\n",
					marker, u.ID,
					u.FirstSeen.Format("2006-01-02"),
					u.LastSeen.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
