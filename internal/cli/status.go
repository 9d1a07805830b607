package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Peleke/colloquium/internal/config"
	"github.com/Peleke/colloquium/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show colloquium configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Colloquium %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:   %s\n", paths.Config)
			fmt.Printf("Logs:     %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:   not found (using defaults)")
				} else {
					fmt.Printf("Config:   error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Server:   %s\n", cfg.Server.ListenAddr())
			fmt.Printf("Provider: %s model=%s maxTokens=%d\n",
				cfg.Provider.Name, cfg.Provider.Model, cfg.Provider.MaxTokens)
			fmt.Printf("Session:  turnTimeout=%ds reviewTimeout=%ds maxLearnerTurns=%d\n",
				cfg.Session.TurnTimeoutSeconds, cfg.Session.ReviewTimeoutSeconds, cfg.Session.MaxLearnerTurns)
			if cfg.Database.Path != "" {
				fmt.Printf("Database: %s\n", cfg.Database.Path)
			} else {
				fmt.Println("Database: none (exports disabled)")
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Println()
				fmt.Printf("Config has %d issue(s):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s\n", issue)
				}
			}
			return nil
		},
	}
}
