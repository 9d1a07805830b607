package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Peleke/colloquium/internal/config"
	"github.com/Peleke/colloquium/internal/source"
	"github.com/Peleke/colloquium/internal/store"
)

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the available scene materials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			var lookup source.Lookup
			if cfg.Database.Path != "" {
				db, err := store.Open(cfg.Database.Path, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()

				sqlLookup := store.NewSQLiteSourceLookup(db)
				if err := sqlLookup.SeedIfEmpty(cmd.Context(), source.Seed()); err != nil {
					return err
				}
				lookup = sqlLookup
			} else {
				lookup = source.NewMemoryLookup(source.Seed()...)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			materials, err := lookup.List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLANGUAGE\tROLES\tSETTING")
			for _, m := range materials {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					m.ID, m.TargetLanguage, strings.Join(m.Roles, ", "), m.Setting)
			}
			return w.Flush()
		},
	}
}
