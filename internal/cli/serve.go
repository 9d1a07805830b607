package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Peleke/colloquium/internal/config"
	"github.com/Peleke/colloquium/internal/llm"
	"github.com/Peleke/colloquium/internal/logging"
	"github.com/Peleke/colloquium/internal/server"
	"github.com/Peleke/colloquium/internal/session"
	"github.com/Peleke/colloquium/internal/source"
	"github.com/Peleke/colloquium/internal/store"
	"github.com/Peleke/colloquium/internal/tutor"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			if logLevel == "" {
				log = logging.New(nil, cfg.Logging.Level)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			// Scene materials: SQLite-backed when a database is configured,
			// in-memory otherwise. Both sit behind the TTL cache.
			var (
				lookup source.Lookup
				db     *store.DB
			)
			if cfg.Database.Path != "" {
				db, err = store.Open(cfg.Database.Path, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()

				sqlLookup := store.NewSQLiteSourceLookup(db)
				if err := sqlLookup.SeedIfEmpty(cmd.Context(), source.Seed()); err != nil {
					return fmt.Errorf("seeding scene materials: %w", err)
				}
				lookup = sqlLookup
				log.Info().Str("path", cfg.Database.Path).Msg("using SQLite scene store")
			} else {
				lookup = source.NewMemoryLookup(source.Seed()...)
				log.Info().Msg("using in-memory scene store")
			}
			lookup = source.NewCachedLookup(lookup, cfg.Sources.CacheSize,
				time.Duration(cfg.Sources.CacheTTLSeconds)*time.Second, time.Now)

			client, err := buildClient(cfg.Provider)
			if err != nil {
				return err
			}
			log.Info().Str("provider", client.Name()).Str("model", cfg.Provider.Model).Msg("model provider ready")

			processor := tutor.NewProcessor(client, cfg.Provider.Model, cfg.Provider.MaxTokens, log)
			synthesizer := tutor.NewSynthesizer(client, cfg.Provider.Model, cfg.Provider.MaxTokens, log)

			feed := server.NewFeed(log)
			manager := session.NewManager(session.Config{
				TurnTimeout:     time.Duration(cfg.Session.TurnTimeoutSeconds) * time.Second,
				ReviewTimeout:   time.Duration(cfg.Session.ReviewTimeoutSeconds) * time.Second,
				MaxLearnerTurns: cfg.Session.MaxLearnerTurns,
			}, processor, synthesizer, lookup, feed, log)

			opts := []server.Option{}
			if db != nil {
				opts = append(opts, server.WithExportStore(store.NewExportStore(db)))
			}
			srv := server.New(cfg.Server.ListenAddr(), manager, lookup, feed, log, opts...)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: loopback, lan, or custom (overrides config)")

	return cmd
}

// buildClient constructs the model client for the configured provider.
func buildClient(cfg config.ProviderConfig) (llm.Client, error) {
	switch cfg.Name {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider.apiKey is required for the anthropic provider")
		}
		var opts []llm.AnthropicOption
		if cfg.Endpoint != "" {
			opts = append(opts, llm.WithEndpoint(cfg.Endpoint))
		}
		return llm.NewAnthropicClient(cfg.APIKey, cfg.Model, opts...), nil
	case "mock":
		return scriptedMock(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// scriptedMock answers every prompt with a fixed, well-formed payload.
// Useful for demos and for exercising the HTTP surface without a key.
func scriptedMock() llm.Client {
	return &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			switch {
			case strings.Contains(req.System, `"rating"`):
				return &llm.CompletionResponse{Content: `{
  "rating": "good",
  "summary": "A steady session. Keep practicing everyday transactions.",
  "strengths": ["willingness to speak", "core vocabulary"],
  "improvements": ["case endings", "question word order"]
}`}, nil
			case strings.Contains(req.System, `"hasErrors"`):
				return &llm.CompletionResponse{Content: `{
  "correction": {"hasErrors": false, "errors": []},
  "reply": "Ita vero! Quid aliud tibi placet?",
  "shouldEnd": false
}`}, nil
			default:
				return &llm.CompletionResponse{Content: "Salve! Quid quaeris hodie?"}, nil
			}
		},
	}
}
