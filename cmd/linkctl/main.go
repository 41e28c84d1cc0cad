// Command linkctl administers the link store: schema migrations and link CRUD
// against the backend selected by STORE_BACKEND.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/shortlinks/internal/app"
	"github.com/sundayezeilo/shortlinks/internal/config"
	"github.com/sundayezeilo/shortlinks/internal/links"
)

// env carries what a subcommand needs once configuration is loaded.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	service links.Service
	close   func()
}

// opener loads configuration and, when withStore is set, connects to storage.
type opener func(ctx context.Context, withStore bool) (*env, error)

func main() {
	if err := newRootCmd(openEnv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "linkctl",
		Short: "Administer the short link store",
		Long: `linkctl manages the link store directly, bypassing the HTTP API.

Configuration comes from the same environment variables as the server
(STORE_BACKEND, DB_*, REDIS_*, LINK_*).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(open),
		newCreateCmd(open),
		newListCmd(open),
		newGetCmd(open),
		newDeleteCmd(open),
	)
	return root
}

func openEnv(ctx context.Context, withStore bool) (*env, error) {
	if err := app.LoadEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.LoadStore()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Logs go to stderr so command output stays parseable.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	e := &env{cfg: cfg, logger: logger, close: func() {}}
	if !withStore {
		return e, nil
	}

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	e.service = app.NewService(cfg, store.Repo)
	e.close = store.Close
	return e, nil
}
