package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/shortlinks/internal/config"
	"github.com/sundayezeilo/shortlinks/internal/storage/postgres"
)

func newMigrateCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Applies or rolls back the embedded schema migrations.
Only meaningful with STORE_BACKEND=postgres.`,
	}

	withMigrator := func(run func(cmd *cobra.Command, m *postgres.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			if e.cfg.Store.Backend != config.BackendPostgres {
				return fmt.Errorf("migrations need STORE_BACKEND=postgres, got %q", e.cfg.Store.Backend)
			}

			m, err := postgres.NewMigrator(e.cfg.Database.URL(), e.logger)
			if err != nil {
				return err
			}
			defer m.Close()

			return run(cmd, m)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database migrations applied.")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rolled back one migration.")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				version, dirty, ok, err := m.Version()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case !ok:
					fmt.Fprintln(out, "No migrations applied.")
				case dirty:
					fmt.Fprintf(out, "%d (dirty)\n", version)
				default:
					fmt.Fprintf(out, "%d\n", version)
				}
				return nil
			}),
		},
	)
	return cmd
}
