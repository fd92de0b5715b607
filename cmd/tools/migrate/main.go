package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/backend-jasa/internal/app"
	"github.com/noah-isme/backend-jasa/internal/obs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var databaseURL string
	logger := obs.NewLogger("console", "info")

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply or roll back the embedded database migrations",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			_ = godotenv.Load()
			if databaseURL == "" {
				databaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
			}
			if databaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to $DATABASE_URL)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(*cobra.Command, []string) error {
			m, err := app.NewMigrator(databaseURL)
			if err != nil {
				return err
			}
			defer m.Close()
			if err := app.RunMigrations(m); err != nil {
				return err
			}
			logMigrateVersion(logger, m)
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migrations",
		RunE: func(*cobra.Command, []string) error {
			m, err := app.NewMigrator(databaseURL)
			if err != nil {
				return err
			}
			defer m.Close()
			if err := app.RollbackMigrations(m, steps); err != nil {
				return err
			}
			logMigrateVersion(logger, m)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := app.NewMigrator(databaseURL)
			if err != nil {
				return err
			}
			defer m.Close()
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", v, dirty)
			return nil
		},
	}

	root.AddCommand(up, down, version)
	return root
}

func logMigrateVersion(logger zerolog.Logger, m *migrate.Migrate) {
	v, dirty, err := m.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("read schema version")
		return
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("migrations applied")
}
