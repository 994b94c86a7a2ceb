// internal/cli/migrate.go
package cli

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/config"
	"github.com/SKHU-BUZZLE/buzzle-engine/internal/database"
)

// NewMigrateCmd applies the database schema.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the engine's database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	logger := logrus.New()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	pool, err := database.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}
