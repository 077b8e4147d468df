package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()
		logger := newLogger()
		config := mustConfig(logger)

		store, err := openStore(ctx, config.Storage, logger)
		if err != nil {
			logger.Fatal("opening storage", zap.Error(err))
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			logger.Fatal("migrating storage", zap.Error(err))
		}

		logger.Info("schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
