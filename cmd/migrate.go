package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cgrafmuller/triphappy-clustering/internal/cluster"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		switch s := store.(type) {
		case *cluster.PostgresStore:
			return cluster.Migrate(ctx, s.Pool())
		case *cluster.SQLiteStore:
			return s.Migrate(ctx)
		default:
			return eris.Errorf("migrate: unsupported store type %T", store)
		}
	},
}

func init() { rootCmd.AddCommand(migrateCmd) }
