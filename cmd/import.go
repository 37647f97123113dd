package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cgrafmuller/triphappy-clustering/internal/shapefile"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load venue data into the store",
}

var importVenuesCmd = &cobra.Command{
	Use:   "venues <file.shp>",
	Short: "Import venue points from a shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		venues, err := shapefile.ReadVenues(args[0])
		if err != nil {
			return err
		}

		store, closeStore, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		n, err := store.InsertVenues(ctx, venues)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d venues\n", n)
		return nil
	},
}

func init() {
	importCmd.AddCommand(importVenuesCmd)
	rootCmd.AddCommand(importCmd)
}
