package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cgrafmuller/triphappy-clustering/internal/cluster"
)

var (
	exportGenerations []int
	exportOutput      string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored clusters as GeoJSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		gens := make([]cluster.Generation, 0, len(exportGenerations))
		for _, g := range exportGenerations {
			gen := cluster.Generation(g)
			if gen.String() == "unknown" {
				return eris.Errorf("export: unknown generation %d", g)
			}
			gens = append(gens, gen)
		}

		store, closeStore, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		data, err := cluster.ExportGeoJSON(ctx, store, gens...)
		if err != nil {
			return err
		}

		if exportOutput == "" || exportOutput == "-" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(exportOutput, data, 0644); err != nil {
			return eris.Wrapf(err, "export: write %s", exportOutput)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().IntSliceVar(&exportGenerations, "generations", []int{0, 1, 2}, "cluster generations to export")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
