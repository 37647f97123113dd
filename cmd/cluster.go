package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cgrafmuller/triphappy-clustering/internal/cluster"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Build, refine, and merge venue clusters",
}

var clusterVenuesCmd = &cobra.Command{
	Use:   "venues",
	Short: "Rebuild the venue-derived cluster generation",
	Long:  "Clears and rebuilds generation 0 by density-clustering all stored venue coordinates, recursively splitting oversized groups.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		opts := []cluster.BuilderOption{
			cluster.WithEpsilon(cfg.Venues.Epsilon),
			cluster.WithMinPoints(cfg.Venues.MinPoints),
		}
		if !cfg.Venues.Recursion {
			opts = append(opts, cluster.WithoutRecursion())
		}

		builder := cluster.NewVenueBuilder(store, cluster.NewVenueSource(store), opts...)
		ok, err := builder.Run(ctx)
		if err != nil {
			return err
		}
		if !ok {
			zap.L().Warn("some venue groups could not be shrunk into the size band; partial results kept")
		}

		count, err := store.CountByGeneration(ctx, cluster.GenerationVenues)
		if err != nil {
			return err
		}
		fmt.Printf("venue clusters: %d\n", count)
		return nil
	},
}

var clusterRefineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Rebuild the non-intersecting cluster generation",
	Long:  "Clears and rebuilds generation 1, accepting only clusters that do not overlap any stored venue-derived or non-intersecting cluster.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		opts := []cluster.BuilderOption{
			cluster.WithEpsilon(cfg.Refine.Epsilon),
			cluster.WithMinPoints(cfg.Refine.MinPoints),
		}
		if !cfg.Refine.Recursion {
			opts = append(opts, cluster.WithoutRecursion())
		}

		builder := cluster.NewNonIntersectingBuilder(store, cluster.NewVenueSource(store), opts...)
		ok, err := builder.Run(ctx)
		if err != nil {
			return err
		}
		if !ok {
			zap.L().Warn("some groups could not be shrunk into the size band; partial results kept")
		}

		count, err := store.CountByGeneration(ctx, cluster.GenerationNonIntersecting)
		if err != nil {
			return err
		}
		fmt.Printf("non-intersecting clusters: %d\n", count)
		return nil
	},
}

var (
	mergeKeepOriginals bool
	mergePreserve      bool
)

var clusterMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Collapse all cluster generations into merged clusters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		opts := []cluster.MergerOption{
			cluster.WithMergeEpsilon(cfg.Merge.Epsilon),
			cluster.WithMergeMinPoints(cfg.Merge.MinPoints),
		}
		if mergeKeepOriginals {
			opts = append(opts, cluster.KeepOriginals())
		}
		if mergePreserve {
			opts = append(opts, cluster.PreserveMerged())
		}

		if err := cluster.NewMerger(store, opts...).Run(ctx); err != nil {
			return err
		}

		count, err := store.CountByGeneration(ctx, cluster.GenerationMerged)
		if err != nil {
			return err
		}
		fmt.Printf("merged clusters: %d\n", count)
		return nil
	},
}

var clusterStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-generation cluster counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		gens := cluster.Generations()
		counts := make([]int64, len(gens))

		g, gctx := errgroup.WithContext(ctx)
		for i, gen := range gens {
			g.Go(func() error {
				n, err := store.CountByGeneration(gctx, gen)
				counts[i] = n
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, gen := range gens {
			fmt.Printf("%-17s %d\n", gen.String()+":", counts[i])
		}
		return nil
	},
}

func init() {
	clusterMergeCmd.Flags().BoolVar(&mergeKeepOriginals, "keep-originals", false, "do not delete the input clusters absorbed into merged clusters")
	clusterMergeCmd.Flags().BoolVar(&mergePreserve, "preserve-merged", false, "keep prior merged clusters instead of clearing them first")

	clusterCmd.AddCommand(clusterVenuesCmd, clusterRefineCmd, clusterMergeCmd, clusterStatusCmd)
	rootCmd.AddCommand(clusterCmd)
}
