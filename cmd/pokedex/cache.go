package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"goflare.io/pokedex"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the response cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dex, err := pokedex.New(ctx, a.options()...)
			if err != nil {
				return err
			}
			defer dex.Close()

			c := dex.Cache()
			stats := c.Stats(ctx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:   %s\n", dex.Config().Cache.Backend)
			fmt.Fprintf(out, "Available: %t\n", c.IsAvailable(ctx))
			fmt.Fprintf(out, "Entries:   %s\n", humanize.Comma(int64(stats.Count)))
			fmt.Fprintf(out, "Size:      %s\n", humanize.Bytes(uint64(stats.TotalBytes)))
			if age, ok := c.AgeHours(ctx, "pokemon_list_151_0"); ok {
				fmt.Fprintf(out, "List age:  %.1fh\n", age)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dex, err := pokedex.New(ctx, a.options()...)
			if err != nil {
				return err
			}
			defer dex.Close()

			before := dex.Cache().Stats(ctx)
			if r := dex.Cache().Clear(ctx); !r.OK() {
				if r.Err != nil {
					return fmt.Errorf("failed to clear cache: %w", r.Err)
				}
				return fmt.Errorf("failed to clear cache: %s", r.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries (%s)\n",
				before.Count, humanize.Bytes(uint64(before.TotalBytes)))
			return nil
		},
	})
	return cmd
}
