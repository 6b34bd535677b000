package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"goflare.io/pokedex"
	"goflare.io/pokedex/internal/download"
	"goflare.io/pokedex/internal/static"
)

func newDownloadCmd(a *app) *cobra.Command {
	var (
		dir   string
		count int
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the static dataset from the PokeAPI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dex, err := pokedex.New(ctx, append(a.options(), pokedex.WithoutStore())...)
			if err != nil {
				return err
			}
			defer dex.Close()

			if count <= 0 {
				count = dex.Config().PokeAPI.SpeciesCount
			}
			report, err := download.New(dex.Config().PokeAPI, dex.Fetch(), dir, a.logger).Run(ctx, count)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Downloaded %d pokemon, %d species, %d locations into %s in %s\n",
				report.Saved[static.KindPokemon], report.Saved[static.KindSpecies], report.Saved[static.KindLocations],
				dir, report.Elapsed.Round(time.Millisecond))
			for _, f := range report.Failures {
				fmt.Fprintf(out, "  failed: %v\n", f)
			}
			if n := len(report.Failures); n > 0 {
				return fmt.Errorf("%d resources failed to download", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "static-data", "output directory")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of Pokémon to download (default 151)")
	return cmd
}
