package main

import (
	"github.com/spf13/cobra"

	"goflare.io/pokedex"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Pokédex HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			opts := append(a.options(),
				pokedex.WithProduction(a.v.GetBool("server.production")))
			if addr := a.v.GetString("server.addr"); addr != "" {
				opts = append(opts, pokedex.WithAddr(addr))
			}
			if a.v.IsSet("server.trusted_proxies") {
				opts = append(opts, pokedex.WithTrustedProxies(a.v.GetStringSlice("server.trusted_proxies")...))
			}

			dex, err := pokedex.New(ctx, opts...)
			if err != nil {
				return err
			}
			defer dex.Close()

			return dex.Serve(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Bool("production", false, "enable production security headers")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	cmd.Flags().StringSlice("trusted-proxy", nil, "proxy CIDR whose X-Forwarded-For is trusted (repeatable)")
	_ = a.v.BindPFlag("server.production", cmd.Flags().Lookup("production"))
	_ = a.v.BindPFlag("server.trusted_proxies", cmd.Flags().Lookup("trusted-proxy"))
	return cmd
}
