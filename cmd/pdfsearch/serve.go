package main

import (
	"context"
	"time"

	"github.com/FranksOps/pdfsearch/internal/api"
	"github.com/FranksOps/pdfsearch/internal/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search pipeline over HTTP",
	Long: `Serve exposes GET /api/search?query=&num_results=&min_pages=&max_pages=
returning {"links": [...], "message": "..."}, plus /healthz and, when
metrics.enabled is set, /metrics. Browser origins listed in
server.allowed_origins may call it with credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cfg
		if cmd.Flags().Changed("addr") {
			addr, _ := cmd.Flags().GetString("addr")
			merged, err := config.Merge(c, config.Config{Server: config.ServerConfig{Addr: addr}})
			if err != nil {
				return err
			}
			c = merged
		}

		a, err := newApp(cmd.Context(), c, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			a.close(ctx)
		}()

		srv, err := api.New(a.pipeline, serverConfig(c))
		if err != nil {
			return err
		}
		return srv.Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")

	rootCmd.AddCommand(serveCmd)
}

func serverConfig(c config.Config) api.Config {
	return api.Config{
		Addr:              c.Server.Addr,
		AllowedOrigins:    c.Server.AllowedOrigins,
		DefaultNumResults: c.Search.NumResults,
		ReadHeaderTimeout: c.Server.ReadHeaderTimeout,
		ShutdownTimeout:   c.Server.ShutdownTimeout,
		Metrics:           c.Metrics.Enabled,
		Logger:            logger,
	}
}
