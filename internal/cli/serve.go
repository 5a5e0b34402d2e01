package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/castflow/castflow/pkg/api"
	"github.com/castflow/castflow/pkg/cache"
	"github.com/castflow/castflow/pkg/pipeline"
)

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		redisAddr string
		redisDB   int
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the optimizer over HTTP",
		Long: `Serve the optimizer over HTTP.

The serve command exposes the same pipeline the optimize and render
commands use as a JSON API:

  POST /v1/optimize   optimize a graph submitted in the request body
  GET  /healthz       liveness probe

By default the server shares the local file cache with the CLI commands.
With --redis-addr it caches in Redis instead, so multiple instances share
one result store; the password is read from CASTFLOW_REDIS_PASSWORD. The
server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cch, err := c.newServeCache(cmd.Context(), noCache, redisAddr, redisDB)
			if err != nil {
				return fmt.Errorf("initialize cache: %w", err)
			}
			runner := pipeline.NewRunner(cch, nil, c.Logger)
			defer runner.Close()

			srv := api.NewServer(runner, c.Logger)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address (host:port) for a shared cache; empty uses the local file cache")
	cmd.Flags().IntVar(&redisDB, "redis-db", 0, "Redis database number (with --redis-addr)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// newServeCache selects the cache backend for the server: Redis when an
// address is given, otherwise the CLI's local file cache.
func (c *CLI) newServeCache(ctx context.Context, noCache bool, redisAddr string, redisDB int) (cache.Cache, error) {
	if redisAddr != "" {
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     redisAddr,
			Password: os.Getenv("CASTFLOW_REDIS_PASSWORD"),
			DB:       redisDB,
		})
	}
	return newCache(noCache)
}
