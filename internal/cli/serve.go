package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knitfamily/knit/internal/server"
	"github.com/knitfamily/knit/pkg/pipeline"
)

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the family tree HTTP API",
		Long: `Serve the family tree HTTP API.

The server uses the configured store and cache. It stops gracefully on
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) newServer(ctx context.Context, addr string, noCache bool) (*server.Server, *pipeline.Runner, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	runner, err := c.newRunner(ctx, st, "", noCache)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("initialize runner: %w", err)
	}

	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := server.New(st, runner, c.Logger, server.Options{
		Addr:         addr,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Layout: pipeline.Options{
			HStep:        cfg.Layout.HStep,
			VStep:        cfg.Layout.VStep,
			SpouseOffset: cfg.Layout.SpouseOffset,
		},
	})
	return srv, runner, nil
}

func (c *CLI) runServe(ctx context.Context, addr string, noCache bool) error {
	srv, runner, err := c.newServer(ctx, addr, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	cfg, _ := c.config()
	c.Logger.Info("starting server", "store", cfg.Store.Driver, "cache", cfg.Cache.Driver)
	return srv.ListenAndServe(ctx)
}
