package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knitfamily/knit/internal/config"
	"github.com/knitfamily/knit/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the layout and artifact cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached layouts and artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCacheClear(cmd.Context())
		},
	}
}

func (c *CLI) runCacheClear(ctx context.Context) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if cfg.Cache.Driver == config.CacheNone {
		printInfo("Caching is disabled")
		return nil
	}

	ch, err := cfg.OpenCache(ctx)
	if err != nil {
		return fmt.Errorf("open %s cache: %w", cfg.Cache.Driver, err)
	}
	defer ch.Close()

	clearer, ok := ch.(cache.Clearer)
	if !ok {
		return fmt.Errorf("the %s cache cannot be cleared", cfg.Cache.Driver)
	}
	n, err := clearer.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	if n == 0 {
		printInfo("Cache is empty")
	} else {
		printSuccess("Cleared %s", plural(n, "cached entry", "cached entries"))
	}
	printDetail("%s", cacheLocation(cfg))
	return nil
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the cache lives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, cacheLocation(cfg))
			return nil
		},
	}
}

// cacheLocation describes the configured cache: a directory for the file
// cache, a redis address otherwise.
func cacheLocation(cfg *config.Config) string {
	switch cfg.Cache.Driver {
	case config.CacheRedis:
		return "redis://" + cfg.Cache.RedisAddr
	case config.CacheNone:
		return "(disabled)"
	}
	return cfg.Cache.Dir
}
