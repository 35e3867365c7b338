package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/knitfamily/knit/internal/config"
	"github.com/knitfamily/knit/pkg/buildinfo"
	"github.com/knitfamily/knit/pkg/cache"
	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/observability"
	"github.com/knitfamily/knit/pkg/pipeline"
	"github.com/knitfamily/knit/pkg/store"
)

const appName = "knit"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        *config.Config
}

// New creates a CLI whose logger writes to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Knit lays out and renders family trees",
		Long: `Knit turns a family space (people plus parent/child and partnership
relationships) into a family tree: generations as rows, partners side by side,
children centred under their parents.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: "+config.DefaultPath()+")")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.visualizeCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.relativesCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.spacesCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the config, applies the log level and attaches the logger to
// the command context.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.verbose {
		level = LogDebug
		observability.NewLogHooks(c.Logger).Register()
	}
	c.SetLogLevel(level)

	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}

func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. st may be nil. Layouts
// of a stored space are cached under that space's prefix.
func (c *CLI) newRunner(ctx context.Context, st store.Store, spaceID string, noCache bool) (*pipeline.Runner, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}

	var ch cache.Cache = cache.NewNullCache()
	if !noCache {
		ch, err = cfg.OpenCache(ctx)
		if err != nil {
			if ch == nil {
				return nil, err
			}
			c.Logger.Warn("cache unavailable, continuing without", "driver", cfg.Cache.Driver, "err", err)
		}
	}

	var keyer cache.Keyer
	if spaceID != "" {
		keyer = cache.NewScopedKeyer(cache.NewDefaultKeyer(), cache.SpacePrefix(spaceID))
	}

	runner := pipeline.NewRunner(ch, keyer, st, c.Logger)
	runner.TTL = cfg.Cache.TTL
	return runner, nil
}

func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	st, err := cfg.OpenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	return st, nil
}

// =============================================================================
// Input
// =============================================================================

// source names where a snapshot comes from: a file or a stored space.
type source struct {
	path  string
	space string
}

func (s source) String() string {
	if s.space != "" {
		return "space " + s.space
	}
	return s.path
}

// sourceFromArgs resolves the snapshot argument against the --space flag.
// Exactly one of them must be given.
func sourceFromArgs(args []string, space string) (source, error) {
	switch {
	case space != "" && len(args) > 0:
		return source{}, fmt.Errorf("give either a snapshot file or --space, not both")
	case space != "":
		return source{space: space}, nil
	case len(args) == 0:
		return source{}, fmt.Errorf("a snapshot file or --space is required")
	}
	return source{path: args[0]}, nil
}

// loadSnapshot reads the snapshot named by src.
func (c *CLI) loadSnapshot(ctx context.Context, src source) (family.Snapshot, error) {
	if src.space == "" {
		s, err := family.ReadSnapshotFile(src.path)
		if err != nil {
			return family.Snapshot{}, fmt.Errorf("load snapshot %s: %w", src.path, err)
		}
		return s, nil
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return family.Snapshot{}, err
	}
	defer st.Close()

	s, err := st.Snapshot(ctx, src.space)
	if err != nil {
		return family.Snapshot{}, fmt.Errorf("load %s: %w", src, err)
	}
	return s, nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// layoutFlags registers the spacing flags shared by layout and render,
// defaulting to the configured spacing.
func (c *CLI) layoutFlags(cmd *cobra.Command, opts *pipeline.Options) {
	cmd.Flags().Float64Var(&opts.HStep, "h-step", 0, "horizontal spacing between siblings (default from config)")
	cmd.Flags().Float64Var(&opts.VStep, "v-step", 0, "vertical spacing between generations (default from config)")
	cmd.Flags().Float64Var(&opts.SpouseOffset, "spouse-offset", 0, "offset of a partner from their spouse (default h-step)")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "recompute even when cached")
}

// applyConfigDefaults fills spacing the user left unset from the config.
func (c *CLI) applyConfigDefaults(opts *pipeline.Options) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if opts.HStep == 0 {
		opts.HStep = cfg.Layout.HStep
	}
	if opts.VStep == 0 {
		opts.VStep = cfg.Layout.VStep
	}
	if opts.SpouseOffset == 0 {
		opts.SpouseOffset = cfg.Layout.SpouseOffset
	}
	opts.Logger = c.Logger
	return nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	var formats []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(strings.ToLower(f)); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}
