package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/knitfamily/knit/pkg/cache"
	kerrors "github.com/knitfamily/knit/pkg/errors"
	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/layout"
	"github.com/knitfamily/knit/pkg/observability"
	"github.com/knitfamily/knit/pkg/store"
)

// Runner executes the pipeline with caching.
//
// The Runner holds no per-run state; one Runner may serve many goroutines
// with different options.
type Runner struct {
	// Store is optional and only needed by the *Space methods.
	Store  store.Store
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	// TTL overrides the cache TTLs when positive.
	TTL time.Duration
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// means [cache.DefaultKeyer], and st may be nil when no space lookups are
// needed.
func NewRunner(c cache.Cache, keyer cache.Keyer, st store.Store, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Store: st, Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs layout and render for s.
func (r *Runner) Execute(ctx context.Context, s family.Snapshot, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		Stats: Stats{People: len(s.People), Relationships: len(s.Relationships)},
	}

	layoutStart := time.Now()
	l, hash, layoutHit, err := r.layout(ctx, s, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.SnapshotHash = hash
	result.Layout = l
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = layoutHit

	opts.Logger.Info("computed layout",
		"space", s.FamilySpaceID,
		"people", len(l.Nodes),
		"leftovers", len(l.Leftovers),
		"cached", layoutHit,
		"duration", result.Stats.LayoutTime)

	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, l, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	opts.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", renderHit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// ExecuteSpace loads the snapshot of spaceID from the store and runs
// [Runner.Execute].
func (r *Runner) ExecuteSpace(ctx context.Context, spaceID string, opts Options) (*Result, error) {
	s, err := r.loadSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, s, opts)
}

// LayoutWithCacheInfo computes the layout of s through the cache and
// reports whether it was a hit.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, s family.Snapshot, opts Options) (layout.Layout, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForLayout(); err != nil {
		return layout.Layout{}, false, err
	}
	l, _, hit, err := r.layout(ctx, s, opts)
	return l, hit, err
}

// Layout is LayoutWithCacheInfo without the hit flag.
func (r *Runner) Layout(ctx context.Context, s family.Snapshot, opts Options) (layout.Layout, error) {
	l, _, err := r.LayoutWithCacheInfo(ctx, s, opts)
	return l, err
}

// LayoutSpace loads the snapshot of spaceID from the store and lays it out.
func (r *Runner) LayoutSpace(ctx context.Context, spaceID string, opts Options) (layout.Layout, error) {
	s, err := r.loadSpace(ctx, spaceID)
	if err != nil {
		return layout.Layout{}, err
	}
	return r.Layout(ctx, s, opts)
}

// layout expects validated options.
func (r *Runner) layout(ctx context.Context, s family.Snapshot, opts Options) (l layout.Layout, hash string, hit bool, err error) {
	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, s.FamilySpaceID, len(s.People))
	defer func(start time.Time) {
		hooks.OnLayoutComplete(ctx, s.FamilySpaceID, time.Since(start), hit, err)
	}(time.Now())

	data, err := family.MarshalSnapshot(s)
	if err != nil {
		return layout.Layout{}, "", false, fmt.Errorf("serialize snapshot for cache key: %w", err)
	}
	hash = cache.Hash(data)
	key := r.Keyer.LayoutKey(hash, opts.LayoutKeyOpts())

	if !opts.Refresh {
		if cached, ok := r.cacheGet(ctx, key, "layout"); ok {
			if l, err := layout.UnmarshalLayout(cached); err == nil {
				return l, hash, true, nil
			}
			opts.Logger.Debug("discarding unreadable cached layout", "key", key)
		}
	}

	l = ComputeLayout(s, opts)
	if data, err := layout.MarshalLayout(l); err == nil {
		r.cacheSet(ctx, key, "layout", data, r.ttl(cache.TTLLayout))
	}
	return l, hash, false, nil
}

// RenderWithCacheInfo renders l through the cache and reports whether every
// artifact was a hit.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, l layout.Layout, opts Options) (artifacts map[string][]byte, hit bool, err error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}

	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	defer func(start time.Time) {
		hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	}(time.Now())

	layoutData, err := layout.MarshalLayout(l)
	if err != nil {
		return nil, false, fmt.Errorf("serialize layout for cache key: %w", err)
	}
	layoutHash := cache.Hash(layoutData)

	artifacts = make(map[string][]byte, len(opts.Formats))
	var missing []string
	for _, format := range opts.Formats {
		key := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
		if !opts.Refresh {
			if data, ok := r.cacheGet(ctx, key, "artifact"); ok {
				artifacts[format] = data
				continue
			}
		}
		missing = append(missing, format)
	}
	if len(missing) == 0 {
		return artifacts, true, nil
	}

	renderOpts := opts
	renderOpts.Formats = missing
	rendered, err := RenderFromLayout(ctx, l, renderOpts)
	if err != nil {
		return nil, false, err
	}
	for format, data := range rendered {
		key := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
		r.cacheSet(ctx, key, "artifact", data, r.ttl(cache.TTLArtifact))
		artifacts[format] = data
	}
	return artifacts, false, nil
}

// Render is RenderWithCacheInfo without the hit flag.
func (r *Runner) Render(ctx context.Context, l layout.Layout, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, l, opts)
	return artifacts, err
}

func (r *Runner) loadSpace(ctx context.Context, spaceID string) (family.Snapshot, error) {
	if r.Store == nil {
		return family.Snapshot{}, kerrors.New(kerrors.ErrCodeUnsupported, "no store configured")
	}
	if err := kerrors.ValidateID("family space", spaceID); err != nil {
		return family.Snapshot{}, err
	}
	return r.Store.Snapshot(ctx, spaceID)
}

// cacheGet treats cache errors as misses; the cache is an optimisation.
func (r *Runner) cacheGet(ctx context.Context, key, keyType string) ([]byte, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Debug("cache get failed", "key", key, "err", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return data, true
}

func (r *Runner) cacheSet(ctx context.Context, key, keyType string, data []byte, ttl time.Duration) {
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Debug("cache set failed", "key", key, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

func (r *Runner) ttl(def time.Duration) time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return def
}

// Close releases the cache and the store.
func (r *Runner) Close() error {
	var err error
	if r.Cache != nil {
		err = r.Cache.Close()
	}
	if r.Store != nil {
		if serr := r.Store.Close(); err == nil {
			err = serr
		}
	}
	return err
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
