// Package pipeline runs the snapshot → layout → render pipeline shared by
// the CLI and the HTTP server.
//
// # Stages
//
//  1. Layout: place every person of a snapshot with the tree layout engine
//     and export the serializable [layout.Layout].
//  2. Render: turn a layout into artifacts (JSON, SVG, DOT, PNG, PDF).
//
// Both stages are cached through a [cache.Cache]. Layouts are keyed by the
// content hash of the snapshot plus the spacing options, artifacts by the
// hash of the layout plus the render options.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, nil, logger)
//	result, err := runner.Execute(ctx, snapshot, pipeline.Options{
//	    Formats: []string{"svg"},
//	})
//	svg := result.Artifacts["svg"]
//
// With a [store.Store] attached, [Runner.ExecuteSpace] and
// [Runner.LayoutSpace] load the snapshot by family space id.
package pipeline

import (
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/knitfamily/knit/pkg/cache"
	kerrors "github.com/knitfamily/knit/pkg/errors"
	"github.com/knitfamily/knit/pkg/layout"
	"github.com/knitfamily/knit/pkg/render/nodelink"
)

// Format constants for output formats.
const (
	FormatJSON = "json"
	FormatSVG  = "svg"
	FormatDOT  = "dot"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
)

// Renderer names.
const (
	// RendererNative draws SVG directly from the layout; PNG and PDF go
	// through rsvg-convert.
	RendererNative = "native"
	// RendererGraphviz renders the DOT export with Graphviz.
	RendererGraphviz = "graphviz"
)

const (
	// DefaultRenderer is used when Options.Renderer is empty.
	DefaultRenderer = RendererNative
	// DefaultScale is the PNG scale factor.
	DefaultScale = 2.0
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatSVG:  true,
	FormatDOT:  true,
	FormatPNG:  true,
	FormatPDF:  true,
}

// ValidRenderers is the set of supported renderers.
var ValidRenderers = map[string]bool{
	RendererNative:   true,
	RendererGraphviz: true,
}

// Options configures a pipeline run. It is decoded from HTTP query
// parameters and CLI flags alike.
type Options struct {
	// Layout options
	HStep float64 `json:"h_step,omitempty"`
	VStep float64 `json:"v_step,omitempty"`
	// SpouseOffset of zero lets the layout engine derive it from HStep.
	SpouseOffset float64 `json:"spouse_offset,omitempty"`
	Refresh      bool    `json:"refresh,omitempty"`

	// Render options
	Formats    []string `json:"formats,omitempty"`
	Renderer   string   `json:"renderer,omitempty"`
	Engine     string   `json:"engine,omitempty"`
	Detailed   bool     `json:"detailed,omitempty"`
	Title      string   `json:"title,omitempty"`
	BirthDates bool     `json:"birth_dates,omitempty"`
	Scale      float64  `json:"scale,omitempty"`

	Logger *log.Logger `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// SnapshotHash is the content hash of the input snapshot.
	SnapshotHash string
	Layout       layout.Layout
	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte
	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	People        int
	Relationships int
	LayoutTime    time.Duration
	RenderTime    time.Duration
}

// CacheInfo tracks cache hits per stage.
type CacheInfo struct {
	LayoutHit bool
	RenderHit bool // all requested artifacts came from cache
}

// ValidateFormat checks that a format is supported.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return kerrors.New(kerrors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: json, svg, dot, png, pdf)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are supported.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRenderer checks that a renderer is supported.
func ValidateRenderer(renderer string) error {
	if !ValidRenderers[renderer] {
		return kerrors.New(kerrors.ErrCodeInvalidInput, "invalid renderer: %q (must be native or graphviz)", renderer)
	}
	return nil
}

// SetLayoutDefaults fills the spacing defaults.
func (o *Options) SetLayoutDefaults() {
	if o.HStep == 0 {
		o.HStep = layout.DefaultHStep
	}
	if o.VStep == 0 {
		o.VStep = layout.DefaultVStep
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForLayout applies layout defaults and checks spacing.
func (o *Options) ValidateForLayout() error {
	o.SetLayoutDefaults()
	if o.HStep < 0 || o.VStep < 0 || o.SpouseOffset < 0 {
		return kerrors.New(kerrors.ErrCodeInvalidInput, "spacing must be positive (h_step=%g, v_step=%g, spouse_offset=%g)",
			o.HStep, o.VStep, o.SpouseOffset)
	}
	return nil
}

// SetRenderDefaults fills the render defaults.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Renderer == "" {
		o.Renderer = DefaultRenderer
	}
	if o.Engine == "" {
		o.Engine = string(nodelink.EngineNeato)
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForRender applies render defaults and checks every render option.
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if err := ValidateRenderer(o.Renderer); err != nil {
		return err
	}
	if _, err := nodelink.ParseEngine(o.Engine); err != nil {
		return kerrors.Wrap(kerrors.ErrCodeInvalidInput, err, "invalid engine")
	}
	if o.Scale < 0 {
		return kerrors.New(kerrors.ErrCodeInvalidInput, "scale must be positive")
	}
	o.Formats = dedupe(o.Formats)
	return nil
}

// Validate applies all defaults and validates the options for a full run.
func (o *Options) Validate() error {
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	return o.ValidateForRender()
}

// LayoutOptions converts the spacing options for [layout.Build].
func (o *Options) LayoutOptions() []layout.Option {
	opts := []layout.Option{layout.WithHStep(o.HStep), layout.WithVStep(o.VStep)}
	if o.SpouseOffset > 0 {
		opts = append(opts, layout.WithSpouseOffset(o.SpouseOffset))
	}
	return opts
}

// LayoutKeyOpts returns cache key options for layout computation.
func (o *Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		HStep:        o.HStep,
		VStep:        o.VStep,
		SpouseOffset: o.SpouseOffset,
	}
}

// ArtifactKeyOpts returns cache key options for one artifact. Options a
// format ignores are left out so equivalent requests share an entry.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	k := cache.ArtifactKeyOpts{Format: format}
	switch format {
	case FormatJSON:
		return k
	case FormatDOT:
		k.Engine = o.Engine
		k.Detailed = o.Detailed
		return k
	}
	k.Renderer = o.Renderer
	if o.Renderer == RendererGraphviz {
		k.Engine = o.Engine
		k.Detailed = o.Detailed
	} else {
		k.Title = o.Title
		k.BirthDates = o.BirthDates
	}
	if format == FormatPNG {
		k.Scale = o.Scale
	}
	return k
}

func dedupe(formats []string) []string {
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
