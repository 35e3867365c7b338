package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every event to a logger at debug level, errors at warn.
type LogHooks struct {
	Logger *log.Logger
}

// NewLogHooks returns hooks backed by logger.
func NewLogHooks(logger *log.Logger) *LogHooks {
	return &LogHooks{Logger: logger}
}

// Register installs h for every hook category.
func (h *LogHooks) Register() {
	Install(Hooks{Pipeline: h, Cache: h, Store: h, Server: h})
}

func (h *LogHooks) OnLayoutStart(_ context.Context, spaceID string, people int) {
	h.Logger.Debug("layout started", "space", spaceID, "people", people)
}

func (h *LogHooks) OnLayoutComplete(_ context.Context, spaceID string, d time.Duration, cached bool, err error) {
	if err != nil {
		h.Logger.Warn("layout failed", "space", spaceID, "duration", d, "err", err)
		return
	}
	h.Logger.Debug("layout complete", "space", spaceID, "duration", d, "cached", cached)
}

func (h *LogHooks) OnRenderStart(_ context.Context, formats []string) {
	h.Logger.Debug("render started", "formats", formats)
}

func (h *LogHooks) OnRenderComplete(_ context.Context, formats []string, d time.Duration, err error) {
	if err != nil {
		h.Logger.Warn("render failed", "formats", formats, "duration", d, "err", err)
		return
	}
	h.Logger.Debug("render complete", "formats", formats, "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnQuery(_ context.Context, op, spaceID string, d time.Duration, err error) {
	if err != nil {
		h.Logger.Warn("store query failed", "op", op, "space", spaceID, "duration", d, "err", err)
		return
	}
	h.Logger.Debug("store query", "op", op, "space", spaceID, "duration", d)
}

func (h *LogHooks) OnRequest(_ context.Context, method, route string, status int, d time.Duration) {
	h.Logger.Debug("request", "method", method, "route", route, "status", status, "duration", d)
}
