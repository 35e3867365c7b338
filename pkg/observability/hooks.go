// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through a global registry; applications register
// implementations at startup. Defaults are no-ops, so nothing is recorded
// unless main opts in.
//
//	func main() {
//	    observability.Install(observability.Hooks{Pipeline: myMetrics, Store: myMetrics})
//	    // ... run application
//	}
//
// Libraries call hooks around the work they measure:
//
//	observability.Pipeline().OnLayoutStart(ctx, spaceID, len(people))
//	// ... compute ...
//	observability.Pipeline().OnLayoutComplete(ctx, spaceID, duration, cached, nil)
//
// [LogHooks] implements every interface on top of a charmbracelet logger
// and is what the CLI registers in verbose mode.
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the layout and render pipeline.
type PipelineHooks interface {
	OnLayoutStart(ctx context.Context, spaceID string, people int)
	OnLayoutComplete(ctx context.Context, spaceID string, duration time.Duration, cached bool, err error)

	OnRenderStart(ctx context.Context, formats []string)
	OnRenderComplete(ctx context.Context, formats []string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives one event per storage operation.
type StoreHooks interface {
	OnQuery(ctx context.Context, op, spaceID string, duration time.Duration, err error)
}

// =============================================================================
// Server Hooks
// =============================================================================

// ServerHooks receives one event per served HTTP request.
type ServerHooks interface {
	OnRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnLayoutStart(context.Context, string, int) {}
func (NoopPipelineHooks) OnLayoutComplete(context.Context, string, time.Duration, bool, error) {
}
func (NoopPipelineHooks) OnRenderStart(context.Context, []string)                          {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, []string, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnQuery(context.Context, string, string, time.Duration, error) {}

// NoopServerHooks is a no-op implementation of ServerHooks.
type NoopServerHooks struct{}

func (NoopServerHooks) OnRequest(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

// Hooks is one set of registered hooks. Nil fields are filled with the
// no-op implementations.
type Hooks struct {
	Pipeline PipelineHooks
	Cache    CacheHooks
	Store    StoreHooks
	Server   ServerHooks
}

func (h Hooks) withDefaults() Hooks {
	if h.Pipeline == nil {
		h.Pipeline = NoopPipelineHooks{}
	}
	if h.Cache == nil {
		h.Cache = NoopCacheHooks{}
	}
	if h.Store == nil {
		h.Store = NoopStoreHooks{}
	}
	if h.Server == nil {
		h.Server = NoopServerHooks{}
	}
	return h
}

var registry atomic.Pointer[Hooks]

func current() *Hooks {
	if h := registry.Load(); h != nil {
		return h
	}
	h := Hooks{}.withDefaults()
	registry.CompareAndSwap(nil, &h)
	return registry.Load()
}

// Install registers h. Nil fields keep the hooks registered before.
func Install(h Hooks) {
	for {
		old := current()
		next := *old
		if h.Pipeline != nil {
			next.Pipeline = h.Pipeline
		}
		if h.Cache != nil {
			next.Cache = h.Cache
		}
		if h.Store != nil {
			next.Store = h.Store
		}
		if h.Server != nil {
			next.Server = h.Server
		}
		if registry.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks { return current().Pipeline }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return current().Cache }

// Store returns the registered store hooks.
func Store() StoreHooks { return current().Store }

// Server returns the registered server hooks.
func Server() ServerHooks { return current().Server }

// Reset restores the no-op hooks.
func Reset() {
	h := Hooks{}.withDefaults()
	registry.Store(&h)
}
