// Package cli implements the knit command-line interface.
//
// Commands read a family snapshot either from a JSON or YAML file or, with
// --space, from the configured store:
//   - layout: compute the tree layout and write it as layout JSON
//   - visualize: render a layout JSON file to SVG, DOT, PNG or PDF
//   - render: snapshot straight to artifacts
//   - relatives, validate, browse: inspect a family
//   - import, export, spaces: move snapshots in and out of the store
//   - serve: run the HTTP API
//   - cache: manage the layout and artifact cache
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger with "HH:MM:SS.ms" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times an operation and logs its outcome with the elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress starts timing with the logger carried by ctx.
func newProgress(ctx context.Context) *progress {
	return &progress{logger: loggerFromContext(ctx), start: time.Now()}
}

// done logs msg and keyvals followed by the elapsed time rounded to the
// millisecond, e.g. "imported space=smiths people=4 elapsed=12ms".
func (p *progress) done(msg string, keyvals ...any) {
	keyvals = append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))
	p.logger.Info(msg, keyvals...)
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default() if there is none.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
