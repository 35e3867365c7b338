package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	spinnerIdle int32 = iota
	spinnerRunning
	spinnerStopped
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a message on stderr while a long operation runs. It
// stops on Stop or when its context ends, whichever comes first.
type Spinner struct {
	message  string
	interval time.Duration
	out      io.Writer
	ctx      context.Context

	state atomic.Int32
	halt  chan struct{}
	wg    sync.WaitGroup
	mu    sync.Mutex
}

func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	return &Spinner{
		message:  message,
		interval: 80 * time.Millisecond,
		out:      os.Stderr,
		ctx:      ctx,
		halt:     make(chan struct{}),
	}
}

// Start begins the animation. Only the first call on an idle spinner has
// an effect.
func (s *Spinner) Start() {
	if !s.state.CompareAndSwap(spinnerIdle, spinnerRunning) {
		return
	}
	s.wg.Add(1)
	go s.animate()
}

func (s *Spinner) animate() {
	defer s.wg.Done()
	defer s.clearLine()

	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	for frame := 0; ; frame = (frame + 1) % len(spinnerFrames) {
		select {
		case <-s.ctx.Done():
			return
		case <-s.halt:
			return
		case <-tick.C:
			s.draw(spinnerFrames[frame])
		}
	}
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message))
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}

// Stop ends the animation and waits for its line to be cleared. Further
// calls do nothing.
func (s *Spinner) Stop() {
	if s.state.Swap(spinnerStopped) == spinnerStopped {
		return
	}
	close(s.halt)
	s.wg.Wait()
}

func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess("%s", message)
}

func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled reports whether the context ended while the spinner was
// still running.
func (s *Spinner) Cancelled() bool {
	return s.state.Load() != spinnerStopped && s.ctx.Err() != nil
}
