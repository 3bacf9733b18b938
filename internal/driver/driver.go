// Package driver implements the client-side session protocol: the state
// machine that sequences session creation, input forwarding, output polling,
// resize negotiation, and termination handling over a request/response
// transport with no push channel.
package driver

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/L1NNA/jupyter-http-terminal/internal/logger"
	"github.com/L1NNA/jupyter-http-terminal/internal/model"
)

// State is the session lifecycle state, owned exclusively by the Driver.
type State int32

const (
	StateUninitialized State = iota
	StateActive
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	// DefaultPollInterval is the fixed interval between output polls.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultGraceDelay is how long the driver waits after the final output
	// flush before attempting to close the host, so the last write renders.
	DefaultGraceDelay = 500 * time.Millisecond
)

// ErrAlreadyStarted is returned when Start is called more than once.
var ErrAlreadyStarted = errors.New("driver already started")

// Transport is the request/response surface the driver sequences. Each call
// is one network round trip; the driver owns all ordering decisions.
type Transport interface {
	CreateSession(ctx context.Context) error
	PollOutput(ctx context.Context) (*model.OutputChunk, error)
	SendInput(ctx context.Context, input string) error
	Resize(ctx context.Context, rows, cols int) error
}

// Renderer is the display collaborator: it accepts raw output chunks and
// exposes the current viewport dimensions, of which it is the source of truth.
type Renderer interface {
	io.Writer
	Size() (rows, cols int)
}

// Config holds driver tuning knobs.
type Config struct {
	PollInterval time.Duration
	GraceDelay   time.Duration
	Logger       *logger.Logger
}

// Driver runs one session's lifecycle:
// initialize → announce size → poll loop ↔ input forwarding ↔ resize → terminate.
//
// Polling is single-flight: polls run sequentially on one goroutine, so poll
// N+1 is never dispatched before poll N's response has been applied to the
// renderer, and output is appended in dispatch order. Input and resize calls
// are independent of the poll loop and of each other; the remote process, not
// the client, serializes input against its output stream.
type Driver struct {
	transport Transport
	renderer  Renderer
	closeHost func() error

	pollInterval time.Duration
	graceDelay   time.Duration
	log          *logger.Logger

	mu         sync.Mutex
	state      State
	cancelPoll context.CancelFunc

	done chan struct{}
}

// New creates a Driver. closeHost is the best-effort "close this tab" action
// invoked once the remote process has exited; it may refuse by returning an
// error, which leaves the driver in StateClosed with no further activity.
func New(transport Transport, renderer Renderer, closeHost func() error, cfg Config) *Driver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = DefaultGraceDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if closeHost == nil {
		closeHost = func() error { return nil }
	}
	return &Driver{
		transport:    transport,
		renderer:     renderer,
		closeHost:    closeHost,
		pollInterval: cfg.PollInterval,
		graceDelay:   cfg.GraceDelay,
		log:          cfg.Logger,
		done:         make(chan struct{}),
	}
}

// State returns the current session state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Done is closed once the driver has left StateActive for good and the poll
// loop has fully stopped, or after Start has failed.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Start creates the remote session, announces the renderer's current size,
// and starts the poll loop. On creation failure the driver moves to
// StateFailed: no poll timer is ever started and no resize call is issued.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateUninitialized {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.mu.Unlock()

	if err := d.transport.CreateSession(ctx); err != nil {
		d.mu.Lock()
		d.state = StateFailed
		d.mu.Unlock()
		close(d.done)
		d.log.Error("session creation failed", zap.Error(err))
		return err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.state = StateActive
	d.cancelPoll = cancel
	d.mu.Unlock()

	rows, cols := d.renderer.Size()
	if err := d.transport.Resize(ctx, rows, cols); err != nil {
		d.log.Warn("initial resize failed", zap.Error(err))
	}

	go d.pollLoop(pollCtx)
	return nil
}

// pollLoop fires at the poll interval until the session leaves StateActive.
// Each iteration performs one complete poll before the next can start.
func (d *Driver) pollLoop(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.pollOnce(ctx) {
				return
			}
		}
	}
}

// pollOnce issues a single poll and applies the result. It returns false when
// polling must stop.
func (d *Driver) pollOnce(ctx context.Context) bool {
	chunk, err := d.transport.PollOutput(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// State moved on while this poll was in flight; the stale
			// request was abandoned, not awaited.
			return false
		}
		// A missed poll is a no-op: no output, no termination implied.
		d.log.Debug("poll failed", zap.Error(err))
		return true
	}

	if chunk.Output != "" {
		if _, err := d.renderer.Write([]byte(chunk.Output)); err != nil {
			d.log.Warn("renderer write failed", zap.Error(err))
		}
	}

	if chunk.Closed {
		d.finish()
		return false
	}
	return true
}

// finish handles remote termination: the final output has already been
// flushed, so cancel the poll timer, wait out the grace delay, and ask the
// host to close. A refusal leaves the driver in StateClosed for good.
func (d *Driver) finish() {
	if !d.leaveActive(StateClosed) {
		return
	}

	d.log.Info("remote session closed")
	time.Sleep(d.graceDelay)
	if err := d.closeHost(); err != nil {
		d.log.Warn("host refused to close", zap.Error(err))
	}
}

// leaveActive transitions Active → next and cancels the poll timer exactly
// once. It reports whether this call performed the transition.
func (d *Driver) leaveActive(next State) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateActive {
		return false
	}
	d.state = next
	d.cancelPoll()
	return true
}

// HandleInput forwards one unit of keystroke data. A lone carriage return is
// normalized to a newline, since the remote expects line-feed semantics.
// Fire-and-forget: a failed send is logged and dropped, never retried or
// queued. Calls made outside StateActive are ignored.
func (d *Driver) HandleInput(ctx context.Context, input string) {
	if d.State() != StateActive {
		return
	}
	if input == "\r" {
		input = "\n"
	}
	if err := d.transport.SendInput(ctx, input); err != nil {
		d.log.Debug("input dropped", zap.Error(err))
	}
}

// HandleResize propagates a viewport-size change. One transport call per
// event, carrying the dimensions of that event; same fire-and-forget
// discipline as HandleInput. Does not block or reset the poll loop.
func (d *Driver) HandleResize(ctx context.Context, rows, cols int) {
	if d.State() != StateActive {
		return
	}
	if err := d.transport.Resize(ctx, rows, cols); err != nil {
		d.log.Debug("resize dropped", zap.Error(err))
	}
}

// Stop ends the session locally: the poll timer is cancelled, any in-flight
// poll is abandoned, and the driver moves to StateClosed. The remote session
// is left for the server to reap. Safe to call at any time.
func (d *Driver) Stop() {
	if d.leaveActive(StateClosed) {
		<-d.done
	}
}
