package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/photobooth/internal/constants"
)

// State is the countdown state.
type State string

// Timer states.
const (
	StateIdle         State = "idle"
	StateCountingDown State = "counting_down"
	StateCapturing    State = "capturing"
)

// Status is a snapshot of the timer.
type Status struct {
	State     State `json:"state"`
	Remaining int   `json:"remaining"`
	InFlight  bool  `json:"in_flight"`
}

// CaptureFunc performs the capture at the end of a countdown.
type CaptureFunc func(ctx context.Context) error

// Timer runs Idle -> CountingDown(n) -> Capturing -> Idle. Each countdown
// ends in exactly one call of the capture function.
type Timer struct {
	capture  CaptureFunc
	canStart func() bool
	onChange func(Status)
	seconds  int
	interval time.Duration

	mu        sync.Mutex
	state     State
	remaining int
	inFlight  bool
	epoch     uint64
	cancel    context.CancelFunc
}

// TimerOption configures a Timer.
type TimerOption func(*Timer)

// WithInterval sets the tick period (one second by default).
func WithInterval(d time.Duration) TimerOption {
	return func(t *Timer) { t.interval = d }
}

// WithSeconds sets the countdown length.
func WithSeconds(n int) TimerOption {
	return func(t *Timer) { t.seconds = n }
}

// WithGate makes Start a no-op while gate returns false (e.g. the store is full).
func WithGate(gate func() bool) TimerOption {
	return func(t *Timer) { t.canStart = gate }
}

// WithObserver registers fn to be called after every state or countdown change.
func WithObserver(fn func(Status)) TimerOption {
	return func(t *Timer) { t.onChange = fn }
}

// NewTimer creates an idle timer.
func NewTimer(capture CaptureFunc, opts ...TimerOption) *Timer {
	t := &Timer{
		capture:  capture,
		seconds:  constants.CountdownSeconds,
		interval: constants.CountdownTick,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a countdown. It does nothing and returns false when a
// countdown or capture is already running or the gate is closed.
func (t *Timer) Start() bool {
	t.mu.Lock()
	if t.state != StateIdle || t.inFlight {
		t.mu.Unlock()
		return false
	}
	if t.canStart != nil && !t.canStart() {
		t.mu.Unlock()
		return false
	}

	t.epoch++
	t.state = StateCountingDown
	t.remaining = t.seconds
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	epoch := t.epoch
	status := t.statusLocked()
	t.mu.Unlock()

	t.notify(status)
	go t.run(ctx, epoch)
	return true
}

func (t *Timer) run(ctx context.Context, epoch uint64) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.tick(ctx, epoch) {
				return
			}
		}
	}
}

// Tick advances the running countdown by one step. At zero it captures
// synchronously. It returns false once the countdown is over.
func (t *Timer) Tick(ctx context.Context) bool {
	t.mu.Lock()
	epoch := t.epoch
	t.mu.Unlock()
	return t.tick(ctx, epoch)
}

func (t *Timer) tick(ctx context.Context, epoch uint64) bool {
	t.mu.Lock()
	if t.epoch != epoch || t.state != StateCountingDown {
		t.mu.Unlock()
		return false
	}

	t.remaining--
	if t.remaining > 0 {
		status := t.statusLocked()
		t.mu.Unlock()
		t.notify(status)
		return true
	}

	t.remaining = 0
	t.state = StateCapturing
	t.inFlight = true
	status := t.statusLocked()
	t.mu.Unlock()
	t.notify(status)

	if err := t.capture(ctx); err != nil {
		if errors.Is(err, ErrCaptureSkipped) {
			slog.Warn("capture abandoned", "error", err)
		} else {
			slog.Error("capture failed", "error", err)
		}
	}

	t.mu.Lock()
	if t.epoch != epoch {
		// Stop already reset the timer while the capture ran.
		t.mu.Unlock()
		return false
	}
	t.state = StateIdle
	t.inFlight = false
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	status = t.statusLocked()
	t.mu.Unlock()
	t.notify(status)
	return false
}

// Stop cancels a pending countdown and clears the in-flight flag. A capture
// that is already running finishes, but it no longer affects the timer.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.epoch++
	t.state = StateIdle
	t.remaining = 0
	t.inFlight = false
	status := t.statusLocked()
	t.mu.Unlock()
	t.notify(status)
}

// Status returns the current timer status.
func (t *Timer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

func (t *Timer) statusLocked() Status {
	return Status{State: t.state, Remaining: t.remaining, InFlight: t.inFlight}
}

func (t *Timer) notify(status Status) {
	if t.onChange != nil {
		t.onChange(status)
	}
}
