// Package session drives one photobooth session: countdown captures, photo
// selection, composition, filtering and download.
//
// Two variants share the controller. The local variant runs its own
// countdown against a camera (capturing -> selecting -> editing). The
// assisted variant mirrors the AI backend's gesture feed, which owns the
// countdown and the photo list (capturing -> selecting -> composing -> result).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/photobooth/internal/capture"
	"github.com/kozaktomas/photobooth/internal/compose"
	"github.com/kozaktomas/photobooth/internal/config"
	"github.com/kozaktomas/photobooth/internal/constants"
	"github.com/kozaktomas/photobooth/internal/feed"
	"github.com/kozaktomas/photobooth/internal/filter"
	"github.com/kozaktomas/photobooth/internal/photo"
	"github.com/kozaktomas/photobooth/internal/selection"
	"github.com/kozaktomas/photobooth/internal/video"
)

// Step is the session's position in the flow.
type Step string

// Session steps.
const (
	StepCapturing Step = "capturing"
	StepSelecting Step = "selecting"
	StepComposing Step = "composing"
	StepResult    Step = "result"
	StepEditing   Step = "editing"
)

var (
	// ErrWrongStep is returned for actions that the current step does not allow.
	ErrWrongStep = errors.New("action not allowed in the current step")
	// ErrSelectionIncomplete is returned when confirming fewer than three photos.
	ErrSelectionIncomplete = errors.New("select three photos first")
	// ErrUnknownPhoto is returned for photo ids not in the store.
	ErrUnknownPhoto = errors.New("unknown photo")
	// ErrNoResult is returned when there is no composition to filter or download.
	ErrNoResult = errors.New("no composition yet")
	// ErrNotAssisted is returned for backend actions on the local variant.
	ErrNotAssisted = errors.New("action requires the assisted variant")
	// ErrUnsupportedFormat is returned for download formats other than jpg and png.
	ErrUnsupportedFormat = errors.New("unsupported download format")
)

// Backend is the control API of the gesture backend.
type Backend interface {
	ToggleMode(ctx context.Context) (*feed.ToggleResult, error)
	Reset(ctx context.Context) error
}

// framePusher is implemented by sources fed from the gesture feed.
type framePusher interface {
	PushDataURL(dataURL string) error
}

// Options wires a Controller.
type Options struct {
	Variant    string
	Source     video.Source
	Compositor *compose.Compositor
	Template   *compose.Template
	IDs        photo.IDGenerator
	Backend    Backend

	SelectingDelay time.Duration
	RetryDelay     time.Duration
	TimerOptions   []capture.TimerOption
}

// State is a snapshot of the session.
type State struct {
	Variant     string          `json:"variant"`
	Step        Step            `json:"step"`
	Countdown   int             `json:"countdown"`
	IsCapturing bool            `json:"is_capturing"`
	PhotosCount int             `json:"photos_count"`
	MaxPhotos   int             `json:"max_photos"`
	PhotoIDs    []string        `json:"photo_ids"`
	Slots       []string        `json:"slots"`
	Selected    int             `json:"selected"`
	Template    string          `json:"template"`
	Filter      filter.ID       `json:"filter"`
	Result      *compose.Result `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	SourceReady bool            `json:"source_ready"`

	// Mirrored from the gesture feed.
	Mode                     string  `json:"mode,omitempty"`
	ZoomLevel                float64 `json:"zoom_level,omitempty"`
	Gesture                  string  `json:"gesture,omitempty"`
	PeaceSignCount           int     `json:"peace_sign_count,omitempty"`
	RequiredPeaceCount       int     `json:"required_peace_count,omitempty"`
	GestureStabilityCount    int     `json:"gesture_stability_count,omitempty"`
	GestureStabilityRequired int     `json:"gesture_stability_required,omitempty"`
}

// feedMirror holds the fields the assisted variant takes from the backend.
type feedMirror struct {
	mode                     string
	zoomLevel                float64
	gesture                  string
	countdown                int
	isCapturing              bool
	peaceSignCount           int
	requiredPeaceCount       int
	gestureStabilityCount    int
	gestureStabilityRequired int
}

func initialMirror() feedMirror {
	return feedMirror{
		mode:                     feed.ModeOff,
		zoomLevel:                constants.DefaultZoomLevel,
		requiredPeaceCount:       constants.DefaultRequiredPeaceCount,
		gestureStabilityRequired: constants.DefaultGestureStabilityRequired,
	}
}

// Controller owns the session state. Every read-modify-write happens under
// mu; blocking work (capture, decoding, backend calls) runs outside it.
type Controller struct {
	Broadcaster

	assisted       bool
	source         video.Source
	compositor     *compose.Compositor
	template       *compose.Template
	ids            photo.IDGenerator
	backend        Backend
	capturer       *capture.Capturer
	timer          *capture.Timer
	selectingDelay time.Duration

	// acquireMu serializes source acquisition. It is taken before mu.
	acquireMu sync.Mutex

	mu            sync.Mutex
	epoch         uint64
	step          Step
	store         *photo.Store
	sel           *selection.Set
	result        *compose.Result
	applier       *filter.Applier
	lastErr       string
	composing     bool
	composeCancel context.CancelFunc
	selectTimer   *time.Timer
	acquired      bool
	mirror        feedMirror
}

// New creates a controller in the capturing step.
func New(opts Options) *Controller {
	if opts.IDs == nil {
		opts.IDs = photo.NewSequence("photo-")
	}
	if opts.Compositor == nil {
		opts.Compositor = compose.NewCompositor()
	}
	if opts.SelectingDelay <= 0 {
		opts.SelectingDelay = constants.SelectingDelay
	}

	c := &Controller{
		assisted:       opts.Variant == config.VariantAssisted,
		source:         opts.Source,
		compositor:     opts.Compositor,
		template:       opts.Template,
		ids:            opts.IDs,
		backend:        opts.Backend,
		selectingDelay: opts.SelectingDelay,
		step:           StepCapturing,
		store:          photo.NewStore(constants.MaxPhotos),
		sel:            selection.New(constants.SlotCount),
		mirror:         initialMirror(),
	}
	c.store.OnFull(c.scheduleSelectingLocked)

	c.capturer = capture.NewCapturer(opts.Source)
	if opts.RetryDelay > 0 {
		c.capturer.WithRetryDelay(opts.RetryDelay)
	}
	timerOpts := append(slices.Clone(opts.TimerOptions),
		capture.WithGate(func() bool { return !c.store.Full() }),
		capture.WithObserver(func(capture.Status) { c.publish(EventCountdown, "") }),
	)
	c.timer = capture.NewTimer(c.captureFrame, timerOpts...)
	return c
}

// Assisted reports whether the controller runs the assisted variant.
func (c *Controller) Assisted() bool {
	return c.assisted
}

// Start acquires the video source. A failed acquisition is returned but
// leaves the controller usable; the next countdown retries it.
func (c *Controller) Start(ctx context.Context) error {
	return c.ensureSource(ctx)
}

func (c *Controller) ensureSource(ctx context.Context) error {
	if c.source == nil {
		return nil
	}
	c.acquireMu.Lock()
	defer c.acquireMu.Unlock()

	c.mu.Lock()
	acquired, epoch := c.acquired, c.epoch
	c.mu.Unlock()
	if acquired {
		return nil
	}

	err := c.source.Acquire(ctx)

	c.mu.Lock()
	if c.epoch != epoch {
		// Reset released the source while it was being acquired.
		c.mu.Unlock()
		if relErr := c.source.Release(); relErr != nil {
			slog.Warn("releasing video source", "error", relErr)
		}
		return fmt.Errorf("%w: session was reset", ErrWrongStep)
	}
	if err != nil {
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.publish(EventState, err.Error())
		return err
	}
	c.acquired = true
	if c.step == StepCapturing {
		c.lastErr = ""
	}
	c.mu.Unlock()
	return nil
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	ids := c.photoIDsLocked()

	st := State{
		Variant:     config.VariantLocal,
		Step:        c.step,
		PhotosCount: len(ids),
		MaxPhotos:   c.store.Capacity(),
		PhotoIDs:    ids,
		Slots:       c.sel.Slots(),
		Selected:    c.sel.Count(),
		Filter:      filter.None,
		Result:      c.result,
		Error:       c.lastErr,
	}
	if c.template != nil {
		st.Template = c.template.Name
	}
	if c.applier != nil {
		st.Filter = c.applier.Current()
	}
	if c.source != nil {
		st.SourceReady = c.source.Ready()
	}

	if c.assisted {
		m := c.mirror
		st.Variant = config.VariantAssisted
		st.Countdown = m.countdown
		st.IsCapturing = m.isCapturing
		st.Mode = m.mode
		st.ZoomLevel = m.zoomLevel
		st.Gesture = m.gesture
		st.PeaceSignCount = m.peaceSignCount
		st.RequiredPeaceCount = m.requiredPeaceCount
		st.GestureStabilityCount = m.gestureStabilityCount
		st.GestureStabilityRequired = m.gestureStabilityRequired
		return st
	}

	ts := c.timer.Status()
	st.Countdown = ts.Remaining
	st.IsCapturing = ts.State != capture.StateIdle
	return st
}

func (c *Controller) publish(eventType, message string) {
	c.SendEvent(Event{Type: eventType, Message: message, Data: c.State()})
}

// StartCountdown starts a capture countdown. In the assisted variant it
// switches the backend into capture mode instead. It returns false when the
// request was a no-op (already counting, store full, or mode already on).
func (c *Controller) StartCountdown(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.step != StepCapturing {
		c.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrWrongStep, c.step)
	}
	modeOn := c.mirror.mode == feed.ModeOn || c.mirror.isCapturing
	c.mu.Unlock()

	if c.assisted {
		if modeOn {
			return false, nil
		}
		if _, err := c.ToggleMode(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := c.ensureSource(ctx); err != nil {
		return false, err
	}
	return c.timer.Start(), nil
}

// captureFrame runs when a countdown reaches zero. Photos captured for a
// session that has since been reset are dropped.
func (c *Controller) captureFrame(ctx context.Context) error {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	p, err := c.capturer.Capture(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch || c.step != StepCapturing {
		c.mu.Unlock()
		slog.Debug("dropping stale capture", "bytes", len(p.Data))
		return nil
	}
	if c.store.Full() {
		c.mu.Unlock()
		return nil
	}
	p.ID = c.ids.Next()
	added := c.store.Append(p)
	c.mu.Unlock()

	if added {
		slog.Info("photo captured", "id", p.ID, "bytes", len(p.Data))
		c.publish(EventPhoto, p.ID)
	}
	return nil
}

// scheduleSelectingLocked is the store's full signal. It runs with mu held.
func (c *Controller) scheduleSelectingLocked() {
	if c.selectTimer != nil || c.step != StepCapturing {
		return
	}
	epoch := c.epoch
	c.selectTimer = time.AfterFunc(c.selectingDelay, func() { c.enterSelecting(epoch) })
}

func (c *Controller) enterSelecting(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.step != StepCapturing {
		c.mu.Unlock()
		return
	}
	c.selectTimer = nil
	c.step = StepSelecting
	c.mu.Unlock()

	slog.Info("photo store full, selecting")
	c.publish(EventSelecting, "")
}

// Photos returns the captured photos in capture order.
func (c *Controller) Photos() []photo.Photo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.List()
}

// Photo returns a captured photo by id.
func (c *Controller) Photo(id string) (photo.Photo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.store.Get(id)
	if !ok {
		return photo.Photo{}, fmt.Errorf("%w: %s", ErrUnknownPhoto, id)
	}
	return p, nil
}

// Frame returns the current live frame.
func (c *Controller) Frame() ([]byte, error) {
	if c.source == nil {
		return nil, video.ErrNotReady
	}
	img, err := c.source.Frame()
	if err != nil {
		return nil, err
	}
	return photo.EncodeJPEG(img, constants.ThumbnailQuality)
}

// Toggle selects or deselects a photo. It returns the affected slot, or -1
// when the toggle was a no-op because every slot is taken.
func (c *Controller) Toggle(id string) (int, error) {
	c.mu.Lock()
	if c.step != StepSelecting {
		step := c.step
		c.mu.Unlock()
		return -1, fmt.Errorf("%w: %s", ErrWrongStep, step)
	}
	if _, ok := c.store.Get(id); !ok {
		c.mu.Unlock()
		return -1, fmt.Errorf("%w: %s", ErrUnknownPhoto, id)
	}
	slot := c.sel.Toggle(id)
	c.mu.Unlock()

	if slot >= 0 {
		c.publish(EventSelection, id)
	}
	return slot, nil
}

// Confirm composes the selected photos. The local variant composes
// synchronously and moves to editing. The assisted variant moves to
// composing and finishes in the background; the returned result is nil.
func (c *Controller) Confirm(ctx context.Context) (*compose.Result, error) {
	c.mu.Lock()
	if c.step != StepSelecting || c.composing {
		step := c.step
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrWrongStep, step)
	}
	if !c.sel.IsComplete() {
		c.mu.Unlock()
		return nil, ErrSelectionIncomplete
	}
	photos := make([]photo.Photo, 0, constants.SlotCount)
	for _, id := range c.sel.Selected() {
		p, ok := c.store.Get(id)
		if !ok {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownPhoto, id)
		}
		photos = append(photos, p)
	}
	epoch := c.epoch
	c.composing = true
	c.lastErr = ""

	if c.assisted {
		composeCtx, cancel := context.WithCancel(context.Background())
		c.composeCancel = cancel
		c.step = StepComposing
		c.mu.Unlock()

		c.publish(EventComposing, "")
		go func() {
			defer cancel()
			res, err := c.compositor.Compose(composeCtx, photos, c.template)
			c.finishComposition(epoch, res, err)
		}()
		return nil, nil
	}
	c.mu.Unlock()

	res, err := c.compositor.Compose(ctx, photos, c.template)
	if !c.finishComposition(epoch, res, err) {
		return nil, fmt.Errorf("%w: session was reset", ErrWrongStep)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// finishComposition records a composition outcome. It returns false when the
// session was reset while composing.
func (c *Controller) finishComposition(epoch uint64, res *compose.Result, err error) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	c.composing = false
	c.composeCancel = nil

	if err != nil {
		c.step = StepSelecting
		c.lastErr = err.Error()
		c.mu.Unlock()
		slog.Error("composition failed", "error", err)
		c.publish(EventComposeFail, err.Error())
		return true
	}

	c.result = res
	c.applier = filter.NewApplier(res.Image)
	c.step = StepEditing
	if c.assisted {
		c.step = StepResult
	}
	c.mu.Unlock()

	slog.Info("composition ready", "id", res.ID, "template", res.Template, "bytes", len(res.Encoded))
	c.publish(EventResult, res.ID)
	return true
}

// ApplyFilter shows the composition with the named filter.
func (c *Controller) ApplyFilter(name string) (filter.ID, error) {
	id, err := filter.Parse(name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	applier := c.applier
	c.mu.Unlock()
	if applier == nil {
		return "", ErrNoResult
	}

	if _, err := applier.Apply(id); err != nil {
		return "", err
	}
	c.publish(EventFilter, string(id))
	return id, nil
}

// Download is an encoded composition ready to be served.
type Download struct {
	Name        string
	ContentType string
	Data        []byte
}

// Download encodes the composition with the current filter as JPEG or PNG.
func (c *Controller) Download(format string) (*Download, error) {
	c.mu.Lock()
	res, applier := c.result, c.applier
	c.mu.Unlock()
	if res == nil || applier == nil {
		return nil, ErrNoResult
	}

	switch format {
	case "png":
		data, err := photo.EncodePNG(applier.Image())
		if err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
		return &Download{Name: res.FileName("png"), ContentType: "image/png", Data: data}, nil
	case "", "jpg", "jpeg":
		data := res.Encoded
		if applier.Current() != filter.None {
			var err error
			data, err = photo.EncodeJPEG(applier.Image(), constants.JPEGQuality)
			if err != nil {
				return nil, fmt.Errorf("encoding jpeg: %w", err)
			}
		}
		return &Download{Name: res.FileName("jpg"), ContentType: "image/jpeg", Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Reset returns the session to its initial state: photos, selection,
// countdown, composition and filter are cleared and the video source is
// released. In the assisted variant the backend is reset as well.
func (c *Controller) Reset(ctx context.Context) error {
	c.timer.Stop()

	c.mu.Lock()
	c.epoch++
	c.step = StepCapturing
	c.store.Clear()
	c.sel.Reset()
	c.ids.Reset()
	c.result = nil
	c.applier = nil
	c.lastErr = ""
	c.composing = false
	if c.composeCancel != nil {
		c.composeCancel()
		c.composeCancel = nil
	}
	if c.selectTimer != nil {
		c.selectTimer.Stop()
		c.selectTimer = nil
	}
	c.acquired = false
	c.mirror = initialMirror()
	c.mu.Unlock()

	c.compositor.Flush()
	if c.source != nil {
		if err := c.source.Release(); err != nil {
			slog.Warn("releasing video source", "error", err)
		}
	}

	var err error
	if c.assisted && c.backend != nil {
		if err = c.backend.Reset(ctx); err != nil {
			slog.Warn("backend reset failed", "error", err)
			err = fmt.Errorf("backend reset: %w", err)
		}
	}

	slog.Info("session reset")
	c.publish(EventReset, "")
	return err
}

// Close stops background work and releases the video source.
func (c *Controller) Close() error {
	c.timer.Stop()

	c.mu.Lock()
	c.epoch++
	if c.composeCancel != nil {
		c.composeCancel()
		c.composeCancel = nil
	}
	if c.selectTimer != nil {
		c.selectTimer.Stop()
		c.selectTimer = nil
	}
	c.acquired = false
	c.mu.Unlock()

	if c.source == nil {
		return nil
	}
	return c.source.Release()
}
