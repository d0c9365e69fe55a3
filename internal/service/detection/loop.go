// Package detection runs the periodic detect-and-draw loop over the live camera feed.
//
// Every tick the loop checks that a frame is ready, skips the tick while a
// previous detector call is still in flight, sizes the overlay surface to the
// frame, calls the detector once and, on success, replaces the latest
// detections and redraws the overlay. Each resolved call is published as a
// Result, failures included.
package detection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"camdetect/internal/logger"
	"camdetect/internal/model"
	"camdetect/internal/service/overlay"
)

// DefaultInterval is the tick period used when none is configured.
const DefaultInterval = 10 * time.Millisecond

// FrameSource provides the current frame. ok is false until the source has
// buffered a frame with valid dimensions.
type FrameSource interface {
	Frame() (frame model.Frame, ok bool)
}

// Detector runs the external object-detection model on a frame.
type Detector interface {
	Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error)
}

type pngEncoder interface {
	EncodePNG(w io.Writer) error
}

// Outcome tells what a single tick did.
type Outcome int

const (
	// TickNotReady means no frame was ready; nothing happened.
	TickNotReady Outcome = iota
	// TickBusy means a previous detection was still running; the tick was skipped.
	TickBusy
	// TickStarted means a detection was started for this tick.
	TickStarted
)

func (o Outcome) String() string {
	switch o {
	case TickNotReady:
		return "not-ready"
	case TickBusy:
		return "busy"
	case TickStarted:
		return "started"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the outcome of one resolved detector call.
type Result struct {
	Seq        uint64
	FrameSeq   uint64
	Width      int
	Height     int
	Detections []model.Detection
	Overlay    []byte
	Err        error
	At         time.Time
}

// OK reports whether the detector call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Stats are counters of loop activity.
type Stats struct {
	Ticks     uint64 `json:"ticks"`
	NotReady  uint64 `json:"notReady"`
	Busy      uint64 `json:"busy"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

// Options configure a Loop.
type Options struct {
	Interval time.Duration
	Clock    clock.Clock
}

// Loop is the cancellable detection task.
type Loop struct {
	source   FrameSource
	detector Detector
	surface  overlay.Surface
	logger   *logger.Logger
	clock    clock.Clock
	interval time.Duration

	inFlight atomic.Bool
	seq      atomic.Uint64
	wg       sync.WaitGroup

	mu     sync.RWMutex
	latest Result

	subsMu  sync.Mutex
	subs    map[int]chan Result
	nextSub int

	ticks     atomic.Uint64
	notReady  atomic.Uint64
	busy      atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// NewLoop creates a detection loop. It does nothing until Run or Tick is called.
func NewLoop(source FrameSource, detector Detector, surface overlay.Surface, logger *logger.Logger, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Loop{
		source:   source,
		detector: detector,
		surface:  surface,
		logger:   logger,
		clock:    opts.Clock,
		interval: opts.Interval,
		subs:     make(map[int]chan Result),
	}
}

// Run ticks until ctx is cancelled, then waits for an in-flight detection to finish.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.Ticker(l.interval)
	defer ticker.Stop()

	l.logger.Info("Detection loop started (interval %s)", l.interval)
	defer l.logger.Info("Detection loop stopped")

	for {
		select {
		case <-ctx.Done():
			l.wg.Wait()
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick performs one loop iteration. A started detection completes asynchronously.
func (l *Loop) Tick(ctx context.Context) Outcome {
	l.ticks.Add(1)

	frame, ok := l.source.Frame()
	if !ok || !frame.Valid() {
		l.notReady.Add(1)
		return TickNotReady
	}

	if !l.inFlight.CompareAndSwap(false, true) {
		l.busy.Add(1)
		return TickBusy
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.inFlight.Store(false)
		l.process(ctx, frame)
	}()
	return TickStarted
}

// Wait blocks until no detection is in flight.
func (l *Loop) Wait() {
	l.wg.Wait()
}

func (l *Loop) process(ctx context.Context, frame model.Frame) {
	l.surface.Resize(frame.Width, frame.Height)

	detections, err := l.detector.Detect(ctx, frame)

	res := Result{
		Seq:      l.seq.Add(1),
		FrameSeq: frame.Seq,
		Width:    frame.Width,
		Height:   frame.Height,
		At:       l.clock.Now(),
	}

	if err != nil {
		res.Err = fmt.Errorf("detect frame %d: %w", frame.Seq, err)
		l.failed.Add(1)
		if ctx.Err() == nil {
			l.logger.Warning("Detection failed: %v", res.Err)
		}
		l.publish(res)
		return
	}

	if detections == nil {
		detections = []model.Detection{}
	}
	res.Detections = detections

	overlay.Render(l.surface, detections)
	if enc, ok := l.surface.(pngEncoder); ok {
		var buf bytes.Buffer
		if err := enc.EncodePNG(&buf); err != nil {
			l.logger.Error("Failed to encode overlay: %v", err)
		} else {
			res.Overlay = buf.Bytes()
		}
	}

	l.mu.Lock()
	l.latest = res
	l.mu.Unlock()

	l.completed.Add(1)
	l.publish(res)
}

// Latest returns the most recent successful result.
func (l *Loop) Latest() Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := l.latest
	res.Detections = model.CloneDetections(res.Detections)
	return res
}

// Detections returns the most recent successful detection list.
func (l *Loop) Detections() []model.Detection {
	return l.Latest().Detections
}

// Subscribe returns a channel receiving every published result and a function
// that cancels the subscription. A slow subscriber only ever sees the newest
// unread result.
func (l *Loop) Subscribe() (<-chan Result, func()) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	id := l.nextSub
	l.nextSub++
	ch := make(chan Result, 1)
	l.subs[id] = ch

	return ch, func() {
		l.subsMu.Lock()
		defer l.subsMu.Unlock()
		if _, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(ch)
		}
	}
}

func (l *Loop) publish(res Result) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	for _, ch := range l.subs {
		select {
		case ch <- res:
		default:
			// replace the unread result
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- res:
			default:
			}
		}
	}
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Ticks:     l.ticks.Load(),
		NotReady:  l.notReady.Load(),
		Busy:      l.busy.Load(),
		Completed: l.completed.Load(),
		Failed:    l.failed.Load(),
	}
}
