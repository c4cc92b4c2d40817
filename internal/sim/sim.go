// Package sim drives a ListView headlessly through a scripted sequence of
// viewport actions and reports the layout after each one.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tagview/tagview/internal/events"
	"github.com/tagview/tagview/internal/logging"
	"github.com/tagview/tagview/internal/pagestore"
	"github.com/tagview/tagview/internal/view"
)

// ErrTimeout is returned when a step does not settle in time.
var ErrTimeout = errors.New("sim: layout did not settle")

// StepKind is a scripted viewport action.
type StepKind string

const (
	StepOpen   StepKind = "open"
	StepScroll StepKind = "scroll" // Value is a fraction of the scroll range
	StepDrag   StepKind = "drag"   // Value is the release fraction
	StepZoom   StepKind = "zoom"   // Value is the new column width
	StepResize StepKind = "resize" // Value is the new viewport width
)

// Step is one action.
type Step struct {
	Kind  StepKind
	Value float64
}

func (s Step) String() string {
	switch s.Kind {
	case StepScroll, StepDrag:
		return fmt.Sprintf("%s %.2f", s.Kind, s.Value)
	case StepZoom, StepResize:
		return fmt.Sprintf("%s %d", s.Kind, int(s.Value))
	default:
		return string(s.Kind)
	}
}

// Options configures Run.
type Options struct {
	View  view.Config
	Store pagestore.Config

	Width  int
	Height int
	Steps  []Step

	// Quiet is how long no new layout may arrive before a step counts as settled.
	Quiet time.Duration

	// StepTimeout bounds each step.
	StepTimeout time.Duration

	Logger *logging.Logger
}

// Snapshot describes the layout after a step.
type Snapshot struct {
	Step        Step
	Generation  uint64
	StartPage   int
	EndPage     int
	FullLayout  bool
	Items       int
	Visible     int
	TotalItems  int
	TotalHeight int
	ScrollValue int
	ScrollMax   int
	AvgRow      float64
	Missing     bool
	CacheHit    bool
	Elapsed     time.Duration
}

// Report is the outcome of Run.
type Report struct {
	Session   string
	Snapshots []Snapshot
	Events    map[events.EventType]int
	Dropped   int64
}

// recorder is the Host: it owns the scroll bar state the view reconciles.
type recorder struct {
	mu       sync.Mutex
	last     *view.LayoutResult
	lastAt   time.Time
	value    int
	max      int
	repaints int
}

func (r *recorder) OnLayoutApplied(res *view.LayoutResult) {
	r.mu.Lock()
	r.last = res
	r.lastAt = time.Now()
	r.mu.Unlock()
}

func (r *recorder) SetScrollRange(max int) {
	r.mu.Lock()
	r.max = max
	if r.value > max {
		r.value = max
	}
	r.mu.Unlock()
}

func (r *recorder) SetScrollValue(v int) {
	r.mu.Lock()
	r.value = v
	r.mu.Unlock()
}

func (r *recorder) RequestRepaint() {
	r.mu.Lock()
	r.repaints++
	r.mu.Unlock()
}

func (r *recorder) state() (*view.LayoutResult, time.Time, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.lastAt, r.value, r.max
}

// Run opens a list over src, applies opts.Steps in order and snapshots the
// settled layout after the initial load and after each step.
func Run(ctx context.Context, src pagestore.Source, opts Options) (*Report, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("sim: invalid viewport %dx%d", opts.Width, opts.Height)
	}
	if opts.Quiet <= 0 {
		opts.Quiet = 300 * time.Millisecond
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 15 * time.Second
	}
	logger := logging.OrNop(opts.Logger).Component("sim")

	bus := events.NewEventBus(0)
	defer bus.Close()
	counts := make(map[events.EventType]int)
	var countsMu sync.Mutex
	all := bus.SubscribeAll()
	countDone := make(chan struct{})
	go func() {
		defer close(countDone)
		for ev := range all {
			countsMu.Lock()
			counts[ev.Type()]++
			countsMu.Unlock()
		}
	}()

	store := pagestore.New(src, opts.Store, bus, opts.Logger)
	defer store.Close()

	host := &recorder{}
	lv := view.New(opts.View, store, host, bus, opts.Logger)

	runCtx, cancel := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = lv.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-runDone
	}()

	report := &Report{Session: lv.SessionID()}
	width := opts.Width
	steps := append([]Step{{Kind: StepOpen}}, opts.Steps...)
	for _, step := range steps {
		started := time.Now()
		last, _, _, _ := host.state()
		var prevGen uint64
		if last != nil {
			prevGen = last.Generation
		}

		_, _, value, max := host.state()
		switch step.Kind {
		case StepOpen:
			lv.OnResize(width, opts.Height)
		case StepScroll:
			pos := int(step.Value * float64(max))
			host.SetScrollValue(pos)
			lv.OnScroll(pos)
		case StepDrag:
			pos := int(step.Value * float64(max))
			lv.OnDragPress()
			// Intermediate thumb positions as a real drag would report.
			for i := 1; i <= 4; i++ {
				lv.OnDragMove(value + (pos-value)*i/4)
			}
			host.SetScrollValue(pos)
			lv.OnDragRelease(pos)
		case StepZoom:
			lv.OnZoom(int(step.Value))
		case StepResize:
			width = int(step.Value)
			lv.OnResize(width, opts.Height)
		default:
			return report, fmt.Errorf("sim: unknown step %q", step.Kind)
		}
		// Every step ends with a click so a pass runs even when the
		// action alone would not need one.
		lv.OnUserClick()

		res, err := settle(ctx, host, prevGen, opts.Quiet, opts.StepTimeout)
		if err != nil {
			return report, fmt.Errorf("%s: %w", step, err)
		}
		_, _, value, max = host.state()
		snap := Snapshot{
			Step:        step,
			Generation:  res.Generation,
			StartPage:   res.Window.StartPage,
			EndPage:     res.Window.EndPage,
			FullLayout:  res.Window.FullLayout,
			Items:       len(res.Items),
			Visible:     len(lv.VisibleItems(view.Rect{X: 0, Y: value, Width: width, Height: opts.Height})),
			TotalItems:  res.TotalItems,
			TotalHeight: res.TotalHeight,
			ScrollValue: value,
			ScrollMax:   max,
			AvgRow:      res.AverageRowHeight,
			Missing:     res.Missing,
			CacheHit:    res.CacheHit,
			Elapsed:     time.Since(started),
		}
		report.Snapshots = append(report.Snapshots, snap)
		logger.Debug().
			Str("step", step.String()).
			Uint64("generation", snap.Generation).
			Int("start_page", snap.StartPage).
			Int("end_page", snap.EndPage).
			Dur("elapsed", snap.Elapsed).
			Msg("step settled")
	}

	cancel()
	<-runDone
	bus.Close()
	<-countDone

	countsMu.Lock()
	report.Events = counts
	countsMu.Unlock()
	report.Dropped = bus.GetDroppedEventCount()
	return report, nil
}

// settle waits for a layout newer than prevGen, then until no newer
// layout has arrived for quiet and the window has rows.
func settle(ctx context.Context, host *recorder, prevGen uint64, quiet, timeout time.Duration) (*view.LayoutResult, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimeout
		case <-tick.C:
			res, at, _, _ := host.state()
			if res == nil || res.Generation <= prevGen {
				continue
			}
			if (res.Missing && res.TotalItems > 0) || time.Since(at) < quiet {
				continue
			}
			return res, nil
		}
	}
}
