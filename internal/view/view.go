// Package view is the list facade a host UI talks to. It owns the pass
// pipeline: resolve the current page, plan the window, request pages,
// build tokens, pack them on the worker and apply the result.
package view

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tagview/tagview/internal/aspect"
	"github.com/tagview/tagview/internal/config"
	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/drag"
	"github.com/tagview/tagview/internal/events"
	"github.com/tagview/tagview/internal/layout"
	"github.com/tagview/tagview/internal/logging"
	"github.com/tagview/tagview/internal/pagestore"
	"github.com/tagview/tagview/internal/recalc"
	"github.com/tagview/tagview/internal/retry"
	"github.com/tagview/tagview/internal/scroll"
	"github.com/tagview/tagview/internal/window"
)

// Config configures a ListView.
type Config struct {
	PageSize     int
	BufferRadius int
	ColumnWidth  int
	Spacing      int
	Policy       window.FullLayoutPolicy
	Recalc       recalc.Config

	ReleaseLock      time.Duration
	PreviewThreshold int

	// Cache is optional. DatasetKey names the dataset for its disk tier.
	Cache      *layout.Cache
	DatasetKey string
}

// ConfigFromEngine maps an engine configuration onto a view configuration.
// The layout cache is left to the caller.
func ConfigFromEngine(ec *config.EngineConfig) Config {
	return Config{
		PageSize:     ec.Paging.PageSize,
		BufferRadius: ec.Paging.BufferRadius,
		ColumnWidth:  ec.Layout.ColumnWidth,
		Spacing:      ec.Layout.Spacing,
		Policy: window.FullLayoutPolicy{
			MaxItems:    ec.Layout.FullLayoutMaxItems,
			MinCoverage: ec.Layout.FullLayoutMinCoverage,
			Strict:      ec.Layout.StrictWindowing,
		},
		Recalc: recalc.Config{
			DelayMin: ec.Recalc.DelayMin,
			DelayMax: ec.Recalc.DelayMax,
			Watchdog: ec.Recalc.Watchdog,
		},
		ReleaseLock:      ec.Drag.ReleaseLock,
		PreviewThreshold: ec.Drag.PreviewThreshold,
	}
}

// ListView is a virtualized masonry list. Inbound calls may come from any
// goroutine; they are queued onto the loop started by Run. Queries read the
// last applied LayoutResult and never block on a pass.
type ListView struct {
	cfg     Config
	store   *pagestore.Store
	host    Host
	bus     *events.EventBus
	logger  *logging.Logger
	session string

	drag    *drag.Controller
	sched   *recalc.Scheduler[*LayoutResult]
	current atomic.Pointer[LayoutResult]

	inbox chan func()
	done  chan struct{}

	// Loop-owned state.
	ctx         context.Context
	aspects     *aspect.Index
	avg         *scroll.AverageTracker
	viewportW   int
	viewportH   int
	columnWidth int
	scrollValue int
	scrollMax   int
	currentPage int
	planned     window.Window
	failures    map[int]int
	dirty       bool
	keepBelow   int
	refreshing  bool
	resetPage   bool
}

// New creates a list over store. host may be nil for headless use.
func New(cfg Config, store *pagestore.Store, host Host, bus *events.EventBus, logger *logging.Logger) *ListView {
	if cfg.PageSize < 1 {
		cfg.PageSize = store.PageSize()
	}
	if cfg.ColumnWidth < 1 {
		cfg.ColumnWidth = constants.DefaultColumnWidth
	}
	if cfg.Spacing < 0 {
		cfg.Spacing = constants.DefaultSpacing
	}
	cfg.BufferRadius = window.ClampRadius(cfg.BufferRadius)
	if cfg.Policy.MaxItems == 0 && cfg.Policy.MinCoverage == 0 {
		strict := cfg.Policy.Strict
		cfg.Policy = window.DefaultPolicy()
		cfg.Policy.Strict = strict
	}
	if host == nil {
		host = NopHost{}
	}

	session := uuid.New().String()
	if cfg.DatasetKey == "" {
		cfg.DatasetKey = session
	}

	v := &ListView{
		cfg:         cfg,
		store:       store,
		host:        host,
		bus:         bus,
		logger:      logging.OrNop(logger).Component("view"),
		session:     session,
		inbox:       make(chan func(), 256),
		done:        make(chan struct{}),
		aspects:     aspect.New(0),
		avg:         scroll.NewAverageTracker(cfg.ColumnWidth),
		columnWidth: cfg.ColumnWidth,
		currentPage: -1,
		failures:    make(map[int]int),
		dirty:       true,
	}
	v.drag = drag.New(drag.Config{
		ReleaseLock:      cfg.ReleaseLock,
		PreviewThreshold: cfg.PreviewThreshold,
	}, bus, logger)
	v.drag.SetDataset(0, cfg.PageSize)
	v.sched = recalc.New[*LayoutResult](cfg.Recalc, v.prepare, v.apply, bus, logger)
	return v
}

// SessionID identifies this list in logs and events.
func (v *ListView) SessionID() string {
	return v.session
}

// Run services inbound calls, page completions and layout passes until ctx
// is cancelled. The first pass counts the dataset.
func (v *ListView) Run(ctx context.Context) error {
	v.ctx = ctx
	defer close(v.done)
	defer v.sched.Close()

	v.logger.Info().Str("session", v.session).Msg("list view started")
	v.beginRefresh(recalc.TriggerData)

	completions := v.store.Completions()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-v.inbox:
			fn()
		case c, ok := <-completions:
			if !ok {
				completions = nil
				continue
			}
			v.onCompletion(c)
		case trig := <-v.sched.Ready():
			if v.dirty {
				v.beginRefresh(trig)
				continue
			}
			v.sched.Start(trig)
		case out := <-v.sched.Results():
			v.sched.Finish(out)
		}
	}
}

// post queues fn onto the loop. Calls after Run returns are dropped.
func (v *ListView) post(fn func()) {
	select {
	case v.inbox <- fn:
	case <-v.done:
	}
}

// OnScroll records a new scroll value and schedules a pass when the page
// under the viewport may have changed.
func (v *ListView) OnScroll(value int) {
	v.post(func() {
		v.scrollValue = value
		if v.drag.Dragging() {
			return
		}
		if v.needsPass() {
			v.sched.Trigger(recalc.TriggerScroll)
		}
	})
}

// OnResize records the viewport size.
func (v *ListView) OnResize(width, height int) {
	v.post(func() {
		if width == v.viewportW && height == v.viewportH {
			return
		}
		v.viewportW, v.viewportH = width, height
		v.sched.Trigger(recalc.TriggerResize)
	})
}

// OnZoom changes the column width and reseeds the row height estimate.
func (v *ListView) OnZoom(columnWidth int) {
	v.post(func() {
		if columnWidth < 1 || columnWidth == v.columnWidth {
			return
		}
		v.columnWidth = columnWidth
		v.avg.Seed(columnWidth)
		v.sched.Trigger(recalc.TriggerZoom)
	})
}

// OnFilterChanged tells the list that the source now yields a different
// dataset. The count is refreshed once the filter debounce settles.
func (v *ListView) OnFilterChanged() {
	v.post(func() {
		v.markDirty(0)
		v.resetPage = true
		v.sched.Trigger(recalc.TriggerFilterText)
	})
}

// OnDataChanged reports rows inserted or removed. Aspect ratios before
// the change are kept.
func (v *ListView) OnDataChanged(ch Change) {
	v.post(func() {
		v.markDirty(ch.Start)
		v.sched.Trigger(recalc.TriggerData)
	})
}

// OnUserClick requests a prompt pass.
func (v *ListView) OnUserClick() {
	v.post(func() {
		v.sched.Trigger(recalc.TriggerUserClick)
	})
}

// OnDragPress starts a scrollbar drag against the current domain.
func (v *ListView) OnDragPress() {
	v.post(func() {
		v.drag.Press(v.scrollMax, scroll.Fraction(v.scrollValue, v.scrollMax))
	})
}

// OnDragMove tracks the thumb. No pass runs until release; the preview
// grid is repainted when the target page changes.
func (v *ListView) OnDragMove(pos int) {
	v.post(func() {
		v.scrollValue = pos
		if v.drag.Move(pos) && v.drag.Preview() {
			v.host.RequestRepaint()
		}
	})
}

// OnDragRelease resolves the landing page and schedules a pass for it.
func (v *ListView) OnDragRelease(pos int) {
	v.post(func() {
		v.scrollValue = pos
		res := v.drag.Release(pos)
		v.logger.Debug().Int("page", res.Page).Str("edge", res.Edge.String()).Msg("drag release")
		v.sched.Trigger(recalc.TriggerDragRelease)
		v.host.RequestRepaint()
	})
}

func (v *ListView) markDirty(keepBelow int) {
	if !v.dirty || keepBelow < v.keepBelow {
		v.keepBelow = keepBelow
	}
	v.dirty = true
}

// needsPass reports whether the resolved page moved or the viewport left
// the materialized content.
func (v *ListView) needsPass() bool {
	r := v.current.Load()
	if r == nil || r.Missing {
		return true
	}
	if v.resolve().Page != v.currentPage {
		return true
	}
	if v.scrollValue+v.viewportH > r.TotalHeight && r.Window.MaxIndex < r.TotalItems {
		return true
	}
	return false
}

// beginRefresh counts the dataset off the loop and starts a pass when done.
func (v *ListView) beginRefresh(trigger recalc.Trigger) {
	if v.refreshing {
		return
	}
	v.refreshing = true
	v.dirty = false
	keepBelow := v.keepBelow
	ctx := v.ctx

	go func() {
		total, err := v.store.Refresh(ctx)
		v.post(func() {
			v.refreshing = false
			if err != nil {
				if ctx.Err() == nil {
					v.logger.Error().Err(err).Msg("dataset refresh failed")
					v.markDirty(keepBelow)
					v.sched.Trigger(recalc.TriggerRetry)
				}
				return
			}
			v.onRefreshed(total, keepBelow, trigger)
		})
	}()
}

func (v *ListView) onRefreshed(total, keepBelow int, trigger recalc.Trigger) {
	v.aspects.Resize(keepBelow)
	v.aspects.Resize(total)
	v.drag.SetDataset(total, v.cfg.PageSize)
	if v.resetPage {
		v.currentPage = -1
		v.resetPage = false
	}
	v.keepBelow = total
	v.failures = make(map[int]int)
	v.logger.Info().Int("total", total).Str("trigger", trigger.String()).Msg("dataset refreshed")

	v.sched.Invalidate()
	v.sched.Start(trigger)
}

func (v *ListView) onCompletion(c pagestore.Completion) {
	if !v.store.Apply(c) {
		return
	}
	if c.Err != nil {
		v.onPageFailed(c)
		return
	}
	delete(v.failures, c.Page)
	base := c.Page * v.cfg.PageSize
	for off, row := range c.Rows {
		v.aspects.Set(base+off, row.AspectRatio())
	}
	if v.planned.ContainsPage(c.Page) {
		v.sched.Trigger(recalc.TriggerPageLoaded)
	}
}

// onPageFailed schedules another pass for a window page whose load retries
// ran out, so its spacer is replaced once the source recovers. The delay
// doubles with each consecutive failure of the page. Permanent errors stay
// spacers until the next dataset refresh.
func (v *ListView) onPageFailed(c pagestore.Completion) {
	if !v.planned.ContainsPage(c.Page) || retry.IsPermanent(c.Err) {
		return
	}
	n := v.failures[c.Page]
	v.failures[c.Page] = n + 1
	delay := failedPageDelay(n)
	v.logger.Warn().Err(c.Err).Int("page", c.Page).Dur("retry_in", delay).Msg("page load failed")

	page, epoch := c.Page, c.Epoch
	time.AfterFunc(delay, func() {
		v.post(func() {
			if v.store.Epoch() != epoch || !v.planned.ContainsPage(page) || v.store.IsPageLoaded(page) {
				return
			}
			v.sched.Trigger(recalc.TriggerRetry)
		})
	})
}

func failedPageDelay(failures int) time.Duration {
	d := constants.FailedPageRetryDelay
	for i := 0; i < failures && d < constants.FailedPageRetryMaxDelay; i++ {
		d *= 2
	}
	if d > constants.FailedPageRetryMaxDelay {
		d = constants.FailedPageRetryMaxDelay
	}
	return d
}

// Current returns the last applied result, or nil before the first pass.
func (v *ListView) Current() *LayoutResult {
	return v.current.Load()
}

// TotalHeight returns the content height of the last applied pass.
func (v *ListView) TotalHeight() int {
	if r := v.current.Load(); r != nil {
		return r.TotalHeight
	}
	return 0
}

// ItemRect returns the rectangle of a placed item.
func (v *ListView) ItemRect(index int) (Rect, bool) {
	it, ok := v.current.Load().Item(index)
	if !ok {
		return Rect{}, false
	}
	return rectOf(it), true
}

// VisibleItems returns the items intersecting rect. While a drag preview is
// active it returns a uniform grid for the target page instead.
func (v *ListView) VisibleItems(rect Rect) []layout.PositionedItem {
	r := v.current.Load()
	if r == nil || rect.Height <= 0 {
		return nil
	}
	if v.drag.Preview() {
		return previewGrid(r, rect, v.drag.TargetPage(), v.cfg.PageSize)
	}

	items := r.Visible(rect.Y, rect.Y+rect.Height)
	if rect.Width <= 0 {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if it.X < rect.X+rect.Width && it.X+it.Width > rect.X {
			out = append(out, it)
		}
	}
	return out
}

// previewGrid lays out the target page as square cells from the top of rect.
func previewGrid(r *LayoutResult, rect Rect, page, pageSize int) []layout.PositionedItem {
	cols := r.NumColumns
	if cols < 1 || r.ColumnWidth < 1 {
		return nil
	}
	step := r.ColumnWidth + r.Spacing
	rows := rect.Height/step + 2
	start := page * pageSize

	items := make([]layout.PositionedItem, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for c := 0; c < cols; c++ {
			idx := start + row*cols + c
			if idx >= r.TotalItems {
				return items
			}
			items = append(items, layout.PositionedItem{
				Index:  idx,
				X:      c * step,
				Y:      rect.Y + row*step,
				Width:  r.ColumnWidth,
				Height: r.ColumnWidth,
			})
		}
	}
	return items
}
