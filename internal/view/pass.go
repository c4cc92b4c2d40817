package view

import (
	"context"
	"time"

	"github.com/tagview/tagview/internal/events"
	"github.com/tagview/tagview/internal/layout"
	"github.com/tagview/tagview/internal/pagestore"
	"github.com/tagview/tagview/internal/recalc"
	"github.com/tagview/tagview/internal/scroll"
	"github.com/tagview/tagview/internal/window"
)

// passInput is the snapshot handed to the worker.
type passInput struct {
	generation uint64
	tokens     []layout.Token
	window     window.Window
	total      int
	cols       int
	colW       int
	spacing    int
	avg        float64
	viewportH  int
	missing    bool
}

func (v *ListView) resolve() window.Resolution {
	in := window.ResolveInput{
		TotalItems:      v.store.TotalCount(),
		PageSize:        v.cfg.PageSize,
		ScrollValue:     v.scrollValue,
		ScrollMax:       v.scrollMax,
		PreviousPage:    v.currentPage,
		TopVisibleIndex: -1,
		Strict:          v.cfg.Policy.Strict,
		AnchorIndex:     -1,
	}
	if lock, ok := v.drag.Lock(); ok {
		in.AnchorIndex = lock.AnchorIndex
	} else if v.drag.Dragging() {
		in.Dragging = true
		in.DragTargetPage = v.drag.TargetPage()
	}
	if r := v.current.Load(); r != nil && !in.Strict && !r.Missing {
		if top, ok := r.TopVisible(v.scrollValue); ok {
			in.TopVisibleIndex = top.Index
		}
	}
	return window.ResolveCurrentPage(in)
}

// prepare runs on the loop goroutine at the start of a pass.
func (v *ListView) prepare(pass recalc.Pass) (recalc.Work[*LayoutResult], bool) {
	if v.refreshing {
		return nil, false
	}
	cols := layout.ColumnsForWidth(v.viewportW, v.columnWidth, v.cfg.Spacing)
	if cols == 0 {
		v.logger.Debug().Int("width", v.viewportW).Msg("no columns fit, skipping pass")
		return nil, false
	}

	total := v.store.TotalCount()
	full := v.cfg.Policy.Eligible(v.aspects.Measured(), total)
	res := v.resolve()
	v.currentPage = res.Page

	w := window.Plan(res.Page, total, v.cfg.PageSize, v.cfg.BufferRadius, full)
	if _, err := v.store.EnsureLoaded(w.MinIndex, w.MaxIndex); err != nil {
		v.logger.Warn().Err(err).Msg("page request failed")
		return nil, false
	}
	if total > 0 {
		v.store.Touch(pagestore.PageRange{Start: w.StartPage, End: w.EndPage})
	}
	v.planned = w

	avg := v.avg.Freeze()
	plan := window.TokensFor(w, v.loadedTokens(w), total, avg, cols)

	in := passInput{
		generation: pass.Generation,
		tokens:     plan.Tokens,
		window:     w,
		total:      total,
		cols:       cols,
		colW:       v.columnWidth,
		spacing:    v.cfg.Spacing,
		avg:        avg,
		viewportH:  v.viewportH,
		missing:    plan.Missing,
	}
	v.logger.Debug().
		Uint64("generation", pass.Generation).
		Str("trigger", pass.Trigger.String()).
		Int("page", res.Page).
		Str("reason", string(res.Reason)).
		Int("tokens", len(plan.Tokens)).
		Bool("full", full).
		Msg("pass prepared")

	return func(ctx context.Context) (*LayoutResult, error) {
		return v.compute(ctx, in)
	}, true
}

// loadedTokens returns real tokens for the items of loaded pages in w.
func (v *ListView) loadedTokens(w window.Window) []layout.Token {
	var toks []layout.Token
	for p := w.StartPage; p <= w.EndPage && w.Size() > 0; p++ {
		if !v.store.IsPageLoaded(p) {
			continue
		}
		lo := p * v.cfg.PageSize
		hi := lo + v.cfg.PageSize
		if hi > w.MaxIndex {
			hi = w.MaxIndex
		}
		for i := lo; i < hi; i++ {
			ar, _ := v.aspects.Get(i)
			toks = append(toks, layout.Real(i, ar))
		}
	}
	return toks
}

// compute runs on the worker goroutine and touches only its snapshot.
func (v *ListView) compute(ctx context.Context, in passInput) (*LayoutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		res layout.Result
		hit bool
		err error
	)
	if v.cfg.Cache != nil {
		var stats layout.CacheStats
		res, stats, err = v.cfg.Cache.Compute(v.cfg.DatasetKey, in.tokens, in.colW, in.spacing, in.cols)
		hit = stats.MemoryHit || stats.DiskHit
	} else {
		res, err = layout.Compute(in.tokens, in.colW, in.spacing, in.cols)
	}
	if err != nil {
		return nil, err
	}

	out := newLayoutResult(res)
	out.Generation = in.generation
	out.Window = in.window
	out.TotalItems = in.total
	out.AverageRowHeight = in.avg
	out.CanonicalMax = scroll.CanonicalMax(in.total, in.cols, in.avg, in.viewportH)
	switch contentMax := max(0, res.TotalHeight-in.viewportH); {
	case in.window.FullLayout && in.total > 0:
		out.CanonicalMax = contentMax
	case in.total > 0 && contentMax > out.CanonicalMax:
		// The tail was laid out below the estimated domain. Grow the
		// domain so the last row stays reachable.
		if _, ok := out.Item(in.total - 1); ok {
			out.CanonicalMax = contentMax
			if avg, ok := scroll.TailAverage(res.TotalHeight, in.total, in.cols, in.avg); ok {
				out.TailAverage = avg
			}
		}
	}
	out.Missing = in.missing
	out.CacheHit = hit
	return out, nil
}

// apply runs on the loop goroutine for the latest pass only.
func (v *ListView) apply(pass recalc.Pass, r *LayoutResult) {
	anchorIdx, anchorOff, hasAnchor := v.captureAnchor()

	v.current.Store(r)
	v.reconcile(r, anchorIdx, anchorOff, hasAnchor)

	// The sample only feeds the next pass; r keeps its frozen average.
	if sample, ok := scroll.MeasureResult(&r.Result); ok {
		v.avg.Observe(sample, !r.Window.FullLayout)
	}
	if r.TailAverage > 0 && v.avg.Raise(r.TailAverage) {
		v.logger.Debug().Float64("average", r.TailAverage).Int("max", r.CanonicalMax).Msg("domain extended to tail")
	}

	if !r.Window.FullLayout && r.TotalItems > 0 {
		v.store.EvictFarFrom(v.currentPage*v.cfg.PageSize, v.cfg.BufferRadius+1,
			pagestore.PageRange{Start: r.Window.StartPage, End: r.Window.EndPage})
	}

	if lock, ok := v.drag.Lock(); ok && r.HasPage(lock.Page, v.cfg.PageSize) {
		v.drag.ConfirmLoaded(lock.Page)
	}

	if r.Missing {
		v.sched.Trigger(recalc.TriggerRetry)
	}

	v.bus.Publish(&events.RecalcEvent{
		BaseEvent:   events.BaseEvent{EventType: events.EventLayoutApplied, Time: time.Now()},
		Generation:  r.Generation,
		Trigger:     pass.Trigger.String(),
		Items:       len(r.Items),
		TotalHeight: r.TotalHeight,
		StartPage:   r.Window.StartPage,
		EndPage:     r.Window.EndPage,
		FullLayout:  r.Window.FullLayout,
		Elapsed:     time.Since(pass.Started),
	})
	v.host.OnLayoutApplied(r)
	v.host.RequestRepaint()
}

// captureAnchor records the item at the top of the viewport and how far
// the viewport top sits below it.
func (v *ListView) captureAnchor() (int, int, bool) {
	old := v.current.Load()
	if old == nil || old.Missing {
		return 0, 0, false
	}
	top, ok := old.TopVisible(v.scrollValue)
	if !ok {
		return 0, 0, false
	}
	return top.Index, v.scrollValue - top.Y, true
}

// reconcile installs the pass's domain and scroll value on the host. The
// scrollbar is left alone while the thumb is held.
func (v *ListView) reconcile(r *LayoutResult, anchorIdx, anchorOff int, hasAnchor bool) {
	if v.drag.Dragging() {
		return
	}

	target := scroll.ReconcileTarget{NewMax: r.CanonicalMax, BottomValue: -1}
	if lock, ok := v.drag.Lock(); ok {
		if lock.Edge != scroll.EdgeNone {
			target.Edge = lock.Edge
		} else {
			target.Locked = true
			target.LockedFraction = lock.Fraction
		}
	} else if v.scrollMax > 0 {
		target.Edge = scroll.EdgeOf(v.scrollValue, v.scrollMax)
	}

	if target.Edge == scroll.EdgeBottom && r.TotalItems > 0 {
		if tail, ok := r.Item(r.TotalItems - 1); ok {
			target.BottomValue = max(0, tail.Bottom()-v.viewportH)
		}
	}
	if hasAnchor {
		if it, ok := r.Item(anchorIdx); ok {
			target.HasAnchor = true
			target.AnchorValue = it.Y + anchorOff
		}
	}

	value := scroll.Reconcile(scroll.HostRange{Value: v.scrollValue, Max: v.scrollMax}, target)
	if target.NewMax != v.scrollMax {
		v.scrollMax = target.NewMax
		v.host.SetScrollRange(target.NewMax)
	}
	if value != v.scrollValue {
		v.scrollValue = value
		v.host.SetScrollValue(value)
	}
}
