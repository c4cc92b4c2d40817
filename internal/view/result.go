package view

import (
	"github.com/tagview/tagview/internal/layout"
	"github.com/tagview/tagview/internal/window"
)

// Rect is an axis-aligned rectangle in content coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

func rectOf(it layout.PositionedItem) Rect {
	return Rect{X: it.X, Y: it.Y, Width: it.Width, Height: it.Height}
}

// LayoutResult is one applied layout pass. It is never modified after it
// is published, so readers may hold it across passes.
type LayoutResult struct {
	layout.Result

	Generation uint64
	Window     window.Window
	TotalItems int

	// AverageRowHeight is the value frozen at the start of the pass. It
	// sized the spacers and the estimated domain.
	AverageRowHeight float64

	// CanonicalMax is the scroll domain. It is the estimate from
	// AverageRowHeight, grown to the laid out content when the last item
	// is placed below it. A full layout uses the content height exactly.
	CanonicalMax int

	// TailAverage is the row height implied by a tail that outgrew the
	// estimate, or 0. It raises the average for later passes.
	TailAverage float64

	// Missing is set when the window had no loaded items yet.
	Missing  bool
	CacheHit bool

	byIndex map[int]int
}

func newLayoutResult(r layout.Result) *LayoutResult {
	lr := &LayoutResult{Result: r, byIndex: make(map[int]int, len(r.Items))}
	for i, it := range r.Items {
		lr.byIndex[it.Index] = i
	}
	return lr
}

// Item returns the positioned item for a global index.
func (r *LayoutResult) Item(index int) (layout.PositionedItem, bool) {
	if r == nil {
		return layout.PositionedItem{}, false
	}
	i, ok := r.byIndex[index]
	if !ok {
		return layout.PositionedItem{}, false
	}
	return r.Items[i], true
}

// HasPage reports whether any item of page p was placed.
func (r *LayoutResult) HasPage(p, pageSize int) bool {
	if r == nil || pageSize <= 0 {
		return false
	}
	lo, hi := p*pageSize, (p+1)*pageSize
	if hi-lo <= len(r.byIndex) {
		for i := lo; i < hi; i++ {
			if _, ok := r.byIndex[i]; ok {
				return true
			}
		}
		return false
	}
	for _, it := range r.Items {
		if it.Index >= lo && it.Index < hi {
			return true
		}
	}
	return false
}
