package window

// Reason records which rule picked the current page.
type Reason string

const (
	ReasonEmpty      Reason = "empty"
	ReasonAnchor     Reason = "anchor"
	ReasonDrag       Reason = "drag"
	ReasonTop        Reason = "top"
	ReasonBottom     Reason = "bottom"
	ReasonVisible    Reason = "visible"
	ReasonFraction   Reason = "fraction"
	ReasonHysteresis Reason = "hysteresis"
)

// ResolveInput is everything needed to pick the current page.
type ResolveInput struct {
	TotalItems int
	PageSize   int

	// Scroll position in canonical units.
	ScrollValue int
	ScrollMax   int

	// PreviousPage is the last resolved page, or -1 when there is none.
	PreviousPage int

	// TopVisibleIndex is the first visible real item from the previous
	// pass, or -1. Ignored in strict mode.
	TopVisibleIndex int
	Strict          bool

	// Dragging is set while the scrollbar thumb is held.
	Dragging       bool
	DragTargetPage int

	// AnchorIndex pins the page while a release lock is active, or -1.
	AnchorIndex int
}

// Resolution is the page chosen by ResolveCurrentPage.
type Resolution struct {
	Page        int
	SourceIndex int
	Reason      Reason
}

// ResolveCurrentPage picks the page the window is centered on. An active
// anchor wins over a drag target, which wins over the scroll edges. Away
// from those, the page only moves once the source index has crossed half a
// page past the previous page's boundary.
func ResolveCurrentPage(in ResolveInput) Resolution {
	pages := PageCount(in.TotalItems, in.PageSize)
	if pages == 0 {
		return Resolution{Reason: ReasonEmpty}
	}
	clampPage := func(p int) int {
		if p < 0 {
			return 0
		}
		if p > pages-1 {
			return pages - 1
		}
		return p
	}
	clampIndex := func(i int) int {
		if i < 0 {
			return 0
		}
		if i > in.TotalItems-1 {
			return in.TotalItems - 1
		}
		return i
	}

	if in.AnchorIndex >= 0 {
		idx := clampIndex(in.AnchorIndex)
		return Resolution{Page: clampPage(idx / in.PageSize), SourceIndex: idx, Reason: ReasonAnchor}
	}

	if in.Dragging {
		page := clampPage(in.DragTargetPage)
		return Resolution{Page: page, SourceIndex: page * in.PageSize, Reason: ReasonDrag}
	}

	if in.ScrollValue <= 2 {
		return Resolution{Page: 0, SourceIndex: 0, Reason: ReasonTop}
	}
	if in.ScrollMax > 0 && in.ScrollValue >= in.ScrollMax-2 {
		last := in.TotalItems - 1
		return Resolution{Page: clampPage(last / in.PageSize), SourceIndex: last, Reason: ReasonBottom}
	}

	var src int
	reason := ReasonFraction
	if !in.Strict && in.TopVisibleIndex >= 0 {
		src = clampIndex(in.TopVisibleIndex)
		reason = ReasonVisible
	} else {
		frac := 0.0
		if in.ScrollMax > 0 {
			frac = float64(in.ScrollValue) / float64(in.ScrollMax)
		}
		src = clampIndex(int(frac * float64(in.TotalItems)))
	}

	candidate := clampPage(src / in.PageSize)
	prev := in.PreviousPage
	if prev < 0 || prev > pages-1 || candidate == prev {
		return Resolution{Page: candidate, SourceIndex: src, Reason: reason}
	}

	half := in.PageSize / 2
	if half < 1 {
		half = 1
	}
	if candidate > prev {
		if src < (prev+1)*in.PageSize+half {
			return Resolution{Page: prev, SourceIndex: src, Reason: ReasonHysteresis}
		}
	} else if src > prev*in.PageSize-half {
		return Resolution{Page: prev, SourceIndex: src, Reason: ReasonHysteresis}
	}
	return Resolution{Page: candidate, SourceIndex: src, Reason: reason}
}
