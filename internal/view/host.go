package view

// Host is the UI toolkit side of the list. All calls are made from the
// ListView loop goroutine.
type Host interface {
	// OnLayoutApplied is called after a pass has been swapped in.
	OnLayoutApplied(r *LayoutResult)

	// SetScrollRange sets the scrollbar maximum.
	SetScrollRange(max int)

	// SetScrollValue moves the scrollbar without echoing OnScroll.
	SetScrollValue(v int)

	RequestRepaint()
}

// ChangeKind tells OnDataChanged what happened to a range.
type ChangeKind int

const (
	ChangeInserted ChangeKind = iota
	ChangeRemoved
)

// Change describes rows inserted or removed at [Start, End).
type Change struct {
	Kind  ChangeKind
	Start int
	End   int
}

// NopHost discards every call. Used by headless runs.
type NopHost struct{}

func (NopHost) OnLayoutApplied(*LayoutResult) {}
func (NopHost) SetScrollRange(int)            {}
func (NopHost) SetScrollValue(int)            {}
func (NopHost) RequestRepaint()               {}
