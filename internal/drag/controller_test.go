package drag

import (
	"testing"
	"time"

	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/events"
	"github.com/tagview/tagview/internal/scroll"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestController(total int) (*Controller, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := New(Config{Now: clock.Now, PreviewThreshold: constants.DefaultPreviewThreshold}, nil, nil)
	c.SetDataset(total, 1000)
	return c, clock
}

func TestController_Release(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		pos        int
		wantEdge   scroll.Edge
		wantPage   int
		wantAnchor int
	}{
		{"top edge", 100000, 15, scroll.EdgeTop, 0, 0},
		{"bottom edge", 100000, 985, scroll.EdgeBottom, 99, 99999},
		{"exact bottom band", 100000, 980, scroll.EdgeBottom, 99, 99999},
		{"middle", 100000, 500, scroll.EdgeNone, 49, 49000},
		{"quarter", 250000, 250, scroll.EdgeNone, 62, 62000},
		{"empty dataset", 0, 500, scroll.EdgeTop, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(tt.total)
			c.Press(1000, 0.3)
			res := c.Release(tt.pos)

			if res.Edge != tt.wantEdge || res.Page != tt.wantPage || res.AnchorIndex != tt.wantAnchor {
				t.Errorf("Release(%d) = %+v, want edge=%s page=%d anchor=%d", tt.pos, res, tt.wantEdge, tt.wantPage, tt.wantAnchor)
			}
			if c.State() != StateReleaseLock {
				t.Errorf("State() = %s, want release_lock", c.State())
			}
		})
	}
}

func TestController_MoveReportsPageChanges(t *testing.T) {
	c, _ := newTestController(100000)
	c.Press(1000, 0)

	if c.Move(5) {
		t.Error("Move within page 0 should not report a change")
	}
	if !c.Move(500) {
		t.Error("Move to the middle should report a change")
	}
	if got := c.TargetPage(); got != 49 {
		t.Errorf("TargetPage() = %d, want 49", got)
	}
	if c.Move(501) {
		t.Error("Move within the same page should not report a change")
	}
}

func TestController_BaselineFrozenDuringDrag(t *testing.T) {
	c, _ := newTestController(100000)
	c.Press(2000, 0)
	c.Move(1000)
	if got := c.Fraction(); got != 0.5 {
		t.Errorf("Fraction() = %v, want 0.5", got)
	}
	if c.BaselineMax() != 2000 {
		t.Errorf("BaselineMax() = %d, want 2000", c.BaselineMax())
	}
}

func TestController_MoveIgnoredWhenIdle(t *testing.T) {
	c, _ := newTestController(100000)
	if c.Move(500) {
		t.Error("Move without Press should be ignored")
	}
}

func TestController_Preview(t *testing.T) {
	tests := []struct {
		total int
		want  bool
	}{
		{9999, false},
		{10000, true},
		{250000, true},
	}
	for _, tt := range tests {
		c, _ := newTestController(tt.total)
		c.Press(1000, 0)
		if got := c.Preview(); got != tt.want {
			t.Errorf("total=%d: Preview() = %v, want %v", tt.total, got, tt.want)
		}
		c.Release(500)
		if c.Preview() {
			t.Errorf("total=%d: preview should end on release", tt.total)
		}
	}
}

func TestController_LockExpires(t *testing.T) {
	c, clock := newTestController(100000)
	c.Press(1000, 0)
	c.Release(500)

	clock.Advance(5 * time.Second)
	if page, ok := c.OwnerPage(clock.Now()); !ok || page != 49 {
		t.Fatalf("OwnerPage() = %d, %v; want 49, true", page, ok)
	}

	clock.Advance(time.Second)
	if _, ok := c.OwnerPage(clock.Now()); ok {
		t.Error("Lock should expire after the default 6s")
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %s, want idle", c.State())
	}
}

func TestController_ReleaseLockClamped(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := New(Config{ReleaseLock: time.Second, Now: clock.Now}, nil, nil)
	c.SetDataset(5000, 1000)
	c.Press(1000, 0)
	c.Release(500)

	clock.Advance(3 * time.Second)
	if _, ok := c.OwnerPage(clock.Now()); !ok {
		t.Error("Lock shorter than the 4s minimum should be clamped up")
	}
}

func TestController_BottomReleaseIgnoresDistantPages(t *testing.T) {
	c, clock := newTestController(1000000)
	bus := events.NewEventBus(10)
	defer bus.Close()
	c.bus = bus
	ch := bus.Subscribe(events.EventDragState)

	c.Press(100000, 0.5)
	res := c.Release(99990)
	if res.Edge != scroll.EdgeBottom || res.AnchorIndex != 999999 {
		t.Fatalf("Release() = %+v, want bottom anchor", res)
	}

	// Completions for pages far from the tail arrive while the lock is live.
	for _, p := range []int{0, 1, 500, 998} {
		if c.ConfirmLoaded(p) {
			t.Errorf("ConfirmLoaded(%d) cleared a lock owned by page 999", p)
		}
		clock.Advance(100 * time.Millisecond)
		if page, ok := c.OwnerPage(clock.Now()); !ok || page != 999 {
			t.Fatalf("after page %d: OwnerPage() = %d, %v; want 999, true", p, page, ok)
		}
	}

	if !c.ConfirmLoaded(999) {
		t.Error("ConfirmLoaded(999) should clear the lock")
	}
	if _, ok := c.Lock(); ok {
		t.Error("Lock() should report no lock after confirmation")
	}

	var states []string
	for len(ch) > 0 {
		states = append(states, (<-ch).(*events.DragEvent).State)
	}
	want := []string{"dragging", "release_lock", "idle"}
	if len(states) != len(want) {
		t.Fatalf("drag states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state %d = %s, want %s", i, states[i], want[i])
		}
	}
}
