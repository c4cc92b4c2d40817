package scroll

import (
	"math"
	"testing"

	"github.com/tagview/tagview/internal/layout"
)

func TestAverageTracker_Seed(t *testing.T) {
	tests := []struct {
		colW int
		want float64
	}{
		{200, 202},
		{10, 32},
		{0, 32},
	}
	for _, tt := range tests {
		if got := NewAverageTracker(tt.colW).Current(); got != tt.want {
			t.Errorf("seed(%d) = %v, want %v", tt.colW, got, tt.want)
		}
	}
}

func TestAverageTracker_Observe(t *testing.T) {
	tests := []struct {
		name     string
		strict   bool
		sample   float64
		accepted bool
		want     float64
	}{
		{"grows", false, 302, true, 212},
		{"shrinks when not strict", false, 102, true, 192},
		{"never shrinks when strict", true, 102, true, 202},
		{"grows when strict", true, 302, true, 212},
		{"rejects tiny sample", false, 10, false, 202},
		{"rejects huge sample", false, 5000, false, 202},
		{"rejects NaN", false, math.NaN(), false, 202},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewAverageTracker(200)
			ok := tr.Observe(tt.sample, tt.strict)
			if ok != tt.accepted {
				t.Errorf("Observe() accepted = %v, want %v", ok, tt.accepted)
			}
			if math.Abs(tr.Current()-tt.want) > 1e-9 {
				t.Errorf("Current() = %v, want %v", tr.Current(), tt.want)
			}
		})
	}
}

func TestAverageTracker_FrozenValueSurvivesObserve(t *testing.T) {
	tr := NewAverageTracker(200)
	frozen := tr.Freeze()

	// A pass completes and reports a much taller average.
	tr.Observe(1000, true)

	if tr.Frozen() != frozen {
		t.Errorf("Frozen() changed from %v to %v", frozen, tr.Frozen())
	}
	// Domain sizing for the pass uses the frozen value.
	if CanonicalMax(100000, 5, tr.Frozen(), 0) != CanonicalMax(100000, 5, frozen, 0) {
		t.Error("Domain must be sized from the frozen average")
	}
	if tr.Current() <= frozen {
		t.Errorf("Current() = %v, expected growth past %v", tr.Current(), frozen)
	}
	if next := tr.Freeze(); next != tr.Current() {
		t.Errorf("Next Freeze() = %v, want %v", next, tr.Current())
	}
}

func TestAverageTracker_StrictIsMonotonic(t *testing.T) {
	tr := NewAverageTracker(100)
	prev := tr.Current()
	for _, s := range []float64{400, 50, 80, 900, 20, 4000, 11} {
		tr.Observe(s, true)
		if tr.Current() < prev {
			t.Fatalf("average decreased from %v to %v after sample %v", prev, tr.Current(), s)
		}
		prev = tr.Current()
	}
}

func TestAverageTracker_Raise(t *testing.T) {
	tests := []struct {
		name   string
		v      float64
		raised bool
		want   float64
	}{
		{"raises", 400, true, 400},
		{"ignores lower value", 150, false, 202},
		{"ignores equal value", 202, false, 202},
		{"rejects out of range", 5000, false, 202},
		{"rejects NaN", math.NaN(), false, 202},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewAverageTracker(200)
			if got := tr.Raise(tt.v); got != tt.raised {
				t.Errorf("Raise(%v) = %v, want %v", tt.v, got, tt.raised)
			}
			if tr.Current() != tt.want {
				t.Errorf("Current = %v, want %v", tr.Current(), tt.want)
			}
		})
	}
}

func TestTailAverage(t *testing.T) {
	tests := []struct {
		name        string
		totalHeight int
		items, cols int
		avg         float64
		want        float64
		ok          bool
	}{
		{"taller than estimate", 30000, 300, 3, 202, 300, true},
		{"partial last row counts", 30300, 301, 3, 202, 300, true},
		{"not above estimate", 20000, 300, 3, 202, 0, false},
		{"above sample range", 600000, 300, 3, 202, 0, false},
		{"no items", 1000, 0, 3, 202, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TailAverage(tt.totalHeight, tt.items, tt.cols, tt.avg)
			if ok != tt.ok || got != tt.want {
				t.Errorf("TailAverage = %v, %v, want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMeasureResult(t *testing.T) {
	tokens := []layout.Token{layout.NewSpacer(layout.SpacerPrefix, 5000)}
	for i := 0; i < 6; i++ {
		tokens = append(tokens, layout.Real(i, 1.0))
	}
	res, err := layout.Compute(tokens, 100, 0, 3)
	if err != nil {
		t.Fatal(err)
	}

	got, ok := MeasureResult(&res)
	if !ok {
		t.Fatal("Expected a sample")
	}
	// Two rows of 100px; the prefix spacer is excluded.
	if got != 100 {
		t.Errorf("MeasureResult() = %v, want 100", got)
	}

	empty, _ := layout.Compute([]layout.Token{layout.NewSpacer(layout.SpacerWindow, 300)}, 100, 0, 3)
	if _, ok := MeasureResult(&empty); ok {
		t.Error("Expected no sample for a spacer-only result")
	}
	if _, ok := MeasureResult(nil); ok {
		t.Error("Expected no sample for nil result")
	}
}
