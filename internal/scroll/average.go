package scroll

import (
	"math"

	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/layout"
)

// AverageTracker keeps the running average row height used for spacer and
// domain sizing. A pass reads the value once through Freeze; samples observed
// afterwards only affect later passes. Not safe for concurrent use.
type AverageTracker struct {
	current float64
	frozen  float64
	samples int
}

// NewAverageTracker returns a tracker seeded for columnWidth.
func NewAverageTracker(columnWidth int) *AverageTracker {
	t := &AverageTracker{}
	t.Seed(columnWidth)
	return t
}

// Seed resets the average to max(32, columnWidth+2).
func (t *AverageTracker) Seed(columnWidth int) {
	t.current = math.Max(constants.MinSeedRowHeight, float64(columnWidth+2))
	t.frozen = t.current
	t.samples = 0
}

// Current returns the live average.
func (t *AverageTracker) Current() float64 {
	return t.current
}

// Freeze captures the live average for the next pass and returns it.
func (t *AverageTracker) Freeze() float64 {
	t.frozen = t.current
	return t.frozen
}

// Frozen returns the value captured by the last Freeze.
func (t *AverageTracker) Frozen() float64 {
	return t.frozen
}

// Samples returns the number of accepted samples since the last Seed.
func (t *AverageTracker) Samples() int {
	return t.samples
}

// Observe folds a sample into the average. Samples outside (10, 5000) are
// rejected. In strict mode the average never decreases.
func (t *AverageTracker) Observe(sample float64, strict bool) bool {
	if math.IsNaN(sample) || sample <= constants.MinAverageSample || sample >= constants.MaxAverageSample {
		return false
	}
	blended := (1-constants.AverageSmoothing)*t.current + constants.AverageSmoothing*sample
	if strict {
		t.current = math.Max(t.current, blended)
	} else {
		t.current = blended
	}
	t.samples++
	return true
}

// Raise lifts the average to v when v is inside (10, 5000) and above the
// current value. It is used when the laid out tail proves the rows are
// taller than estimated.
func (t *AverageTracker) Raise(v float64) bool {
	if math.IsNaN(v) || v <= constants.MinAverageSample || v >= constants.MaxAverageSample || v <= t.current {
		return false
	}
	t.current = v
	return true
}

// TailAverage returns totalHeight spread over the rows of totalItems when
// that exceeds avg and stays inside the accepted sample range.
func TailAverage(totalHeight, totalItems, numColumns int, avg float64) (float64, bool) {
	if totalItems <= 0 || numColumns < 1 {
		return 0, false
	}
	rows := (totalItems + numColumns - 1) / numColumns
	implied := float64(totalHeight) / float64(rows)
	if implied <= constants.MinAverageSample || implied >= constants.MaxAverageSample || implied <= avg {
		return 0, false
	}
	return implied, true
}

// MeasureResult derives a row height sample from the real items of r: their
// vertical extent divided by the rows they occupy. Spacers above the first
// item do not count.
func MeasureResult(r *layout.Result) (float64, bool) {
	if r == nil || r.NumColumns < 1 {
		return 0, false
	}
	minY, maxBottom, count := r.RealExtent()
	if count == 0 || maxBottom <= minY {
		return 0, false
	}
	rows := (count + r.NumColumns - 1) / r.NumColumns
	return float64(maxBottom-minY) / float64(rows), true
}
