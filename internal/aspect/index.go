// Package aspect keeps the measured aspect ratio of every item seen so far.
// Entries outlive page eviction.
package aspect

import (
	"math/bits"

	"github.com/tagview/tagview/internal/layout"
)

// Index is a dense index -> aspect ratio store.
// It is owned by one goroutine; callers hand copies to other goroutines.
type Index struct {
	ratios   []float64
	measured []uint64 // bitset
	count    int
}

// New creates an index sized for total items.
func New(total int) *Index {
	ix := &Index{}
	ix.Resize(total)
	return ix
}

// Resize grows or shrinks the index. Entries beyond the new size are dropped.
func (ix *Index) Resize(total int) {
	if total < 0 {
		total = 0
	}
	if total < len(ix.ratios) {
		for i := total; i < len(ix.ratios); i++ {
			if ix.isSet(i) {
				ix.count--
			}
		}
		ix.ratios = ix.ratios[:total]
		words := (total + 63) / 64
		ix.measured = ix.measured[:words]
		if rem := total % 64; rem != 0 && words > 0 {
			ix.measured[words-1] &= (1 << uint(rem)) - 1
		}
		return
	}
	for len(ix.ratios) < total {
		ix.ratios = append(ix.ratios, 1.0)
	}
	for len(ix.measured) < (total+63)/64 {
		ix.measured = append(ix.measured, 0)
	}
}

// Len returns the number of slots.
func (ix *Index) Len() int {
	return len(ix.ratios)
}

// Set records the ratio for index i. Out of range indices are ignored.
func (ix *Index) Set(i int, ratio float64) {
	if i < 0 || i >= len(ix.ratios) {
		return
	}
	ix.ratios[i] = layout.SanitizeAspectRatio(ratio)
	if !ix.isSet(i) {
		ix.measured[i/64] |= 1 << uint(i%64)
		ix.count++
	}
}

// SetRange records ratios for consecutive indices starting at start.
func (ix *Index) SetRange(start int, ratios []float64) {
	for k, r := range ratios {
		ix.Set(start+k, r)
	}
}

// Get returns the ratio for i and whether it was measured.
// Unmeasured and out of range indices report 1.0.
func (ix *Index) Get(i int) (float64, bool) {
	if i < 0 || i >= len(ix.ratios) {
		return 1.0, false
	}
	if !ix.isSet(i) {
		return 1.0, false
	}
	return ix.ratios[i], true
}

// Measured returns how many items have a recorded ratio.
func (ix *Index) Measured() int {
	return ix.count
}

// Coverage returns the measured fraction of total.
func (ix *Index) Coverage(total int) float64 {
	if total <= 0 {
		return 0
	}
	c := float64(ix.count) / float64(total)
	if c > 1 {
		c = 1
	}
	return c
}

// MeasuredIn counts measured items in [start, end).
func (ix *Index) MeasuredIn(start, end int) int {
	if start < 0 {
		start = 0
	}
	if end > len(ix.ratios) {
		end = len(ix.ratios)
	}
	n := 0
	for i := start; i < end; {
		if i%64 == 0 && i+64 <= end {
			n += bits.OnesCount64(ix.measured[i/64])
			i += 64
			continue
		}
		if ix.isSet(i) {
			n++
		}
		i++
	}
	return n
}

// Reset forgets every measurement and resizes to total.
func (ix *Index) Reset(total int) {
	ix.ratios = ix.ratios[:0]
	ix.measured = ix.measured[:0]
	ix.count = 0
	ix.Resize(total)
}

func (ix *Index) isSet(i int) bool {
	return ix.measured[i/64]&(1<<uint(i%64)) != 0
}
