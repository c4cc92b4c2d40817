// Package window decides which slice of the dataset is materialized and
// builds the token sequence that keeps it at its absolute position.
package window

import (
	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/layout"
)

// Window is the contiguous index range laid out by one pass.
type Window struct {
	StartPage  int
	EndPage    int
	MinIndex   int
	MaxIndex   int
	FullLayout bool
}

// Contains reports whether index lies in [MinIndex, MaxIndex).
func (w Window) Contains(index int) bool {
	return index >= w.MinIndex && index < w.MaxIndex
}

// ContainsPage reports whether page lies in [StartPage, EndPage].
func (w Window) ContainsPage(page int) bool {
	return page >= w.StartPage && page <= w.EndPage
}

// Size returns the number of indices in the window.
func (w Window) Size() int {
	return w.MaxIndex - w.MinIndex
}

// FullLayoutPolicy decides when the whole dataset is laid out at once.
type FullLayoutPolicy struct {
	MaxItems    int
	MinCoverage float64
	Strict      bool
}

// DefaultPolicy returns the stock full-layout thresholds.
func DefaultPolicy() FullLayoutPolicy {
	return FullLayoutPolicy{
		MaxItems:    constants.DefaultFullLayoutMaxItems,
		MinCoverage: constants.DefaultFullLayoutMinCoverage,
	}
}

// Eligible reports whether measured of total aspect ratios allow full layout.
func (p FullLayoutPolicy) Eligible(measured, total int) bool {
	if p.Strict || total <= 0 || total > p.MaxItems {
		return false
	}
	return float64(measured)/float64(total) >= p.MinCoverage
}

// ClampRadius limits the buffer radius to the supported range.
func ClampRadius(r int) int {
	if r < constants.MinBufferRadius {
		return constants.MinBufferRadius
	}
	if r > constants.MaxBufferRadius {
		return constants.MaxBufferRadius
	}
	return r
}

// PageCount returns the number of pages covering total items.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Plan computes the window around currentPage.
func Plan(currentPage, totalItems, pageSize, bufferRadius int, fullLayout bool) Window {
	pages := PageCount(totalItems, pageSize)
	if pages == 0 {
		return Window{}
	}

	if fullLayout {
		return Window{
			StartPage:  0,
			EndPage:    pages - 1,
			MinIndex:   0,
			MaxIndex:   totalItems,
			FullLayout: true,
		}
	}

	r := ClampRadius(bufferRadius)
	if currentPage < 0 {
		currentPage = 0
	}
	if currentPage > pages-1 {
		currentPage = pages - 1
	}

	start := currentPage - r
	if start < 0 {
		start = 0
	}
	end := currentPage + r
	if end > pages-1 {
		end = pages - 1
	}

	maxIndex := (end + 1) * pageSize
	if maxIndex > totalItems {
		maxIndex = totalItems
	}
	return Window{
		StartPage: start,
		EndPage:   end,
		MinIndex:  start * pageSize,
		MaxIndex:  maxIndex,
	}
}

// TokenPlan is the input for one layout pass.
type TokenPlan struct {
	Tokens []layout.Token

	// Missing is set when the window had no loaded items. The caller
	// should request loads and retry rather than treat the set as empty.
	Missing bool

	// RealCount is the number of real tokens.
	RealCount int
}

// spacerHeight converts a run of count unloaded items into pixels.
func spacerHeight(count, numColumns int, avgRowHeight float64) int {
	if count <= 0 {
		return 0
	}
	rows := (count + numColumns - 1) / numColumns
	return int(float64(rows) * avgRowHeight)
}

// TokensFor interleaves loaded items with spacers so the window keeps its
// absolute vertical position. loaded must be real tokens in ascending index
// order; tokens outside the window are skipped.
func TokensFor(w Window, loaded []layout.Token, totalItems int, avgRowHeight float64, numColumns int) TokenPlan {
	if numColumns < 1 {
		numColumns = 1
	}
	if avgRowHeight <= 1 {
		avgRowHeight = constants.FallbackSpacerRowHeight
	}
	maxIndex := w.MaxIndex
	if maxIndex > totalItems {
		maxIndex = totalItems
	}

	var plan TokenPlan
	plan.Tokens = make([]layout.Token, 0, len(loaded)+4)

	if w.MinIndex > 0 {
		plan.Tokens = append(plan.Tokens, layout.NewSpacer(layout.SpacerPrefix, spacerHeight(w.MinIndex, numColumns, avgRowHeight)))
	}

	last := w.MinIndex - 1
	for _, tok := range loaded {
		if tok.IsSpacer() || tok.Index < w.MinIndex || tok.Index >= maxIndex || tok.Index <= last {
			continue
		}
		if gap := tok.Index - last - 1; gap > 0 {
			plan.Tokens = append(plan.Tokens, layout.NewSpacer(layout.SpacerGap, spacerHeight(gap, numColumns, avgRowHeight)))
		}
		plan.Tokens = append(plan.Tokens, tok)
		plan.RealCount++
		last = tok.Index
	}

	if plan.RealCount == 0 {
		if size := maxIndex - w.MinIndex; size > 0 {
			plan.Tokens = append(plan.Tokens, layout.NewSpacer(layout.SpacerWindow, spacerHeight(size, numColumns, avgRowHeight)))
		}
		plan.Missing = totalItems > 0
		return plan
	}

	if tail := maxIndex - last - 1; tail > 0 {
		plan.Tokens = append(plan.Tokens, layout.NewSpacer(layout.SpacerTail, spacerHeight(tail, numColumns, avgRowHeight)))
	}
	return plan
}
