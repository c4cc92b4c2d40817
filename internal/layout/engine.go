package layout

import (
	"errors"
	"math"
	"sort"
)

// ErrInvalidGeometry is returned for non-positive column width or count,
// or negative spacing. Callers skip the pass.
var ErrInvalidGeometry = errors.New("invalid layout geometry")

// Result is the output of one packing pass. It is never mutated after Compute returns.
type Result struct {
	Items       []PositionedItem
	TotalHeight int
	ColumnWidth int
	Spacing     int
	NumColumns  int

	// MaxItemHeight bounds the visibility search.
	MaxItemHeight int
}

// SanitizeAspectRatio clamps degenerate ratios to 1.0.
func SanitizeAspectRatio(ar float64) float64 {
	if ar <= 0 || math.IsNaN(ar) || math.IsInf(ar, 0) {
		return 1.0
	}
	return ar
}

// ColumnsForWidth returns how many columns fit in availableWidth, at least one.
// Zero is returned when the viewport has no width yet.
func ColumnsForWidth(availableWidth, columnWidth, spacing int) int {
	if availableWidth <= 0 || columnWidth <= 0 {
		return 0
	}
	if spacing < 0 {
		spacing = 0
	}
	cols := availableWidth / (columnWidth + spacing)
	if cols < 1 {
		cols = 1
	}
	return cols
}

// Compute packs tokens into numColumns columns.
//
// Real tokens go to the column with the smallest bottom, lowest index on ties.
// Spacers advance every column by their height.
func Compute(tokens []Token, columnWidth, spacing, numColumns int) (Result, error) {
	if numColumns <= 0 || columnWidth <= 0 || spacing < 0 {
		return Result{}, ErrInvalidGeometry
	}

	bottoms := make([]int, numColumns)
	items := make([]PositionedItem, 0, len(tokens))
	maxHeight := 0

	for _, tok := range tokens {
		if tok.IsSpacer() {
			for c := range bottoms {
				bottoms[c] += tok.Height
			}
			continue
		}

		col := 0
		for c := 1; c < numColumns; c++ {
			if bottoms[c] < bottoms[col] {
				col = c
			}
		}

		h := int(float64(columnWidth) / SanitizeAspectRatio(tok.AspectRatio))
		items = append(items, PositionedItem{
			Index:  tok.Index,
			X:      col * (columnWidth + spacing),
			Y:      bottoms[col],
			Width:  columnWidth,
			Height: h,
		})
		bottoms[col] += h + spacing
		if h > maxHeight {
			maxHeight = h
		}
	}

	total := 0
	for _, b := range bottoms {
		if b > total {
			total = b
		}
	}

	return Result{
		Items:         items,
		TotalHeight:   total,
		ColumnWidth:   columnWidth,
		Spacing:       spacing,
		NumColumns:    numColumns,
		MaxItemHeight: maxHeight,
	}, nil
}

// Visible returns the items intersecting [top, bottom).
// Items are in placement order, which is also nondecreasing Y order.
func (r *Result) Visible(top, bottom int) []PositionedItem {
	if bottom <= top || len(r.Items) == 0 {
		return nil
	}
	start := sort.Search(len(r.Items), func(i int) bool {
		return r.Items[i].Y >= top-r.MaxItemHeight
	})
	var out []PositionedItem
	for i := start; i < len(r.Items); i++ {
		it := r.Items[i]
		if it.Y >= bottom {
			break
		}
		if it.Bottom() > top {
			out = append(out, it)
		}
	}
	return out
}

// TopVisible returns the topmost item whose rectangle reaches below top,
// leftmost on ties.
func (r *Result) TopVisible(top int) (PositionedItem, bool) {
	start := sort.Search(len(r.Items), func(i int) bool {
		return r.Items[i].Y >= top-r.MaxItemHeight
	})
	best := -1
	for i := start; i < len(r.Items); i++ {
		it := r.Items[i]
		if best >= 0 && it.Y > r.Items[best].Y {
			break
		}
		if it.Bottom() <= top {
			continue
		}
		if best < 0 || it.X < r.Items[best].X {
			best = i
		}
	}
	if best < 0 {
		return PositionedItem{}, false
	}
	return r.Items[best], true
}

// RealExtent returns the vertical span and count of the placed items.
func (r *Result) RealExtent() (minY, maxBottom, count int) {
	if len(r.Items) == 0 {
		return 0, 0, 0
	}
	minY = r.Items[0].Y
	for _, it := range r.Items {
		if it.Y < minY {
			minY = it.Y
		}
		if b := it.Bottom(); b > maxBottom {
			maxBottom = b
		}
	}
	return minY, maxBottom, len(r.Items)
}
