// Package scroll maps the virtual scroll domain onto dataset positions and
// keeps the host scrollbar consistent across layout passes.
package scroll

import (
	"math"

	"github.com/tagview/tagview/internal/constants"
)

// Domain is the virtual scroll domain for one layout pass.
type Domain struct {
	AverageRowHeight float64
	CanonicalMax     int
}

// NewDomain sizes the domain from a frozen average row height.
func NewDomain(totalItems, numColumns int, avgRowHeight float64, viewportHeight int) Domain {
	return Domain{
		AverageRowHeight: avgRowHeight,
		CanonicalMax:     CanonicalMax(totalItems, numColumns, avgRowHeight, viewportHeight),
	}
}

// CanonicalMax estimates the scrollbar maximum for the whole dataset.
// The result never drops below constants.DomainFloor.
func CanonicalMax(totalItems, numColumns int, avgRowHeight float64, viewportHeight int) int {
	if numColumns < 1 {
		numColumns = 1
	}
	rows := 1
	if totalItems > 0 {
		rows = (totalItems + numColumns - 1) / numColumns
	}
	avg := math.Max(constants.MinDomainRowHeight, avgRowHeight)
	est := int(float64(rows)*avg) - viewportHeight
	if est < constants.DomainFloor {
		return constants.DomainFloor
	}
	return est
}

// Fraction returns value/max clamped to [0,1].
func Fraction(value, max int) float64 {
	if max <= 0 {
		return 0
	}
	f := float64(value) / float64(max)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// PageFromPosition maps a scroll value to the page under it.
func PageFromPosition(value, domainMax, totalItems, pageSize int) int {
	if totalItems <= 0 || pageSize <= 0 {
		return 0
	}
	idx := int(Fraction(value, domainMax) * float64(totalItems))
	if idx > totalItems-1 {
		idx = totalItems - 1
	}
	return idx / pageSize
}

// Edge names the scroll extreme a value sits at.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeTop
	EdgeBottom
)

func (e Edge) String() string {
	switch e {
	case EdgeTop:
		return "top"
	case EdgeBottom:
		return "bottom"
	default:
		return "none"
	}
}

// EdgeOf reports whether value is within two units of either end.
func EdgeOf(value, max int) Edge {
	if value <= 2 {
		return EdgeTop
	}
	if max > 0 && value >= max-2 {
		return EdgeBottom
	}
	return EdgeNone
}

// HostRange is the scrollbar state as the host currently shows it.
type HostRange struct {
	Value int
	Max   int
}

// ReconcileTarget describes the desired scrollbar state after a pass.
type ReconcileTarget struct {
	NewMax int

	// Locked pins the value to LockedFraction of NewMax.
	Locked         bool
	LockedFraction float64

	// Edge snaps to 0 or to the bottom. BottomValue overrides NewMax as
	// the bottom target when non-negative, so the tail item stays in view
	// while the estimate is still settling.
	Edge        Edge
	BottomValue int

	// HasAnchor restores AnchorValue, the position that keeps the
	// previously top visible item at the same screen offset.
	HasAnchor   bool
	AnchorValue int
}

// Reconcile returns the scroll value to apply together with target.NewMax.
// It is the only place a new range is combined with the old value.
func Reconcile(host HostRange, target ReconcileTarget) int {
	newMax := target.NewMax
	if newMax < 0 {
		newMax = 0
	}
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v > newMax {
			return newMax
		}
		return v
	}

	switch {
	case target.Locked:
		f := math.Max(0, math.Min(1, target.LockedFraction))
		return clamp(int(math.Round(f * float64(newMax))))
	case target.Edge == EdgeTop:
		return 0
	case target.Edge == EdgeBottom:
		if target.BottomValue >= 0 {
			return clamp(target.BottomValue)
		}
		return newMax
	case target.HasAnchor:
		return clamp(target.AnchorValue)
	}

	if host.Max <= 0 || host.Max == newMax {
		return clamp(host.Value)
	}
	return clamp(int(math.Round(Fraction(host.Value, host.Max) * float64(newMax))))
}
