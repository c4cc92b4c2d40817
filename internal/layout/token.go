// Package layout implements shortest-column-first masonry packing over
// a sequence of real items and spacer tokens.
package layout

import "fmt"

// Kind distinguishes the two token variants.
type Kind uint8

const (
	KindReal Kind = iota
	KindSpacer
)

// SpacerKind records why a spacer was emitted. It has no effect on packing.
type SpacerKind uint8

const (
	SpacerPrefix SpacerKind = iota // rows above the window
	SpacerGap                      // unloaded run inside the window
	SpacerTail                     // unloaded run at the end of the window
	SpacerWindow                   // whole window unloaded
)

func (k SpacerKind) String() string {
	switch k {
	case SpacerPrefix:
		return "prefix"
	case SpacerGap:
		return "gap"
	case SpacerTail:
		return "tail"
	case SpacerWindow:
		return "window"
	default:
		return "unknown"
	}
}

// Token is one element of a layout input: either a real item with an
// aspect ratio, or a spacer of fixed height spanning every column.
type Token struct {
	Kind        Kind
	Index       int
	AspectRatio float64
	Height      int
	Spacer      SpacerKind
}

// Real returns a token for the item at index.
func Real(index int, aspectRatio float64) Token {
	return Token{Kind: KindReal, Index: index, AspectRatio: aspectRatio}
}

// NewSpacer returns a spacer token. Negative heights are treated as zero.
func NewSpacer(kind SpacerKind, height int) Token {
	if height < 0 {
		height = 0
	}
	return Token{Kind: KindSpacer, Height: height, Spacer: kind}
}

// IsSpacer reports whether t is a spacer.
func (t Token) IsSpacer() bool {
	return t.Kind == KindSpacer
}

func (t Token) String() string {
	if t.IsSpacer() {
		return fmt.Sprintf("spacer(%s,%d)", t.Spacer, t.Height)
	}
	return fmt.Sprintf("item(%d,%.3f)", t.Index, t.AspectRatio)
}

// PositionedItem is the rectangle assigned to a real token.
type PositionedItem struct {
	Index  int
	X      int
	Y      int
	Width  int
	Height int
}

// Bottom returns the item's lower edge.
func (p PositionedItem) Bottom() int {
	return p.Y + p.Height
}
