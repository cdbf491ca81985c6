// Package reflow extracts pixel-accurate positions from a fixed-layout
// reflowable e-book package: container boxes, page dimensions and candidate
// images. It is the positional counterpart of the dtp package, the two feed
// the cross-format merge.
package reflow

import (
	"wawbook/dtp"
)

// Container is one positioned text box. StoryRef, when present, names the
// originating story of the sibling package and makes matching exact.
type Container struct {
	ID        string
	StoryRef  string
	PageIndex int
	Box       dtp.Rect
}

// ImageCandidate is one positioned image with its visibility gates. Several
// candidates may share a position, selection happens at personalization time.
type ImageCandidate struct {
	Source         string
	PageIndex      int
	Box            dtp.Rect
	ConditionNames []string
	Conditions     []*dtp.Condition
	CombinationKey string
}

// PageBox is one page's pixel dimensions.
type PageBox struct {
	Index  int
	Width  float64
	Height float64
}

// Layout is the extracted package: pages in order, containers and image
// candidates in document order.
type Layout struct {
	Pages      []PageBox
	Containers []Container
	Images     []ImageCandidate
}
