package dtp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Spread geometry: page dimensions and text frame bounding boxes in document
// units. Affine transforms are six numbers [a b c d tx ty], only the
// translation part is used - authoring templates for this product never
// rotate or scale pages.

// FrameGeometry is a placed text frame before story content is attached.
type FrameGeometry struct {
	ID        string
	StoryID   string
	PageIndex int // local to the spread until spreads are concatenated
	Bounds    Rect
}

// SpreadGeometry is the resolved geometry of one spread, pages ordered left
// to right.
type SpreadGeometry struct {
	Pages  []PageInfo
	Frames []FrameGeometry
}

type pagePlacement struct {
	x      float64
	width  float64
	height float64
}

// ResolveSpread walks spread page and frame definitions computing per-page
// dimensions and per-frame bounding boxes, and assigns every frame to a page
// by its X interval.
func ResolveSpread(root *etree.Element, log *zap.Logger) (*SpreadGeometry, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil spread element", ErrInvalidMarkup)
	}
	if root.Tag != "Spread" {
		return nil, fmt.Errorf("%w: unexpected root element %q", ErrInvalidMarkup, root.Tag)
	}

	var pages []pagePlacement
	var frames []FrameGeometry

	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "Page":
			tx, _ := transformTranslation(child.SelectAttrValue("ItemTransform", ""))
			w, h, ok := boundsDimensions(child.SelectAttrValue("GeometricBounds", ""))
			if !ok {
				log.Warn("Page without usable bounds, skipping", zap.String("page", child.SelectAttrValue("Self", "")))
				continue
			}
			pages = append(pages, pagePlacement{x: tx, width: w, height: h})
		case "TextFrame":
			frame, ok := resolveFrame(child, log)
			if ok {
				frames = append(frames, frame)
			}
		default:
			log.Debug("Ignoring spread item", zap.String("tag", child.Tag))
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: spread has no page data", ErrCorruptedPackage)
	}

	// left to right, a frame belongs to the page whose X interval contains
	// the frame's X; the last page's interval is open-ended
	sort.Slice(pages, func(i, j int) bool { return pages[i].x < pages[j].x })

	geo := &SpreadGeometry{}
	for i, p := range pages {
		geo.Pages = append(geo.Pages, PageInfo{Index: i, Width: p.width, Height: p.height})
	}
	for _, f := range frames {
		f.PageIndex = pageIndexFor(pages, f.Bounds.X)
		geo.Frames = append(geo.Frames, f)
	}
	return geo, nil
}

func pageIndexFor(pages []pagePlacement, x float64) int {
	for i := 0; i < len(pages)-1; i++ {
		if x >= pages[i].x && x < pages[i+1].x {
			return i
		}
	}
	if x < pages[0].x {
		return 0
	}
	return len(pages) - 1
}

// resolveFrame derives the frame box from its transform translation plus the
// bounding box of its path point anchors.
func resolveFrame(el *etree.Element, log *zap.Logger) (FrameGeometry, bool) {
	frame := FrameGeometry{
		ID:      el.SelectAttrValue("Self", ""),
		StoryID: el.SelectAttrValue("ParentStory", ""),
	}

	tx, ty := transformTranslation(el.SelectAttrValue("ItemTransform", ""))

	anchors := el.FindElements(".//PathPointType")
	if len(anchors) == 0 {
		log.Warn("Text frame without path points, skipping", zap.String("frame", frame.ID))
		return frame, false
	}

	first := true
	var minX, minY, maxX, maxY float64
	for _, a := range anchors {
		x, y, ok := parsePoint(a.SelectAttrValue("Anchor", ""))
		if !ok {
			continue
		}
		if first {
			minX, maxX, minY, maxY = x, x, y, y
			first = false
			continue
		}
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	if first {
		log.Warn("Text frame without usable anchors, skipping", zap.String("frame", frame.ID))
		return frame, false
	}

	frame.Bounds = Rect{X: tx + minX, Y: ty + minY, Width: maxX - minX, Height: maxY - minY}
	return frame, true
}

// transformTranslation extracts tx and ty from a 6-number affine transform.
func transformTranslation(s string) (float64, float64) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return 0, 0
	}
	tx, err1 := strconv.ParseFloat(fields[4], 64)
	ty, err2 := strconv.ParseFloat(fields[5], 64)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return tx, ty
}

// boundsDimensions turns a "top left bottom right" bounds string into width
// and height.
func boundsDimensions(s string) (w, h float64, ok bool) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return 0, 0, false
	}
	nums := make([]float64, 4)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, 0, false
		}
		nums[i] = v
	}
	return nums[3] - nums[1], nums[2] - nums[0], true
}

func parsePoint(s string) (x, y float64, ok bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, false
	}
	x, err1 := strconv.ParseFloat(fields[0], 64)
	y, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return x, y, true
}
