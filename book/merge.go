package book

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wawbook/dtp"
	"wawbook/reflow"
)

// Cross-format merge: desktop-publishing frames carry content and styles but
// only document-unit positions, reflow containers carry pixel positions.
// Matching rules, in priority order:
//
//  1. a container naming its originating story matches that frame exactly;
//  2. leftovers pair up in reading order (page, then Y, then X) per page.
//
// A container's box is consumed by at most one frame, first match wins.
// Frames that end up without a position are excluded from the canonical
// model, which is a known fidelity gap.

// Merge reconciles the two parses into canonical content.
func Merge(doc *dtp.Document, layout *reflow.Layout, log *zap.Logger) *Content {
	content := &Content{
		ID:     uuid.NewString(),
		Styles: doc.Catalog,
	}
	for _, p := range layout.Pages {
		content.Pages = append(content.Pages, Page{Index: p.Index, Width: p.Width, Height: p.Height})
	}
	for _, img := range layout.Images {
		content.Images = append(content.Images, Image{
			Source:         img.Source,
			PageIndex:      img.PageIndex,
			Box:            img.Box,
			ConditionNames: img.ConditionNames,
			Conditions:     img.Conditions,
			CombinationKey: img.CombinationKey,
		})
	}

	used := make([]bool, len(layout.Containers))
	matched := make(map[*dtp.TextFrame]*reflow.Container)

	// pass 1: explicit story references
	for i := range layout.Containers {
		c := &layout.Containers[i]
		if len(c.StoryRef) == 0 {
			continue
		}
		for _, frame := range doc.Frames {
			if frame.StoryID != c.StoryRef || matched[frame] != nil {
				continue
			}
			matched[frame] = c
			used[i] = true
			break
		}
		if !used[i] {
			log.Debug("Container references unknown story", zap.String("ref", c.StoryRef))
		}
	}

	// pass 2: reading-order pairing of the leftovers, per page
	for page := range pageSet(doc, layout) {
		frames := unmatchedFrames(doc, matched, page)
		containers := unmatchedContainers(layout, used, page)
		for i := 0; i < len(frames) && i < len(containers.idx); i++ {
			matched[frames[i]] = containers.list[i]
			used[containers.idx[i]] = true
		}
	}

	skipped := 0
	for _, frame := range doc.Frames {
		c := matched[frame]
		if c == nil {
			skipped++
			continue
		}
		content.Texts = append(content.Texts, TextElement{
			FrameID:   frame.ID,
			StoryID:   frame.StoryID,
			PageIndex: c.PageIndex,
			Box:       c.Box,
			CharStyle: frame.AppliedCharStyle,
			ParaStyle: frame.AppliedParaStyle,
			ParaProps: frame.ParaProps,
			Segments:  frame.Segments,
			Content:   frame.Content,
		})
	}
	sortTexts(content.Texts)

	if skipped > 0 {
		log.Warn("Frames without a matching position were excluded", zap.Int("frames", skipped))
	}
	log.Info("Canonical model merged",
		zap.String("id", content.ID),
		zap.Int("pages", len(content.Pages)),
		zap.Int("texts", len(content.Texts)),
		zap.Int("images", len(content.Images)))
	return content
}

func pageSet(doc *dtp.Document, layout *reflow.Layout) map[int]struct{} {
	pages := make(map[int]struct{})
	for _, f := range doc.Frames {
		pages[f.PageIndex] = struct{}{}
	}
	for _, c := range layout.Containers {
		pages[c.PageIndex] = struct{}{}
	}
	return pages
}

func unmatchedFrames(doc *dtp.Document, matched map[*dtp.TextFrame]*reflow.Container, page int) []*dtp.TextFrame {
	var frames []*dtp.TextFrame
	for _, f := range doc.Frames {
		if f.PageIndex == page && matched[f] == nil {
			frames = append(frames, f)
		}
	}
	sort.SliceStable(frames, func(i, j int) bool {
		if frames[i].Bounds.Y != frames[j].Bounds.Y {
			return frames[i].Bounds.Y < frames[j].Bounds.Y
		}
		return frames[i].Bounds.X < frames[j].Bounds.X
	})
	return frames
}

type containerSlice struct {
	list []*reflow.Container
	idx  []int
}

func unmatchedContainers(layout *reflow.Layout, used []bool, page int) containerSlice {
	var cs containerSlice
	for i := range layout.Containers {
		c := &layout.Containers[i]
		if c.PageIndex == page && !used[i] {
			cs.list = append(cs.list, c)
			cs.idx = append(cs.idx, i)
		}
	}
	order := make([]int, len(cs.list))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := cs.list[order[a]], cs.list[order[b]]
		if ca.Box.Y != cb.Box.Y {
			return ca.Box.Y < cb.Box.Y
		}
		return ca.Box.X < cb.Box.X
	})
	sorted := containerSlice{list: make([]*reflow.Container, len(order)), idx: make([]int, len(order))}
	for i, o := range order {
		sorted.list[i] = cs.list[o]
		sorted.idx[i] = cs.idx[o]
	}
	return sorted
}

func sortTexts(texts []TextElement) {
	sort.SliceStable(texts, func(i, j int) bool {
		if texts[i].PageIndex != texts[j].PageIndex {
			return texts[i].PageIndex < texts[j].PageIndex
		}
		if texts[i].Box.Y != texts[j].Box.Y {
			return texts[i].Box.Y < texts[j].Box.Y
		}
		return texts[i].Box.X < texts[j].Box.X
	})
}
