package personalize

import (
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"wawbook/book"
	"wawbook/dtp"
)

// Fragment is one positioned, fully resolved text element ready for the
// rasterization engine.
type Fragment struct {
	Box  dtp.Rect
	HTML string
}

// PageResult is everything one page renders: its viewport, text fragments
// and selected images, in reading order.
type PageResult struct {
	Index     int
	Width     float64
	Height    float64
	Fragments []Fragment
	Images    []SelectedImage
}

// Result is a personalized instantiation of canonical content.
type Result struct {
	BookID string
	Pages  []PageResult
}

// Resolve instantiates canonical content for one customer: filters
// conditional segments, substitutes variables, resolves the style cascade
// and emits positioned markup per page.
func Resolve(content *book.Content, ctx *Context, log *zap.Logger) *Result {
	res := &Result{BookID: content.ID}

	for _, p := range content.Pages {
		res.Pages = append(res.Pages, PageResult{Index: p.Index, Width: p.Width, Height: p.Height})
	}
	pageAt := func(idx int) *PageResult {
		for i := range res.Pages {
			if res.Pages[i].Index == idx {
				return &res.Pages[i]
			}
		}
		return nil
	}

	dropped := 0
	for i := range content.Texts {
		te := &content.Texts[i]
		page := pageAt(te.PageIndex)
		if page == nil {
			dropped++
			continue
		}
		frag, ok := resolveText(te, content.Styles, ctx)
		if ok {
			page.Fragments = append(page.Fragments, frag)
		}
	}

	for _, img := range SelectImages(content.Images, ctx) {
		page := pageAt(img.PageIndex)
		if page == nil {
			dropped++
			continue
		}
		page.Images = append(page.Images, img)
	}

	if dropped > 0 {
		log.Warn("Elements on unknown pages were dropped", zap.Int("elements", dropped))
	}
	log.Debug("Content personalized", zap.String("book", content.ID), zap.Int("pages", len(res.Pages)))
	return res
}

// resolveText builds one fragment. A frame whose surviving segments carry no
// text produces nothing.
func resolveText(te *book.TextElement, catalog *dtp.Catalog, ctx *Context) (Fragment, bool) {
	sources := newCascadeSources(catalog, te.CharStyle, te.ParaStyle, te.ParaProps)

	var spans []string
	for i := range te.Segments {
		seg := &te.Segments[i]
		if !ctx.Allows(seg.Condition) {
			continue
		}
		text := Substitute(seg.Text, ctx)
		if len(text) == 0 {
			continue
		}
		props := effectiveProps(seg, sources)
		spans = append(spans, fmt.Sprintf(`<span style="%s">%s</span>`,
			inlineCSS(&props, catalog), escapeText(text)))
	}
	if len(spans) == 0 {
		return Fragment{}, false
	}

	var para *dtp.StyleProps
	if sources.paraStyle != nil {
		para = &sources.paraStyle.Props
	} else {
		para = te.ParaProps
	}

	style := fmt.Sprintf("position:absolute;left:%spx;top:%spx;width:%spx;height:%spx",
		formatFloat(te.Box.X), formatFloat(te.Box.Y), formatFloat(te.Box.Width), formatFloat(te.Box.Height))
	if pcss := paragraphCSS(para); len(pcss) > 0 {
		style += ";" + pcss
	}

	return Fragment{
		Box:  te.Box,
		HTML: fmt.Sprintf(`<div style="%s">%s</div>`, style, strings.Join(spans, "")),
	}, true
}

// escapeText escapes markup metacharacters, keeping explicit line breaks.
func escapeText(text string) string {
	escaped := html.EscapeString(text)
	return strings.ReplaceAll(escaped, "\n", "<br/>")
}
