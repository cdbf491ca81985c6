package reflow

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"wawbook/css"
	"wawbook/dtp"
)

// extractPage walks one content document, appending the page box plus every
// positioned container and image it holds to the layout.
func extractPage(root *etree.Element, sheet *css.Stylesheet, parser *css.Parser, pageIndex int, layout *Layout, log *zap.Logger) {
	// document-local styles override package stylesheets
	local := &css.Stylesheet{Rules: append([]css.Rule(nil), sheet.Rules...), Page: sheet.Page}
	for _, el := range root.FindElements("//style") {
		part := parser.Parse([]byte(el.Text()))
		local.Rules = append(local.Rules, part.Rules...)
		if part.Page != nil {
			local.Page = part.Page
		}
	}

	page := PageBox{Index: pageIndex}
	if w, h, ok := viewportSize(root); ok {
		page.Width, page.Height = w, h
	} else if local.Page != nil {
		page.Width, page.Height = local.Page.Width, local.Page.Height
	}

	body := root.FindElement("//body")
	if body == nil {
		body = root
	}

	before := len(layout.Containers)
	walkElements(body, local, parser, pageIndex, layout, log)

	if page.Width == 0 || page.Height == 0 {
		// no declared dimensions, fall back to the extent of what the page holds
		for _, c := range layout.Containers[before:] {
			page.Width = max(page.Width, c.Box.X+c.Box.Width)
			page.Height = max(page.Height, c.Box.Y+c.Box.Height)
		}
		log.Warn("Page without declared dimensions, using content extent",
			zap.Int("page", pageIndex), zap.Float64("width", page.Width), zap.Float64("height", page.Height))
	}
	layout.Pages = append(layout.Pages, page)
}

func walkElements(el *etree.Element, sheet *css.Stylesheet, parser *css.Parser, pageIndex int, layout *Layout, log *zap.Logger) {
	for _, child := range el.ChildElements() {
		props := resolvedProps(child, sheet, parser)

		switch strings.ToLower(child.Tag) {
		case "img", "image":
			img, ok := imageCandidate(child, props, pageIndex)
			if ok {
				layout.Images = append(layout.Images, img)
			} else {
				log.Debug("Image without usable box, skipping", zap.String("src", child.SelectAttrValue("src", "")))
			}
		default:
			box, boxed := elementBox(props)
			ref := child.SelectAttrValue("data-ref", "")
			if len(ref) > 0 || boxed {
				layout.Containers = append(layout.Containers, Container{
					ID:        child.SelectAttrValue("id", ""),
					StoryRef:  ref,
					PageIndex: pageIndex,
					Box:       box,
				})
			}
		}
		walkElements(child, sheet, parser, pageIndex, layout, log)
	}
}

// resolvedProps folds matching stylesheet rules then the inline style
// attribute on top.
func resolvedProps(el *etree.Element, sheet *css.Stylesheet, parser *css.Parser) css.Declarations {
	props := sheet.DeclarationsFor(el.Tag, el.SelectAttrValue("id", ""), strings.Fields(el.SelectAttrValue("class", "")))
	if style := el.SelectAttrValue("style", ""); len(style) > 0 {
		for k, v := range parser.ParseDeclarations(style) {
			props[k] = v
		}
	}
	return props
}

// elementBox resolves the full pixel box. All four sides must be present.
func elementBox(props css.Declarations) (dtp.Rect, bool) {
	left, okL := props.Px("left")
	top, okT := props.Px("top")
	width, okW := props.Px("width")
	height, okH := props.Px("height")
	if !okL || !okT || !okW || !okH {
		return dtp.Rect{}, false
	}
	return dtp.Rect{X: left, Y: top, Width: width, Height: height}, true
}

func imageCandidate(el *etree.Element, props css.Declarations, pageIndex int) (ImageCandidate, bool) {
	box, ok := elementBox(props)
	if !ok {
		// width/height may come as plain attributes
		left, okL := props.Px("left")
		top, okT := props.Px("top")
		w, errW := strconv.ParseFloat(el.SelectAttrValue("width", ""), 64)
		h, errH := strconv.ParseFloat(el.SelectAttrValue("height", ""), 64)
		if !okL || !okT || errW != nil || errH != nil {
			return ImageCandidate{}, false
		}
		box = dtp.Rect{X: left, Y: top, Width: w, Height: h}
	}

	img := ImageCandidate{
		Source:         el.SelectAttrValue("src", ""),
		PageIndex:      pageIndex,
		Box:            box,
		CombinationKey: el.SelectAttrValue("data-combination", ""),
	}
	if len(img.Source) == 0 {
		img.Source = el.SelectAttrValue("href", "")
	}
	for _, name := range strings.Fields(el.SelectAttrValue("data-condition", "")) {
		img.ConditionNames = append(img.ConditionNames, name)
		if cond := dtp.ParseCondition(name); cond != nil {
			img.Conditions = append(img.Conditions, cond)
		}
	}
	return img, true
}

// viewportSize reads a viewport meta declaration ("width=450, height=600").
func viewportSize(root *etree.Element) (w, h float64, ok bool) {
	for _, meta := range root.FindElements("//meta") {
		if !strings.EqualFold(meta.SelectAttrValue("name", ""), "viewport") {
			continue
		}
		for _, part := range strings.Split(meta.SelectAttrValue("content", ""), ",") {
			key, value, found := strings.Cut(strings.TrimSpace(part), "=")
			if !found {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				continue
			}
			switch strings.TrimSpace(strings.ToLower(key)) {
			case "width":
				w = v
			case "height":
				h = v
			}
		}
		if w > 0 && h > 0 {
			return w, h, true
		}
	}
	return 0, 0, false
}
