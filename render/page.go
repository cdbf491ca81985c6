package render

import (
	"fmt"
	"html"
	"strings"

	"wawbook/personalize"
)

// ComposePage wraps one resolved page's fragments and images into a
// standalone document for the engine.
func ComposePage(page *personalize.PageResult) string {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"/><style>`)
	sb.WriteString(`html,body{margin:0;padding:0}`)
	fmt.Fprintf(&sb, `body{position:relative;width:%.0fpx;height:%.0fpx;overflow:hidden}`,
		page.Width, page.Height)
	sb.WriteString(`img{display:block}`)
	sb.WriteString(`</style></head><body>`)

	// images under text; sources come from package entry names and must not
	// break out of the attribute
	for _, img := range page.Images {
		fmt.Fprintf(&sb,
			`<img src="%s" style="position:absolute;left:%.2fpx;top:%.2fpx;width:%.2fpx;height:%.2fpx"/>`,
			html.EscapeString(img.Source), img.Box.X, img.Box.Y, img.Box.Width, img.Box.Height)
	}
	for _, frag := range page.Fragments {
		sb.WriteString(frag.HTML)
	}

	sb.WriteString(`</body></html>`)
	return sb.String()
}
