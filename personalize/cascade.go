package personalize

import (
	"fmt"
	"strconv"
	"strings"

	"wawbook/dtp"
)

// Style cascade, highest priority first: segment inline override, the
// frame's character style, its paragraph style, character properties defined
// directly on the paragraph range, hard defaults (12pt, black, normal).

const (
	defaultPointSize = 12.0
	defaultColorHex  = "#000000"
)

// effectiveProps folds the cascade sources for one segment into a single
// property bag. Unset fields after the fold take hard defaults at emission.
func effectiveProps(seg *dtp.ConditionalSegment, el *cascadeSources) dtp.StyleProps {
	props := dtp.StyleProps{}
	if seg != nil && seg.Override != nil {
		props = *seg.Override
	}
	if el.charStyle != nil {
		props.Fill(&el.charStyle.Props)
	}
	if el.paraStyle != nil {
		props.Fill(&el.paraStyle.Props)
	}
	props.Fill(el.paraProps)
	return props
}

// cascadeSources is the per-frame part of the cascade, resolved once per
// text element.
type cascadeSources struct {
	charStyle *dtp.StyleRecord
	paraStyle *dtp.StyleRecord
	paraProps *dtp.StyleProps
}

func newCascadeSources(catalog *dtp.Catalog, charRef, paraRef string, paraProps *dtp.StyleProps) *cascadeSources {
	src := &cascadeSources{paraProps: paraProps}
	if catalog != nil {
		if len(charRef) > 0 {
			if s, ok := catalog.CharStyle(charRef); ok {
				src.charStyle = s
			}
		}
		if len(paraRef) > 0 {
			if s, ok := catalog.ParaStyle(paraRef); ok {
				src.paraStyle = s
			}
		}
	}
	return src
}

// inlineCSS renders resolved character properties as an inline style string.
// Scale and skew are omitted at their defaults (100/100/0).
func inlineCSS(props *dtp.StyleProps, catalog *dtp.Catalog) string {
	var parts []string
	add := func(prop, value string) {
		parts = append(parts, prop+":"+value)
	}

	if props.FontFamily != nil {
		add("font-family", quoteFontFamily(*props.FontFamily))
	}

	size := defaultPointSize
	if props.PointSize != nil {
		size = *props.PointSize
	}
	add("font-size", formatFloat(size)+"pt")

	hex := defaultColorHex
	if props.FillColor != nil && catalog != nil {
		hex = catalog.Color(*props.FillColor).Hex
	}
	add("color", hex)

	weight, slant := "normal", "normal"
	if props.FontStyle != nil {
		fs := strings.ToLower(*props.FontStyle)
		if strings.Contains(fs, "bold") {
			weight = "bold"
		}
		if strings.Contains(fs, "italic") || strings.Contains(fs, "oblique") {
			slant = "italic"
		}
	}
	add("font-weight", weight)
	add("font-style", slant)

	if props.Tracking != nil && *props.Tracking != 0 {
		add("letter-spacing", formatFloat(trackingToEm(*props.Tracking))+"em")
	}
	if props.BaselineShift != nil && *props.BaselineShift != 0 {
		add("vertical-align", formatFloat(*props.BaselineShift)+"pt")
	}

	var transforms []string
	if props.HorizontalScale != nil && *props.HorizontalScale != 100 {
		transforms = append(transforms, fmt.Sprintf("scaleX(%s)", formatFloat(*props.HorizontalScale/100)))
	}
	if props.VerticalScale != nil && *props.VerticalScale != 100 {
		transforms = append(transforms, fmt.Sprintf("scaleY(%s)", formatFloat(*props.VerticalScale/100)))
	}
	if props.Skew != nil && *props.Skew != 0 {
		transforms = append(transforms, fmt.Sprintf("skewX(%sdeg)", formatFloat(*props.Skew)))
	}
	if len(transforms) > 0 {
		add("display", "inline-block")
		add("transform", strings.Join(transforms, " "))
	}

	var decorations []string
	if props.Underline != nil && *props.Underline {
		decorations = append(decorations, "underline")
	}
	if props.StrikeThru != nil && *props.StrikeThru {
		decorations = append(decorations, "line-through")
	}
	if len(decorations) > 0 {
		add("text-decoration", strings.Join(decorations, " "))
	}

	if props.Capitalization != nil {
		switch strings.ToLower(*props.Capitalization) {
		case "allcaps":
			add("text-transform", "uppercase")
		case "smallcaps":
			add("font-variant", "small-caps")
		}
	}

	if props.StrokeColor != nil && catalog != nil {
		width := 1.0
		if props.StrokeWeight != nil {
			width = *props.StrokeWeight
		}
		add("-webkit-text-stroke", formatFloat(width)+"px "+catalog.Color(*props.StrokeColor).Hex)
	}

	return strings.Join(parts, ";")
}

// paragraphCSS renders paragraph-level properties for the containing block.
func paragraphCSS(props *dtp.StyleProps) string {
	if props == nil {
		return ""
	}
	var parts []string
	add := func(prop, value string) {
		parts = append(parts, prop+":"+value)
	}

	if props.Justification != nil {
		switch strings.ToLower(*props.Justification) {
		case "centeralign", "centerjustified":
			add("text-align", "center")
		case "rightalign", "rightjustified":
			add("text-align", "right")
		case "leftjustified", "fullyjustified":
			add("text-align", "justify")
		case "leftalign":
			add("text-align", "left")
		}
	}
	if props.FirstLineIndent != nil && *props.FirstLineIndent != 0 {
		add("text-indent", formatFloat(*props.FirstLineIndent)+"pt")
	}
	if props.LeftIndent != nil && *props.LeftIndent != 0 {
		add("padding-left", formatFloat(*props.LeftIndent)+"pt")
	}
	if props.RightIndent != nil && *props.RightIndent != 0 {
		add("padding-right", formatFloat(*props.RightIndent)+"pt")
	}
	if props.SpaceBefore != nil && *props.SpaceBefore != 0 {
		add("margin-top", formatFloat(*props.SpaceBefore)+"pt")
	}
	if props.SpaceAfter != nil && *props.SpaceAfter != 0 {
		add("margin-bottom", formatFloat(*props.SpaceAfter)+"pt")
	}
	if props.Hyphenation != nil {
		if *props.Hyphenation {
			add("hyphens", "auto")
		} else {
			add("hyphens", "none")
		}
	}
	return strings.Join(parts, ";")
}

// trackingToEm converts a font-unit tracking value to em. Values above 100
// are already a percentage, smaller values are per-mille.
func trackingToEm(tracking float64) float64 {
	if tracking > 100 {
		return tracking / 100
	}
	return tracking / 1000
}

func quoteFontFamily(name string) string {
	if strings.ContainsAny(name, " ,") {
		return "'" + name + "'"
	}
	return name
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
