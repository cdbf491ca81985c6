package dtp

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Style and color catalog builder. Resolves basedOn inheritance chains and
// converts swatches to a single hex representation.

const blackHex = "#000000"

// DefaultStyleDepthLimit bounds basedOn chain walking: longer chains are
// treated as unresolved rather than looped infinitely.
const DefaultStyleDepthLimit = 10

// BuildCatalog parses raw resource trees (colors, character styles, paragraph
// styles) into a flat catalog. Styles and colors are keyed by both internal
// id and display name. Never fails: anything it cannot make sense of is
// logged and skipped.
func BuildCatalog(styles, graphic *etree.Element, depthLimit int, log *zap.Logger) *Catalog {
	if depthLimit <= 0 {
		depthLimit = DefaultStyleDepthLimit
	}

	cat := &Catalog{
		CharStyles: make(map[string]*StyleRecord),
		ParaStyles: make(map[string]*StyleRecord),
		Colors:     make(map[string]*ColorSwatch),
	}

	if graphic != nil {
		for _, el := range graphic.FindElements("//Color") {
			sw := parseColor(el, log)
			if sw == nil {
				continue
			}
			if len(sw.ID) > 0 {
				cat.Colors[sw.ID] = sw
			}
			if len(sw.Name) > 0 {
				cat.Colors[sw.Name] = sw
			}
		}
	}

	if styles != nil {
		resolveStyles(cat.CharStyles, collectStyles(styles, "CharacterStyle", StyleCharacter, log), depthLimit, log)
		resolveStyles(cat.ParaStyles, collectStyles(styles, "ParagraphStyle", StyleParagraph, log), depthLimit, log)
	}

	log.Debug("Catalog built",
		zap.Int("colors", len(cat.Colors)),
		zap.Int("character_styles", len(cat.CharStyles)),
		zap.Int("paragraph_styles", len(cat.ParaStyles)))
	return cat
}

func collectStyles(root *etree.Element, tag string, kind StyleKind, log *zap.Logger) []*StyleRecord {
	var records []*StyleRecord
	for _, el := range root.FindElements("//" + tag) {
		rec := &StyleRecord{
			ID:      el.SelectAttrValue("Self", ""),
			Name:    el.SelectAttrValue("Name", ""),
			Kind:    kind,
			BasedOn: parseBasedOn(el),
			Props:   parseStyleProps(el),
		}
		if len(rec.ID) == 0 && len(rec.Name) == 0 {
			log.Warn("Style without id or name, skipping", zap.String("tag", tag))
			continue
		}
		records = append(records, rec)
	}
	return records
}

// parseBasedOn accepts the reference either as an attribute or as a child of
// the embedded property block, authoring tools produce both.
func parseBasedOn(el *etree.Element) string {
	if v := el.SelectAttrValue("BasedOn", ""); len(v) > 0 {
		return v
	}
	if props := el.SelectElement("Properties"); props != nil {
		if b := props.SelectElement("BasedOn"); b != nil {
			return strings.TrimSpace(b.Text())
		}
	}
	return ""
}

// parseStyleProps reads properties present directly on the node or in its
// embedded property block. Absent attributes stay unset.
func parseStyleProps(el *etree.Element) StyleProps {
	p := StyleProps{
		FontStyle:       strAttr(el, "FontStyle"),
		PointSize:       floatAttr(el, "PointSize"),
		FillColor:       colorRefAttr(el, "FillColor"),
		Tracking:        floatAttr(el, "Tracking"),
		BaselineShift:   floatAttr(el, "BaselineShift"),
		HorizontalScale: floatAttr(el, "HorizontalScale"),
		VerticalScale:   floatAttr(el, "VerticalScale"),
		Skew:            floatAttr(el, "Skew"),
		StrokeColor:     colorRefAttr(el, "StrokeColor"),
		StrokeWeight:    floatAttr(el, "StrokeWeight"),
		Underline:       boolAttr(el, "Underline"),
		UnderlineOffset: floatAttr(el, "UnderlineOffset"),
		UnderlineWeight: floatAttr(el, "UnderlineWeight"),
		StrikeThru:      boolAttr(el, "StrikeThru"),
		Capitalization:  strAttr(el, "Capitalization"),
		SpaceBefore:     floatAttr(el, "SpaceBefore"),
		SpaceAfter:      floatAttr(el, "SpaceAfter"),
		FirstLineIndent: floatAttr(el, "FirstLineIndent"),
		LeftIndent:      floatAttr(el, "LeftIndent"),
		RightIndent:     floatAttr(el, "RightIndent"),
		Justification:   strAttr(el, "Justification"),
		Hyphenation:     boolAttr(el, "Hyphenation"),
	}
	if props := el.SelectElement("Properties"); props != nil {
		if f := props.SelectElement("AppliedFont"); f != nil {
			if v := strings.TrimSpace(f.Text()); len(v) > 0 {
				p.FontFamily = &v
			}
		}
	}
	return p
}

// resolveStyles fills each record's unset properties by walking its basedOn
// chain through the raw record list, then aliases the result by both id and
// name. A visited-depth counter guards against reference cycles: past the
// limit resolution is aborted and remaining properties stay unset.
func resolveStyles(out map[string]*StyleRecord, records []*StyleRecord, depthLimit int, log *zap.Logger) {
	raw := make(map[string]*StyleRecord, len(records)*2)
	for _, rec := range records {
		if len(rec.ID) > 0 {
			raw[rec.ID] = rec
		}
		if len(rec.Name) > 0 {
			raw[rec.Name] = rec
		}
	}

	for _, rec := range records {
		resolved := rec.Props
		depth := 0
		for ref := rec.BasedOn; len(ref) > 0; {
			depth++
			if depth > depthLimit {
				log.Warn("Style inheritance chain too deep, leaving remaining properties unset",
					zap.String("style", rec.displayRef()), zap.Int("limit", depthLimit), zap.Error(ErrStyleCycle))
				break
			}
			parent, ok := raw[ref]
			if !ok {
				log.Debug("Style basedOn reference not found",
					zap.String("style", rec.displayRef()), zap.String("based_on", ref), zap.Error(ErrStyleNotFound))
				break
			}
			resolved.fill(&parent.Props)
			ref = parent.BasedOn
		}

		final := &StyleRecord{ID: rec.ID, Name: rec.Name, Kind: rec.Kind, BasedOn: rec.BasedOn, Props: resolved}
		if len(final.ID) > 0 {
			out[final.ID] = final
		}
		if len(final.Name) > 0 {
			out[final.Name] = final
		}
	}
}

func (s *StyleRecord) displayRef() string {
	if len(s.Name) > 0 {
		return s.Name
	}
	return s.ID
}

func parseColor(el *etree.Element, log *zap.Logger) *ColorSwatch {
	sw := &ColorSwatch{
		ID:    el.SelectAttrValue("Self", ""),
		Name:  el.SelectAttrValue("Name", ""),
		Space: el.SelectAttrValue("Space", ""),
	}
	if len(sw.ID) == 0 && len(sw.Name) == 0 {
		log.Warn("Color without id or name, skipping")
		return nil
	}
	sw.Hex = ResolveColorHex(sw.Space, el.SelectAttrValue("ColorValue", ""))
	return sw
}

// ResolveColorHex converts a color value in the given space to a 6-hex-digit
// string. Conversion is deterministic and total: CMYK goes through the
// standard (1-c)(1-k) formula per channel, any unknown space or malformed
// value yields opaque black.
func ResolveColorHex(space, value string) string {
	fields := strings.Fields(value)
	nums := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return blackHex
		}
		nums = append(nums, v)
	}

	var r, g, b float64
	switch strings.ToUpper(space) {
	case "RGB":
		if len(nums) != 3 {
			return blackHex
		}
		r, g, b = nums[0], nums[1], nums[2]
	case "CMYK":
		if len(nums) != 4 {
			return blackHex
		}
		c, m, y, k := nums[0]/100, nums[1]/100, nums[2]/100, nums[3]/100
		r = 255 * (1 - c) * (1 - k)
		g = 255 * (1 - m) * (1 - k)
		b = 255 * (1 - y) * (1 - k)
	default:
		return blackHex
	}
	return fmt.Sprintf("#%02x%02x%02x", clampByte(r), clampByte(g), clampByte(b))
}

func clampByte(v float64) uint8 {
	return uint8(math.Min(255, math.Max(0, math.Round(v))))
}

func strAttr(el *etree.Element, name string) *string {
	if attr := el.SelectAttr(name); attr != nil && len(attr.Value) > 0 {
		v := attr.Value
		return &v
	}
	return nil
}

func floatAttr(el *etree.Element, name string) *float64 {
	if attr := el.SelectAttr(name); attr != nil {
		if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
			return &v
		}
	}
	return nil
}

func boolAttr(el *etree.Element, name string) *bool {
	if attr := el.SelectAttr(name); attr != nil {
		if v, err := strconv.ParseBool(strings.ToLower(attr.Value)); err == nil {
			return &v
		}
	}
	return nil
}

// colorRefAttr normalizes swatch references: authoring tools prefix them with
// the resource type ("Color/Black").
func colorRefAttr(el *etree.Element, name string) *string {
	if attr := el.SelectAttr(name); attr != nil && len(attr.Value) > 0 {
		v := strings.TrimPrefix(attr.Value, "Color/")
		return &v
	}
	return nil
}
