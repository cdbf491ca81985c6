// Package dtp parses desktop-publishing interchange packages: style and color
// resources, story content with conditional text, and spread geometry. Only
// the text/style/condition subset the product depends on is supported.
package dtp

// Type definitions for the desktop-publishing package structures.

// StyleKind tells paragraph and character styles apart. BasedOn references
// never cross kinds.
type StyleKind int

const (
	StyleCharacter StyleKind = iota
	StyleParagraph
)

func (k StyleKind) String() string {
	if k == StyleParagraph {
		return "paragraph"
	}
	return "character"
}

// StyleProps is a sparse property bag: every property is either present or
// must be resolved by walking BasedOn until found or the chain ends. A nil
// field means "unset", never "default".
type StyleProps struct {
	FontFamily      *string  `json:"fontFamily,omitempty"`
	FontStyle       *string  `json:"fontStyle,omitempty"` // weight/slant, e.g. "Bold", "Italic", "Bold Italic"
	PointSize       *float64 `json:"pointSize,omitempty"`
	FillColor       *string  `json:"fillColor,omitempty"` // swatch reference, internal id or display name
	Tracking        *float64 `json:"tracking,omitempty"`
	BaselineShift   *float64 `json:"baselineShift,omitempty"`
	HorizontalScale *float64 `json:"horizontalScale,omitempty"`
	VerticalScale   *float64 `json:"verticalScale,omitempty"`
	Skew            *float64 `json:"skew,omitempty"`
	StrokeColor     *string  `json:"strokeColor,omitempty"`
	StrokeWeight    *float64 `json:"strokeWeight,omitempty"`
	Underline       *bool    `json:"underline,omitempty"`
	UnderlineOffset *float64 `json:"underlineOffset,omitempty"`
	UnderlineWeight *float64 `json:"underlineWeight,omitempty"`
	StrikeThru      *bool    `json:"strikeThru,omitempty"`
	Capitalization  *string  `json:"capitalization,omitempty"`

	// paragraph styles only
	SpaceBefore     *float64 `json:"spaceBefore,omitempty"`
	SpaceAfter      *float64 `json:"spaceAfter,omitempty"`
	FirstLineIndent *float64 `json:"firstLineIndent,omitempty"`
	LeftIndent      *float64 `json:"leftIndent,omitempty"`
	RightIndent     *float64 `json:"rightIndent,omitempty"`
	Justification   *string  `json:"justification,omitempty"`
	Hyphenation     *bool    `json:"hyphenation,omitempty"`
}

// IsZero reports whether no property is set.
func (p *StyleProps) IsZero() bool {
	return p == nil || *p == StyleProps{}
}

// fill copies every property which is set in src and still unset in p.
// Resolution over an ancestor chain is a fold with fill: different properties
// may resolve from different ancestors.
func (p *StyleProps) fill(src *StyleProps) {
	if src == nil {
		return
	}
	if p.FontFamily == nil {
		p.FontFamily = src.FontFamily
	}
	if p.FontStyle == nil {
		p.FontStyle = src.FontStyle
	}
	if p.PointSize == nil {
		p.PointSize = src.PointSize
	}
	if p.FillColor == nil {
		p.FillColor = src.FillColor
	}
	if p.Tracking == nil {
		p.Tracking = src.Tracking
	}
	if p.BaselineShift == nil {
		p.BaselineShift = src.BaselineShift
	}
	if p.HorizontalScale == nil {
		p.HorizontalScale = src.HorizontalScale
	}
	if p.VerticalScale == nil {
		p.VerticalScale = src.VerticalScale
	}
	if p.Skew == nil {
		p.Skew = src.Skew
	}
	if p.StrokeColor == nil {
		p.StrokeColor = src.StrokeColor
	}
	if p.StrokeWeight == nil {
		p.StrokeWeight = src.StrokeWeight
	}
	if p.Underline == nil {
		p.Underline = src.Underline
	}
	if p.UnderlineOffset == nil {
		p.UnderlineOffset = src.UnderlineOffset
	}
	if p.UnderlineWeight == nil {
		p.UnderlineWeight = src.UnderlineWeight
	}
	if p.StrikeThru == nil {
		p.StrikeThru = src.StrikeThru
	}
	if p.Capitalization == nil {
		p.Capitalization = src.Capitalization
	}
	if p.SpaceBefore == nil {
		p.SpaceBefore = src.SpaceBefore
	}
	if p.SpaceAfter == nil {
		p.SpaceAfter = src.SpaceAfter
	}
	if p.FirstLineIndent == nil {
		p.FirstLineIndent = src.FirstLineIndent
	}
	if p.LeftIndent == nil {
		p.LeftIndent = src.LeftIndent
	}
	if p.RightIndent == nil {
		p.RightIndent = src.RightIndent
	}
	if p.Justification == nil {
		p.Justification = src.Justification
	}
	if p.Hyphenation == nil {
		p.Hyphenation = src.Hyphenation
	}
}

// Fill copies every property which is set in src and still unset in p. The
// personalization cascade folds its sources with it in priority order.
func (p *StyleProps) Fill(src *StyleProps) {
	p.fill(src)
}

// StyleRecord is one character or paragraph style definition. Built once per
// document parse, immutable thereafter.
type StyleRecord struct {
	ID      string    `json:"id"`
	Name    string    `json:"name,omitempty"`
	Kind    StyleKind `json:"kind"`
	BasedOn string    `json:"basedOn,omitempty"`
	// Props after inheritance resolution. Properties which could not be
	// resolved within the depth limit stay unset.
	Props StyleProps `json:"props"`
}

// ColorSwatch is a resolved color: both the internal id and the display name
// map to the same value in the catalog.
type ColorSwatch struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Space string `json:"space"` // source color space, RGB or CMYK
	Hex   string `json:"hex"`   // resolved #rrggbb value
}

// Catalog keeps resolved styles and colors. Maps are keyed by both internal
// id and display name, aliased to the same record.
type Catalog struct {
	CharStyles map[string]*StyleRecord `json:"charStyles"`
	ParaStyles map[string]*StyleRecord `json:"paraStyles"`
	Colors     map[string]*ColorSwatch `json:"colors"`
}

// CharStyle looks up a character style by id or display name.
func (c *Catalog) CharStyle(ref string) (*StyleRecord, bool) {
	s, ok := c.CharStyles[ref]
	return s, ok
}

// ParaStyle looks up a paragraph style by id or display name.
func (c *Catalog) ParaStyle(ref string) (*StyleRecord, bool) {
	s, ok := c.ParaStyles[ref]
	return s, ok
}

// Color looks up a swatch by id or display name. A reference to an unknown
// swatch yields opaque black, never an error.
func (c *Catalog) Color(ref string) *ColorSwatch {
	if s, ok := c.Colors[ref]; ok {
		return s
	}
	return &ColorSwatch{ID: ref, Name: ref, Space: "RGB", Hex: blackHex}
}

// Condition is a parsed condition triple gating segment visibility.
type Condition struct {
	TabID     string `json:"tabId"`
	VariantID string `json:"variantId"`
	OptionID  string `json:"optionId"`
}

// ConditionalSegment is a run of literal text with an optional visibility
// condition, inline overrides and detected variables. Segments preserve
// original order.
type ConditionalSegment struct {
	Text          string      `json:"text"`
	ConditionName string      `json:"conditionName,omitempty"`
	Condition     *Condition  `json:"condition,omitempty"`
	Override      *StyleProps `json:"override,omitempty"`
	Variables     []string    `json:"variables,omitempty"`
}

// Rect is an axis-aligned box, in document units for dtp geometry.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextFrame combines story content with resolved frame geometry.
type TextFrame struct {
	ID        string
	StoryID   string
	PageIndex int
	Bounds    Rect

	AppliedCharStyle string
	AppliedParaStyle string
	// Character properties defined directly on the paragraph range, used by
	// the cascade in the absence of a character style.
	ParaProps *StyleProps
	Segments  []ConditionalSegment
	// Raw concatenated content, for variable/condition detection only.
	Content string
}

// PageInfo is a single page with its dimensions in document units.
type PageInfo struct {
	Index  int
	Width  float64
	Height float64
}

// Document is the fully parsed desktop-publishing package.
type Document struct {
	Catalog *Catalog
	Pages   []PageInfo
	Frames  []*TextFrame
}
