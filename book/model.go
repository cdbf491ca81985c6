// Package book holds the canonical page model: the reconciliation of the
// style-rich desktop-publishing parse with the pixel-accurate reflow layout,
// persisted once per book and instantiated per customer.
package book

import (
	"encoding/json"
	"fmt"

	"wawbook/dtp"
)

// TextElement is one merged text record: content and styles from the
// desktop-publishing frame, position in pixels from the reflow container.
type TextElement struct {
	FrameID   string                   `json:"frameId"`
	StoryID   string                   `json:"storyId"`
	PageIndex int                      `json:"pageIndex"`
	Box       dtp.Rect                 `json:"box"`
	CharStyle string                   `json:"charStyle,omitempty"`
	ParaStyle string                   `json:"paraStyle,omitempty"`
	ParaProps *dtp.StyleProps          `json:"paraProps,omitempty"`
	Segments  []dtp.ConditionalSegment `json:"segments"`
	Content   string                   `json:"content"`
}

// Image is one positioned image with its visibility gates.
type Image struct {
	Source         string           `json:"source"`
	PageIndex      int              `json:"pageIndex"`
	Box            dtp.Rect         `json:"box"`
	ConditionNames []string         `json:"conditionNames,omitempty"`
	Conditions     []*dtp.Condition `json:"conditions,omitempty"`
	CombinationKey string           `json:"combinationKey,omitempty"`
}

// Page is one page's pixel dimensions, the render viewport.
type Page struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Content is the canonical model of one book. The style catalog rides along
// so the personalization cascade can resolve named styles without the
// original package.
type Content struct {
	ID     string        `json:"id"`
	Title  string        `json:"title,omitempty"`
	Pages  []Page        `json:"pages"`
	Texts  []TextElement `json:"texts"`
	Images []Image       `json:"images"`
	Styles *dtp.Catalog  `json:"styles"`
}

// Encode serializes canonical content for the object store.
func Encode(c *Content) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding canonical content: %w", err)
	}
	return data, nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (*Content, error) {
	var c Content
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding canonical content: %w", err)
	}
	return &c, nil
}
