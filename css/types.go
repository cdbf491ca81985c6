// Package css parses the small CSS subset fixed-layout e-book packages use:
// flat rulesets with simple selectors, inline style attributes and @page size.
package css

import (
	"strings"
)

// Value is a single declaration value. Numeric values keep their unit,
// everything else is carried as a keyword.
type Value struct {
	Raw     string
	Number  float64
	Unit    string
	Keyword string
}

// Px returns the value in pixels. Unitless numbers are accepted as pixels,
// pt values are converted at 96/72.
func (v Value) Px() (float64, bool) {
	if len(v.Keyword) > 0 {
		return 0, false
	}
	switch v.Unit {
	case "px", "":
		if len(v.Raw) == 0 {
			return 0, false
		}
		return v.Number, true
	case "pt":
		return v.Number * 96 / 72, true
	default:
		return 0, false
	}
}

// Declarations is one property block.
type Declarations map[string]Value

// Px is a convenience lookup of a pixel-valued property.
func (d Declarations) Px(prop string) (float64, bool) {
	v, ok := d[prop]
	if !ok {
		return 0, false
	}
	return v.Px()
}

// Selector is a parsed simple selector: an optional element name plus an
// optional class or id. Anything more complex is dropped during parsing.
type Selector struct {
	Raw     string
	Element string
	Class   string
	ID      string
}

// Matches reports whether the selector applies to an element with the given
// tag, id and class list.
func (s Selector) Matches(tag, id string, classes []string) bool {
	if len(s.Element) > 0 && !strings.EqualFold(s.Element, tag) {
		return false
	}
	if len(s.ID) > 0 && s.ID != id {
		return false
	}
	if len(s.Class) > 0 {
		found := false
		for _, c := range classes {
			if c == s.Class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(s.Element) > 0 || len(s.ID) > 0 || len(s.Class) > 0
}

// Rule pairs a selector with its declarations.
type Rule struct {
	Selector Selector
	Props    Declarations
}

// PageSize is the @page box in pixels.
type PageSize struct {
	Width  float64
	Height float64
}

// Stylesheet is a parsed sheet: rules in source order plus the @page box if
// the sheet declares one.
type Stylesheet struct {
	Rules []Rule
	Page  *PageSize
}

// DeclarationsFor folds every matching rule in source order, later rules
// override earlier ones.
func (s *Stylesheet) DeclarationsFor(tag, id string, classes []string) Declarations {
	out := make(Declarations)
	for _, r := range s.Rules {
		if r.Selector.Matches(tag, id, classes) {
			for k, v := range r.Props {
				out[k] = v
			}
		}
	}
	return out
}
