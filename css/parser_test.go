package css

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestParseRules(t *testing.T) {
	sheet := NewParser(zaptest.NewLogger(t)).Parse([]byte(`
		.frame { position: absolute; left: 120px; top: 48px; width: 300px; height: 90px; }
		div.page { background: white; }
		#hero { left: 10px; }
		p code { color: red; } /* combinator, dropped */
		h1 > em { color: blue; } /* dropped */
	`))

	if len(sheet.Rules) != 3 {
		t.Fatalf("rules = %d, want 3", len(sheet.Rules))
	}

	frame := sheet.Rules[0]
	if frame.Selector.Class != "frame" || frame.Selector.Element != "" {
		t.Fatalf("selector = %+v", frame.Selector)
	}
	if left, ok := frame.Props.Px("left"); !ok || left != 120 {
		t.Fatalf("left = %v %v, want 120", left, ok)
	}

	page := sheet.Rules[1]
	if page.Selector.Element != "div" || page.Selector.Class != "page" {
		t.Fatalf("selector = %+v", page.Selector)
	}

	hero := sheet.Rules[2]
	if hero.Selector.ID != "hero" {
		t.Fatalf("selector = %+v", hero.Selector)
	}
}

func TestParsePageBox(t *testing.T) {
	cases := []struct {
		name string
		css  string
		w, h float64
	}{
		{"width and height", `@page { width: 450px; height: 600px; }`, 450, 600},
		{"size shorthand", `@page { size: 450px 600px; }`, 450, 600},
		{"pt converted", `@page { width: 72pt; height: 144pt; }`, 96, 192},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sheet := NewParser(zaptest.NewLogger(t)).Parse([]byte(tc.css))
			if sheet.Page == nil {
				t.Fatal("no page box parsed")
			}
			if sheet.Page.Width != tc.w || sheet.Page.Height != tc.h {
				t.Fatalf("page = %+v, want %v x %v", sheet.Page, tc.w, tc.h)
			}
		})
	}
}

func TestParsePageBoxIncomplete(t *testing.T) {
	sheet := NewParser(zaptest.NewLogger(t)).Parse([]byte(`@page { width: 450px; }`))
	if sheet.Page != nil {
		t.Fatalf("page = %+v, want nil for incomplete box", sheet.Page)
	}
}

func TestParseSkipsMediaBlocks(t *testing.T) {
	sheet := NewParser(zaptest.NewLogger(t)).Parse([]byte(`
		@media screen { .frame { left: 1px; } }
		.frame { left: 2px; }
	`))
	if len(sheet.Rules) != 1 {
		t.Fatalf("rules = %d, want 1 (media block skipped)", len(sheet.Rules))
	}
	if left, _ := sheet.Rules[0].Props.Px("left"); left != 2 {
		t.Fatalf("left = %v, want 2", left)
	}
}

func TestParseDeclarationsInline(t *testing.T) {
	props := NewParser(zaptest.NewLogger(t)).ParseDeclarations("left:10.5px; top:20px; font-family:'Open Sans'; line-height: 1.4")

	if left, ok := props.Px("left"); !ok || left != 10.5 {
		t.Fatalf("left = %v %v", left, ok)
	}
	if ff := props["font-family"]; ff.Keyword != "Open Sans" {
		t.Fatalf("font-family = %+v", ff)
	}
	if lh := props["line-height"]; lh.Number != 1.4 || lh.Unit != "" {
		t.Fatalf("line-height = %+v", lh)
	}
}

func TestSelectorMatches(t *testing.T) {
	cases := []struct {
		sel     string
		tag, id string
		classes []string
		want    bool
	}{
		{"div", "div", "", nil, true},
		{"div", "p", "", nil, false},
		{".frame", "div", "", []string{"frame", "odd"}, true},
		{".frame", "div", "", []string{"odd"}, false},
		{"div.frame", "div", "", []string{"frame"}, true},
		{"span.frame", "div", "", []string{"frame"}, false},
		{"#hero", "div", "hero", nil, true},
		{"#hero", "div", "other", nil, false},
	}
	for _, tc := range cases {
		sel, ok := parseSelector(tc.sel)
		if !ok {
			t.Fatalf("parseSelector(%q) rejected", tc.sel)
		}
		if got := sel.Matches(tc.tag, tc.id, tc.classes); got != tc.want {
			t.Fatalf("%q matches (%s,%s,%v) = %v, want %v", tc.sel, tc.tag, tc.id, tc.classes, got, tc.want)
		}
	}
}

func TestDeclarationsForCascade(t *testing.T) {
	sheet := NewParser(zaptest.NewLogger(t)).Parse([]byte(`
		div { left: 1px; top: 5px; }
		.frame { left: 2px; }
	`))
	props := sheet.DeclarationsFor("div", "", []string{"frame"})
	if left, _ := props.Px("left"); left != 2 {
		t.Fatalf("left = %v, want later rule to win", left)
	}
	if top, _ := props.Px("top"); top != 5 {
		t.Fatalf("top = %v, want 5", top)
	}
}
