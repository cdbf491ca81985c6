package personalize

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"wawbook/book"
	"wawbook/dtp"
)

func strptr(s string) *string { return &s }
func fptr(v float64) *float64 { return &v }

func testContent() *book.Content {
	return &book.Content{
		ID: "book-1",
		Styles: &dtp.Catalog{
			CharStyles: map[string]*dtp.StyleRecord{
				"Accent": {ID: "cs1", Name: "Accent", Props: dtp.StyleProps{
					FontStyle: strptr("Bold"),
					FillColor: strptr("Sky"),
				}},
			},
			ParaStyles: map[string]*dtp.StyleRecord{
				"Body": {ID: "ps1", Name: "Body", Props: dtp.StyleProps{
					FontFamily:    strptr("Baskerville"),
					PointSize:     fptr(14),
					Justification: strptr("CenterAlign"),
				}},
			},
			Colors: map[string]*dtp.ColorSwatch{
				"Sky": {ID: "c1", Name: "Sky", Space: "RGB", Hex: "#4080ff"},
			},
		},
		Pages: []book.Page{{Index: 0, Width: 450, Height: 600}},
		Texts: []book.TextElement{{
			FrameID:   "f1",
			StoryID:   "u100",
			PageIndex: 0,
			Box:       dtp.Rect{X: 30, Y: 40, Width: 300, Height: 100},
			CharStyle: "Accent",
			ParaStyle: "Body",
			Segments: []dtp.ConditionalSegment{
				{Text: "Bonjour {childName}", Variables: []string{"childName"}},
				{Text: " le garçon", ConditionName: "COND_child_gender-boy",
					Condition: &dtp.Condition{TabID: "child", VariantID: "gender", OptionID: "boy"}},
				{Text: " la fille", ConditionName: "COND_child_gender-girl",
					Condition: &dtp.Condition{TabID: "child", VariantID: "gender", OptionID: "girl"}},
			},
		}},
	}
}

func TestResolveFiltersAndSubstitutes(t *testing.T) {
	content := testContent()
	ctx := testContext()

	res := Resolve(content, ctx, zaptest.NewLogger(t))
	if len(res.Pages) != 1 {
		t.Fatalf("pages = %d", len(res.Pages))
	}
	page := res.Pages[0]
	if page.Width != 450 || page.Height != 600 {
		t.Fatalf("viewport = %v x %v", page.Width, page.Height)
	}
	if len(page.Fragments) != 1 {
		t.Fatalf("fragments = %d, want 1", len(page.Fragments))
	}

	html := page.Fragments[0].HTML
	if !strings.Contains(html, "Bonjour Alice") {
		t.Fatalf("substitution missing: %s", html)
	}
	if !strings.Contains(html, "la fille") {
		t.Fatalf("matching conditional segment missing: %s", html)
	}
	if strings.Contains(html, "le garçon") {
		t.Fatalf("non-matching conditional segment kept: %s", html)
	}
	if !strings.Contains(html, "left:30px;top:40px;width:300px;height:100px") {
		t.Fatalf("position missing: %s", html)
	}
	if !strings.Contains(html, "font-weight:bold") || !strings.Contains(html, "color:#4080ff") {
		t.Fatalf("character cascade missing: %s", html)
	}
	if !strings.Contains(html, "font-family:Baskerville") || !strings.Contains(html, "font-size:14pt") {
		t.Fatalf("paragraph style properties missing: %s", html)
	}
	if !strings.Contains(html, "text-align:center") {
		t.Fatalf("paragraph block properties missing: %s", html)
	}
}

func TestResolveDeterministic(t *testing.T) {
	content := testContent()
	ctx := testContext()

	first := Resolve(content, ctx, zaptest.NewLogger(t))
	second := Resolve(content, ctx, zaptest.NewLogger(t))
	if len(first.Pages) != len(second.Pages) {
		t.Fatal("page counts differ between runs")
	}
	for i := range first.Pages {
		a, b := first.Pages[i], second.Pages[i]
		if len(a.Fragments) != len(b.Fragments) {
			t.Fatalf("page %d fragment counts differ", i)
		}
		for j := range a.Fragments {
			if a.Fragments[j].HTML != b.Fragments[j].HTML {
				t.Fatalf("page %d fragment %d differs between runs", i, j)
			}
		}
	}
}

func TestResolveHardDefaults(t *testing.T) {
	content := &book.Content{
		ID:     "book-2",
		Styles: &dtp.Catalog{},
		Pages:  []book.Page{{Index: 0, Width: 100, Height: 100}},
		Texts: []book.TextElement{{
			PageIndex: 0,
			Box:       dtp.Rect{Width: 50, Height: 20},
			Segments:  []dtp.ConditionalSegment{{Text: "plain"}},
		}},
	}

	res := Resolve(content, &Context{}, zaptest.NewLogger(t))
	html := res.Pages[0].Fragments[0].HTML
	for _, want := range []string{"font-size:12pt", "color:#000000", "font-weight:normal", "font-style:normal"} {
		if !strings.Contains(html, want) {
			t.Fatalf("default %q missing: %s", want, html)
		}
	}
}

func TestResolveInlineOverrideWins(t *testing.T) {
	content := testContent()
	content.Texts[0].Segments = []dtp.ConditionalSegment{{
		Text:     "loud",
		Override: &dtp.StyleProps{PointSize: fptr(28)},
	}}

	res := Resolve(content, testContext(), zaptest.NewLogger(t))
	html := res.Pages[0].Fragments[0].HTML
	if !strings.Contains(html, "font-size:28pt") {
		t.Fatalf("override lost: %s", html)
	}
}

func TestResolveEscapesMarkup(t *testing.T) {
	content := testContent()
	content.Texts[0].Segments = []dtp.ConditionalSegment{{Text: "a < b & c\nnew line"}}

	res := Resolve(content, testContext(), zaptest.NewLogger(t))
	html := res.Pages[0].Fragments[0].HTML
	if !strings.Contains(html, "a &lt; b &amp; c<br/>new line") {
		t.Fatalf("escaping wrong: %s", html)
	}
}

func TestTrackingToEm(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{50, 0.05},
		{100, 0.1},
		{250, 2.5},
	}
	for _, tc := range cases {
		if got := trackingToEm(tc.in); got != tc.want {
			t.Fatalf("trackingToEm(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
