package book

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"wawbook/dtp"
	"wawbook/reflow"
)

func frame(id, story string, page int, x, y float64) *dtp.TextFrame {
	return &dtp.TextFrame{
		ID:        id,
		StoryID:   story,
		PageIndex: page,
		Bounds:    dtp.Rect{X: x, Y: y, Width: 100, Height: 20},
		Content:   "text of " + story,
	}
}

func container(id, ref string, page int, x, y float64) reflow.Container {
	return reflow.Container{
		ID:        id,
		StoryRef:  ref,
		PageIndex: page,
		Box:       dtp.Rect{X: x, Y: y, Width: 200, Height: 40},
	}
}

func TestMergeReferenceMatchWins(t *testing.T) {
	doc := &dtp.Document{
		Catalog: &dtp.Catalog{},
		Frames: []*dtp.TextFrame{
			frame("f1", "u100", 0, 10, 10),
			frame("f2", "u200", 0, 10, 200),
		},
	}
	layout := &reflow.Layout{
		Pages: []reflow.PageBox{{Index: 0, Width: 450, Height: 600}},
		Containers: []reflow.Container{
			// reading order would pair this first box with f1, the
			// reference must override that
			container("c1", "u200", 0, 5, 5),
			container("c2", "u100", 0, 5, 300),
		},
	}

	content := Merge(doc, layout, zaptest.NewLogger(t))
	if len(content.Texts) != 2 {
		t.Fatalf("texts = %d, want 2", len(content.Texts))
	}

	byStory := make(map[string]TextElement)
	for _, te := range content.Texts {
		byStory[te.StoryID] = te
	}
	if byStory["u200"].Box.Y != 5 {
		t.Fatalf("u200 box = %+v, want the referenced container at Y=5", byStory["u200"].Box)
	}
	if byStory["u100"].Box.Y != 300 {
		t.Fatalf("u100 box = %+v, want the referenced container at Y=300", byStory["u100"].Box)
	}
}

func TestMergeReadingOrderFallback(t *testing.T) {
	doc := &dtp.Document{
		Catalog: &dtp.Catalog{},
		Frames: []*dtp.TextFrame{
			frame("f2", "u200", 0, 10, 400),
			frame("f1", "u100", 0, 10, 50),
		},
	}
	layout := &reflow.Layout{
		Pages: []reflow.PageBox{{Index: 0, Width: 450, Height: 600}},
		Containers: []reflow.Container{
			container("c2", "", 0, 5, 350),
			container("c1", "", 0, 5, 40),
		},
	}

	content := Merge(doc, layout, zaptest.NewLogger(t))
	if len(content.Texts) != 2 {
		t.Fatalf("texts = %d, want 2", len(content.Texts))
	}
	// reading order on both sides: f1 (Y=50) pairs with c1 (Y=40)
	if content.Texts[0].StoryID != "u100" || content.Texts[0].Box.Y != 40 {
		t.Fatalf("texts[0] = %+v", content.Texts[0])
	}
	if content.Texts[1].StoryID != "u200" || content.Texts[1].Box.Y != 350 {
		t.Fatalf("texts[1] = %+v", content.Texts[1])
	}
}

func TestMergeBoxConsumedOnce(t *testing.T) {
	doc := &dtp.Document{
		Catalog: &dtp.Catalog{},
		Frames: []*dtp.TextFrame{
			frame("f1", "u100", 0, 10, 10),
			frame("f2", "u200", 0, 10, 20),
		},
	}
	layout := &reflow.Layout{
		Pages:      []reflow.PageBox{{Index: 0, Width: 450, Height: 600}},
		Containers: []reflow.Container{container("c1", "", 0, 5, 5)},
	}

	content := Merge(doc, layout, zaptest.NewLogger(t))
	if len(content.Texts) != 1 {
		t.Fatalf("texts = %d, want 1 (single box consumed once)", len(content.Texts))
	}
	if content.Texts[0].StoryID != "u100" {
		t.Fatalf("texts[0] = %+v, want first frame in reading order", content.Texts[0])
	}
}

func TestMergeUnmatchedFrameExcluded(t *testing.T) {
	doc := &dtp.Document{
		Catalog: &dtp.Catalog{},
		Frames:  []*dtp.TextFrame{frame("f1", "u100", 3, 10, 10)},
	}
	layout := &reflow.Layout{
		Pages:      []reflow.PageBox{{Index: 0, Width: 450, Height: 600}},
		Containers: []reflow.Container{container("c1", "", 0, 5, 5)},
	}

	content := Merge(doc, layout, zaptest.NewLogger(t))
	if len(content.Texts) != 0 {
		t.Fatalf("texts = %d, want 0 (frame on a page with no boxes)", len(content.Texts))
	}
}

func TestMergeCarriesImagesAndPages(t *testing.T) {
	doc := &dtp.Document{Catalog: &dtp.Catalog{}}
	layout := &reflow.Layout{
		Pages: []reflow.PageBox{{Index: 0, Width: 450, Height: 600}},
		Images: []reflow.ImageCandidate{{
			Source:         "images/bear.png",
			Box:            dtp.Rect{Width: 450, Height: 600},
			CombinationKey: "default",
		}},
	}

	content := Merge(doc, layout, zaptest.NewLogger(t))
	if len(content.Pages) != 1 || content.Pages[0].Width != 450 {
		t.Fatalf("pages = %+v", content.Pages)
	}
	if len(content.Images) != 1 || content.Images[0].Source != "images/bear.png" {
		t.Fatalf("images = %+v", content.Images)
	}
	if content.ID == "" {
		t.Fatal("content id not assigned")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	size := 14.0
	doc := &dtp.Document{
		Catalog: &dtp.Catalog{
			CharStyles: map[string]*dtp.StyleRecord{
				"cs1": {ID: "cs1", Name: "Accent", Props: dtp.StyleProps{PointSize: &size}},
			},
		},
		Frames: []*dtp.TextFrame{frame("f1", "u100", 0, 10, 10)},
	}
	layout := &reflow.Layout{
		Pages:      []reflow.PageBox{{Index: 0, Width: 450, Height: 600}},
		Containers: []reflow.Container{container("c1", "u100", 0, 5, 5)},
	}
	content := Merge(doc, layout, zaptest.NewLogger(t))

	data, err := Encode(content)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.ID != content.ID || len(decoded.Texts) != 1 {
		t.Fatalf("decoded = %+v", decoded)
	}
	accent, ok := decoded.Styles.CharStyle("cs1")
	if !ok || accent.Props.PointSize == nil || *accent.Props.PointSize != 14 {
		t.Fatalf("decoded style = %+v", accent)
	}
}
