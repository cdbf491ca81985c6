package render

import (
	"testing"

	"wawbook/book"
	"wawbook/dtp"
	"wawbook/personalize"
)

func TestDedicationPages(t *testing.T) {
	content := &book.Content{
		ID: "book-1",
		Texts: []book.TextElement{
			{
				PageIndex: 0,
				Segments:  []dtp.ConditionalSegment{{Text: "Il était une fois"}},
				Content:   "Il était une fois",
			},
			{
				PageIndex: 1,
				Segments:  []dtp.ConditionalSegment{{Text: "{dedication}", Variables: []string{"dedication"}}},
				Content:   "{dedication}",
			},
			{
				PageIndex: 2,
				Segments:  []dtp.ConditionalSegment{{Text: "Pour toi, {dedication}"}},
				Content:   "Pour toi, {dedication}",
			},
		},
	}
	resolved := &personalize.Result{
		BookID: "book-1",
		Pages: []personalize.PageResult{
			{Index: 0}, {Index: 1}, {Index: 2},
		},
	}

	pages := dedicationPages(content, resolved)
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	// page 1 declares the variable, page 2 carries the literal token
	if pages[0].Index != 1 || pages[1].Index != 2 {
		t.Fatalf("page indexes = %d, %d, want 1, 2", pages[0].Index, pages[1].Index)
	}
}

func TestDedicationPagesNoneFound(t *testing.T) {
	content := &book.Content{
		Texts: []book.TextElement{
			{PageIndex: 0, Content: "plain text"},
		},
	}
	resolved := &personalize.Result{Pages: []personalize.PageResult{{Index: 0}}}

	if pages := dedicationPages(content, resolved); len(pages) != 0 {
		t.Fatalf("pages = %d, want none", len(pages))
	}
}
