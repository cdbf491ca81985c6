package personalize

import (
	"math"
	"strconv"
	"strings"

	"wawbook/book"
	"wawbook/dtp"
)

// Image selection. Several candidates may occupy the same position (static,
// combination-key-scoped, condition-scoped), exactly one is rendered per
// position. Scoring, highest wins, ties keep the first encountered:
//
//	full condition match      1000 + number of conditions
//	partial condition match   10 + number of matching conditions
//	exact combination key     5
//	partial combination key   2
//	static / default          1
//
// A conditioned candidate with nothing matching scores 0 and is never
// selected over a static fallback.

// SelectedImage is one winning candidate.
type SelectedImage struct {
	Source    string
	PageIndex int
	Box       dtp.Rect
}

// SelectImages picks the best candidate per distinct rounded position.
func SelectImages(images []book.Image, ctx *Context) []SelectedImage {
	type slot struct {
		img   *book.Image
		score int
		order int
	}

	slots := make(map[string]*slot)
	var keys []string

	for i := range images {
		img := &images[i]
		score := scoreImage(img, ctx)
		if score <= 0 {
			continue
		}
		key := positionKey(img)
		s, ok := slots[key]
		if !ok {
			slots[key] = &slot{img: img, score: score, order: i}
			keys = append(keys, key)
			continue
		}
		if score > s.score {
			s.img, s.score = img, score
		}
	}

	var out []SelectedImage
	for _, key := range keys {
		s := slots[key]
		out = append(out, SelectedImage{
			Source:    s.img.Source,
			PageIndex: s.img.PageIndex,
			Box:       s.img.Box,
		})
	}
	return out
}

func scoreImage(img *book.Image, ctx *Context) int {
	if len(img.Conditions) > 0 {
		matching := 0
		for _, cond := range img.Conditions {
			if ctx.Allows(cond) {
				matching++
			}
		}
		switch {
		case matching == len(img.Conditions):
			return 1000 + matching
		case matching > 0:
			return 10 + matching
		default:
			return 0
		}
	}

	if len(img.CombinationKey) > 0 {
		if img.CombinationKey == ctx.Combination {
			return 5
		}
		if sharesComponent(img.CombinationKey, ctx.Combination) {
			return 2
		}
		// a default key acts as the static fallback
		if img.CombinationKey == "default" {
			return 1
		}
		return 0
	}

	return 1
}

// sharesComponent reports whether two dash-joined keys have a component in
// common.
func sharesComponent(a, b string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	parts := make(map[string]struct{})
	for _, p := range strings.Split(a, "-") {
		parts[p] = struct{}{}
	}
	for _, p := range strings.Split(b, "-") {
		if _, ok := parts[p]; ok {
			return true
		}
	}
	return false
}

// positionKey buckets candidates by page and rounded position.
func positionKey(img *book.Image) string {
	return strconv.Itoa(img.PageIndex) + "|" +
		formatFloat(math.Round(img.Box.X)) + "|" +
		formatFloat(math.Round(img.Box.Y))
}
