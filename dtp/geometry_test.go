package dtp

import (
	"math"
	"testing"
)

func TestResolveSpread(t *testing.T) {
	root := mustElement(t, `<Spread Self="spread1">
		<Page Self="p1" GeometricBounds="0 0 600 450" ItemTransform="1 0 0 1 0 0"/>
		<Page Self="p2" GeometricBounds="0 0 600 450" ItemTransform="1 0 0 1 450 0"/>
		<TextFrame Self="f1" ParentStory="u100" ItemTransform="1 0 0 1 50 80">
			<Properties><PathGeometry><GeometryPathType><PathPointArray>
				<PathPointType Anchor="0 0"/>
				<PathPointType Anchor="200 0"/>
				<PathPointType Anchor="200 40"/>
				<PathPointType Anchor="0 40"/>
			</PathPointArray></GeometryPathType></PathGeometry></Properties>
		</TextFrame>
		<TextFrame Self="f2" ParentStory="u200" ItemTransform="1 0 0 1 500 100">
			<Properties><PathGeometry><GeometryPathType><PathPointArray>
				<PathPointType Anchor="0 0"/>
				<PathPointType Anchor="120 30"/>
			</PathPointArray></GeometryPathType></PathGeometry></Properties>
		</TextFrame>
	</Spread>`)

	geo, err := ResolveSpread(root, testLogger(t))
	if err != nil {
		t.Fatalf("ResolveSpread: %v", err)
	}

	if len(geo.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(geo.Pages))
	}
	if geo.Pages[0].Width != 450 || geo.Pages[0].Height != 600 {
		t.Fatalf("page dimensions = %v x %v, want 450 x 600", geo.Pages[0].Width, geo.Pages[0].Height)
	}

	if len(geo.Frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(geo.Frames))
	}

	f1 := geo.Frames[0]
	if f1.PageIndex != 0 {
		t.Fatalf("f1 page = %d, want 0", f1.PageIndex)
	}
	want := Rect{X: 50, Y: 80, Width: 200, Height: 40}
	if !rectEq(f1.Bounds, want) {
		t.Fatalf("f1 bounds = %+v, want %+v", f1.Bounds, want)
	}

	f2 := geo.Frames[1]
	// 500 falls into the open-ended interval of the rightmost page
	if f2.PageIndex != 1 {
		t.Fatalf("f2 page = %d, want 1", f2.PageIndex)
	}
	if f2.Bounds.Width != 120 || f2.Bounds.Height != 30 {
		t.Fatalf("f2 size = %v x %v, want 120 x 30", f2.Bounds.Width, f2.Bounds.Height)
	}
}

func TestResolveSpreadNoPages(t *testing.T) {
	root := mustElement(t, `<Spread Self="s"/>`)
	if _, err := ResolveSpread(root, testLogger(t)); err == nil {
		t.Fatal("expected error for spread without pages")
	}
}

func TestResolveSpreadFrameLeftOfAllPages(t *testing.T) {
	root := mustElement(t, `<Spread Self="s">
		<Page Self="p1" GeometricBounds="0 0 600 450" ItemTransform="1 0 0 1 100 0"/>
		<TextFrame Self="f" ParentStory="u1" ItemTransform="1 0 0 1 -50 0">
			<Properties><PathGeometry><GeometryPathType><PathPointArray>
				<PathPointType Anchor="0 0"/>
				<PathPointType Anchor="10 10"/>
			</PathPointArray></GeometryPathType></PathGeometry></Properties>
		</TextFrame>
	</Spread>`)

	geo, err := ResolveSpread(root, testLogger(t))
	if err != nil {
		t.Fatalf("ResolveSpread: %v", err)
	}
	if geo.Frames[0].PageIndex != 0 {
		t.Fatalf("frame left of all pages must land on first page, got %d", geo.Frames[0].PageIndex)
	}
}

func TestTransformTranslation(t *testing.T) {
	cases := []struct {
		in     string
		tx, ty float64
	}{
		{"1 0 0 1 450 -20.5", 450, -20.5},
		{"1 0 0 1 0 0", 0, 0},
		{"garbage", 0, 0},
		{"", 0, 0},
	}
	for _, tc := range cases {
		tx, ty := transformTranslation(tc.in)
		if tx != tc.tx || ty != tc.ty {
			t.Fatalf("transformTranslation(%q) = (%v, %v), want (%v, %v)", tc.in, tx, ty, tc.tx, tc.ty)
		}
	}
}

func rectEq(a, b Rect) bool {
	const eps = 1e-9
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps &&
		math.Abs(a.Width-b.Width) < eps && math.Abs(a.Height-b.Height) < eps
}
