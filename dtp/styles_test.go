package dtp

import (
	"errors"
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func mustElement(t *testing.T, xml string) *etree.Element {
	t.Helper()

	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatalf("read xml: %v", err)
	}
	if doc.Root() == nil {
		t.Fatalf("xml has no root element")
	}
	return doc.Root()
}

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func TestBuildCatalogInheritance(t *testing.T) {
	styles := mustElement(t, `<Styles>
		<RootCharacterStyleGroup>
			<CharacterStyle Self="CharacterStyle/base" Name="Base" PointSize="14" FillColor="Color/Night">
				<Properties><AppliedFont>Gotham</AppliedFont></Properties>
			</CharacterStyle>
			<CharacterStyle Self="CharacterStyle/bold" Name="Bold" BasedOn="CharacterStyle/base" FontStyle="Bold"/>
			<CharacterStyle Self="CharacterStyle/huge" Name="Huge" BasedOn="CharacterStyle/bold" PointSize="42"/>
		</RootCharacterStyleGroup>
	</Styles>`)

	cat := BuildCatalog(styles, nil, 0, testLogger(t))

	huge, ok := cat.CharStyle("CharacterStyle/huge")
	if !ok {
		t.Fatal("style not found by id")
	}
	// different properties resolve from different ancestors
	if huge.Props.PointSize == nil || *huge.Props.PointSize != 42 {
		t.Fatalf("own PointSize must win, got %v", huge.Props.PointSize)
	}
	if huge.Props.FontStyle == nil || *huge.Props.FontStyle != "Bold" {
		t.Fatalf("FontStyle must come from parent, got %v", huge.Props.FontStyle)
	}
	if huge.Props.FontFamily == nil || *huge.Props.FontFamily != "Gotham" {
		t.Fatalf("FontFamily must come from grandparent, got %v", huge.Props.FontFamily)
	}
	if huge.Props.FillColor == nil || *huge.Props.FillColor != "Night" {
		t.Fatalf("FillColor must come from grandparent with prefix stripped, got %v", huge.Props.FillColor)
	}

	// display name aliases the same record
	byName, ok := cat.CharStyle("Huge")
	if !ok || byName != huge {
		t.Fatal("display name must alias the same resolved record")
	}
}

func TestBuildCatalogCycleTerminates(t *testing.T) {
	// synthetic cycle of length 3 must resolve with properties unset, not hang
	styles := mustElement(t, `<Styles>
		<RootCharacterStyleGroup>
			<CharacterStyle Self="CharacterStyle/a" Name="A" BasedOn="CharacterStyle/b"/>
			<CharacterStyle Self="CharacterStyle/b" Name="B" BasedOn="CharacterStyle/c"/>
			<CharacterStyle Self="CharacterStyle/c" Name="C" BasedOn="CharacterStyle/a"/>
		</RootCharacterStyleGroup>
	</Styles>`)

	cat := BuildCatalog(styles, nil, 10, testLogger(t))

	a, ok := cat.CharStyle("A")
	if !ok {
		t.Fatal("style not found")
	}
	if !a.Props.IsZero() {
		t.Fatalf("cycled chain must leave properties unset, got %+v", a.Props)
	}
}

func TestBuildCatalogSurfacesTypedResolutionErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	styles := mustElement(t, `<Styles>
		<RootCharacterStyleGroup>
			<CharacterStyle Self="CharacterStyle/a" Name="A" BasedOn="CharacterStyle/b"/>
			<CharacterStyle Self="CharacterStyle/b" Name="B" BasedOn="CharacterStyle/a"/>
			<CharacterStyle Self="CharacterStyle/x" Name="X" BasedOn="CharacterStyle/nope"/>
		</RootCharacterStyleGroup>
	</Styles>`)

	BuildCatalog(styles, nil, 4, zap.New(core))

	var cycle, missing bool
	for _, entry := range logs.All() {
		for _, field := range entry.Context {
			err, ok := field.Interface.(error)
			if !ok {
				continue
			}
			if errors.Is(err, ErrStyleCycle) {
				cycle = true
			}
			if errors.Is(err, ErrStyleNotFound) {
				missing = true
			}
		}
	}
	if !cycle {
		t.Error("aborted inheritance chain must surface the cycle error")
	}
	if !missing {
		t.Error("dangling basedOn reference must surface the not-found error")
	}
}

func TestBuildCatalogParagraphStyles(t *testing.T) {
	styles := mustElement(t, `<Styles>
		<RootParagraphStyleGroup>
			<ParagraphStyle Self="ParagraphStyle/body" Name="Body" PointSize="11" SpaceBefore="6" Justification="LeftAlign">
				<Properties><AppliedFont>Minion Pro</AppliedFont></Properties>
			</ParagraphStyle>
		</RootParagraphStyleGroup>
	</Styles>`)

	cat := BuildCatalog(styles, nil, 10, testLogger(t))

	body, ok := cat.ParaStyle("ParagraphStyle/body")
	if !ok {
		t.Fatal("paragraph style not found")
	}
	if body.Kind != StyleParagraph {
		t.Fatalf("kind = %v, want paragraph", body.Kind)
	}
	if body.Props.SpaceBefore == nil || *body.Props.SpaceBefore != 6 {
		t.Fatalf("SpaceBefore = %v, want 6", body.Props.SpaceBefore)
	}
}

func TestBuildCatalogColors(t *testing.T) {
	graphic := mustElement(t, `<Graphic>
		<Color Self="Color/u10" Name="Sunset" Space="RGB" ColorValue="255 128 0"/>
		<Color Self="Color/u11" Name="Ocean" Space="CMYK" ColorValue="100 50 0 20"/>
		<Color Self="Color/u12" Name="Mystery" Space="Lab" ColorValue="50 10 10"/>
	</Graphic>`)

	cat := BuildCatalog(nil, graphic, 10, testLogger(t))

	if got := cat.Color("Sunset").Hex; got != "#ff8000" {
		t.Fatalf("RGB hex = %s, want #ff8000", got)
	}
	// id and name alias the same swatch
	if cat.Color("Color/u10") != cat.Color("Sunset") {
		t.Fatal("id and name must alias the same swatch")
	}
	if got := cat.Color("Ocean").Hex; got != "#0066cc" {
		t.Fatalf("CMYK hex = %s, want #0066cc", got)
	}
	// unknown space resolves to black
	if got := cat.Color("Mystery").Hex; got != "#000000" {
		t.Fatalf("unknown space hex = %s, want #000000", got)
	}
	// unknown swatch yields opaque black, never an error
	if got := cat.Color("NoSuchSwatch").Hex; got != "#000000" {
		t.Fatalf("unknown swatch hex = %s, want #000000", got)
	}
}

func TestResolveColorHex(t *testing.T) {
	cases := []struct {
		name  string
		space string
		value string
		want  string
	}{
		{"rgb white", "RGB", "255 255 255", "#ffffff"},
		{"rgb black", "RGB", "0 0 0", "#000000"},
		{"rgb lowercase space", "rgb", "16 32 48", "#102030"},
		{"cmyk black channel", "CMYK", "0 0 0 100", "#000000"},
		{"cmyk plain", "CMYK", "0 100 100 0", "#ff0000"},
		{"cmyk rounding", "CMYK", "15 7 0 3", "#d2e6f7"},
		{"malformed value", "RGB", "255 nope 0", "#000000"},
		{"wrong arity", "RGB", "255 255", "#000000"},
		{"unknown space", "HSV", "120 1 1", "#000000"},
		{"empty", "", "", "#000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveColorHex(tc.space, tc.value); got != tc.want {
				t.Fatalf("ResolveColorHex(%q, %q) = %s, want %s", tc.space, tc.value, got, tc.want)
			}
		})
	}
}
