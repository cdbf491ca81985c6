package dtp

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/maruel/natural"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	"wawbook/archive"
)

// Well known entry locations inside the package.
const (
	stylesEntry  = "Resources/Styles.xml"
	graphicEntry = "Resources/Graphic.xml"
	storiesDir   = "Stories/"
	spreadsDir   = "Spreads/"
)

// Options controls package reading.
type Options struct {
	// Style basedOn chains longer than this are treated as unresolved.
	StyleDepthLimit int
	// Forced code page for non UTF-8 entry names, nil leaves names alone.
	CodePage encoding.Encoding
}

// ReadPackage parses a zipped desktop-publishing package supplied as a byte
// buffer into a Document: resolved style/color catalog, page list and text
// frames with content attached. Parsing is best-effort by policy, only
// structural failures (no spread data, no story data) are fatal.
func ReadPackage(data []byte, opts Options, log *zap.Logger) (*Document, error) {
	entries := make(map[string][]byte)
	err := archive.Walk(data, "", func(f *zip.File) error {
		content, err := archive.ReadAll(f)
		if err != nil {
			return fmt.Errorf("entry %q: %w", f.Name, err)
		}
		entries[archive.DecodedName(f, opts.CodePage)] = content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedPackage, err)
	}

	catalog := readCatalog(entries, opts.StyleDepthLimit, log)

	stories, err := readStories(entries, log)
	if err != nil {
		return nil, err
	}

	pages, frames, err := readSpreads(entries, log)
	if err != nil {
		return nil, err
	}

	doc := &Document{Catalog: catalog, Pages: pages}
	for _, fg := range frames {
		frame := &TextFrame{
			ID:        fg.ID,
			StoryID:   fg.StoryID,
			PageIndex: fg.PageIndex,
			Bounds:    fg.Bounds,
		}
		if story, ok := stories[fg.StoryID]; ok {
			frame.AppliedCharStyle = story.AppliedCharStyle
			frame.AppliedParaStyle = story.AppliedParaStyle
			frame.ParaProps = story.ParaProps
			frame.Segments = story.Segments
			frame.Content = story.Content
		} else {
			log.Warn("Frame references unknown story", zap.String("frame", fg.ID), zap.String("story", fg.StoryID))
		}
		doc.Frames = append(doc.Frames, frame)
	}

	log.Info("Package parsed",
		zap.Int("pages", len(doc.Pages)),
		zap.Int("frames", len(doc.Frames)),
		zap.Int("stories", len(stories)))
	return doc, nil
}

// readCatalog builds the style and color catalog. Missing resource files are
// a documented fallback, not an error: the product requirement is best-effort
// reconstruction.
func readCatalog(entries map[string][]byte, depthLimit int, log *zap.Logger) *Catalog {
	var styles, graphic *etree.Element

	if data, ok := entries[stylesEntry]; ok {
		if root, err := parseEntry(data); err == nil {
			styles = root
		} else {
			log.Warn("Unable to parse styles resource, styles will be unset", zap.Error(err))
		}
	} else {
		log.Warn("Styles resource is missing, styles will be unset")
	}

	if data, ok := entries[graphicEntry]; ok {
		if root, err := parseEntry(data); err == nil {
			graphic = root
		} else {
			log.Warn("Unable to parse graphic resource, colors will fall back to black", zap.Error(err))
		}
	} else {
		log.Warn("Graphic resource is missing, colors will fall back to black")
	}

	return BuildCatalog(styles, graphic, depthLimit, log)
}

func readStories(entries map[string][]byte, log *zap.Logger) (map[string]*StoryContent, error) {
	stories := make(map[string]*StoryContent)
	for _, name := range sortedEntries(entries, storiesDir) {
		root, err := parseEntry(entries[name])
		if err != nil {
			log.Warn("Skipping unparsable story", zap.String("entry", name), zap.Error(err))
			continue
		}
		story, err := ExtractStory(storyRoot(root), log)
		if err != nil {
			log.Warn("Skipping story", zap.String("entry", name), zap.Error(err))
			continue
		}
		stories[story.ID] = story
	}
	if len(stories) == 0 {
		return nil, fmt.Errorf("%w: package has no story data", ErrMissingFile)
	}
	return stories, nil
}

func readSpreads(entries map[string][]byte, log *zap.Logger) ([]PageInfo, []FrameGeometry, error) {
	var pages []PageInfo
	var frames []FrameGeometry

	names := sortedEntries(entries, spreadsDir)
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("%w: package has no spread data", ErrMissingFile)
	}

	offset := 0
	for _, name := range names {
		root, err := parseEntry(entries[name])
		if err != nil {
			log.Warn("Skipping unparsable spread", zap.String("entry", name), zap.Error(err))
			continue
		}
		geo, err := ResolveSpread(spreadRoot(root), log)
		if err != nil {
			log.Warn("Skipping spread", zap.String("entry", name), zap.Error(err))
			continue
		}
		for _, p := range geo.Pages {
			p.Index += offset
			pages = append(pages, p)
		}
		for _, f := range geo.Frames {
			f.PageIndex += offset
			frames = append(frames, f)
		}
		offset += len(geo.Pages)
	}
	if len(pages) == 0 {
		return nil, nil, fmt.Errorf("%w: package has no page data", ErrCorruptedPackage)
	}
	return pages, frames, nil
}

// sortedEntries returns entry names under prefix in natural order, so that
// Spread_2 comes before Spread_10.
func sortedEntries(entries map[string][]byte, prefix string) []string {
	var names []string
	for name := range entries {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(strings.ToLower(name), ".xml") {
			names = append(names, name)
		}
	}
	sort.Sort(natural.StringSlice(names))
	return names
}

// parseEntry reads one XML entry. Old authoring tools are sloppy about both
// encoding declarations and entities, so be permissive.
func parseEntry(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		ValidateInput: false,
		Permissive:    true,
	}
	if _, err := doc.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMarkup, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: document has no root element", ErrInvalidMarkup)
	}
	return root, nil
}

// storyRoot unwraps the optional packaging element around a story. The
// wrapper carries the same local tag as the story itself (only the namespace
// prefix differs), so look for the inner element before settling on the root.
func storyRoot(root *etree.Element) *etree.Element {
	if el := root.SelectElement("Story"); el != nil {
		return el
	}
	return root
}

// spreadRoot unwraps the optional packaging element around a spread, see
// storyRoot.
func spreadRoot(root *etree.Element) *etree.Element {
	if el := root.SelectElement("Spread"); el != nil {
		return el
	}
	return root
}
