package reflow

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
	"wawbook/css"
	"wawbook/dtp"
)

// Options controls package reading.
type Options struct {
	// Forced code page for non UTF-8 entry names, nil leaves names alone.
	CodePage encoding.Encoding
}

// ReadPackage parses a zipped fixed-layout e-book supplied as a byte buffer.
// Each content document becomes one page. Stylesheets are folded in natural
// entry order, inline style attributes override them.
func ReadPackage(data []byte, opts Options, log *zap.Logger) (*Layout, error) {
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
		return nil, fmt.Errorf("%w: %v", dtp.ErrCorruptedPackage, err)
	}

	parser := css.NewParser(log)

	sheet := &css.Stylesheet{}
	for _, name := range entriesWithSuffix(entries, ".css") {
		part := parser.Parse(entries[name])
		sheet.Rules = append(sheet.Rules, part.Rules...)
		if sheet.Page == nil {
			sheet.Page = part.Page
		}
	}

	docs := contentDocuments(entries)
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: package has no content documents", dtp.ErrMissingFile)
	}

	layout := &Layout{}
	for _, name := range docs {
		root, err := parseDocument(entries[name])
		if err != nil {
			log.Warn("Skipping unparsable content document", zap.String("entry", name), zap.Error(err))
			continue
		}
		extractPage(root, sheet, parser, len(layout.Pages), layout, log)
	}
	if len(layout.Pages) == 0 {
		return nil, fmt.Errorf("%w: package has no usable pages", dtp.ErrCorruptedPackage)
	}

	log.Info("Layout extracted",
		zap.Int("pages", len(layout.Pages)),
		zap.Int("containers", len(layout.Containers)),
		zap.Int("images", len(layout.Images)))
	return layout, nil
}

func entriesWithSuffix(entries map[string][]byte, suffix string) []string {
	var names []string
	for name := range entries {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			names = append(names, name)
		}
	}
	sort.Sort(natural.StringSlice(names))
	return names
}

// contentDocuments lists page documents, skipping navigation files.
func contentDocuments(entries map[string][]byte) []string {
	var names []string
	for _, name := range append(entriesWithSuffix(entries, ".xhtml"), entriesWithSuffix(entries, ".html")...) {
		base := strings.ToLower(name)
		if strings.Contains(base, "nav") || strings.Contains(base, "toc") {
			continue
		}
		names = append(names, name)
	}
	sort.Sort(natural.StringSlice(names))
	return names
}

// parseDocument reads one XHTML entry. Content tooling is no better about
// encodings and entities than authoring tooling, so be permissive.
func parseDocument(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		ValidateInput: false,
		Permissive:    true,
	}
	if _, err := doc.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", dtp.ErrInvalidMarkup, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: document has no root element", dtp.ErrInvalidMarkup)
	}
	return root, nil
}
