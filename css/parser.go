package css

import (
	"bytes"
	"strconv"
	"strings"
	"unicode"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser turns CSS text into Stylesheet values.
type Parser struct {
	log *zap.Logger
}

func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css")}
}

// Parse parses a full stylesheet. Unsupported constructs (media queries,
// font faces, combinator selectors) are skipped, not errors.
func (p *Parser) Parse(data []byte) *Stylesheet {
	sheet := &Stylesheet{}

	input := parse.NewInput(bytes.NewReader(data))
	parser := css.NewParser(input, false)

	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && err.Error() != "EOF" {
				p.log.Debug("Stylesheet parse stopped", zap.Error(err))
			}
			return sheet

		case css.BeginAtRuleGrammar:
			if string(data) == "@page" {
				p.parsePageRule(parser, sheet)
			} else {
				p.log.Debug("Skipping at-rule", zap.String("rule", string(data)))
				p.skipBlock(parser)
			}

		case css.BeginRulesetGrammar:
			selectors := splitSelectors(data, parser.Values())
			props := p.parseDeclarations(parser)
			for _, raw := range selectors {
				sel, ok := parseSelector(raw)
				if !ok {
					p.log.Debug("Skipping unsupported selector", zap.String("selector", raw))
					continue
				}
				rule := Rule{Selector: sel, Props: make(Declarations, len(props))}
				for k, v := range props {
					rule.Props[k] = v
				}
				sheet.Rules = append(sheet.Rules, rule)
			}
		}
	}
}

// ParseDeclarations parses an inline style attribute value.
func (p *Parser) ParseDeclarations(style string) Declarations {
	input := parse.NewInput(strings.NewReader(style))
	parser := css.NewParser(input, true)

	props := make(Declarations)
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return props
		case css.DeclarationGrammar:
			if values := parser.Values(); len(values) > 0 {
				props[strings.ToLower(string(data))] = parseValue(values)
			}
		}
	}
}

func (p *Parser) parseDeclarations(parser *css.Parser) Declarations {
	props := make(Declarations)
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar, css.EndRulesetGrammar, css.EndAtRuleGrammar:
			return props
		case css.DeclarationGrammar:
			if values := parser.Values(); len(values) > 0 {
				props[strings.ToLower(string(data))] = parseValue(values)
			}
		}
	}
}

// parsePageRule reads an @page block. The box comes either from width/height
// declarations or from a two-value size declaration.
func (p *Parser) parsePageRule(parser *css.Parser, sheet *Stylesheet) {
	props := p.parseDeclarations(parser)

	var ps PageSize
	if w, ok := props.Px("width"); ok {
		ps.Width = w
	}
	if h, ok := props.Px("height"); ok {
		ps.Height = h
	}
	if ps.Width == 0 || ps.Height == 0 {
		if size, ok := props["size"]; ok {
			fields := strings.Fields(size.Raw)
			if len(fields) == 2 {
				w, okw := parseDimension(fields[0])
				h, okh := parseDimension(fields[1])
				if okw && okh {
					ps.Width, ps.Height = w, h
				}
			}
		}
	}
	if ps.Width > 0 && ps.Height > 0 {
		sheet.Page = &ps
		p.log.Debug("Page box", zap.Float64("width", ps.Width), zap.Float64("height", ps.Height))
	}
}

func (p *Parser) skipBlock(parser *css.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

func splitSelectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	var out []string
	for _, s := range strings.Split(sb.String(), ",") {
		if s = strings.TrimSpace(s); len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// parseSelector accepts element, .class, #id and element.class / element#id
// forms. Everything else is reported unsupported.
func parseSelector(raw string) (Selector, bool) {
	sel := Selector{Raw: raw}
	if strings.ContainsAny(raw, " \t\n+~>[]():") {
		return sel, false
	}

	rest := raw
	if el, class, found := strings.Cut(rest, "."); found {
		sel.Element, sel.Class = el, class
	} else if el, id, found := strings.Cut(rest, "#"); found {
		sel.Element, sel.ID = el, id
	} else {
		sel.Element = rest
	}
	if strings.ContainsAny(sel.Class, ".#") || strings.ContainsAny(sel.ID, ".#") {
		return sel, false
	}
	if len(sel.Element) == 0 && len(sel.Class) == 0 && len(sel.ID) == 0 {
		return sel, false
	}
	return sel, true
}

func parseValue(tokens []css.Token) Value {
	var rawParts []string
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			rawParts = append(rawParts, string(t.Data))
		} else if len(rawParts) > 0 {
			rawParts = append(rawParts, " ")
		}
	}
	val := Value{Raw: strings.TrimSpace(strings.Join(rawParts, ""))}

	if len(tokens) == 1 || (len(tokens) == 2 && tokens[1].TokenType == css.WhitespaceToken) {
		t := tokens[0]
		switch t.TokenType {
		case css.DimensionToken:
			if n, ok := parseDimensionParts(string(t.Data)); ok {
				val.Number, val.Unit = n.number, n.unit
			}
		case css.PercentageToken:
			val.Number, _ = strconv.ParseFloat(strings.TrimSuffix(string(t.Data), "%"), 64)
			val.Unit = "%"
		case css.NumberToken:
			val.Number, _ = strconv.ParseFloat(string(t.Data), 64)
		case css.IdentToken, css.HashToken:
			val.Keyword = strings.ToLower(string(t.Data))
		case css.StringToken:
			val.Keyword = unquote(string(t.Data))
		}
		return val
	}

	val.Keyword = val.Raw
	return val
}

type dimension struct {
	number float64
	unit   string
}

func parseDimensionParts(s string) (dimension, bool) {
	numEnd := 0
	for i, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '-' || r == '+' {
			numEnd = i + 1
		} else {
			break
		}
	}
	if numEnd == 0 {
		return dimension{}, false
	}
	num, err := strconv.ParseFloat(s[:numEnd], 64)
	if err != nil {
		return dimension{}, false
	}
	return dimension{number: num, unit: strings.ToLower(s[numEnd:])}, true
}

// parseDimension resolves a dimension string straight to pixels.
func parseDimension(s string) (float64, bool) {
	d, ok := parseDimensionParts(s)
	if !ok {
		return 0, false
	}
	return Value{Raw: s, Number: d.number, Unit: d.unit}.Px()
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
