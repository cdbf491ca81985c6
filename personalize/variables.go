package personalize

import (
	"strings"
)

// Variable substitution. Two placeholder syntaxes appear in authored
// content: {name} and {{name}}. Inside the braces a name is either a plain
// variable, a tabId.variantId compound looking up a wizard selection, or the
// system TXTVAR_tabId_variantId form. Unresolved placeholders stay literal.

const systemVarPrefix = "TXTVAR_"

// Substitute replaces every resolvable placeholder in text.
func Substitute(text string, ctx *Context) string {
	if !strings.Contains(text, "{") {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text))

	for {
		start := strings.IndexByte(text, '{')
		if start < 0 {
			sb.WriteString(text)
			return sb.String()
		}
		sb.WriteString(text[:start])
		text = text[start:]

		double := strings.HasPrefix(text, "{{")
		open, closing := "{", "}"
		if double {
			open, closing = "{{", "}}"
		}

		end := strings.Index(text[len(open):], closing)
		if end < 0 {
			sb.WriteString(text)
			return sb.String()
		}
		name := text[len(open) : len(open)+end]
		raw := text[:len(open)+end+len(closing)]
		text = text[len(raw):]

		if value, ok := resolveName(name, ctx); ok {
			sb.WriteString(value)
		} else {
			sb.WriteString(raw)
		}
	}
}

func resolveName(name string, ctx *Context) (string, bool) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", false
	}

	if rest, found := strings.CutPrefix(name, systemVarPrefix); found {
		tabID, variantID, ok := strings.Cut(rest, "_")
		if !ok {
			return "", false
		}
		return ctx.Selection(tabID, variantID)
	}

	if tabID, variantID, found := strings.Cut(name, "."); found {
		return ctx.Selection(tabID, variantID)
	}

	return ctx.Variable(name)
}
