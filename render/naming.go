package render

import (
	"bytes"
	"fmt"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"wawbook/config"
)

// NameValues holds variables available to the page name template.
type NameValues struct {
	Book string
	Job  string
	Page int
}

// PageObjectName expands the configured template into an object store key
// for one rendered page.
func PageObjectName(field string, values NameValues) (string, error) {
	tmpl, err := template.New(string(config.PageNameTemplateFieldName)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", config.PageNameTemplateFieldName, err)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", fmt.Errorf("unable to expand template field %s: %w", config.PageNameTemplateFieldName, err)
	}
	return buf.String(), nil
}
