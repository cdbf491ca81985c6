// Package personalize instantiates canonical book content for one customer:
// conditional segment filtering, variable substitution, style cascade and
// positioned markup emission.
package personalize

import (
	"strings"

	"wawbook/dtp"
)

// Context is one customer's personalization request. Never persisted, one
// per render.
type Context struct {
	// Free-text variables: childName, age, dedication, author, gender...
	Variables map[string]string `json:"variables"`
	// Wizard selections: tabId -> variantId -> optionId.
	Characters map[string]map[string]string `json:"characters"`
	// Legacy combination key, kept for books authored before conditions.
	Combination string `json:"combination,omitempty"`
}

// Allows evaluates one parsed condition triple against the selections.
// A nil condition always holds.
func (c *Context) Allows(cond *dtp.Condition) bool {
	if cond == nil {
		return true
	}
	variants, ok := c.Characters[cond.TabID]
	if !ok {
		return false
	}
	return variants[cond.VariantID] == cond.OptionID
}

// Selection looks up one wizard choice. Historical content prefixes tab ids
// with "hero-", the lookup retries with the prefix stripped.
func (c *Context) Selection(tabID, variantID string) (string, bool) {
	if stripped, found := strings.CutPrefix(tabID, "hero-"); found {
		if variants, ok := c.Characters[stripped]; ok {
			if v, ok := variants[variantID]; ok {
				return v, true
			}
		}
	}
	if variants, ok := c.Characters[tabID]; ok {
		if v, ok := variants[variantID]; ok {
			return v, true
		}
	}
	return "", false
}

// Variable looks up a free-text variable.
func (c *Context) Variable(name string) (string, bool) {
	v, ok := c.Variables[name]
	return v, ok
}
