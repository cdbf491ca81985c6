package dtp

import "strings"

// Condition names attached to text runs follow the fixed pattern
// COND_tabId_variantId-optionId, e.g. COND_hero-child_gender-boy. The tab id
// may contain dashes but not underscores.
const conditionPrefix = "COND_"

// ParseCondition parses a condition name into its triple. Malformed names
// yield nil, the caller keeps the raw name.
func ParseCondition(name string) *Condition {
	rest, ok := strings.CutPrefix(name, conditionPrefix)
	if !ok {
		return nil
	}
	tab, vo, ok := strings.Cut(rest, "_")
	if !ok || tab == "" {
		return nil
	}
	variant, option, ok := strings.Cut(vo, "-")
	if !ok || variant == "" || option == "" {
		return nil
	}
	return &Condition{TabID: tab, VariantID: variant, OptionID: option}
}
