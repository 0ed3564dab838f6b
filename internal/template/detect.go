package template

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/atelier/internal/domain"
)

// Rule is a compiled detection rule.
type Rule struct {
	When       *Predicate
	TemplateID string
}

// Detection is the outcome of Detect. RuleIndex is -1 when no rule matched
// and the default template was chosen.
type Detection struct {
	TemplateID string `json:"template_id"`
	RuleIndex  int    `json:"rule_index"`
	Rule       string `json:"rule,omitempty"`
	Fallback   bool   `json:"fallback"`
}

// Detector selects a template for a briefing. Rules are evaluated in
// declaration order and the first match wins.
type Detector struct {
	rules     []Rule
	defaultID string
}

// NewDetector compiles rules against a catalog. Every rule, and the default,
// must reference a registered template, so Detect can only ever return a
// known identifier.
func NewDetector(catalog *Catalog, rules []RuleConfig, defaultID string) (*Detector, error) {
	rf := &RulesFile{Default: defaultID, Rules: rules}
	if errs := ValidateRules(rf, catalog); len(errs) > 0 {
		return nil, fmt.Errorf("%w: rules: %w", ErrInvalidTemplate, errors.Join(errs...))
	}

	d := &Detector{defaultID: defaultID, rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		d.rules = append(d.rules, Rule{When: MustCompilePredicate(r.When), TemplateID: r.Template})
	}
	return d, nil
}

// Detect returns the template for b. It never fails.
func (d *Detector) Detect(b domain.Briefing) Detection {
	for i, r := range d.rules {
		if r.When.Match(b) {
			return Detection{TemplateID: r.TemplateID, RuleIndex: i, Rule: r.When.String()}
		}
	}
	return Detection{TemplateID: d.defaultID, RuleIndex: -1, Fallback: true}
}

// Default returns the fallback template identifier.
func (d *Detector) Default() string { return d.defaultID }

// Rules returns the rule set in evaluation order.
func (d *Detector) Rules() []RuleConfig {
	out := make([]RuleConfig, len(d.rules))
	for i, r := range d.rules {
		out[i] = RuleConfig{When: r.When.String(), Template: r.TemplateID}
	}
	return out
}
