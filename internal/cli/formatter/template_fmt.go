package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/atelier/internal/template"
)

// TemplateRow is one line of the template list.
type TemplateRow struct {
	ID          string
	Name        string
	Version     string
	Stages      int
	Tasks       int
	EffortHours float64
	Default     bool
}

// FormatTemplateList renders the catalog inside a bordered box.
func FormatTemplateList(rows []TemplateRow) string {
	headers := []string{"ID", "NAME", "VERSION", "STAGES", "TASKS", "EFFORT"}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		id := r.ID
		if r.Default {
			id += Dim(" (default)")
		}
		cells = append(cells, []string{
			Bold(id),
			r.Name,
			Dim(r.Version),
			fmt.Sprint(r.Stages),
			fmt.Sprint(r.Tasks),
			FormatHours(r.EffortHours),
		})
	}
	return RenderBox("Templates", RenderTable(headers, cells))
}

// FormatTemplateShow renders the blueprint tree of a template. Conditional
// blueprints show their include_if predicate.
func FormatTemplateShow(s *template.TemplateSchema) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n", StyleBold.Render(s.Name), StylePurple.Render(s.Discipline))
	if s.Description != "" {
		b.WriteString(Dim(s.Description) + "\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s  %s\n", StyleDim.Render("ID     "), s.ID)
	fmt.Fprintf(&b, "  %s  %s\n", StyleDim.Render("VERSION"), Dim(s.Version))
	fmt.Fprintf(&b, "  %s  %s\n\n", StyleDim.Render("EFFORT "), FormatHours(s.EffortHours()))

	var items []TreeItem
	for si, st := range s.Stages {
		items = append(items, TreeItem{
			Title:  st.Label,
			Ref:    fmt.Sprintf("%d.", si+1),
			Level:  1,
			IsLast: si == len(s.Stages)-1 && len(st.Tasks) == 0,
			Detail: conditional(st.IncludeIf),
		})
		for ti, tc := range st.Tasks {
			detail := FormatHours(tc.EffortHours)
			if cond := conditional(tc.IncludeIf); cond != "" {
				detail = strings.TrimSpace(detail + " " + cond)
			}
			items = append(items, TreeItem{
				Title:  tc.Label,
				Ref:    fmt.Sprintf("%d.%d", si+1, ti+1),
				Level:  2,
				IsLast: ti == len(st.Tasks)-1,
				Detail: detail,
			})
		}
	}
	b.WriteString(Header("Blueprint") + "\n")
	b.WriteString(RenderTree(items))

	return RenderBox("", b.String())
}

func conditional(expr string) string {
	if expr == "" {
		return ""
	}
	return "if " + expr
}

// FormatDetection explains which template a briefing selects.
func FormatDetection(d template.Detection) string {
	if d.Fallback {
		return fmt.Sprintf("%s %s\n", Bold(d.TemplateID), Dim("(no rule matched, default template)"))
	}
	return fmt.Sprintf("%s %s\n", Bold(d.TemplateID), Dim(fmt.Sprintf("(rule %d: %s)", d.RuleIndex+1, d.Rule)))
}

// FormatRules lists detection rules in evaluation order.
func FormatRules(defaultID string, rules []template.RuleConfig) string {
	headers := []string{"#", "WHEN", "TEMPLATE"}
	cells := make([][]string, 0, len(rules)+1)
	for i, r := range rules {
		cells = append(cells, []string{fmt.Sprint(i + 1), r.When, Bold(r.Template)})
	}
	cells = append(cells, []string{Dim("-"), Dim("otherwise"), Bold(defaultID)})
	return RenderTable(headers, cells)
}
