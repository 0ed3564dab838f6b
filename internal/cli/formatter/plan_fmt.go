package formatter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// FormatProjectList renders plans inside a bordered box.
func FormatProjectList(plans []*domain.ProjectPlan) string {
	headers := []string{"ID", "NAME", "TEMPLATE", "STATUS", "PROGRESS"}
	rows := make([][]string, 0, len(plans))
	for _, p := range plans {
		id := p.ShortID
		if strings.TrimSpace(id) == "" {
			id = TruncID(p.ProjectID)
		}
		done, total := taskProgress(p)
		rows = append(rows, []string{
			id,
			Bold(p.Name),
			StylePurple.Render(p.TemplateID),
			StatusPill(string(p.Status)),
			RenderProgress(done, total, 10),
		})
	}
	return RenderBox("Projects", RenderTable(headers, rows))
}

// FormatPlan renders a plan card: metadata on the left, the stage/task
// tree on the right. now anchors relative due dates.
func FormatPlan(p *domain.ProjectPlan, now time.Time) string {
	left := planMetadata(p)
	right := planTree(p, now)
	return RenderBox("", lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right))
}

func planMetadata(p *domain.ProjectPlan) string {
	var b strings.Builder
	b.WriteString(StyleBold.Render(p.Name) + "\n")
	b.WriteString(StylePurple.Render(p.TemplateID) + "\n\n")

	fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render("STATUS "), StatusPill(string(p.Status)))
	fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render("ID     "), p.DisplayID())
	fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render("UUID   "), TruncID(p.ProjectID))
	fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render("CREATED"), Timestamp(p.CreatedAt))
	fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render("UPDATED"), Timestamp(p.UpdatedAt))
	if p.ArchivedAt != nil {
		fmt.Fprintf(&b, "%s  %s\n", StyleDim.Render("ARCHVD "), Timestamp(*p.ArchivedAt))
	}

	if len(p.Briefing) > 0 {
		b.WriteString("\n" + StyleDim.Render("BRIEFING") + "\n")
		keys := make([]string, 0, len(p.Briefing))
		for k := range p.Briefing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s %s\n", Dim(k+":"), p.Briefing.String(k))
		}
	}
	return lipgloss.NewStyle().Width(40).Render(b.String())
}

func planTree(p *domain.ProjectPlan, now time.Time) string {
	if len(p.Stages) == 0 {
		return StyleDim.Render("No stages")
	}

	var b strings.Builder
	done, total := taskProgress(p)
	b.WriteString(StyleHeader.Render("PLAN") + "  " + RenderProgress(done, total, 12) + "\n")
	b.WriteString(StyleDim.Render(strings.Repeat("─", 4)) + "\n")

	var items []TreeItem
	for si, st := range p.Stages {
		items = append(items, TreeItem{
			Title:  st.Label,
			Ref:    fmt.Sprintf("%d.", st.Position+1),
			Level:  1,
			IsLast: si == len(p.Stages)-1 && len(st.Tasks) == 0,
			Status: string(st.Status),
			Detail: st.ID[:min(8, len(st.ID))],
		})
		for ti, t := range st.Tasks {
			items = append(items, TreeItem{
				Title:  t.Label,
				Ref:    fmt.Sprintf("%d.%d", st.Position+1, t.Position+1),
				Level:  2,
				IsLast: ti == len(st.Tasks)-1,
				Status: string(t.Status),
				Detail: taskDetail(t, now),
			})
		}
	}
	b.WriteString(RenderTree(items))
	return b.String()
}

func taskDetail(t domain.Task, now time.Time) string {
	var parts []string
	if a := t.AssigneeOrEmpty(); a != "" {
		parts = append(parts, "@"+a)
	}
	if h := FormatHours(t.EstimatedHours); h != "" {
		parts = append(parts, h)
	}
	if t.DueDate != nil {
		parts = append(parts, "due "+RelativeDateFrom(*t.DueDate, now))
	}
	parts = append(parts, t.ID[:min(8, len(t.ID))])
	return strings.Join(parts, " · ")
}

func taskProgress(p *domain.ProjectPlan) (done, total int) {
	for _, st := range p.Stages {
		for _, t := range st.Tasks {
			total++
			if t.Status == domain.TaskDone {
				done++
			}
		}
	}
	return done, total
}

// FormatHistory renders the history log, oldest first.
func FormatHistory(entries []domain.HistoryEntry) string {
	headers := []string{"#", "WHEN", "ACTOR", "OPERATION", "TARGET", "CHANGE"}
	rows := make([][]string, 0, len(entries))
	for _, h := range entries {
		rows = append(rows, []string{
			fmt.Sprint(h.Seq),
			Dim(Timestamp(h.Timestamp)),
			h.ActorID,
			string(h.Kind),
			fmt.Sprintf("%s %s", h.TargetKind, TruncID(h.TargetID)),
			describeChange(h.Before, h.After),
		})
	}
	return RenderBox("History", RenderTable(headers, rows))
}

// describeChange renders snapshot differences as "key: old → new".
func describeChange(before, after domain.Snapshot) string {
	keys := map[string]bool{}
	for k := range before {
		keys[k] = true
	}
	for k := range after {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var parts []string
	for _, k := range sorted {
		b, hadBefore := before[k]
		a, hasAfter := after[k]
		switch {
		case hadBefore && hasAfter:
			if a != b {
				parts = append(parts, fmt.Sprintf("%s: %s → %s", k, b, a))
			}
		case hasAfter:
			parts = append(parts, fmt.Sprintf("%s: %s", k, a))
		default:
			parts = append(parts, StyleRed.Render(fmt.Sprintf("%s: %s", k, b)))
		}
	}
	return strings.Join(parts, ", ")
}

// FormatDiff colors a unified diff.
func FormatDiff(diff string) string {
	if diff == "" {
		return Dim("no structural change") + "\n"
	}
	var b strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		trimmed := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			b.WriteString(Bold(trimmed))
		case strings.HasPrefix(line, "@@"):
			b.WriteString(StyleBlue.Render(trimmed))
		case strings.HasPrefix(line, "+"):
			b.WriteString(StyleGreen.Render(trimmed))
		case strings.HasPrefix(line, "-"):
			b.WriteString(StyleRed.Render(trimmed))
		default:
			b.WriteString(trimmed)
		}
		b.WriteString("\n")
	}
	return b.String()
}
