package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProjectPlan is the aggregate root: the live stage/task graph of one
// project plus its history log.
type ProjectPlan struct {
	ProjectID  string         `json:"project_id"`
	ShortID    string         `json:"short_id,omitempty"`
	Name       string         `json:"name"`
	TemplateID string         `json:"template_id"`
	Briefing   Briefing       `json:"briefing,omitempty"`
	Status     PlanStatus     `json:"status"`
	ArchivedAt *time.Time     `json:"archived_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Stages     []Stage        `json:"stages"`
	History    []HistoryEntry `json:"history"`
}

// IsArchived reports whether the plan has been retired.
func (p *ProjectPlan) IsArchived() bool {
	return p.Status == PlanArchived
}

// DisplayID returns the best short identifier for display.
// It prefers ShortID; if empty it truncates ProjectID to 8 characters.
func (p *ProjectPlan) DisplayID() string {
	if p.ShortID != "" {
		return p.ShortID
	}
	if len(p.ProjectID) >= 8 {
		return p.ProjectID[:8]
	}
	return p.ProjectID
}

// FindStage returns the index of the stage with the given ID, or -1.
func (p *ProjectPlan) FindStage(id string) int {
	for i := range p.Stages {
		if p.Stages[i].ID == id {
			return i
		}
	}
	return -1
}

// FindTask returns the (stage, task) indexes of the task with the given ID,
// or (-1, -1).
func (p *ProjectPlan) FindTask(id string) (int, int) {
	for si := range p.Stages {
		for ti := range p.Stages[si].Tasks {
			if p.Stages[si].Tasks[ti].ID == id {
				return si, ti
			}
		}
	}
	return -1, -1
}

// StageIDs returns the stage identifiers in position order.
func (p *ProjectPlan) StageIDs() []string {
	ids := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		ids[i] = s.ID
	}
	return ids
}

// TaskCount returns the number of tasks across all stages.
func (p *ProjectPlan) TaskCount() int {
	n := 0
	for _, s := range p.Stages {
		n += len(s.Tasks)
	}
	return n
}

// NextHistorySeq returns the sequence number for the next history entry.
func (p *ProjectPlan) NextHistorySeq() int {
	if len(p.History) == 0 {
		return 1
	}
	return p.History[len(p.History)-1].Seq + 1
}

// Compact rewrites stage and task positions to their slice index, so every
// sibling set is ordered 0..n-1 with no gaps.
func (p *ProjectPlan) Compact() {
	for si := range p.Stages {
		p.Stages[si].Position = si
		for ti := range p.Stages[si].Tasks {
			p.Stages[si].Tasks[ti].Position = ti
		}
	}
}

// CheckInvariants verifies the structural rules of a plan: unique stage and
// task identifiers, tasks referencing their owning stage, contiguous
// zero-based positions and strictly increasing history sequence numbers.
func (p *ProjectPlan) CheckInvariants() error {
	stageIDs := make(map[string]bool, len(p.Stages))
	taskIDs := make(map[string]bool)
	for si, s := range p.Stages {
		if s.ID == "" {
			return fmt.Errorf("stage[%d]: empty id", si)
		}
		if stageIDs[s.ID] {
			return fmt.Errorf("stage[%d]: duplicate id %q", si, s.ID)
		}
		stageIDs[s.ID] = true
		if s.Position != si {
			return fmt.Errorf("stage %q: position %d, expected %d", s.ID, s.Position, si)
		}
		if s.ProjectID != p.ProjectID {
			return fmt.Errorf("stage %q: belongs to project %q", s.ID, s.ProjectID)
		}
		for ti, t := range s.Tasks {
			if t.ID == "" {
				return fmt.Errorf("stage %q task[%d]: empty id", s.ID, ti)
			}
			if taskIDs[t.ID] {
				return fmt.Errorf("task %q: duplicate id", t.ID)
			}
			taskIDs[t.ID] = true
			if t.StageID != s.ID {
				return fmt.Errorf("task %q: references stage %q but is owned by %q", t.ID, t.StageID, s.ID)
			}
			if t.Position != ti {
				return fmt.Errorf("task %q: position %d, expected %d", t.ID, t.Position, ti)
			}
		}
	}
	for i := 1; i < len(p.History); i++ {
		if p.History[i].Seq <= p.History[i-1].Seq {
			return fmt.Errorf("history[%d]: seq %d not after %d", i, p.History[i].Seq, p.History[i-1].Seq)
		}
	}
	return nil
}

// Clone returns a deep copy of the plan. Mutations are applied to a clone
// and swapped in only once they fully succeed.
func (p *ProjectPlan) Clone() *ProjectPlan {
	if p == nil {
		return nil
	}
	out := *p
	out.Briefing = p.Briefing.Clone()
	if p.ArchivedAt != nil {
		a := *p.ArchivedAt
		out.ArchivedAt = &a
	}
	if p.Stages != nil {
		out.Stages = make([]Stage, len(p.Stages))
		for i, s := range p.Stages {
			out.Stages[i] = s.clone()
		}
	}
	if p.History != nil {
		out.History = make([]HistoryEntry, len(p.History))
		for i, h := range p.History {
			out.History[i] = h.clone()
		}
	}
	return &out
}

// Outline renders the stage/task structure as plain text, one entity per
// line. It ignores identifiers and timestamps, so two plans with the same
// outline are structurally equal.
func (p *ProjectPlan) Outline() string {
	var b strings.Builder
	for _, s := range p.Stages {
		fmt.Fprintf(&b, "%d. %s [%s]\n", s.Position+1, s.Label, s.Status)
		for _, t := range s.Tasks {
			line := fmt.Sprintf("   %d.%d %s [%s]", s.Position+1, t.Position+1, t.Label, t.Status)
			if t.EstimatedHours > 0 {
				line += fmt.Sprintf(" %gh", t.EstimatedHours)
			}
			if t.DueDate != nil {
				line += " due " + t.DueDate.Format(DateLayout)
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
