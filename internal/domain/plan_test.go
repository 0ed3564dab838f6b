package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() *ProjectPlan {
	due := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	ana := "ana"
	return &ProjectPlan{
		ProjectID: "p1",
		Name:      "Casa Azul",
		Status:    PlanActive,
		Briefing:  Briefing{"type": "residential", "site": map[string]any{"area_m2": 120.0}},
		Stages: []Stage{
			{ID: "s1", ProjectID: "p1", Label: "Design", Position: 0, Status: StageNotStarted, Tasks: []Task{
				{ID: "t1", StageID: "s1", Label: "Concept", Position: 0, Status: TaskPending, Assignee: &ana, EstimatedHours: 8},
				{ID: "t2", StageID: "s1", Label: "Layout", Position: 1, Status: TaskPending, DueDate: &due},
			}},
			{ID: "s2", ProjectID: "p1", Label: "Approval", Position: 1, Status: StageNotStarted},
		},
		History: []HistoryEntry{
			{ID: "h1", Seq: 1, Kind: HistoryCreate, After: Snapshot{"label": "Design"}},
		},
	}
}

func TestCheckInvariants_Valid(t *testing.T) {
	assert.NoError(t, samplePlan().CheckInvariants())
}

func TestCheckInvariants_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ProjectPlan)
		want   string
	}{
		{"duplicate task across stages", func(p *ProjectPlan) {
			p.Stages[1].Tasks = []Task{{ID: "t1", StageID: "s2", Position: 0}}
		}, "duplicate"},
		{"task references another stage", func(p *ProjectPlan) {
			p.Stages[0].Tasks[1].StageID = "s2"
		}, "references stage"},
		{"stage position gap", func(p *ProjectPlan) {
			p.Stages[1].Position = 2
		}, "position"},
		{"task position gap", func(p *ProjectPlan) {
			p.Stages[0].Tasks[0].Position = 1
		}, "position"},
		{"duplicate stage", func(p *ProjectPlan) {
			p.Stages[1].ID = "s1"
		}, "duplicate"},
		{"foreign stage", func(p *ProjectPlan) {
			p.Stages[1].ProjectID = "p2"
		}, "belongs to project"},
		{"history out of order", func(p *ProjectPlan) {
			p.History = append(p.History, HistoryEntry{ID: "h2", Seq: 1})
		}, "seq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePlan()
			tt.mutate(p)
			err := p.CheckInvariants()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompact(t *testing.T) {
	p := samplePlan()
	p.Stages = p.Stages[1:]
	p.Stages[0].Position = 7
	p.Compact()
	assert.Equal(t, 0, p.Stages[0].Position)
	assert.NoError(t, p.CheckInvariants())
}

func TestClone_IsDeep(t *testing.T) {
	p := samplePlan()
	c := p.Clone()
	require.Equal(t, p, c)

	c.Stages[0].Label = "changed"
	c.Stages[0].Tasks[0].Label = "changed"
	*c.Stages[0].Tasks[0].Assignee = "bruno"
	*c.Stages[0].Tasks[1].DueDate = time.Time{}
	c.History[0].After["label"] = "changed"
	c.Briefing["site"].(map[string]any)["area_m2"] = 1.0

	assert.Equal(t, "Design", p.Stages[0].Label)
	assert.Equal(t, "Concept", p.Stages[0].Tasks[0].Label)
	assert.Equal(t, "ana", *p.Stages[0].Tasks[0].Assignee)
	assert.Equal(t, 2026, p.Stages[0].Tasks[1].DueDate.Year())
	assert.Equal(t, "Design", p.History[0].After["label"])
	v, _ := p.Briefing.Number("site.area_m2")
	assert.Equal(t, 120.0, v)
}

func TestFindStageAndTask(t *testing.T) {
	p := samplePlan()
	assert.Equal(t, 1, p.FindStage("s2"))
	assert.Equal(t, -1, p.FindStage("nope"))

	si, ti := p.FindTask("t2")
	assert.Equal(t, 0, si)
	assert.Equal(t, 1, ti)

	si, ti = p.FindTask("nope")
	assert.Equal(t, -1, si)
	assert.Equal(t, -1, ti)

	assert.Equal(t, 2, p.TaskCount())
	assert.Equal(t, []string{"s1", "s2"}, p.StageIDs())
	assert.Equal(t, []string{"t1", "t2"}, p.Stages[0].TaskIDs())
	assert.Equal(t, 2, p.NextHistorySeq())
}

func TestOutline(t *testing.T) {
	want := "1. Design [not_started]\n" +
		"   1.1 Concept [pending] 8h\n" +
		"   1.2 Layout [pending] due 2026-04-10\n" +
		"2. Approval [not_started]\n"
	assert.Equal(t, want, samplePlan().Outline())
}

func TestBriefingAccessors(t *testing.T) {
	b := Briefing{
		"type":       "residential",
		"floors":     2,
		"pool":       "sim",
		"start_date": "2026-03-02",
		"site":       map[string]any{"area_m2": "180.5"},
	}

	assert.Equal(t, "residential", b.String("type"))
	assert.Equal(t, "2", b.String("floors"))
	assert.Equal(t, "", b.String("missing"))

	n, ok := b.Number("site.area_m2")
	require.True(t, ok)
	assert.Equal(t, 180.5, n)

	_, ok = b.Number("type")
	assert.False(t, ok)

	assert.True(t, b.Bool("pool"))
	assert.False(t, b.Bool("missing"))

	d, err := b.Date("start_date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *d)

	d, err = b.Date("missing")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = b.Date("type")
	assert.Error(t, err)
}
