package template

import (
	"testing"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMaterializer() *Materializer {
	return NewMaterializer(WithClock(func() time.Time { return fixedNow }))
}

func TestMaterialize_ResidentialSmallScenario(t *testing.T) {
	catalog := NewCatalog().MustRegister(residentialSmall()).MustRegister(genericTemplate())
	detector, err := NewDetector(catalog, []RuleConfig{
		{When: "type == 'residential' && scale == 'small'", Template: "residential-small"},
	}, "generic")
	require.NoError(t, err)

	briefing := domain.Briefing{"type": "residential", "scale": "small"}
	detection := detector.Detect(briefing)
	require.Equal(t, "residential-small", detection.TemplateID)

	schema, ok := catalog.Get(detection.TemplateID)
	require.True(t, ok)

	plan, err := newTestMaterializer().Materialize(schema, briefing, "proj-1")
	require.NoError(t, err)

	require.Len(t, plan.Stages, 2)
	assert.Equal(t, "Design", plan.Stages[0].Label)
	assert.Equal(t, "Approval", plan.Stages[1].Label)
	assert.Equal(t, 0, plan.Stages[0].Position)
	assert.Equal(t, 1, plan.Stages[1].Position)

	design := plan.Stages[0]
	require.Len(t, design.Tasks, 2)
	assert.Equal(t, "Concept", design.Tasks[0].Label)
	assert.Equal(t, "Layout", design.Tasks[1].Label)
	assert.Equal(t, 0, design.Tasks[0].Position)
	assert.Equal(t, 1, design.Tasks[1].Position)
	assert.Empty(t, plan.Stages[1].Tasks)

	for _, s := range plan.Stages {
		assert.Equal(t, domain.StageNotStarted, s.Status)
		assert.Equal(t, "proj-1", s.ProjectID)
		for _, task := range s.Tasks {
			assert.Equal(t, domain.TaskPending, task.Status)
			assert.Equal(t, s.ID, task.StageID)
			assert.Nil(t, task.Assignee)
		}
	}

	assert.Empty(t, plan.History)
	assert.Equal(t, "residential-small", plan.TemplateID)
	assert.Equal(t, domain.PlanActive, plan.Status)
	assert.Equal(t, 12.0, design.Tasks[0].EstimatedHours)
	assert.NoError(t, plan.CheckInvariants())
}

func TestMaterialize_Idempotent(t *testing.T) {
	m := newTestMaterializer()
	b := domain.Briefing{"bedrooms": 3, "pool": "yes", "start_date": "2026-03-02"}

	first, err := m.Materialize(optionalTemplate(), b, "proj-1")
	require.NoError(t, err)
	second, err := m.Materialize(optionalTemplate(), b, "proj-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Outline(), second.Outline())
}

func TestMaterialize_IdsScopedByProject(t *testing.T) {
	m := newTestMaterializer()
	a, err := m.Materialize(residentialSmall(), nil, "proj-a")
	require.NoError(t, err)
	b, err := m.Materialize(residentialSmall(), nil, "proj-b")
	require.NoError(t, err)

	assert.NotEqual(t, a.Stages[0].ID, b.Stages[0].ID)
	assert.Equal(t, a.Outline(), b.Outline())
	assert.Equal(t, StageID("proj-a", "design"), a.Stages[0].ID)
	assert.Equal(t, TaskID("proj-a", "concept"), a.Stages[0].Tasks[0].ID)
}

func TestMaterialize_ConditionalBlueprints(t *testing.T) {
	m := newTestMaterializer()

	plan, err := m.Materialize(optionalTemplate(), domain.Briefing{"survey_done": "2025-11-10"}, "p")
	require.NoError(t, err)
	require.Len(t, plan.Stages, 1, "survey stage is skipped")
	assert.Equal(t, "Design", plan.Stages[0].Label)
	assert.Equal(t, 0, plan.Stages[0].Position)
	require.Len(t, plan.Stages[0].Tasks, 2, "pool task is skipped")
	assert.Equal(t, "Concept", plan.Stages[0].Tasks[0].Label)
	assert.Equal(t, "Layout (all bedrooms)", plan.Stages[0].Tasks[1].Label)
	assert.Equal(t, 1, plan.Stages[0].Tasks[1].Position)

	plan, err = m.Materialize(optionalTemplate(), domain.Briefing{"pool": true, "bedrooms": 4}, "p")
	require.NoError(t, err)
	require.Len(t, plan.Stages, 2)
	labels := []string{}
	for _, task := range plan.Stages[1].Tasks {
		labels = append(labels, task.Label)
	}
	assert.Equal(t, []string{"Concept", "Pool design", "Layout (4 bedrooms)"}, labels)
	assert.NoError(t, plan.CheckInvariants())
}

func TestMaterialize_DueDatesFromStartDate(t *testing.T) {
	m := newTestMaterializer()

	plan, err := m.Materialize(optionalTemplate(), domain.Briefing{"start_date": "2026-03-02"}, "p")
	require.NoError(t, err)
	topo := plan.Stages[0].Tasks[0]
	require.NotNil(t, topo.DueDate)
	assert.Equal(t, "2026-03-12", topo.DueDateString())
	assert.Nil(t, plan.Stages[1].Tasks[1].DueDate, "no offset means no due date")

	plan, err = m.Materialize(optionalTemplate(), domain.Briefing{"start_date": "next week"}, "p")
	require.NoError(t, err, "an unreadable start date is not a template error")
	assert.Nil(t, plan.Stages[0].Tasks[0].DueDate)
}

func TestMaterialize_InvalidTemplate(t *testing.T) {
	bad := residentialSmall()
	bad.Stages[0].Tasks[1].ID = "concept"

	plan, err := newTestMaterializer().Materialize(bad, nil, "p")
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestMaterialize_EmptyProjectID(t *testing.T) {
	_, err := newTestMaterializer().Materialize(residentialSmall(), nil, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMaterialize_DoesNotMutateBriefing(t *testing.T) {
	b := domain.Briefing{"type": "residential", "nested": map[string]any{"k": "v"}}
	plan, err := newTestMaterializer().Materialize(residentialSmall(), b, "p")
	require.NoError(t, err)

	plan.Briefing["nested"].(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", b["nested"].(map[string]any)["k"])
}

func TestMaterialize_AllBuiltinTemplates(t *testing.T) {
	lib, err := Builtin()
	require.NoError(t, err)

	briefings := []domain.Briefing{
		nil,
		{"garden": true, "construction_support": "yes", "units": 4, "occupancy": 250, "furniture": true, "joinery": true},
	}
	for _, schema := range lib.Catalog.List() {
		for _, b := range briefings {
			plan, err := newTestMaterializer().Materialize(schema, b, "p-"+schema.ID)
			require.NoError(t, err, schema.ID)
			assert.NotEmpty(t, plan.Stages, schema.ID)
			assert.NoError(t, plan.CheckInvariants(), schema.ID)
		}
	}
}
