package template

import (
	"time"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

// residentialSmall is the two-stage template used across the package tests:
// Design [Concept, Layout] and Approval [].
func residentialSmall() *TemplateSchema {
	return &TemplateSchema{
		ID:      "residential-small",
		Name:    "Residential (small)",
		Version: "1.0.0",
		Stages: []StageConfig{
			{ID: "design", Label: "Design", Tasks: []TaskConfig{
				{ID: "concept", Label: "Concept", EffortHours: 12},
				{ID: "layout", Label: "Layout", EffortHours: 20},
			}},
			{ID: "approval", Label: "Approval"},
		},
	}
}

func optionalTemplate() *TemplateSchema {
	return &TemplateSchema{
		ID:   "optional",
		Name: "With optional blueprints",
		Stages: []StageConfig{
			{ID: "survey", Label: "Survey", IncludeIf: "!has(survey_done)", Tasks: []TaskConfig{
				{ID: "topo", Label: "Topography", DueOffsetDays: intPtr(10)},
			}},
			{ID: "design", Label: "Design", Tasks: []TaskConfig{
				{ID: "concept", Label: "Concept", DueOffsetDays: intPtr(20)},
				{ID: "pool", Label: "Pool design", IncludeIf: "pool"},
				{ID: "layout", Label: "Layout ({bedrooms|all} bedrooms)"},
			}},
		},
	}
}

func genericTemplate() *TemplateSchema {
	return &TemplateSchema{
		ID:   "generic",
		Name: "Generic",
		Stages: []StageConfig{
			{ID: "g_kickoff", Label: "Kickoff", Tasks: []TaskConfig{{ID: "g_review", Label: "Briefing review"}}},
		},
	}
}
