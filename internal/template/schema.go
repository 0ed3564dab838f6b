package template

// TemplateSchema is a project template: an ordered list of stage blueprints,
// each holding an ordered list of task blueprints. Templates are read-only
// once registered in a Catalog.
type TemplateSchema struct {
	ID          string        `json:"id" yaml:"id" validate:"required"`
	Name        string        `json:"name" yaml:"name" validate:"required"`
	Version     string        `json:"version,omitempty" yaml:"version,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Discipline  string        `json:"discipline,omitempty" yaml:"discipline,omitempty"`
	Stages      []StageConfig `json:"stages" yaml:"stages" validate:"required,min=1,dive"`
}

// StageConfig is a stage blueprint. IncludeIf, when set, is a predicate over
// the briefing deciding whether the stage is materialized.
type StageConfig struct {
	ID        string       `json:"id" yaml:"id" validate:"required"`
	Label     string       `json:"label" yaml:"label" validate:"required,nonblank"`
	IncludeIf string       `json:"include_if,omitempty" yaml:"include_if,omitempty"`
	Tasks     []TaskConfig `json:"tasks,omitempty" yaml:"tasks,omitempty" validate:"dive"`
}

// TaskConfig is a task blueprint.
type TaskConfig struct {
	ID            string  `json:"id" yaml:"id" validate:"required"`
	Label         string  `json:"label" yaml:"label" validate:"required,nonblank"`
	EffortHours   float64 `json:"effort_hours,omitempty" yaml:"effort_hours,omitempty" validate:"gte=0"`
	IncludeIf     string  `json:"include_if,omitempty" yaml:"include_if,omitempty"`
	DueOffsetDays *int    `json:"due_offset_days,omitempty" yaml:"due_offset_days,omitempty" validate:"omitempty,gte=0"`
}

// RuleConfig maps a briefing predicate to a template identifier.
type RuleConfig struct {
	When     string `json:"when" yaml:"when" validate:"required"`
	Template string `json:"template" yaml:"template" validate:"required"`
}

// RulesFile is the on-disk form of a detection rule set. Rules are evaluated
// in declaration order; Default is used when none match.
type RulesFile struct {
	Default string       `json:"default" yaml:"default" validate:"required"`
	Rules   []RuleConfig `json:"rules" yaml:"rules" validate:"dive"`
}

// StageCount returns the number of stage blueprints, ignoring IncludeIf.
func (s *TemplateSchema) StageCount() int {
	return len(s.Stages)
}

// TaskCount returns the number of task blueprints across all stages,
// ignoring IncludeIf.
func (s *TemplateSchema) TaskCount() int {
	n := 0
	for _, st := range s.Stages {
		n += len(st.Tasks)
	}
	return n
}

// EffortHours sums the estimated effort of every task blueprint.
func (s *TemplateSchema) EffortHours() float64 {
	total := 0.0
	for _, st := range s.Stages {
		for _, t := range st.Tasks {
			total += t.EffortHours
		}
	}
	return total
}
