package domain

import "time"

// Stage (etapa) is a top-level phase of a project plan. It owns its tasks by
// value; a task never moves between stages.
type Stage struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id"`
	Label     string      `json:"label"`
	Position  int         `json:"position"`
	Status    StageStatus `json:"status"`
	Tasks     []Task      `json:"tasks"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// stageTransitions lists the moves UpdateStatus may perform. Leaving
// completed is only possible through Reopen.
var stageTransitions = map[StageStatus][]StageStatus{
	StageNotStarted: {StageInProgress},
	StageInProgress: {StageCompleted, StageNotStarted},
}

// TaskIDs returns the identifiers of the stage's tasks in position order.
func (s *Stage) TaskIDs() []string {
	ids := make([]string, len(s.Tasks))
	for i, t := range s.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// CanTransitionStage reports whether the stage state machine allows from -> to.
func CanTransitionStage(from, to StageStatus) bool {
	for _, allowed := range stageTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the stage to a new status, rejecting anything outside
// the state machine, including no-op requests.
func (s *Stage) TransitionTo(to StageStatus, now time.Time) error {
	if !ValidStageStatuses[string(to)] {
		return NewValidationError("status", "unknown stage status %q", to)
	}
	if !CanTransitionStage(s.Status, to) {
		return &InvalidTransitionError{Kind: EntityStage, ID: s.ID, From: string(s.Status), To: string(to)}
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

// Reopen moves a completed stage back to in_progress.
func (s *Stage) Reopen(now time.Time) error {
	if s.Status != StageCompleted {
		return &InvalidTransitionError{Kind: EntityStage, ID: s.ID, From: string(s.Status), To: "reopened"}
	}
	s.Status = StageInProgress
	s.UpdatedAt = now
	return nil
}

func (s Stage) clone() Stage {
	out := s
	if s.Tasks != nil {
		out.Tasks = make([]Task, len(s.Tasks))
		for i, t := range s.Tasks {
			out.Tasks[i] = t.clone()
		}
	}
	return out
}
