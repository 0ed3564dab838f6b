package domain

import "time"

// DateLayout is the calendar-date format used for due dates and briefing dates.
const DateLayout = "2006-01-02"

// Task (tarefa) is a unit of work inside exactly one stage.
type Task struct {
	ID             string     `json:"id"`
	StageID        string     `json:"stage_id"`
	Label          string     `json:"label"`
	Status         TaskStatus `json:"status"`
	Assignee       *string    `json:"assignee,omitempty"`
	Position       int        `json:"position"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours float64    `json:"estimated_hours,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskInProgress, TaskBlocked},
	TaskInProgress: {TaskDone, TaskBlocked},
	TaskBlocked:    {TaskPending},
}

// IsTerminal returns true when the task can only leave its status via Reopen.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskDone
}

// CanTransitionTask reports whether the task state machine allows from -> to.
func CanTransitionTask(from, to TaskStatus) bool {
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the task to a new status. Done is terminal here;
// Reopen is the only way back.
func (t *Task) TransitionTo(to TaskStatus, now time.Time) error {
	if !ValidTaskStatuses[string(to)] {
		return NewValidationError("status", "unknown task status %q", to)
	}
	if !CanTransitionTask(t.Status, to) {
		return &InvalidTransitionError{Kind: EntityTask, ID: t.ID, From: string(t.Status), To: string(to)}
	}
	t.Status = to
	t.UpdatedAt = now
	return nil
}

// Reopen moves a done task back to pending.
func (t *Task) Reopen(now time.Time) error {
	if t.Status != TaskDone {
		return &InvalidTransitionError{Kind: EntityTask, ID: t.ID, From: string(t.Status), To: "reopened"}
	}
	t.Status = TaskPending
	t.UpdatedAt = now
	return nil
}

// AssigneeOrEmpty returns the assignee reference, or "" when unassigned.
func (t *Task) AssigneeOrEmpty() string {
	if t.Assignee == nil {
		return ""
	}
	return *t.Assignee
}

// DueDateString formats the due date, or returns "" when unset.
func (t *Task) DueDateString() string {
	if t.DueDate == nil {
		return ""
	}
	return t.DueDate.Format(DateLayout)
}

// DateOnly truncates t to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func (t Task) clone() Task {
	out := t
	if t.Assignee != nil {
		a := *t.Assignee
		out.Assignee = &a
	}
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	return out
}
