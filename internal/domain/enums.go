package domain

type PlanStatus string

const (
	PlanActive   PlanStatus = "active"
	PlanArchived PlanStatus = "archived"
)

type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskBlocked    TaskStatus = "blocked"
)

// EntityKind names the kind of plan entity a history entry or event targets.
type EntityKind string

const (
	EntityPlan  EntityKind = "plan"
	EntityStage EntityKind = "stage"
	EntityTask  EntityKind = "task"
)

// HistoryKind is the operation recorded by a history entry.
type HistoryKind string

const (
	HistoryCreate       HistoryKind = "create"
	HistoryUpdate       HistoryKind = "update"
	HistoryDelete       HistoryKind = "delete"
	HistoryReorder      HistoryKind = "reorder"
	HistoryStatusChange HistoryKind = "status_change"
	HistoryReopen       HistoryKind = "reopen"
)

// ValidStageStatuses is the canonical set of accepted stage status strings.
var ValidStageStatuses = map[string]bool{
	"not_started": true, "in_progress": true, "completed": true,
}

// ValidTaskStatuses is the canonical set of accepted task status strings.
var ValidTaskStatuses = map[string]bool{
	"pending": true, "in_progress": true, "done": true, "blocked": true,
}

// ValidHistoryKinds is the canonical set of accepted history kind strings.
var ValidHistoryKinds = map[string]bool{
	"create": true, "update": true, "delete": true,
	"reorder": true, "status_change": true, "reopen": true,
}
