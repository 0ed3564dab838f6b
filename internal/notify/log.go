package notify

import (
	"log/slog"
)

// LogNotifier writes each event as a structured log record.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs e at info level.
func (n *LogNotifier) Notify(e Event) {
	title, message := FormatEvent(e)
	n.logger.Info(title,
		"message", message,
		"project_id", e.ProjectID,
		"seq", e.Seq,
		"operation", string(e.Operation),
		"entity", string(e.Entity),
		"entity_id", e.EntityID,
		"actor_id", e.ActorID,
	)
}
