// Package notify carries plan mutation outcomes to presentation channels.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
)

// Event describes one committed plan mutation.
type Event struct {
	ID        string             `json:"id"`
	ProjectID string             `json:"project_id"`
	Seq       int                `json:"seq,omitempty"`
	Operation domain.HistoryKind `json:"operation"`
	Entity    domain.EntityKind  `json:"entity"`
	EntityID  string             `json:"entity_id"`
	ActorID   string             `json:"actor_id"`
	Outcome   string             `json:"outcome"`
	At        time.Time          `json:"at"`
}

// Notifier receives events. Implementations must not block for long; the
// store calls them synchronously after each commit.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }

// Nop discards every event.
var Nop Notifier = NotifierFunc(func(Event) {})

// Multi fans an event out to several notifiers in order.
func Multi(notifiers ...Notifier) Notifier {
	live := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			live = append(live, n)
		}
	}
	return NotifierFunc(func(e Event) {
		for _, n := range live {
			n.Notify(e)
		}
	})
}

// FormatEvent renders a user-facing title and message for an event.
func FormatEvent(e Event) (title, message string) {
	subject := string(e.Entity)
	switch e.Operation {
	case domain.HistoryCreate:
		if e.Entity == domain.EntityPlan {
			title = "Plan ready"
		} else {
			title = fmt.Sprintf("New %s", subject)
		}
	case domain.HistoryUpdate:
		title = fmt.Sprintf("%s updated", capitalize(subject))
	case domain.HistoryDelete:
		title = fmt.Sprintf("%s removed", capitalize(subject))
	case domain.HistoryReorder:
		title = "Order changed"
	case domain.HistoryStatusChange:
		title = fmt.Sprintf("%s status changed", capitalize(subject))
	case domain.HistoryReopen:
		title = fmt.Sprintf("%s reopened", capitalize(subject))
	default:
		title = "Plan changed"
	}

	message = e.Outcome
	if e.ActorID != "" {
		message = fmt.Sprintf("%s (by %s)", message, e.ActorID)
	}
	return title, message
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
