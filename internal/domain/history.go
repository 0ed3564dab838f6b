package domain

import "time"

// Snapshot holds the changed fields of an entity, rendered as strings so a
// history entry survives any serialization round trip unchanged.
type Snapshot map[string]string

// HistoryEntry is an append-only audit record of one plan mutation. Targets
// are referenced by ID only; entries outlive the entities they describe.
type HistoryEntry struct {
	ID         string      `json:"id"`
	ProjectID  string      `json:"project_id"`
	Seq        int         `json:"seq"`
	Timestamp  time.Time   `json:"timestamp"`
	ActorID    string      `json:"actor_id"`
	TargetKind EntityKind  `json:"target_kind"`
	TargetID   string      `json:"target_id"`
	Kind       HistoryKind `json:"kind"`
	Before     Snapshot    `json:"before,omitempty"`
	After      Snapshot    `json:"after,omitempty"`
}

func (h HistoryEntry) clone() HistoryEntry {
	out := h
	out.Before = h.Before.clone()
	out.After = h.After.clone()
	return out
}

func (s Snapshot) clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
