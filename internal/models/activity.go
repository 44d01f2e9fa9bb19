package models

import "time"

// ActorType distinguishes a human actor from the assistant acting on a
// human's behalf.
type ActorType string

const (
	ActorHuman ActorType = "human"
	ActorAgent ActorType = "agent"
)

// Activity actions.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionStatusChanged = "status_changed"
	ActionAssigned      = "assigned"
	ActionCommented     = "commented"
	ActionLabeled       = "labeled"
)

// Actor identifies who performs a mutation. For agent tool calls the ID is
// the human user the agent acts for.
type Actor struct {
	ID   int64
	Type ActorType
}

// ActivityEvent is an append-only audit record keyed by task. Events are
// never mutated or deleted.
type ActivityEvent struct {
	ID        int64             `json:"id"`
	TaskID    int64             `json:"task_id"`
	ActorID   int64             `json:"actor_id"`
	ActorType ActorType         `json:"actor_type"`
	Action    string            `json:"action"`
	Detail    map[string]string `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
