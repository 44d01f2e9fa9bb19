package models

import "time"

// Label is party-scoped and case-insensitively unique by name. A label
// referenced by a name that does not exist yet is created on first use.
type Label struct {
	ID        int64     `json:"id"`
	PartyID   int64     `json:"party_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Joined display field.
	AuthorName string `json:"author_name,omitempty"`
}
