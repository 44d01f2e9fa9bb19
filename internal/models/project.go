package models

import "time"

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// Project groups tasks. Deleting a project never deletes its tasks; they
// become project-less instead.
type Project struct {
	ID          int64         `json:"id"`
	PartyID     int64         `json:"party_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Color       string        `json:"color"`
	Icon        string        `json:"icon,omitempty"`
	Status      ProjectStatus `json:"status"`
	OwnerID     *int64        `json:"owner_id,omitempty"`
	Code        string        `json:"code"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
