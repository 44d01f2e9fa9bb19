package models

import "time"

// Party is a tenant: a group of co-owners sharing one property.
type Party struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	NextTaskNumber int64     `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Member roles within a party.
const (
	MemberRoleOwner  = "owner"
	MemberRoleMember = "member"
)

type PartyMember struct {
	PartyID  int64  `json:"party_id"`
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
