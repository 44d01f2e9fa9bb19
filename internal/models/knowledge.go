package models

// PartyKnowledge is the read aggregation handed to the assistant as
// grounding. Any field may be partially filled when a sub-query failed.
type PartyKnowledge struct {
	PartyName      string     `json:"party_name"`
	Members        []User     `json:"members"`
	Documents      []Document `json:"documents"`
	OpenTasks      []Task     `json:"open_tasks"`
	Projects       []Project  `json:"projects"`
	RecentComments []Comment  `json:"recent_comments"`
}
