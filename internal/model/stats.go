package model

import "time"

// FacilitatorStats summarizes AI activity in a community for tuning dashboards.
type FacilitatorStats struct {
	ComputedAt         time.Time `json:"computed_at"`
	CommunityID        string    `json:"community_id"`
	HumanMessagesSince int       `json:"human_messages_since"`
	InterventionsToday int       `json:"interventions_today"`
	InterventionsTotal int       `json:"interventions_total"`
	Answered           int       `json:"answered"`
	Ignored            int       `json:"ignored"`
	PendingFollowUps   int       `json:"pending_follow_ups"`
}
