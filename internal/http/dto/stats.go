package dto

import (
	"time"

	"nfc.app/facilitator/internal/model"
)

type StatsResponse struct {
	CommunityID        string    `json:"community_id"`
	HumanMessagesSince int       `json:"human_messages_since"`
	InterventionsToday int       `json:"interventions_today"`
	InterventionsTotal int       `json:"interventions_total"`
	Answered           int       `json:"answered"`
	Ignored            int       `json:"ignored"`
	PendingFollowUps   int       `json:"pending_follow_ups"`
	ComputedAt         time.Time `json:"computed_at"`
}

func ToStatsResponse(s *model.FacilitatorStats) StatsResponse {
	return StatsResponse{
		CommunityID:        s.CommunityID,
		HumanMessagesSince: s.HumanMessagesSince,
		InterventionsToday: s.InterventionsToday,
		InterventionsTotal: s.InterventionsTotal,
		Answered:           s.Answered,
		Ignored:            s.Ignored,
		PendingFollowUps:   s.PendingFollowUps,
		ComputedAt:         s.ComputedAt,
	}
}
