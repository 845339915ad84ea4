package model

import "time"

// CommunityCadenceState counts human messages since the AI last spoke in a community.
type CommunityCadenceState struct {
	LastHumanMessageAt *time.Time `json:"last_human_message_at,omitempty"`
	LastInterventionAt *time.Time `json:"last_intervention_at,omitempty"`
	CommunityID        string     `json:"community_id"`
	HumanMessagesSince int        `json:"human_messages_since"`
	Version            int64      `json:"version"`
}

// UserInterventionState tracks cooldown, daily count and acceptance probability for
// a user within a scope (a community id, or "*" when limits are global).
// A zero Version means the row has not been persisted yet.
type UserInterventionState struct {
	LastInterventionAt *time.Time `json:"last_intervention_at,omitempty"`
	UserID             string     `json:"user_id"`
	ScopeKey           string     `json:"scope_key"`
	CountDay           string     `json:"count_day"`
	TodayCount         int        `json:"today_count"`
	BridgesToday       int        `json:"bridges_today"`
	Probability        float64    `json:"probability"`
	ConsecutiveIgnored int        `json:"consecutive_ignored"`
	AnsweredTotal      int        `json:"answered_total"`
	IgnoredTotal       int        `json:"ignored_total"`
	Version            int64      `json:"version"`
}

// CountFor returns the intervention count for day; counts from other days read as zero.
func (s UserInterventionState) CountFor(day string) int {
	if s.CountDay != day {
		return 0
	}
	return s.TodayCount
}

// BridgesFor returns the article and app bridges counted for day.
func (s UserInterventionState) BridgesFor(day string) int {
	if s.CountDay != day {
		return 0
	}
	return s.BridgesToday
}
