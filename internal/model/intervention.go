package model

import (
	"strings"
	"time"
)

// InterventionType is the closed set of ways the AI persona can interject.
type InterventionType string

const (
	InterventionSummary         InterventionType = "summary"
	InterventionHighlight       InterventionType = "highlight"
	InterventionQuestion        InterventionType = "question"
	InterventionBridgeToArticle InterventionType = "bridge_to_article"
	InterventionBridgeToApp     InterventionType = "bridge_to_app"
)

func (t InterventionType) Valid() bool {
	switch t {
	case InterventionSummary, InterventionHighlight, InterventionQuestion,
		InterventionBridgeToArticle, InterventionBridgeToApp:
		return true
	}
	return false
}

// IsBridge reports whether t points the user outside the conversation.
func (t InterventionType) IsBridge() bool {
	return t == InterventionBridgeToArticle || t == InterventionBridgeToApp
}

// Intervention records an AI-authored message injected into a conversation.
// Answered and Ignored are mutually exclusive and set once by the follow-up tracker.
type Intervention struct {
	CreatedAt        time.Time        `json:"created_at"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
	AnswerMessageID  *int64           `json:"answer_message_id,omitempty"`
	CommunityID      string           `json:"community_id"`
	UserID           string           `json:"user_id"`
	Type             InterventionType `json:"type"`
	Pattern          PatternKind      `json:"pattern"`
	Body             string           `json:"body"`
	FollowUpQuestion string           `json:"follow_up_question"`
	Content          string           `json:"content"`
	ID               int64            `json:"id"`
	TriggerMessageID int64            `json:"trigger_message_id"`
	Answered         bool             `json:"answered"`
	Ignored          bool             `json:"ignored"`
}

// Pending reports whether the follow-up question is still unresolved.
func (i Intervention) Pending() bool {
	return !i.Answered && !i.Ignored
}

// Question returns the follow-up question, taken from the rendered content
// when it was not stored separately.
func (i Intervention) Question() string {
	if i.FollowUpQuestion != "" {
		return i.FollowUpQuestion
	}
	if idx := strings.LastIndex(i.Content, "\n-> "); idx >= 0 {
		return i.Content[idx+len("\n-> "):]
	}
	return ""
}

// FollowUpWatch expects a reply from UserID in CommunityID before Deadline.
type FollowUpWatch struct {
	Deadline       time.Time `json:"deadline"`
	CreatedAt      time.Time `json:"created_at"`
	UserID         string    `json:"user_id"`
	CommunityID    string    `json:"community_id"`
	InterventionID int64     `json:"intervention_id"`
}

// Lapsed reports whether the deadline passed at now.
func (w FollowUpWatch) Lapsed(now time.Time) bool {
	return !now.Before(w.Deadline)
}
