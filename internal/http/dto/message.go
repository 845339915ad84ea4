package dto

import (
	"time"

	"nfc.app/facilitator/internal/model"
	"nfc.app/facilitator/internal/service"
)

type PostMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type MessageResponse struct {
	ID          int64     `json:"id,string"`
	CommunityID string    `json:"community_id"`
	AuthorID    string    `json:"author_id"`
	Content     string    `json:"content"`
	Sequence    int64     `json:"sequence"`
	CreatedAt   time.Time `json:"created_at"`
}

func ToMessageResponse(m model.Message) MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		CommunityID: m.CommunityID,
		AuthorID:    m.AuthorID,
		Content:     m.Content,
		Sequence:    m.Sequence,
		CreatedAt:   m.CreatedAt,
	}
}

type DecisionResponse struct {
	Intervene      bool   `json:"intervene"`
	Reason         string `json:"reason,omitempty"`
	Type           string `json:"type,omitempty"`
	Pattern        string `json:"pattern,omitempty"`
	InterventionID *int64 `json:"intervention_id,string,omitempty"`
}

type PostMessageResponse struct {
	Message   MessageResponse  `json:"message"`
	FollowUp  string           `json:"follow_up"`
	Decision  DecisionResponse `json:"decision"`
	AIMessage *MessageResponse `json:"ai_message,omitempty"`
}

func ToPostMessageResponse(r *service.PostResult) PostMessageResponse {
	resp := PostMessageResponse{
		Message:  ToMessageResponse(r.Message),
		FollowUp: string(r.FollowUp),
		Decision: DecisionResponse{
			Intervene: r.Decision.Intervene,
			Reason:    string(r.Decision.Reason),
			Type:      string(r.Decision.Type),
			Pattern:   string(r.Decision.Pattern),
		},
	}
	if r.Decision.Intervention != nil {
		resp.Decision.InterventionID = &r.Decision.Intervention.ID
	}
	if r.AIMessage != nil {
		ai := ToMessageResponse(*r.AIMessage)
		resp.AIMessage = &ai
	}
	return resp
}
