package model

import "time"

// Message is a single post in a community conversation. Immutable once created.
type Message struct {
	CreatedAt   time.Time `json:"created_at"`
	CommunityID string    `json:"community_id"`
	AuthorID    string    `json:"author_id"`
	Content     string    `json:"content"`
	ID          int64     `json:"id"`
	Sequence    int64     `json:"sequence"`
}

// IsFrom reports whether the message was authored by authorID.
func (m Message) IsFrom(authorID string) bool {
	return m.AuthorID == authorID
}
