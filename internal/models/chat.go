package models

import "time"

// Chat is either a direct chat between two users or a named group.
type Chat struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name,omitempty"`
	IsGroup   bool      `db:"is_group" json:"is_group"`
	CreatorID int       `db:"creator_id" json:"creator_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatSummary is the per-user listing view. For direct chats Name and
// Avatar are filled with the other member's profile.
type ChatSummary struct {
	ChatID  int    `json:"chat_id"`
	Name    string `json:"name"`
	IsGroup bool   `json:"is_group"`
	Avatar  string `json:"avatar,omitempty"`
	Members []int  `json:"members"`
}

// ChatDetails is the populated detail view.
type ChatDetails struct {
	Chat
	Members []PublicProfile `json:"members"`
}
