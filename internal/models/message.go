package models

import "time"

// Message is the persisted form of a chat message. The id is generated by
// the application, not the database, so the realtime copy of the same
// message carries an identical identifier.
type Message struct {
	ID        string    `db:"id" json:"id"`
	ChatID    int       `db:"chat_id" json:"chat_id"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Attachment is one uploaded file linked to a message.
type Attachment struct {
	ID          int    `db:"id" json:"id"`
	MessageID   string `db:"message_id" json:"message_id"`
	FileName    string `db:"file_name" json:"file_name"`
	URL         string `db:"url" json:"url"`
	ContentType string `db:"content_type" json:"content_type,omitempty"`
	SizeBytes   int64  `db:"size_bytes" json:"size_bytes"`
}

// MessageWithSender augments a message with the sender's display profile
// and any attachments, for API responses and attachment broadcasts.
type MessageWithSender struct {
	Message
	Sender      PublicProfile `json:"sender"`
	Attachments []Attachment  `json:"attachments,omitempty"`
}
