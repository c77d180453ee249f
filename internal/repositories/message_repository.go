package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-backend/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messagesPerPage = 20

// MessageRepository abstracts message and attachment persistence.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) error
	Get(ctx context.Context, messageID string) (models.Message, error)
	ListPage(ctx context.Context, chatID, page int) ([]models.MessageWithSender, int, error)
	AddAttachments(ctx context.Context, attachments []models.Attachment) error
	AttachmentsFor(ctx context.Context, messageID string) ([]models.Attachment, error)
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a message with its application-generated id.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.CreatedAt)
	return err
}

// Get fetches one message.
func (r *MessageRepo) Get(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, chat_id, sender_id, content, created_at FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListPage returns one newest-first page, reversed to oldest-first, plus the
// total page count.
func (r *MessageRepo) ListPage(ctx context.Context, chatID, page int) ([]models.MessageWithSender, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * messagesPerPage

	type row struct {
		models.Message
		models.PublicProfile `db:"sender"`
	}
	var rows []row
	err := r.db.SelectContext(ctx, &rows,
		`SELECT m.id, m.chat_id, m.sender_id, m.content, m.created_at,
                u.id AS "sender.id", u.username AS "sender.username",
                u.full_name AS "sender.full_name", u.avatar_url AS "sender.avatar_url"
         FROM messages m JOIN users u ON u.id = m.sender_id
         WHERE m.chat_id=$1 ORDER BY m.created_at DESC LIMIT $2 OFFSET $3`,
		chatID, messagesPerPage, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE chat_id=$1`, chatID); err != nil {
		return nil, 0, err
	}
	totalPages := (total + messagesPerPage - 1) / messagesPerPage

	// Reverse into chronological order for the client.
	msgs := make([]models.MessageWithSender, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		msg := models.MessageWithSender{Message: rows[i].Message, Sender: rows[i].PublicProfile}
		attachments, err := r.AttachmentsFor(ctx, msg.ID)
		if err != nil {
			return nil, 0, err
		}
		msg.Attachments = attachments
		msgs = append(msgs, msg)
	}
	return msgs, totalPages, nil
}

// AddAttachments stores attachment rows for a message.
func (r *MessageRepo) AddAttachments(ctx context.Context, attachments []models.Attachment) error {
	for _, a := range attachments {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO attachments (message_id, file_name, url, content_type, size_bytes) VALUES ($1, $2, $3, $4, $5)`,
			a.MessageID, a.FileName, a.URL, a.ContentType, a.SizeBytes); err != nil {
			return err
		}
	}
	return nil
}

// AttachmentsFor returns the attachments of one message.
func (r *MessageRepo) AttachmentsFor(ctx context.Context, messageID string) ([]models.Attachment, error) {
	var attachments []models.Attachment
	err := r.db.SelectContext(ctx, &attachments,
		`SELECT id, message_id, file_name, url, content_type, size_bytes FROM attachments WHERE message_id=$1 ORDER BY id`, messageID)
	return attachments, err
}
