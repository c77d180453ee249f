package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-backend/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	CreateDirect(ctx context.Context, userID, friendID int) (models.Chat, error)
	CreateGroup(ctx context.Context, name string, creatorID int, memberIDs []int) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	GetDetails(ctx context.Context, chatID int) (models.ChatDetails, error)
	ListForUser(ctx context.Context, userID int) ([]models.ChatSummary, error)
	ListGroupsCreatedBy(ctx context.Context, userID int) ([]models.Chat, error)
	MemberIDs(ctx context.Context, chatID int) ([]int, error)
	IsMember(ctx context.Context, chatID, userID int) (bool, error)
	AddMembers(ctx context.Context, chatID int, userIDs []int) error
	RemoveMember(ctx context.Context, chatID, userID int) error
	Rename(ctx context.Context, chatID int, name string) error
	Delete(ctx context.Context, chatID int) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateDirect returns the direct chat between two users, creating it on
// first use.
func (r *ChatRepo) CreateDirect(ctx context.Context, userID, friendID int) (models.Chat, error) {
	if userID == friendID {
		return models.Chat{}, errors.New("cannot create chat with self")
	}

	var chat models.Chat
	query := `SELECT c.id, c.name, c.is_group, c.creator_id, c.created_at FROM chats c
        JOIN chat_members m1 ON m1.chat_id = c.id AND m1.user_id=$1
        JOIN chat_members m2 ON m2.chat_id = c.id AND m2.user_id=$2
        WHERE c.is_group = FALSE LIMIT 1`
	err := r.db.GetContext(ctx, &chat, query, userID, friendID)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer tx.Rollback()

	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO chats (is_group, creator_id) VALUES (FALSE, $1) RETURNING id, name, is_group, creator_id, created_at`,
		userID).StructScan(&chat); err != nil {
		return models.Chat{}, err
	}
	for _, member := range []int{userID, friendID} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chat.ID, member); err != nil {
			return models.Chat{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// CreateGroup creates a named group with the creator and invited members.
func (r *ChatRepo) CreateGroup(ctx context.Context, name string, creatorID int, memberIDs []int) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer tx.Rollback()

	var chat models.Chat
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO chats (name, is_group, creator_id) VALUES ($1, TRUE, $2) RETURNING id, name, is_group, creator_id, created_at`,
		name, creatorID).StructScan(&chat); err != nil {
		return models.Chat{}, err
	}
	for _, member := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, chat.ID, member); err != nil {
			return models.Chat{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT id, name, is_group, creator_id, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetDetails fetches a chat plus its member profiles.
func (r *ChatRepo) GetDetails(ctx context.Context, chatID int) (models.ChatDetails, error) {
	chat, err := r.GetChat(ctx, chatID)
	if err != nil {
		return models.ChatDetails{}, err
	}

	var members []models.PublicProfile
	err = r.db.SelectContext(ctx, &members,
		`SELECT u.id, u.username, u.full_name, u.avatar_url FROM users u
         JOIN chat_members m ON m.user_id = u.id WHERE m.chat_id=$1 ORDER BY u.id`, chatID)
	if err != nil {
		return models.ChatDetails{}, err
	}
	return models.ChatDetails{Chat: chat, Members: members}, nil
}

// ListForUser returns summaries of every chat the user belongs to. Direct
// chats borrow the other member's name and avatar.
func (r *ChatRepo) ListForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT c.id, c.name, c.is_group, c.creator_id, c.created_at FROM chats c
         JOIN chat_members m ON m.chat_id = c.id WHERE m.user_id=$1 ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := models.ChatSummary{ChatID: chat.ID, Name: chat.Name, IsGroup: chat.IsGroup}

		memberIDs, err := r.MemberIDs(ctx, chat.ID)
		if err != nil {
			return nil, err
		}
		summary.Members = memberIDs

		if !chat.IsGroup {
			for _, member := range memberIDs {
				if member == userID {
					continue
				}
				var other models.PublicProfile
				if err := r.db.GetContext(ctx, &other,
					`SELECT id, username, full_name, avatar_url FROM users WHERE id=$1`, member); err == nil {
					summary.Name = other.FullName
					summary.Avatar = other.AvatarURL
				}
				break
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ListGroupsCreatedBy returns groups owned by the user.
func (r *ChatRepo) ListGroupsCreatedBy(ctx context.Context, userID int) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT id, name, is_group, creator_id, created_at FROM chats WHERE is_group = TRUE AND creator_id=$1 ORDER BY created_at DESC`, userID)
	return chats, err
}

// MemberIDs returns the user ids of all chat members.
func (r *ChatRepo) MemberIDs(ctx context.Context, chatID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM chat_members WHERE chat_id=$1 ORDER BY user_id`, chatID)
	return ids, err
}

// IsMember checks whether a user belongs to the chat.
func (r *ChatRepo) IsMember(ctx context.Context, chatID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// AddMembers inserts members, skipping ones already present.
func (r *ChatRepo) AddMembers(ctx context.Context, chatID int, userIDs []int) error {
	for _, userID := range userIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, chatID, userID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveMember deletes one membership row.
func (r *ChatRepo) RemoveMember(ctx context.Context, chatID, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	return err
}

// Rename updates the group name.
func (r *ChatRepo) Rename(ctx context.Context, chatID int, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET name=$2 WHERE id=$1`, chatID, name)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Delete removes the chat; memberships and messages cascade.
func (r *ChatRepo) Delete(ctx context.Context, chatID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
	return err
}
