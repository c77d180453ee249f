package repositories

import (
	"context"
	"fmt"
	"strconv"

	"chat-backend/internal/models"
	"chat-backend/internal/realtime"
)

// RelayMessageStore adapts the message repository to the relay's storage
// contract, translating the relay's opaque string identifiers back to the
// database's integer keys.
type RelayMessageStore struct {
	messages MessageRepository
}

// NewRelayMessageStore constructs the adapter.
func NewRelayMessageStore(messages MessageRepository) *RelayMessageStore {
	return &RelayMessageStore{messages: messages}
}

// Save persists the durable form of a relayed message.
func (s *RelayMessageStore) Save(ctx context.Context, msg realtime.StoredMessage) error {
	chatID, err := strconv.Atoi(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", msg.ChatID, err)
	}
	senderID, err := strconv.Atoi(msg.SenderID)
	if err != nil {
		return fmt.Errorf("invalid sender id %q: %w", msg.SenderID, err)
	}

	return s.messages.Create(ctx, models.Message{
		ID:        msg.ID,
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})
}
