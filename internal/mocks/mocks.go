package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-backend/internal/models"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Create(ctx context.Context, username, fullName, passwordHash, avatarURL string) (models.User, error) {
	args := m.Called(ctx, username, fullName, passwordHash, avatarURL)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetProfiles(ctx context.Context, userIDs []int) ([]models.PublicProfile, error) {
	args := m.Called(ctx, userIDs)
	var profiles []models.PublicProfile
	if val := args.Get(0); val != nil {
		profiles = val.([]models.PublicProfile)
	}
	return profiles, args.Error(1)
}

func (m *UserRepositoryMock) Search(ctx context.Context, query string, excludeID int) ([]models.PublicProfile, error) {
	args := m.Called(ctx, query, excludeID)
	var profiles []models.PublicProfile
	if val := args.Get(0); val != nil {
		profiles = val.([]models.PublicProfile)
	}
	return profiles, args.Error(1)
}

func (m *UserRepositoryMock) UpdateRefreshToken(ctx context.Context, userID int, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdateAccount(ctx context.Context, userID int, fullName string) error {
	args := m.Called(ctx, userID, fullName)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdateAvatar(ctx context.Context, userID int, avatarURL string) error {
	args := m.Called(ctx, userID, avatarURL)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateDirect(ctx context.Context, userID, friendID int) (models.Chat, error) {
	args := m.Called(ctx, userID, friendID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateGroup(ctx context.Context, name string, creatorID int, memberIDs []int) (models.Chat, error) {
	args := m.Called(ctx, name, creatorID, memberIDs)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetDetails(ctx context.Context, chatID int) (models.ChatDetails, error) {
	args := m.Called(ctx, chatID)
	var details models.ChatDetails
	if val := args.Get(0); val != nil {
		details = val.(models.ChatDetails)
	}
	return details, args.Error(1)
}

func (m *ChatRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) ListGroupsCreatedBy(ctx context.Context, userID int) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) MemberIDs(ctx context.Context, chatID int) ([]int, error) {
	args := m.Called(ctx, chatID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *ChatRepositoryMock) IsMember(ctx context.Context, chatID, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) AddMembers(ctx context.Context, chatID int, userIDs []int) error {
	args := m.Called(ctx, chatID, userIDs)
	return args.Error(0)
}

func (m *ChatRepositoryMock) RemoveMember(ctx context.Context, chatID, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) Rename(ctx context.Context, chatID int, name string) error {
	args := m.Called(ctx, chatID, name)
	return args.Error(0)
}

func (m *ChatRepositoryMock) Delete(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListPage(ctx context.Context, chatID, page int) ([]models.MessageWithSender, int, error) {
	args := m.Called(ctx, chatID, page)
	var msgs []models.MessageWithSender
	if val := args.Get(0); val != nil {
		msgs = val.([]models.MessageWithSender)
	}
	return msgs, args.Int(1), args.Error(2)
}

func (m *MessageRepositoryMock) AddAttachments(ctx context.Context, attachments []models.Attachment) error {
	args := m.Called(ctx, attachments)
	return args.Error(0)
}

func (m *MessageRepositoryMock) AttachmentsFor(ctx context.Context, messageID string) ([]models.Attachment, error) {
	args := m.Called(ctx, messageID)
	var attachments []models.Attachment
	if val := args.Get(0); val != nil {
		attachments = val.([]models.Attachment)
	}
	return attachments, args.Error(1)
}

type RequestRepositoryMock struct {
	mock.Mock
}

func (m *RequestRepositoryMock) Create(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error) {
	args := m.Called(ctx, senderID, receiverID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *RequestRepositoryMock) Get(ctx context.Context, requestID int) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *RequestRepositoryMock) UpdateStatus(ctx context.Context, requestID int, status string) error {
	args := m.Called(ctx, requestID, status)
	return args.Error(0)
}

func (m *RequestRepositoryMock) ListPendingFor(ctx context.Context, userID int) ([]models.FriendRequestView, error) {
	args := m.Called(ctx, userID)
	var views []models.FriendRequestView
	if val := args.Get(0); val != nil {
		views = val.([]models.FriendRequestView)
	}
	return views, args.Error(1)
}

func (m *RequestRepositoryMock) AreFriends(ctx context.Context, userID, otherID int) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

func (m *RequestRepositoryMock) ListFriends(ctx context.Context, userID int) ([]models.PublicProfile, error) {
	args := m.Called(ctx, userID)
	var profiles []models.PublicProfile
	if val := args.Get(0); val != nil {
		profiles = val.([]models.PublicProfile)
	}
	return profiles, args.Error(1)
}
