package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
	"chat-backend/internal/realtime"
)

// recorderSender captures relay deliveries for one fake connection.
type recorderSender struct {
	mu     sync.Mutex
	events []string
}

func (r *recorderSender) Send(event string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorderSender) Close() error { return nil }

func (r *recorderSender) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func newTestRelay() *realtime.Relay {
	return realtime.NewRelay(realtime.NewRegistry(), zerolog.Nop())
}

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/newgroup", handler.NewGroup)
	r.GET("/getmychats", handler.MyChats)
	r.PUT("/addmembers", handler.AddMembers)
	r.PUT("/removemember", handler.RemoveMember)
	r.DELETE("/leavegroup/:chat_id", handler.LeaveGroup)
	r.POST("/chats/:chat_id/messages", handler.PostMessage)
	r.PUT("/renamegroup/:chat_id", handler.RenameGroup)
	r.DELETE("/deletechat/:chat_id", handler.DeleteChat)
	r.GET("/getmessages/:chat_id", handler.Messages)
	return r
}

func TestNewGroupSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	relay := newTestRelay()
	invited := &recorderSender{}
	relay.Connect("2", "c2", invited)
	handler := NewChatHandler(chatRepo, nil, nil, relay, nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("CreateGroup", mock.Anything, "weekend", 1, []int{2, 3, 1}).
		Return(models.Chat{ID: 9, Name: "weekend", IsGroup: true, CreatorID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/newgroup", bytes.NewBufferString(`{"name":"weekend","members":[2,3]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{realtime.EventAlert, realtime.EventRefetchChats}, invited.received())
	chatRepo.AssertExpectations(t)
}

func TestNewGroupTooFewMembers(t *testing.T) {
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), nil, nil, newTestRelay(), nil, 5)
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/newgroup", bytes.NewBufferString(`{"name":"g","members":[2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMyChatsRepoError(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, newTestRelay(), nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("ListForUser", mock.Anything, 1).Return(([]models.ChatSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/getmychats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestAddMembersSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	relay := newTestRelay()
	added := &recorderSender{}
	relay.Connect("4", "c4", added)
	handler := NewChatHandler(chatRepo, nil, userRepo, relay, nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, 9).Return(models.Chat{ID: 9, Name: "g", IsGroup: true, CreatorID: 1}, nil).Once()
	chatRepo.On("MemberIDs", mock.Anything, 9).Return([]int{1, 2, 3}, nil).Once()
	userRepo.On("GetProfiles", mock.Anything, []int{4}).Return([]models.PublicProfile{{ID: 4, FullName: "Dana"}}, nil).Once()
	chatRepo.On("AddMembers", mock.Anything, 9, []int{4}).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/addmembers", bytes.NewBufferString(`{"chat_id":9,"members":[4]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{realtime.EventAlert, realtime.EventRefetchChats}, added.received())
	chatRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestAddMembersNotCreator(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, new(mocks.UserRepositoryMock), newTestRelay(), nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, 9).Return(models.Chat{ID: 9, IsGroup: true, CreatorID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/addmembers", bytes.NewBufferString(`{"chat_id":9,"members":[4]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestRemoveMemberKeepsFloor(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, new(mocks.UserRepositoryMock), newTestRelay(), nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, 9).Return(models.Chat{ID: 9, IsGroup: true, CreatorID: 1}, nil).Once()
	chatRepo.On("MemberIDs", mock.Anything, 9).Return([]int{1, 2, 3}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/removemember", bytes.NewBufferString(`{"chat_id":9,"user_id":3}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestLeaveGroupCreatorRefused(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, new(mocks.UserRepositoryMock), newTestRelay(), nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, 9).Return(models.Chat{ID: 9, IsGroup: true, CreatorID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/leavegroup/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestPostMessageSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	relay := newTestRelay()
	friend := &recorderSender{}
	relay.Connect("2", "c2", friend)
	handler := NewChatHandler(chatRepo, messageRepo, userRepo, relay, nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	chatRepo.On("MemberIDs", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	userRepo.On("GetByID", mock.Anything, 1).Return(models.User{ID: 1, FullName: "Me"}, nil).Once()
	messageRepo.On("Create", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.ChatID == 5 && m.SenderID == 1 && m.Content == "hi" && m.ID != ""
	})).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{realtime.EventNewMessage, realtime.EventNewMessageAlert}, friend.received())

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestPostMessageNotMember(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), newTestRelay(), nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("IsMember", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestRenameGroupSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	relay := newTestRelay()
	member := &recorderSender{}
	relay.Connect("2", "c2", member)
	handler := NewChatHandler(chatRepo, nil, nil, relay, nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, 9).Return(models.Chat{ID: 9, IsGroup: true, CreatorID: 1}, nil).Once()
	chatRepo.On("MemberIDs", mock.Anything, 9).Return([]int{1, 2, 3}, nil).Once()
	chatRepo.On("Rename", mock.Anything, 9, "renamed").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/renamegroup/9", bytes.NewBufferString(`{"name":"renamed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{realtime.EventRefetchChats}, member.received())
	chatRepo.AssertExpectations(t)
}

func TestDeleteChatGroupNotCreator(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, newTestRelay(), nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, 9).Return(models.Chat{ID: 9, IsGroup: true, CreatorID: 2}, nil).Once()
	chatRepo.On("MemberIDs", mock.Anything, 9).Return([]int{1, 2, 3}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/deletechat/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestMessagesInvalidChatID(t *testing.T) {
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock), nil, newTestRelay(), nil, 5)
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/getmessages/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessagesSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, newTestRelay(), nil, 5)
	router := setupChatRouter(handler)

	chatRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	chatRepo.On("MemberIDs", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	messageRepo.On("ListPage", mock.Anything, 5, 2).Return([]models.MessageWithSender{}, 3, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/getmessages/5?page=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 3, resp["total_pages"])
	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}
