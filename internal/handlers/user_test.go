package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/auth"
	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
	"chat-backend/internal/realtime"
)

func newTestTokens() *auth.TokenService {
	return auth.NewTokenService("test-secret", 15*time.Minute, 720*time.Hour)
}

func setupUserRouter(handler *UserHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/register", handler.Register)
	r.POST("/login", handler.Login)
	r.POST("/refresh-token", handler.Refresh)
	r.POST("/friend-request/send", handler.SendFriendRequest)
	r.PUT("/friend-request/accept", handler.AcceptFriendRequest)
	r.GET("/notifications", handler.Notifications)
	return r
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, val := range fields {
		require.NoError(t, writer.WriteField(key, val))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestRegisterSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil, nil, newTestTokens(), newTestRelay(), nil, nil)
	router := setupUserRouter(handler)

	userRepo.On("Create", mock.Anything, "alice", "Alice A", mock.AnythingOfType("string"), "").
		Return(models.User{ID: 4, Username: "alice", FullName: "Alice A"}, nil).Once()

	body, contentType := multipartBody(t, map[string]string{
		"full_name": "Alice A",
		"username":  "Alice",
		"password":  "secret",
	})
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestRegisterMissingFields(t *testing.T) {
	handler := NewUserHandler(new(mocks.UserRepositoryMock), nil, nil, newTestTokens(), newTestRelay(), nil, nil)
	router := setupUserRouter(handler)

	body, contentType := multipartBody(t, map[string]string{"username": "alice"})
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginSuccess(t *testing.T) {
	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)

	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil, nil, newTestTokens(), newTestRelay(), nil, nil)
	router := setupUserRouter(handler)

	userRepo.On("GetByUsername", mock.Anything, "alice").
		Return(models.User{ID: 4, Username: "alice", PasswordHash: hash}, nil).Once()
	userRepo.On("UpdateRefreshToken", mock.Anything, 4, mock.AnythingOfType("string")).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"username":"Alice","password":"secret"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])
	userRepo.AssertExpectations(t)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)

	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil, nil, newTestTokens(), newTestRelay(), nil, nil)
	router := setupUserRouter(handler)

	userRepo.On("GetByUsername", mock.Anything, "alice").
		Return(models.User{ID: 4, PasswordHash: hash}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"username":"alice","password":"wrong"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestRefreshSuccess(t *testing.T) {
	tokens := newTestTokens()
	_, refresh, err := tokens.IssuePair(7)
	require.NoError(t, err)

	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil, nil, tokens, newTestRelay(), nil, nil)
	router := setupUserRouter(handler)

	userRepo.On("GetByID", mock.Anything, 7).
		Return(models.User{ID: 7, RefreshToken: refresh}, nil).Once()
	userRepo.On("UpdateRefreshToken", mock.Anything, 7, mock.AnythingOfType("string")).Return(nil).Once()

	payload, err := json.Marshal(gin.H{"refresh_token": refresh})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/refresh-token", bytes.NewBuffer(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestRefreshRevokedToken(t *testing.T) {
	tokens := newTestTokens()
	_, refresh, err := tokens.IssuePair(7)
	require.NoError(t, err)

	userRepo := new(mocks.UserRepositoryMock)
	handler := NewUserHandler(userRepo, nil, nil, tokens, newTestRelay(), nil, nil)
	router := setupUserRouter(handler)

	// Stored token differs: the presented one was revoked by a later login.
	userRepo.On("GetByID", mock.Anything, 7).
		Return(models.User{ID: 7, RefreshToken: "different"}, nil).Once()

	payload, err := json.Marshal(gin.H{"refresh_token": refresh})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/refresh-token", bytes.NewBuffer(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestSendFriendRequestSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	requestRepo := new(mocks.RequestRepositoryMock)
	relay := newTestRelay()
	receiver := &recorderSender{}
	relay.Connect("2", "c2", receiver)
	handler := NewUserHandler(userRepo, requestRepo, nil, newTestTokens(), relay, nil, nil)
	router := setupUserRouter(handler)

	userRepo.On("GetByID", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	requestRepo.On("Create", mock.Anything, 1, 2).
		Return(models.FriendRequest{ID: 5, SenderID: 1, ReceiverID: 2, Status: models.RequestPending}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/friend-request/send", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{realtime.EventNewRequest}, receiver.received())
	userRepo.AssertExpectations(t)
	requestRepo.AssertExpectations(t)
}

func TestSendFriendRequestToSelf(t *testing.T) {
	handler := NewUserHandler(new(mocks.UserRepositoryMock), new(mocks.RequestRepositoryMock), nil, newTestTokens(), newTestRelay(), nil, nil)
	router := setupUserRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/friend-request/send", bytes.NewBufferString(`{"user_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptFriendRequestCreatesChat(t *testing.T) {
	requestRepo := new(mocks.RequestRepositoryMock)
	chatRepo := new(mocks.ChatRepositoryMock)
	relay := newTestRelay()
	sender := &recorderSender{}
	relay.Connect("2", "c2", sender)
	handler := NewUserHandler(new(mocks.UserRepositoryMock), requestRepo, chatRepo, newTestTokens(), relay, nil, nil)
	router := setupUserRouter(handler)

	requestRepo.On("Get", mock.Anything, 5).
		Return(models.FriendRequest{ID: 5, SenderID: 2, ReceiverID: 1, Status: models.RequestPending}, nil).Once()
	requestRepo.On("UpdateStatus", mock.Anything, 5, models.RequestAccepted).Return(nil).Once()
	chatRepo.On("CreateDirect", mock.Anything, 2, 1).Return(models.Chat{ID: 10}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/friend-request/accept", bytes.NewBufferString(`{"request_id":5,"accept":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{realtime.EventRefetchChats}, sender.received())
	requestRepo.AssertExpectations(t)
	chatRepo.AssertExpectations(t)
}

func TestRejectFriendRequest(t *testing.T) {
	requestRepo := new(mocks.RequestRepositoryMock)
	handler := NewUserHandler(new(mocks.UserRepositoryMock), requestRepo, new(mocks.ChatRepositoryMock), newTestTokens(), newTestRelay(), nil, nil)
	router := setupUserRouter(handler)

	requestRepo.On("Get", mock.Anything, 5).
		Return(models.FriendRequest{ID: 5, SenderID: 2, ReceiverID: 1, Status: models.RequestPending}, nil).Once()
	requestRepo.On("UpdateStatus", mock.Anything, 5, models.RequestRejected).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/friend-request/accept", bytes.NewBufferString(`{"request_id":5,"accept":false}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	requestRepo.AssertExpectations(t)
}

func TestAcceptFriendRequestWrongReceiver(t *testing.T) {
	requestRepo := new(mocks.RequestRepositoryMock)
	handler := NewUserHandler(new(mocks.UserRepositoryMock), requestRepo, new(mocks.ChatRepositoryMock), newTestTokens(), newTestRelay(), nil, nil)
	router := setupUserRouter(handler)

	requestRepo.On("Get", mock.Anything, 5).
		Return(models.FriendRequest{ID: 5, SenderID: 1, ReceiverID: 3, Status: models.RequestPending}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/friend-request/accept", bytes.NewBufferString(`{"request_id":5,"accept":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	requestRepo.AssertExpectations(t)
}

func TestNotificationsSuccess(t *testing.T) {
	requestRepo := new(mocks.RequestRepositoryMock)
	handler := NewUserHandler(new(mocks.UserRepositoryMock), requestRepo, nil, newTestTokens(), newTestRelay(), nil, nil)
	router := setupUserRouter(handler)

	requestRepo.On("ListPendingFor", mock.Anything, 1).
		Return([]models.FriendRequestView{{FriendRequest: models.FriendRequest{ID: 5, SenderID: 2, ReceiverID: 1}}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	requestRepo.AssertExpectations(t)
}
