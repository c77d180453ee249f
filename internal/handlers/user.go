package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/realtime"
	"chat-backend/internal/repositories"
	"chat-backend/internal/storage"
	"chat-backend/internal/telemetry"
)

// UserHandler manages accounts, sessions and friend requests.
type UserHandler struct {
	users    repositories.UserRepository
	requests repositories.RequestRepository
	chats    repositories.ChatRepository
	tokens   *auth.TokenService
	relay    *realtime.Relay
	uploads  *storage.LocalStore
	audit    *telemetry.AuditEmitter
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users repositories.UserRepository, requests repositories.RequestRepository, chats repositories.ChatRepository, tokens *auth.TokenService, relay *realtime.Relay, uploads *storage.LocalStore, audit *telemetry.AuditEmitter) *UserHandler {
	return &UserHandler{
		users:    users,
		requests: requests,
		chats:    chats,
		tokens:   tokens,
		relay:    relay,
		uploads:  uploads,
		audit:    audit,
	}
}

// Register creates an account. Accepts multipart form data with an optional
// avatar file.
func (h *UserHandler) Register(c *gin.Context) {
	fullName := strings.TrimSpace(c.PostForm("full_name"))
	username := strings.ToLower(strings.TrimSpace(c.PostForm("username")))
	password := c.PostForm("password")
	if fullName == "" || username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "full_name, username and password are required"})
		return
	}

	avatarURL := ""
	if file, err := c.FormFile("avatar"); err == nil {
		saved, err := h.uploads.Save(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store avatar"})
			return
		}
		avatarURL = saved.URL
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	user, err := h.users.Create(c.Request.Context(), username, fullName, hash, avatarURL)
	if err != nil {
		if errors.Is(err, repositories.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "user registered", requestIDFromContext(c), nil)
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login verifies credentials and issues a token pair.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), strings.ToLower(req.Username))
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	access, refresh, err := h.tokens.IssuePair(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue tokens"})
		return
	}
	if err := h.users.UpdateRefreshToken(c.Request.Context(), user.ID, refresh); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist session"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "user logged in", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{
		"user":          user,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// Logout invalidates the stored refresh token.
func (h *UserHandler) Logout(c *gin.Context) {
	userID := c.GetInt("userID")
	if err := h.users.UpdateRefreshToken(c.Request.Context(), userID, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log out"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Refresh exchanges a valid refresh token for a new pair.
func (h *UserHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := h.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil || user.RefreshToken != req.RefreshToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token is expired or revoked"})
		return
	}

	access, refresh, err := h.tokens.IssuePair(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue tokens"})
		return
	}
	if err := h.users.UpdateRefreshToken(c.Request.Context(), user.ID, refresh); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": access, "refresh_token": refresh})
}

// ChangePassword verifies the old password and stores a new hash.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.OldPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect old password"})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}
	if err := h.users.UpdatePassword(c.Request.Context(), userID, hash); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change password"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "password changed", requestIDFromContext(c), auditUserID(c))
	c.Status(http.StatusNoContent)
}

// CurrentUser returns the authenticated user.
func (h *UserHandler) CurrentUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateAccount changes the display name.
func (h *UserHandler) UpdateAccount(c *gin.Context) {
	var req struct {
		FullName string `json:"full_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if err := h.users.UpdateAccount(c.Request.Context(), userID, req.FullName); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update account"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateAvatar stores a new avatar file.
func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	file, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}

	saved, err := h.uploads.Save(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store avatar"})
		return
	}

	userID := c.GetInt("userID")
	if err := h.users.UpdateAvatar(c.Request.Context(), userID, saved.URL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update avatar"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar_url": saved.URL})
}

// Search finds users by username prefix.
func (h *UserHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("username"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username query is required"})
		return
	}

	profiles, err := h.users.Search(c.Request.Context(), query, c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": profiles})
}

// SendFriendRequest creates a pending request and notifies the receiver in
// real time.
func (h *UserHandler) SendFriendRequest(c *gin.Context) {
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	senderID := c.GetInt("userID")
	if senderID == req.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot befriend yourself"})
		return
	}
	if _, err := h.users.GetByID(c.Request.Context(), req.UserID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	request, err := h.requests.Create(c.Request.Context(), senderID, req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateRequest) {
			c.JSON(http.StatusConflict, gin.H{"error": "request already sent"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create request"})
		return
	}

	h.relay.Broadcast(realtime.EventNewRequest, gin.H{"request_id": request.ID, "sender_id": senderID}, identities([]int{req.UserID}))
	c.JSON(http.StatusCreated, gin.H{"request": request})
}

// AcceptFriendRequest accepts or rejects a pending request. Accepting
// creates the direct chat and prompts both sides to refetch.
func (h *UserHandler) AcceptFriendRequest(c *gin.Context) {
	var req struct {
		RequestID int  `json:"request_id" binding:"required"`
		Accept    bool `json:"accept"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	request, err := h.requests.Get(c.Request.Context(), req.RequestID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRequestNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "request not found"})
		return
	}
	if request.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your request"})
		return
	}
	if request.Status != models.RequestPending {
		c.JSON(http.StatusConflict, gin.H{"error": "request already handled"})
		return
	}

	if !req.Accept {
		if err := h.requests.UpdateStatus(c.Request.Context(), request.ID, models.RequestRejected); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update request"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": models.RequestRejected})
		return
	}

	if err := h.requests.UpdateStatus(c.Request.Context(), request.ID, models.RequestAccepted); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update request"})
		return
	}
	chat, err := h.chats.CreateDirect(c.Request.Context(), request.SenderID, request.ReceiverID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "friend request accepted", requestIDFromContext(c), auditUserID(c))
	h.relay.Broadcast(realtime.EventRefetchChats, nil, identities([]int{request.SenderID, request.ReceiverID}))
	c.JSON(http.StatusOK, gin.H{"status": models.RequestAccepted, "chat_id": chat.ID})
}

// Notifications lists pending friend requests for the caller.
func (h *UserHandler) Notifications(c *gin.Context) {
	requests, err := h.requests.ListPendingFor(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// Friends lists accepted friends.
func (h *UserHandler) Friends(c *gin.Context) {
	friends, err := h.requests.ListFriends(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friends"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}
