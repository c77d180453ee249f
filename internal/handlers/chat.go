package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"chat-backend/internal/models"
	"chat-backend/internal/realtime"
	"chat-backend/internal/repositories"
	"chat-backend/internal/storage"
)

const (
	maxGroupMembers = 100
	minGroupMembers = 3
)

// ChatHandler manages chats, groups, messages and attachments.
type ChatHandler struct {
	chats          repositories.ChatRepository
	messages       repositories.MessageRepository
	users          repositories.UserRepository
	relay          *realtime.Relay
	uploads        *storage.LocalStore
	maxAttachments int
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats repositories.ChatRepository, messages repositories.MessageRepository, users repositories.UserRepository, relay *realtime.Relay, uploads *storage.LocalStore, maxAttachments int) *ChatHandler {
	return &ChatHandler{
		chats:          chats,
		messages:       messages,
		users:          users,
		relay:          relay,
		uploads:        uploads,
		maxAttachments: maxAttachments,
	}
}

// NewGroup creates a group chat with at least two invited members.
func (h *ChatHandler) NewGroup(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Members []int  `json:"members" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Members) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group must have at least three members"})
		return
	}

	userID := c.GetInt("userID")
	allMembers := lo.Uniq(append(req.Members, userID))

	chat, err := h.chats.CreateGroup(c.Request.Context(), req.Name, userID, allMembers)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}

	h.relay.Broadcast(realtime.EventAlert, gin.H{"chatId": strconv.Itoa(chat.ID), "message": fmt.Sprintf("Welcome to %s group", chat.Name)}, identities(allMembers))
	h.relay.Broadcast(realtime.EventRefetchChats, nil, identities(req.Members))
	c.JSON(http.StatusCreated, gin.H{"chat": chat})
}

// MyChats lists every chat visible to the caller.
func (h *ChatHandler) MyChats(c *gin.Context) {
	chats, err := h.chats.ListForUser(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// MyGroups lists groups created by the caller.
func (h *ChatHandler) MyGroups(c *gin.Context) {
	groups, err := h.chats.ListGroupsCreatedBy(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// AddMembers adds users to a group. Creator only, capped at 100 members.
func (h *ChatHandler) AddMembers(c *gin.Context) {
	var req struct {
		ChatID  int   `json:"chat_id" binding:"required"`
		Members []int `json:"members" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, members, ok := h.loadGroupForCreator(c, req.ChatID)
	if !ok {
		return
	}

	newMembers := lo.Without(lo.Uniq(req.Members), members...)
	if len(members)+len(newMembers) > maxGroupMembers {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group members limit reached"})
		return
	}

	profiles, err := h.users.GetProfiles(c.Request.Context(), newMembers)
	if err != nil || len(profiles) != len(newMembers) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown member"})
		return
	}
	if err := h.chats.AddMembers(c.Request.Context(), chat.ID, newMembers); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add members"})
		return
	}

	names := strings.Join(lo.Map(profiles, func(p models.PublicProfile, _ int) string { return p.FullName }), ", ")
	all := append(members, newMembers...)
	h.relay.Broadcast(realtime.EventAlert, gin.H{"chatId": strconv.Itoa(chat.ID), "message": fmt.Sprintf("%s has been added to the group", names)}, identities(all))
	h.relay.Broadcast(realtime.EventRefetchChats, nil, identities(all))
	c.Status(http.StatusNoContent)
}

// RemoveMember removes one user from a group. Creator only; the group keeps
// a floor of three members.
func (h *ChatHandler) RemoveMember(c *gin.Context) {
	var req struct {
		ChatID int `json:"chat_id" binding:"required"`
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, members, ok := h.loadGroupForCreator(c, req.ChatID)
	if !ok {
		return
	}
	if len(members) <= minGroupMembers {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group must have at least three members"})
		return
	}
	if !lo.Contains(members, req.UserID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is not a member"})
		return
	}

	removed, err := h.users.GetByID(c.Request.Context(), req.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err := h.chats.RemoveMember(c.Request.Context(), chat.ID, req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove member"})
		return
	}

	remaining := lo.Without(members, req.UserID)
	h.relay.Broadcast(realtime.EventAlert, gin.H{"chatId": strconv.Itoa(chat.ID), "message": fmt.Sprintf("%s has been removed from the group", removed.FullName)}, identities(remaining))
	h.relay.Broadcast(realtime.EventRefetchChats, nil, identities(remaining))
	c.Status(http.StatusNoContent)
}

// LeaveGroup removes the caller from a group. The creator cannot leave, and
// the group keeps a floor of three members.
func (h *ChatHandler) LeaveGroup(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		h.chatNotFound(c, err)
		return
	}
	if !chat.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group chat"})
		return
	}
	if chat.CreatorID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "creator cannot leave the group"})
		return
	}

	members, err := h.chats.MemberIDs(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}
	if !lo.Contains(members, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}
	if len(members)-1 < minGroupMembers {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group must have at least three members"})
		return
	}

	if err := h.chats.RemoveMember(c.Request.Context(), chatID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave group"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	name := "A member"
	if err == nil {
		name = user.FullName
	}
	remaining := lo.Without(members, userID)
	h.relay.Broadcast(realtime.EventAlert, gin.H{"chatId": strconv.Itoa(chatID), "message": fmt.Sprintf("User %s has left the group", name)}, identities(remaining))
	c.Status(http.StatusNoContent)
}

// PostMessage stores a message sent over HTTP and relays it to the chat's
// members, mirroring what the socket path does.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	members, ok := h.requireMembership(c, chatID, userID)
	if !ok {
		return
	}

	sender, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sender"})
		return
	}

	profile := realtime.SenderProfile{ID: strconv.Itoa(sender.ID), FullName: sender.FullName, Avatar: sender.AvatarURL}
	rt, stored := realtime.NewMessageRecord(strconv.Itoa(chatID), req.Content, profile)

	if err := h.messages.Create(c.Request.Context(), models.Message{
		ID:        stored.ID,
		ChatID:    chatID,
		SenderID:  userID,
		Content:   stored.Content,
		CreatedAt: stored.CreatedAt,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.relay.Broadcast(realtime.EventNewMessage, gin.H{"chatId": rt.ChatID, "message": rt}, identities(members))
	h.relay.Broadcast(realtime.EventNewMessageAlert, realtime.MessageAlert{ChatID: rt.ChatID}, identities(members))
	c.JSON(http.StatusCreated, gin.H{"message": rt})
}

// SendAttachments uploads one to five files as a message and relays it.
func (h *ChatHandler) SendAttachments(c *gin.Context) {
	chatID, err := strconv.Atoi(c.PostForm("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["attachments"]
	if len(files) < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please upload attachments"})
		return
	}
	if len(files) > h.maxAttachments {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("files can't be more than %d", h.maxAttachments)})
		return
	}

	userID := c.GetInt("userID")
	members, ok := h.requireMembership(c, chatID, userID)
	if !ok {
		return
	}

	sender, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sender"})
		return
	}

	profile := realtime.SenderProfile{ID: strconv.Itoa(sender.ID), FullName: sender.FullName, Avatar: sender.AvatarURL}
	rt, stored := realtime.NewMessageRecord(strconv.Itoa(chatID), "", profile)

	if err := h.messages.Create(c.Request.Context(), models.Message{
		ID:        stored.ID,
		ChatID:    chatID,
		SenderID:  userID,
		CreatedAt: stored.CreatedAt,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	attachments := make([]models.Attachment, 0, len(files))
	for _, file := range files {
		saved, err := h.uploads.Save(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store attachment"})
			return
		}
		attachments = append(attachments, models.Attachment{
			MessageID:   stored.ID,
			FileName:    saved.FileName,
			URL:         saved.URL,
			ContentType: saved.ContentType,
			SizeBytes:   saved.SizeBytes,
		})
	}
	if err := h.messages.AddAttachments(c.Request.Context(), attachments); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store attachments"})
		return
	}

	payload := gin.H{"chatId": rt.ChatID, "message": rt, "attachments": attachments}
	h.relay.Broadcast(realtime.EventNewAttachment, payload, identities(members))
	h.relay.Broadcast(realtime.EventNewMessageAlert, realtime.MessageAlert{ChatID: rt.ChatID}, identities(members))
	c.JSON(http.StatusCreated, gin.H{"message": rt, "attachments": attachments})
}

// ChatDetails returns one chat, optionally populated with member profiles.
func (h *ChatHandler) ChatDetails(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	if _, ok := h.requireMembership(c, chatID, c.GetInt("userID")); !ok {
		return
	}

	if c.Query("populate") == "true" {
		details, err := h.chats.GetDetails(c.Request.Context(), chatID)
		if err != nil {
			h.chatNotFound(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chat": details})
		return
	}

	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		h.chatNotFound(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

// RenameGroup renames a group. Creator only.
func (h *ChatHandler) RenameGroup(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, members, ok := h.loadGroupForCreator(c, chatID)
	if !ok {
		return
	}
	if err := h.chats.Rename(c.Request.Context(), chat.ID, req.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rename group"})
		return
	}

	h.relay.Broadcast(realtime.EventRefetchChats, nil, identities(members))
	c.JSON(http.StatusOK, gin.H{"name": req.Name})
}

// DeleteChat deletes a chat. Groups may only be deleted by their creator;
// direct chats by either member.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		h.chatNotFound(c, err)
		return
	}

	members, err := h.chats.MemberIDs(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}
	if chat.IsGroup && chat.CreatorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator can delete the group"})
		return
	}
	if !chat.IsGroup && !lo.Contains(members, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	if err := h.chats.Delete(c.Request.Context(), chatID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat"})
		return
	}

	h.relay.Broadcast(realtime.EventRefetchChats, nil, identities(members))
	c.Status(http.StatusNoContent)
}

// Messages returns one page of chat history.
func (h *ChatHandler) Messages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	if _, ok := h.requireMembership(c, chatID, c.GetInt("userID")); !ok {
		return
	}

	msgs, totalPages, err := h.messages.ListPage(c.Request.Context(), chatID, page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "total_pages": totalPages})
}

func (h *ChatHandler) requireMembership(c *gin.Context, chatID, userID int) ([]int, bool) {
	member, err := h.chats.IsMember(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return nil, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return nil, false
	}

	members, err := h.chats.MemberIDs(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return nil, false
	}
	return members, true
}

func (h *ChatHandler) loadGroupForCreator(c *gin.Context, chatID int) (models.Chat, []int, bool) {
	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		h.chatNotFound(c, err)
		return models.Chat{}, nil, false
	}
	if !chat.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group chat"})
		return models.Chat{}, nil, false
	}
	if chat.CreatorID != c.GetInt("userID") {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator may do this"})
		return models.Chat{}, nil, false
	}

	members, err := h.chats.MemberIDs(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return models.Chat{}, nil, false
	}
	return chat, members, true
}

func (h *ChatHandler) chatNotFound(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, repositories.ErrChatNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": "chat not found"})
}
