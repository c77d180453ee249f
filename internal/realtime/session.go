package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chat-backend/internal/observability"
)

// SessionState tracks the lifecycle of one connection.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosed
)

// Authenticator resolves a bearer token to a verified user profile. The
// session trusts the result without re-validating.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (SenderProfile, error)
}

// MessageStore persists the durable form of an inbound message. Persistence
// runs independently of the realtime broadcast; failures are the store's
// concern and never delay or block delivery.
type MessageStore interface {
	Save(ctx context.Context, msg StoredMessage) error
}

// SessionHandler upgrades websocket connections and drives one Session per
// connection.
type SessionHandler struct {
	relay *Relay
	auth  Authenticator
	store MessageStore
	log   zerolog.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(relay *Relay, auth Authenticator, store MessageStore, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		relay: relay,
		auth:  auth,
		store: store,
		log:   log.With().Str("component", "session").Logger(),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the request, upgrades it and registers the session.
func (h *SessionHandler) Handle(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	profile, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      profile.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}

	s := &session{
		conn:    &wsSender{conn: conn},
		info:    info,
		profile: profile,
		relay:   h.relay,
		store:   h.store,
		log:     h.log.With().Str("conn_id", info.ConnID).Str("user_id", profile.ID).Logger(),
		state:   StateConnecting,
	}
	s.open()
	go s.readLoop()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

// session is one live connection bound to an authenticated identity.
type session struct {
	conn    *wsSender
	info    ConnInfo
	profile SenderProfile
	relay   *Relay
	store   MessageStore
	log     zerolog.Logger

	mu    sync.Mutex
	state SessionState
}

// open transitions Connecting -> Open and registers the connection.
func (s *session) open() {
	s.mu.Lock()
	s.state = StateOpen
	s.mu.Unlock()

	s.relay.Connect(s.profile.ID, s.info.ConnID, s.conn)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	publishLifecycleEvent(s.info, "ws_connect", "")
}

// close transitions Open -> Closed exactly once and removes the registry
// entry synchronously. Closed is terminal: a reconnect creates a new
// session with a new connection handle.
func (s *session) close(reason string) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.relay.Disconnect(s.profile.ID, s.info.ConnID)
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	publishLifecycleEvent(s.info, "ws_disconnect", reason)
	_ = s.conn.Close()
}

func (s *session) readLoop() {
	for {
		_, data, err := s.conn.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			s.close(err.Error())
			return
		}
		s.handleInbound(data)
	}
}

type inboundEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type newMessagePayload struct {
	ChatID  string   `json:"chat_id"`
	Members []string `json:"members"`
	Content string   `json:"content"`
}

// newMessageEvent is the NEW_MESSAGE payload pushed to recipients.
type newMessageEvent struct {
	ChatID  string  `json:"chatId"`
	Message Message `json:"message"`
}

// handleInbound dispatches one client event. Malformed payloads are dropped
// with a warning; the connection stays open.
func (s *session) handleInbound(data []byte) {
	var evt inboundEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		s.log.Warn().Err(err).Msg("dropping undecodable event")
		return
	}

	switch evt.Event {
	case EventNewMessage:
		s.handleNewMessage(evt.Payload)
	default:
		s.log.Warn().Str("event", evt.Event).Msg("dropping unknown event")
	}
}

func (s *session) handleNewMessage(raw json.RawMessage) {
	var payload newMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.log.Warn().Err(err).Msg("dropping malformed message payload")
		return
	}
	if payload.ChatID == "" || payload.Content == "" {
		s.log.Warn().Str("chat_id", payload.ChatID).Msg("dropping message without chat id or content")
		return
	}

	rt, stored := NewMessageRecord(payload.ChatID, payload.Content, s.profile)

	// Durability and realtime delivery proceed independently; the broadcast
	// never waits on the store.
	go func() {
		if err := s.store.Save(context.Background(), stored); err != nil {
			s.log.Error().Err(err).Str("message_id", stored.ID).Msg("message persistence failed")
		}
	}()

	s.relay.Broadcast(EventNewMessage, newMessageEvent{ChatID: payload.ChatID, Message: rt}, payload.Members)
	s.relay.Broadcast(EventNewMessageAlert, MessageAlert{ChatID: payload.ChatID}, payload.Members)
}

// wsSender serializes writes to one gorilla connection.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsSender) Send(event string, payload any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(WireEvent{Event: event, Payload: payload})
}

func (w *wsSender) Close() error {
	return w.conn.Close()
}

func publishLifecycleEvent(info ConnInfo, event, reason string) {
	payload := map[string]any{
		"ws": map[string]any{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, observability.BuildHeaders(info.RequestID))
}
