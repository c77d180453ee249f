package realtime

// Wire event names. These are case-sensitive string constants shared with
// every connected client; changing one is a breaking protocol change.
const (
	EventNewMessage      = "NEW_MESSAGE"
	EventNewMessageAlert = "NEW_MESSAGE_ALERT"
	EventAlert           = "ALERT"
	EventRefetchChats    = "REFETCH_CHATS"
	EventNewRequest      = "NEW_REQUEST"
	EventNewAttachment   = "NEW_ATTACHMENT"
)

// WireEvent is the envelope written to and read from a websocket connection.
type WireEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}
