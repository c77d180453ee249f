package models

import "time"

// Friend request lifecycle states.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// FriendRequest connects two users once accepted.
type FriendRequest struct {
	ID         int       `db:"id" json:"id"`
	SenderID   int       `db:"sender_id" json:"sender_id"`
	ReceiverID int       `db:"receiver_id" json:"receiver_id"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FriendRequestView is a pending request with the sender's profile, as
// returned by the notifications endpoint.
type FriendRequestView struct {
	FriendRequest
	Sender PublicProfile `json:"sender"`
}
