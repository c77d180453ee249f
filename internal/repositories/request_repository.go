package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/models"
)

var (
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrDuplicateRequest = errors.New("friend request already sent")
)

// RequestRepository abstracts friend-request persistence.
type RequestRepository interface {
	Create(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error)
	Get(ctx context.Context, requestID int) (models.FriendRequest, error)
	UpdateStatus(ctx context.Context, requestID int, status string) error
	ListPendingFor(ctx context.Context, userID int) ([]models.FriendRequestView, error)
	AreFriends(ctx context.Context, userID, otherID int) (bool, error)
	ListFriends(ctx context.Context, userID int) ([]models.PublicProfile, error)
}

// RequestRepo is a sqlx implementation of RequestRepository.
type RequestRepo struct {
	db *sqlx.DB
}

// NewRequestRepo constructs a RequestRepo.
func NewRequestRepo(db *sqlx.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

// Create inserts a pending request.
func (r *RequestRepo) Create(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO friend_requests (sender_id, receiver_id) VALUES ($1, $2)
         RETURNING id, sender_id, receiver_id, status, created_at`,
		senderID, receiverID).StructScan(&req)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return models.FriendRequest{}, ErrDuplicateRequest
		}
		return models.FriendRequest{}, err
	}
	return req, nil
}

// Get fetches one request.
func (r *RequestRepo) Get(ctx context.Context, requestID int) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT id, sender_id, receiver_id, status, created_at FROM friend_requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrRequestNotFound
	}
	return req, err
}

// UpdateStatus transitions a request to accepted or rejected.
func (r *RequestRepo) UpdateStatus(ctx context.Context, requestID int, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE friend_requests SET status=$2 WHERE id=$1`, requestID, status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// ListPendingFor returns pending requests addressed to the user, with the
// sender's profile.
func (r *RequestRepo) ListPendingFor(ctx context.Context, userID int) ([]models.FriendRequestView, error) {
	type row struct {
		models.FriendRequest
		models.PublicProfile `db:"sender"`
	}
	var rows []row
	err := r.db.SelectContext(ctx, &rows,
		`SELECT fr.id, fr.sender_id, fr.receiver_id, fr.status, fr.created_at,
                u.id AS "sender.id", u.username AS "sender.username",
                u.full_name AS "sender.full_name", u.avatar_url AS "sender.avatar_url"
         FROM friend_requests fr JOIN users u ON u.id = fr.sender_id
         WHERE fr.receiver_id=$1 AND fr.status='pending' ORDER BY fr.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.FriendRequestView, 0, len(rows))
	for _, item := range rows {
		views = append(views, models.FriendRequestView{FriendRequest: item.FriendRequest, Sender: item.PublicProfile})
	}
	return views, nil
}

// AreFriends reports whether an accepted request links the two users in
// either direction.
func (r *RequestRepo) AreFriends(ctx context.Context, userID, otherID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM friend_requests
          WHERE status='accepted'
            AND ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)))`,
		userID, otherID)
	return exists, err
}

// ListFriends returns the profiles of every accepted counterpart.
func (r *RequestRepo) ListFriends(ctx context.Context, userID int) ([]models.PublicProfile, error) {
	var profiles []models.PublicProfile
	err := r.db.SelectContext(ctx, &profiles,
		`SELECT u.id, u.username, u.full_name, u.avatar_url FROM users u
         JOIN friend_requests fr
           ON (fr.sender_id = u.id AND fr.receiver_id=$1)
           OR (fr.receiver_id = u.id AND fr.sender_id=$1)
         WHERE fr.status='accepted' ORDER BY u.username`, userID)
	return profiles, err
}
