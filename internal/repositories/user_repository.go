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
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// UserRepository abstracts user persistence.
type UserRepository interface {
	Create(ctx context.Context, username, fullName, passwordHash, avatarURL string) (models.User, error)
	GetByID(ctx context.Context, userID int) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetProfiles(ctx context.Context, userIDs []int) ([]models.PublicProfile, error)
	Search(ctx context.Context, query string, excludeID int) ([]models.PublicProfile, error)
	UpdateRefreshToken(ctx context.Context, userID int, token string) error
	UpdateAccount(ctx context.Context, userID int, fullName string) error
	UpdateAvatar(ctx context.Context, userID int, avatarURL string) error
	UpdatePassword(ctx context.Context, userID int, passwordHash string) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user.
func (r *UserRepo) Create(ctx context.Context, username, fullName, passwordHash, avatarURL string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (username, full_name, password_hash, avatar_url) VALUES ($1, $2, $3, $4)
         RETURNING id, username, full_name, password_hash, avatar_url, refresh_token, created_at`,
		username, fullName, passwordHash, avatarURL).StructScan(&user)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, err
	}
	return user, nil
}

// GetByID fetches one user by id.
func (r *UserRepo) GetByID(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, username, full_name, password_hash, avatar_url, refresh_token, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetByUsername fetches one user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, username, full_name, password_hash, avatar_url, refresh_token, created_at FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetProfiles returns public profiles for the given user ids.
func (r *UserRepo) GetProfiles(ctx context.Context, userIDs []int) ([]models.PublicProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, username, full_name, avatar_url FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var profiles []models.PublicProfile
	err = r.db.SelectContext(ctx, &profiles, query, args...)
	return profiles, err
}

// Search finds users by username prefix, excluding the caller.
func (r *UserRepo) Search(ctx context.Context, query string, excludeID int) ([]models.PublicProfile, error) {
	var profiles []models.PublicProfile
	err := r.db.SelectContext(ctx, &profiles,
		`SELECT id, username, full_name, avatar_url FROM users WHERE username ILIKE $1 || '%' AND id <> $2 ORDER BY username LIMIT 20`,
		query, excludeID)
	return profiles, err
}

// UpdateRefreshToken stores the active refresh token; an empty token logs
// the user out everywhere.
func (r *UserRepo) UpdateRefreshToken(ctx context.Context, userID int, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET refresh_token=$2 WHERE id=$1`, userID, token)
	return err
}

// UpdateAccount changes the display name.
func (r *UserRepo) UpdateAccount(ctx context.Context, userID int, fullName string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET full_name=$2 WHERE id=$1`, userID, fullName)
	return err
}

// UpdateAvatar changes the avatar URL.
func (r *UserRepo) UpdateAvatar(ctx context.Context, userID int, avatarURL string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET avatar_url=$2 WHERE id=$1`, userID, avatarURL)
	return err
}

// UpdatePassword stores a new password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, userID, passwordHash)
	return err
}
