package models

import "time"

// User is a registered account. PasswordHash and RefreshToken never leave
// the service.
type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	FullName     string    `db:"full_name" json:"full_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	AvatarURL    string    `db:"avatar_url" json:"avatar_url,omitempty"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PublicProfile is the view of a user embedded in API responses.
type PublicProfile struct {
	ID        int    `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	FullName  string `db:"full_name" json:"full_name"`
	AvatarURL string `db:"avatar_url" json:"avatar_url,omitempty"`
}
