package auth

import (
	"context"
	"strconv"

	"chat-backend/internal/realtime"
	"chat-backend/internal/repositories"
)

// SessionAuthenticator verifies websocket handshake tokens and resolves the
// caller's display profile for the realtime layer.
type SessionAuthenticator struct {
	tokens *TokenService
	users  repositories.UserRepository
}

// NewSessionAuthenticator constructs a SessionAuthenticator.
func NewSessionAuthenticator(tokens *TokenService, users repositories.UserRepository) *SessionAuthenticator {
	return &SessionAuthenticator{tokens: tokens, users: users}
}

// Authenticate validates the access token and loads the user's profile.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, token string) (realtime.SenderProfile, error) {
	userID, err := a.tokens.VerifyAccess(token)
	if err != nil {
		return realtime.SenderProfile{}, err
	}

	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return realtime.SenderProfile{}, err
	}

	return realtime.SenderProfile{
		ID:       strconv.Itoa(user.ID),
		FullName: user.FullName,
		Avatar:   user.AvatarURL,
	}, nil
}
