package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/stormgate/auth-api/internal/errors"
)

const refreshKeyPrefix = "refresh_token_"

// RefreshTokenStore keeps one valid refresh token per user. Setting a
// new token replaces the old key, which revokes any previously issued
// refresh token for that user.
type RefreshTokenStore struct {
	client *redis.Client
}

// NewRefreshTokenStore builds a refresh token store on the given client.
func NewRefreshTokenStore(client *redis.Client) *RefreshTokenStore {
	return &RefreshTokenStore{client: client}
}

func refreshKey(userID string) string {
	return refreshKeyPrefix + userID
}

// Set records the user's current refresh token with the given lifetime.
func (s *RefreshTokenStore) Set(ctx context.Context, userID, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshKey(userID), token, ttl).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "store refresh token")
	}
	return nil
}

// Get returns the user's current refresh token, or not found if none.
func (s *RefreshTokenStore) Get(ctx context.Context, userID string) (string, error) {
	token, err := s.client.Get(ctx, refreshKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.NotFound("refresh token not found")
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "read refresh token")
	}
	return token, nil
}

// Delete revokes the user's refresh token. Deleting a missing key is
// not an error.
func (s *RefreshTokenStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "delete refresh token")
	}
	return nil
}
