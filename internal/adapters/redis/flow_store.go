// Package redis implements the transient auth stores on Redis: login
// flow state and the per-user refresh token.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stormgate/auth-api/internal/domain/auth"
	apperrors "github.com/stormgate/auth-api/internal/errors"
)

const flowKeyPrefix = "oidc_flow:"

// FlowStore persists login flows with Redis key expiry. Consume uses
// GETDEL so a state value can be redeemed at most once even under
// concurrent callbacks.
type FlowStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewFlowStore builds a flow store on the given client.
func NewFlowStore(client *redis.Client) *FlowStore {
	return &FlowStore{client: client, now: time.Now}
}

func flowKey(state string) string {
	return flowKeyPrefix + state
}

// Create stores the flow keyed by state, expiring at the flow deadline.
// States are single-writer: a colliding state is a conflict, never an
// overwrite.
func (s *FlowStore) Create(ctx context.Context, flow *auth.LoginFlow) error {
	ttl := flow.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return apperrors.Internal("login flow already expired")
	}
	raw, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("marshal login flow: %w", err)
	}
	stored, err := s.client.SetNX(ctx, flowKey(flow.State), raw, ttl).Result()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "store login flow")
	}
	if !stored {
		return apperrors.Conflict("login flow state already exists")
	}
	return nil
}

// Consume atomically fetches and deletes the flow for the state. A
// missing or already-consumed state returns not found.
func (s *FlowStore) Consume(ctx context.Context, state string) (*auth.LoginFlow, error) {
	raw, err := s.client.GetDel(ctx, flowKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("login flow not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "consume login flow")
	}
	var flow auth.LoginFlow
	if err := json.Unmarshal([]byte(raw), &flow); err != nil {
		return nil, fmt.Errorf("unmarshal login flow: %w", err)
	}
	return &flow, nil
}

// SweepExpired is a no-op: Redis key expiry already evicts stale flows.
func (s *FlowStore) SweepExpired(context.Context) error { return nil }
