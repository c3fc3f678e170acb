package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domainauth "github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
	apperrors "github.com/stormgate/auth-api/internal/errors"
	"github.com/stormgate/auth-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider  = (*MockIdentityProvider)(nil)
	_ ports.FederatedVerifier = (*MockFederatedVerifier)(nil)
	_ ports.FlowStore         = (*MemoryFlowStore)(nil)
	_ ports.RefreshTokenStore = (*MemoryRefreshStore)(nil)
	_ ports.UserRepository    = (*MemoryUserRepo)(nil)
	_ ports.Mailer            = (*RecordingMailer)(nil)
)

// MockIdentityProvider simulates the federated provider with
// deterministic state/nonce handling.
type MockIdentityProvider struct {
	BeginFunc    func(ctx context.Context, application domainauth.Application, returnTo string) (*domainauth.LoginFlow, string, error)
	ExchangeFunc func(ctx context.Context, code string, flow *domainauth.LoginFlow) (domainauth.Identity, error)

	AuthURL         string
	DefaultIdentity domainauth.Identity

	callCount int
}

// NewMockIdentityProvider creates a MockIdentityProvider with sensible defaults.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		AuthURL: "https://mock-idp/authorize",
		DefaultIdentity: domainauth.Identity{
			SubjectID: "mock-subject-1",
			Email:     "mock.user@example.com",
			Name:      "Mock User",
		},
	}
}

func (m *MockIdentityProvider) Begin(ctx context.Context, application domainauth.Application, returnTo string) (*domainauth.LoginFlow, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, application, returnTo)
	}
	m.callCount++
	now := time.Now()
	flow := &domainauth.LoginFlow{
		State:        fmt.Sprintf("state-%d", m.callCount),
		Nonce:        fmt.Sprintf("nonce-%d", m.callCount),
		CodeVerifier: fmt.Sprintf("verifier-%d", m.callCount),
		Application:  application,
		ReturnTo:     returnTo,
		CreatedAt:    now,
		ExpiresAt:    now.Add(10 * time.Minute),
	}
	return flow, m.AuthURL + "?state=" + flow.State, nil
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code string, flow *domainauth.LoginFlow) (domainauth.Identity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code, flow)
	}
	if code == "" {
		return domainauth.Identity{}, apperrors.Unauthorized("empty authorization code")
	}
	return m.DefaultIdentity, nil
}

// MockFederatedVerifier validates bearer tokens from a fixed table.
type MockFederatedVerifier struct {
	Identities map[string]domainauth.Identity
}

func (m *MockFederatedVerifier) Verify(_ context.Context, rawToken string) (domainauth.Identity, error) {
	if id, ok := m.Identities[rawToken]; ok {
		return id, nil
	}
	return domainauth.Identity{}, apperrors.Unauthorized("invalid federated token")
}

// MemoryFlowStore is an in-memory FlowStore with a real expiry sweep.
type MemoryFlowStore struct {
	mu    sync.Mutex
	flows map[string]*domainauth.LoginFlow
	now   func() time.Time
}

// NewMemoryFlowStore creates an empty in-memory flow store.
func NewMemoryFlowStore() *MemoryFlowStore {
	return &MemoryFlowStore{flows: map[string]*domainauth.LoginFlow{}, now: time.Now}
}

// SetClock overrides the store clock for expiry tests.
func (s *MemoryFlowStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryFlowStore) Create(_ context.Context, flow *domainauth.LoginFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.flows[flow.State]; exists {
		return apperrors.Conflict("login flow state already exists")
	}
	s.flows[flow.State] = flow
	return nil
}

func (s *MemoryFlowStore) Consume(_ context.Context, state string) (*domainauth.LoginFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.flows[state]
	if !ok || flow.Expired(s.now()) {
		delete(s.flows, state)
		return nil, apperrors.NotFound("login flow not found")
	}
	delete(s.flows, state)
	return flow, nil
}

func (s *MemoryFlowStore) SweepExpired(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for state, flow := range s.flows {
		if flow.Expired(now) {
			delete(s.flows, state)
		}
	}
	return nil
}

// Len reports the number of stored flows. Test helper.
func (s *MemoryFlowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}

// MemoryRefreshStore is an in-memory RefreshTokenStore.
type MemoryRefreshStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewMemoryRefreshStore creates an empty in-memory refresh token store.
func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{tokens: map[string]string{}}
}

func (s *MemoryRefreshStore) Set(_ context.Context, userID, token string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
	return nil
}

func (s *MemoryRefreshStore) Get(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[userID]
	if !ok {
		return "", apperrors.NotFound("refresh token not found")
	}
	return token, nil
}

func (s *MemoryRefreshStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

// MemoryUserRepo is an in-memory UserRepository enforcing the unique
// constraints the real schema carries.
type MemoryUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int
	now    func() time.Time
}

// NewMemoryUserRepo creates an empty in-memory user repository.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: map[string]*model.User{}, now: time.Now}
}

func (r *MemoryUserRepo) Create(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, apperrors.Conflict("email already registered")
		}
	}
	clone := *user
	if clone.ID == "" {
		r.nextID++
		clone.ID = fmt.Sprintf("user-%d", r.nextID)
	}
	clone.CreatedAt = r.now()
	clone.UpdatedAt = clone.CreatedAt
	r.users[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	out := *u
	return &out, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (r *MemoryUserRepo) GetByFederatedID(_ context.Context, subjectID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.FederatedSubjectID != nil && *u.FederatedSubjectID == subjectID {
			out := *u
			return &out, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (r *MemoryUserRepo) GetByResetTokenHash(_ context.Context, hash string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == hash {
			out := *u
			return &out, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (r *MemoryUserRepo) UpdateProfile(_ context.Context, id string, update model.ProfileUpdate) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	if update.FirstName != nil {
		u.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		u.LastName = *update.LastName
	}
	if update.DisplayName != nil {
		u.DisplayName = update.DisplayName
	}
	if update.Bio != nil {
		u.Bio = update.Bio
	}
	u.UpdatedAt = r.now()
	out := *u
	return &out, nil
}

func (r *MemoryUserRepo) SetStatus(_ context.Context, id string, status domainauth.Status) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	u.Status = status
	u.UpdatedAt = r.now()
	out := *u
	return &out, nil
}

func (r *MemoryUserRepo) SetFederatedID(_ context.Context, id, subjectID string) error {
	return r.update(id, func(u *model.User) {
		u.FederatedSubjectID = &subjectID
	})
}

func (r *MemoryUserRepo) SetPassword(_ context.Context, id, passwordHash string) error {
	return r.update(id, func(u *model.User) {
		u.PasswordHash = &passwordHash
	})
}

func (r *MemoryUserRepo) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	return r.update(id, func(u *model.User) {
		u.ResetTokenHash = &tokenHash
		u.ResetTokenExpiresAt = &expiresAt
	})
}

func (r *MemoryUserRepo) ClearResetToken(_ context.Context, id string) error {
	return r.update(id, func(u *model.User) {
		u.ResetTokenHash = nil
		u.ResetTokenExpiresAt = nil
	})
}

func (r *MemoryUserRepo) update(id string, fn func(*model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	fn(u)
	u.UpdatedAt = r.now()
	return nil
}

func (r *MemoryUserRepo) ListByStatus(_ context.Context, status domainauth.Status, limit, offset int) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		if u.Status == status {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return window(out, limit, offset), nil
}

func (r *MemoryUserRepo) ListAll(_ context.Context, limit, offset int) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return window(out, limit, offset), nil
}

func window(users []model.User, limit, offset int) []model.User {
	if offset >= len(users) {
		return nil
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users
}

// RecordingMailer captures sent messages for assertions.
type RecordingMailer struct {
	mu   sync.Mutex
	Sent []ports.Email
	Err  error
}

func (m *RecordingMailer) Send(_ context.Context, msg ports.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Count reports the number of captured messages.
func (m *RecordingMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// Last returns the most recently captured message.
func (m *RecordingMailer) Last() ports.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return ports.Email{}
	}
	return m.Sent[len(m.Sent)-1]
}
