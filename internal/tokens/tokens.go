// Package tokens issues and verifies the signed tokens minted by this
// service: short-lived access tokens, refresh tokens, account approval
// tokens and password reset tokens. All are HS256 JWTs; federated
// provider tokens are verified elsewhere.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stormgate/auth-api/config"
	"github.com/stormgate/auth-api/internal/domain/auth"
)

var (
	// ErrTokenExpired is returned when a token's signature is valid but
	// its expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for any other verification failure.
	ErrTokenInvalid = errors.New("token invalid")
)

// Purpose distinguishes token families so one cannot be replayed as another.
type Purpose string

const (
	PurposeAccess   Purpose = "access"
	PurposeRefresh  Purpose = "refresh"
	PurposeApproval Purpose = "approval"
	PurposeReset    Purpose = "reset"
)

// Claims is the claim set carried by every token this service mints.
type Claims struct {
	Purpose     Purpose   `json:"purpose"`
	Email       string    `json:"email,omitempty"`
	Role        auth.Role `json:"role,omitempty"`
	Application string    `json:"application,omitempty"`
	jwt.RegisteredClaims
}

// Service mints and verifies internal tokens. The clock is injectable
// for tests.
type Service struct {
	cfg config.TokenConfig
	now func() time.Time
}

// NewService builds a token service from the token configuration.
func NewService(cfg config.TokenConfig) *Service {
	return &Service{cfg: cfg, now: time.Now}
}

// WithClock overrides the service clock. Test use only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AccessTTL exposes the configured access token lifetime so callers can
// align cookie expiry with token expiry.
func (s *Service) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// RefreshTTL exposes the configured refresh token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// ResetTTL exposes the configured reset token lifetime.
func (s *Service) ResetTTL() time.Duration { return s.cfg.ResetTTL }

// IssueAccess mints a short-lived access token for the principal.
func (s *Service) IssueAccess(p auth.Principal) (string, error) {
	return s.sign(s.cfg.AccessSecret, Claims{
		Purpose:     PurposeAccess,
		Email:       p.Email,
		Role:        p.Role,
		Application: string(p.Application),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	})
}

// IssueRefresh mints a long-lived refresh token for the principal.
func (s *Service) IssueRefresh(p auth.Principal) (string, error) {
	return s.sign(s.cfg.RefreshSecret, Claims{
		Purpose: PurposeRefresh,
		Email:   p.Email,
		Role:    p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.cfg.RefreshTTL)),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	})
}

// IssueApproval mints a token embedded in approval emails. It carries
// only the target email; approval validity checks signature and expiry,
// not account state.
func (s *Service) IssueApproval(email string) (string, error) {
	return s.sign(s.cfg.ApprovalSecret, Claims{
		Purpose: PurposeApproval,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.cfg.ApprovalTTL)),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	})
}

// IssueReset mints a password reset token for the user.
func (s *Service) IssueReset(userID string) (string, error) {
	return s.sign(s.cfg.AccessSecret, Claims{
		Purpose: PurposeReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.cfg.ResetTTL)),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	})
}

// VerifyAccess validates an access token and returns its claims.
func (s *Service) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, s.cfg.AccessSecret, PurposeAccess)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (s *Service) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, s.cfg.RefreshSecret, PurposeRefresh)
}

// VerifyApproval validates an approval token and returns the target email.
func (s *Service) VerifyApproval(token string) (string, error) {
	claims, err := s.verify(token, s.cfg.ApprovalSecret, PurposeApproval)
	if err != nil {
		return "", err
	}
	if claims.Email != "" {
		return claims.Email, nil
	}
	return claims.Subject, nil
}

// VerifyReset validates a reset token and returns the user id.
func (s *Service) VerifyReset(token string) (string, error) {
	claims, err := s.verify(token, s.cfg.AccessSecret, PurposeReset)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *Service) sign(secret string, claims Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.Purpose, err)
	}
	return signed, nil
}

func (s *Service) verify(token, secret string, want Purpose) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Purpose != want {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
