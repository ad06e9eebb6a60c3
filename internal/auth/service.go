package auth

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ulugbekov/savdo-backend/internal/users"
	"github.com/ulugbekov/savdo-backend/pkg/auth"
	"github.com/ulugbekov/savdo-backend/pkg/auth/session"
	"github.com/ulugbekov/savdo-backend/pkg/config"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/security"
)

// TokenPair is what every successful authentication hands back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// SessionManager is the slice of the redis session store the service needs.
type SessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// Service mints token pairs and drives the refresh/revoke lifecycle.
type Service struct {
	users    *users.Repository
	sessions SessionManager
	jwtCfg   config.JWTConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(usersRepo *users.Repository, sessions SessionManager, jwtCfg config.JWTConfig, logg *logger.Logger) *Service {
	return &Service{
		users:    usersRepo,
		sessions: sessions,
		jwtCfg:   jwtCfg,
		logg:     logg,
		now:      time.Now,
	}
}

// IssueFor mints an access/refresh pair for an already-authenticated user.
func (s *Service) IssueFor(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessID := session.NewAccessID()

	accessToken, err := auth.MintAccessToken(s.jwtCfg, s.now(), auth.AccessTokenPayload{
		UserID: user.ID,
		Phone:  user.Phone,
		JTI:    accessID,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "minting access token")
	}

	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "storing session")
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.jwtCfg.AccessTokenTTLSeconds(),
	}, nil
}

// Login authenticates a password-holding account. Every failure mode returns
// the same generic error so callers cannot probe which factor was wrong.
func (s *Service) Login(ctx context.Context, phone, password string) (*TokenPair, error) {
	invalid := apperrors.New(apperrors.CodeUnauthorized, "invalid credentials")

	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "looking up user")
	}
	if !user.IsActive || user.PasswordHash == nil {
		return nil, invalid
	}

	ok, err := security.VerifyPassword(password, *user.PasswordHash)
	if err != nil || !ok {
		return nil, invalid
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "recording login")
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "password login succeeded")
	return s.IssueFor(ctx, user)
}

// Refresh exchanges a stale access token plus its refresh token for a fresh
// pair. The stale JWT is parsed without exp validation only to recover the
// jti; the refresh token in redis is the real gate.
func (s *Service) Refresh(ctx context.Context, staleAccessToken, refreshToken string) (*TokenPair, error) {
	invalid := apperrors.New(apperrors.CodeUnauthorized, "invalid refresh token")

	claims, err := auth.ParseAccessTokenAllowExpired(s.jwtCfg, staleAccessToken)
	if err != nil {
		return nil, invalid
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "looking up user")
	}
	if !user.IsActive {
		return nil, invalid
	}

	newAccessID, newRefreshToken, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, invalid
		}
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "rotating session")
	}

	accessToken, err := auth.MintAccessToken(s.jwtCfg, s.now(), auth.AccessTokenPayload{
		UserID: user.ID,
		Phone:  user.Phone,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "minting access token")
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.jwtCfg.AccessTokenTTLSeconds(),
	}, nil
}

// Revoke drops the session tied to the access ID. Outstanding access tokens
// stay valid until exp, but middleware checks session liveness so the window
// closes within one request.
func (s *Service) Revoke(ctx context.Context, accessID string) error {
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "revoking session")
	}
	return nil
}
