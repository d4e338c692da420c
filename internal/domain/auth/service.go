package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	PasswordHash(ctx context.Context, userID string) (string, error)
	UpdateLastLogin(ctx context.Context, userID string) error
}

type Service struct {
	Store    StoreAPI
	Secret   string
	TokenTTL time.Duration
}

func NewService(store StoreAPI, secret string, ttl time.Duration) *Service {
	return &Service{Store: store, Secret: secret, TokenTTL: ttl}
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
	TeamID    string    `json:"teamId,omitempty"`
	Role      string    `json:"role"`
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	user, err := s.Store.FindActiveUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.Secret, Claims{UserID: user.ID, TeamID: user.TeamID, RoleName: user.RoleName}, s.TokenTTL)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.Store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last login failed", "userId", user.ID, "err", err)
	}
	return LoginResult{
		Token:     token,
		ExpiresAt: time.Now().Add(s.TokenTTL),
		UserID:    user.ID,
		TeamID:    user.TeamID,
		Role:      user.RoleName,
	}, nil
}

// PasswordVerifier checks a re-entered password against the stored bcrypt
// hash, the same comparison Login uses. It never logs the credential.
type PasswordVerifier struct {
	Store StoreAPI
}

func NewPasswordVerifier(store StoreAPI) *PasswordVerifier {
	return &PasswordVerifier{Store: store}
}

func (v *PasswordVerifier) Verify(ctx context.Context, userID, credential string) (bool, error) {
	hash, err := v.Store.PasswordHash(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return CheckPassword(hash, credential) == nil, nil
}
