package app

import (
	"context"
	"fmt"
	"time"

	"collabsauce/api/internal/auth"
	"collabsauce/api/internal/authpw"
	"collabsauce/api/internal/store"
)

type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserView  `json:"user"`
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (AuthResult, error) {
	user, err := s.passwords.SignUp(ctx, req)
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(user)
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (AuthResult, error) {
	user, err := s.passwords.SignIn(ctx, req)
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(user)
}

func (s *Service) issue(user store.User) (AuthResult, error) {
	token, expiresAt, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Email, s.cfg.AccessTTL)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: token, ExpiresAt: expiresAt, User: userView(user)}, nil
}
