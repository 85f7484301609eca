package services

import (
	"errors"

	"textpesa/internal/config"
	"textpesa/internal/pkg/jwt"
	"textpesa/internal/pkg/password"
)

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthService authenticates operators of the ops console. Operator accounts
// are configured, not stored: a single username/password-hash pair from the
// environment, exchanged for a short-lived JWT.
type AuthService struct {
	cfg *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token
type LoginResponse struct {
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
}

// Login verifies operator credentials and issues an access token.
func (s *AuthService) Login(input *LoginInput) (*LoginResponse, error) {
	if input.Username != s.cfg.Admin.Username ||
		s.cfg.Admin.PasswordHash == "" ||
		!password.Verify(input.Password, s.cfg.Admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := jwt.GenerateAccessToken(input.Username, "admin", s.cfg.JWT.Secret, s.cfg.JWT.AccessTokenMins)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Username:    input.Username,
		AccessToken: token,
	}, nil
}
