package services

import (
	"fmt"
	"log/slog"
	"time"

	"collab-hub/auth"
	"collab-hub/errors"
	"collab-hub/repositories"
)

type IAuthService interface {
	Register(req auth.RegisterRequest) (Session, error)
	Login(username, password string) (Session, error)
}

// Session is what a successful register/login hands back to the HTTP
// layer: the identity plus a signed token for subsequent calls.
type Session struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type AuthService struct {
	log           *slog.Logger
	users         repositories.IUserRepository
	tokenDuration time.Duration
}

func NewAuthService(log *slog.Logger, users repositories.IUserRepository, tokenDuration time.Duration) *AuthService {
	return &AuthService{log: log, users: users, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(req auth.RegisterRequest) (Session, error) {
	if err := auth.ValidateRegister(req); err != nil {
		return Session{}, err
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("password hashing failed: %w", err)
	}

	userID, err := s.users.CreateUser(req.Username, req.Email, hashed)
	if err != nil {
		return Session{}, err
	}

	token, err := auth.GenerateToken(userID, []string{"member"}, s.tokenDuration)
	if err != nil {
		return Session{}, err
	}

	s.log.Info("User registered", "user", userID)
	return Session{UserID: userID, Token: token}, nil
}

// Login checks credentials; unknown users and wrong passwords fail
// identically so usernames cannot be probed.
func (s *AuthService) Login(username, password string) (Session, error) {
	user, err := s.users.GetUserByUsername(username)
	if err != nil {
		return Session{}, errors.ErrInvalidCredentials
	}

	ok, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !ok {
		return Session{}, errors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Roles, s.tokenDuration)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: user.ID, Token: token}, nil
}
