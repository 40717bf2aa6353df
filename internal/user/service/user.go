package service

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinichq/clinic-backend/internal/user/jwt"
	"github.com/clinichq/clinic-backend/internal/user/repository"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/campus"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
	"github.com/clinichq/clinic-backend/pkg/messaging"
)

// EventSink is where user events go.
type EventSink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// UserService handles authentication and account management.
type UserService struct {
	users  *repository.UserRepository
	tokens *jwt.Manager
	sink   EventSink
	logger *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(users *repository.UserRepository, tokens *jwt.Manager, sink EventSink, log *logger.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		sink:   sink,
		logger: log.WithComponent("user-service"),
	}
}

func (s *UserService) publish(ctx context.Context, eventType string, data interface{}) {
	if s.sink == nil {
		return
	}
	_ = s.sink.Publish(ctx, eventType, data)
}

// LoginRequest is the authentication payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the authentication result.
type LoginResponse struct {
	Token *jwt.Token       `json:"token"`
	User  *repository.User `json:"user"`
}

// Login verifies credentials and issues an access token. Unknown emails and
// wrong passwords return the same error.
func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, errors.InvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.InvalidCredentials()
	}

	token, err := s.tokens.Generate(&jwt.UserInfo{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		Campus: u.Campus,
	})
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, u.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("failed to stamp last login")
	}

	s.logger.Info().Str("user_id", u.ID).Str("campus", u.Campus).Msg("user logged in")
	return &LoginResponse{Token: token, User: u}, nil
}

// CreateUserRequest is the payload for creating an account.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
	Campus   string `json:"campus" validate:"required"`
}

// CreateUser creates a staff account.
func (s *UserService) CreateUser(ctx context.Context, act *actor.Actor, req *CreateUserRequest) (*repository.User, error) {
	if !act.CanManageUsers() {
		return nil, errors.Forbidden("you are not allowed to manage users")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	if !actor.ValidRole(req.Role) {
		return nil, errors.Validation(map[string]string{"role": "unknown role"})
	}
	if !campus.Valid(req.Campus) {
		return nil, errors.Validation(map[string]string{"campus": "unknown campus"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &repository.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Campus:       req.Campus,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventUserCreated, messaging.UserCreatedEvent{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		Campus: u.Campus,
	})

	s.logger.Info().Str("user_id", u.ID).Str("role", u.Role).Msg("user created")
	return u, nil
}

// GetUser returns one account.
func (s *UserService) GetUser(ctx context.Context, act *actor.Actor, id string) (*repository.User, error) {
	if !act.CanManageUsers() && act.ID != id {
		return nil, errors.Forbidden("you are not allowed to view users")
	}
	return s.users.GetByID(ctx, id)
}

// ListUsers lists accounts, optionally filtered by campus.
func (s *UserService) ListUsers(ctx context.Context, act *actor.Actor, campusFilter string) ([]*repository.User, error) {
	if !act.CanManageUsers() {
		return nil, errors.Forbidden("you are not allowed to view users")
	}
	return s.users.List(ctx, campusFilter)
}

// UpdateUserRequest is the payload for editing an account.
type UpdateUserRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required"`
	Campus   string `json:"campus" validate:"required"`
	IsActive bool   `json:"is_active"`
}

// UpdateUser edits an account.
func (s *UserService) UpdateUser(ctx context.Context, act *actor.Actor, id string, req *UpdateUserRequest) (*repository.User, error) {
	if !act.CanManageUsers() {
		return nil, errors.Forbidden("you are not allowed to manage users")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	if !actor.ValidRole(req.Role) {
		return nil, errors.Validation(map[string]string{"role": "unknown role"})
	}
	if !campus.Valid(req.Campus) {
		return nil, errors.Validation(map[string]string{"campus": "unknown campus"})
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	u.Name = req.Name
	u.Email = req.Email
	u.Role = req.Role
	u.Campus = req.Campus
	u.IsActive = req.IsActive

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventUserUpdated, messaging.UserCreatedEvent{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		Campus: u.Campus,
	})
	return u, nil
}

// ChangePasswordRequest is the payload for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword lets a user rotate their own password.
func (s *UserService) ChangePassword(ctx context.Context, act *actor.Actor, req *ChangePasswordRequest) error {
	if act == nil {
		return errors.Unauthorized("authentication required")
	}
	if err := httputil.Validate(req); err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, act.ID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return errors.InvalidCredentials()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, u.ID, string(hash))
}

// DeleteUser removes an account.
func (s *UserService) DeleteUser(ctx context.Context, act *actor.Actor, id string) error {
	if !act.CanManageUsers() {
		return errors.Forbidden("you are not allowed to manage users")
	}
	if act.ID == id {
		return errors.BadRequest("you cannot delete your own account")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, messaging.EventUserDeleted, map[string]string{"user_id": id})
	return nil
}
