package handlers

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/montygracey/mediaconverter/internal/api/middleware"
	"github.com/montygracey/mediaconverter/internal/core/job"
	"github.com/montygracey/mediaconverter/internal/core/user"
)

type AuthHandler struct {
	users     user.Store
	jobs      job.Store
	jwtSecret string
	jwtExpiry time.Duration
}

func NewAuthHandler(users user.Store, jobs job.Store, jwtSecret string, jwtExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jobs:      jobs,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

// --- Input types ---

type RegisterInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Username"`
		Password string `json:"password" minLength:"8" doc:"Password"`
		Email    string `json:"email" minLength:"1" format:"email" doc:"Email address"`
	}
}

type LoginInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Username"`
		Password string `json:"password" minLength:"1" doc:"Password"`
	}
}

type EmptyInput struct{}

// --- DTO types ---

type RegisterDTO struct {
	ID       string `json:"id" doc:"User ID"`
	Username string `json:"username" doc:"Username"`
}

type LoginDTO struct {
	Token     string `json:"token" doc:"JWT token"`
	ExpiresIn int    `json:"expires_in" doc:"Token lifetime in seconds"`
	UserID    string `json:"user_id" doc:"User ID"`
	Username  string `json:"username" doc:"Username"`
}

type MeDTO struct {
	ID          string `json:"id" doc:"User ID"`
	Username    string `json:"username" doc:"Username"`
	Email       string `json:"email" doc:"Email"`
	Conversions int64  `json:"conversions" doc:"Total conversions submitted"`
}

// --- Handlers ---

func (h *AuthHandler) Register(ctx context.Context, input *RegisterInput) (*DataOutput[RegisterDTO], error) {
	if _, err := mail.ParseAddress(input.Body.Email); err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid email address")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Body.Password), 12)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to hash password")
	}

	u := &user.User{
		ID:           uuid.New().String(),
		Username:     input.Body.Username,
		Email:        input.Body.Email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrExists) {
			return nil, huma.Error409Conflict("username or email already taken")
		}
		return nil, huma.Error500InternalServerError("failed to create user")
	}

	return OK(RegisterDTO{ID: u.ID, Username: u.Username}), nil
}

func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*DataOutput[LoginDTO], error) {
	u, err := h.users.GetByUsername(ctx, input.Body.Username)
	if err != nil {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Body.Password)); err != nil {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}

	token, err := middleware.GenerateJWT(u.ID, h.jwtSecret, h.jwtExpiry)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to generate token")
	}

	return OK(LoginDTO{
		Token:     token,
		ExpiresIn: int(h.jwtExpiry.Seconds()),
		UserID:    u.ID,
		Username:  u.Username,
	}), nil
}

func (h *AuthHandler) Me(ctx context.Context, _ *EmptyInput) (*DataOutput[MeDTO], error) {
	userID := middleware.GetUserID(ctx)

	u, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return nil, huma.Error404NotFound("user not found")
	}

	counts, err := h.jobs.Counts(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to count conversions")
	}

	return OK(MeDTO{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Conversions: counts.Total,
	}), nil
}
