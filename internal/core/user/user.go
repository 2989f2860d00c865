package user

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("username or email already taken")
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Store interface {
	Create(ctx context.Context, u *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}
