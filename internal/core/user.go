package core

import (
	"errors"
	"time"
)

// User is an account that owns records. The password hash never leaves
// the server.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrEmailTaken signals a signup against an already registered email.
var ErrEmailTaken = errors.New("Email already registered")
