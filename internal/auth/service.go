// Package auth implements the authentication provider: account signup,
// credential verification and opaque bearer-token sessions. Handlers never
// interpret tokens themselves; they hand them to this service.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
)

// Store is the persistence the provider needs. *storage.SQLiteRepository
// satisfies it.
type Store interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (core.User, error)
	UserByEmail(ctx context.Context, email string) (core.User, error)
	CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error
	UserByToken(ctx context.Context, token string) (core.User, error)
}

var (
	ErrMissingFields      = errors.New("Name, email, and password are required")
	ErrInvalidEmail       = errors.New("Invalid email format")
	ErrWeakPassword       = errors.New("Password must be at least 8 characters long")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrUnauthenticated    = errors.New("Authentication required")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLen = 8

type Service struct {
	store      Store
	sessionTTL time.Duration
}

func NewService(store Store, sessionTTL time.Duration) *Service {
	return &Service{store: store, sessionTTL: sessionTTL}
}

// SignUp validates the registration payload, hashes the password and
// creates the account. A duplicate email surfaces as core.ErrEmailTaken.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (core.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return core.User{}, ErrMissingFields
	}
	if !emailRe.MatchString(email) {
		return core.User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return core.User{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, name, email, string(hash))
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)
	return user, nil
}

// SignIn checks the credentials and issues an opaque session token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, core.User, error) {
	user, err := s.store.UserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.User{}, ErrInvalidCredentials
		}
		return "", core.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", core.User{}, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", core.User{}, fmt.Errorf("generate token: %w", err)
	}
	if err := s.store.CreateSession(ctx, token, user.ID, time.Now().Add(s.sessionTTL)); err != nil {
		return "", core.User{}, err
	}

	slog.InfoContext(ctx, "Session issued", "user_id", user.ID)
	return token, user, nil
}

// VerifyToken resolves a bearer token to its user. Any failure, including
// an expired or unknown session, collapses to ErrUnauthenticated.
func (s *Service) VerifyToken(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, ErrUnauthenticated
	}
	user, err := s.store.UserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, ErrUnauthenticated
		}
		return core.User{}, err
	}
	return user, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
