// Package authpw provides email/password accounts and API keys.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"picrm/internal/auth"
	"picrm/internal/rbac"
	"picrm/internal/store"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserExists         = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrAPIKeyRevoked      = errors.New("API key has been revoked")
	ErrAPIKeyExpired      = errors.New("API key has expired")
	ErrAPIKeyNotFound     = errors.New("API key not found")
)

const apiKeyPrefix = "pk_"

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	InsertAPIKey(ctx context.Context, key store.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (store.APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]store.APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID, userID string) (bool, error)
}

type Service struct {
	store UserStore
	cost  int
	now   func() time.Time
}

func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost, now: time.Now}
}

type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// Register creates a new account
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return store.User{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return store.User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return store.User{}, ErrUserExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	now := s.now().UTC()
	user := store.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if store.IsConflict(err) {
			return store.User{}, ErrUserExists
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks the password. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return store.User{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

type APIKeyRequest struct {
	Description   string
	Scopes        []string
	ExpiresInDays int
}

// GenerateAPIKey stores a hashed key and returns the plaintext once.
func (s *Service) GenerateAPIKey(ctx context.Context, userID string, req APIKeyRequest) (string, store.APIKey, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return "", store.APIKey{}, fmt.Errorf("lookup user: %w", err)
	}
	if req.ExpiresInDays < 0 {
		return "", store.APIKey{}, fmt.Errorf("%w: expiresInDays must not be negative", ErrInvalidInput)
	}

	secret, err := auth.RandomToken(24)
	if err != nil {
		return "", store.APIKey{}, err
	}
	raw := apiKeyPrefix + secret

	key := store.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		KeyHash:   auth.HashToken(raw),
		KeyPrefix: raw[:len(apiKeyPrefix)+8],
		Scopes:    rbac.Normalize(req.Scopes),
		CreatedAt: s.now().UTC(),
		IsActive:  true,
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		key.Description = &d
	}
	if req.ExpiresInDays > 0 {
		expires := key.CreatedAt.AddDate(0, 0, req.ExpiresInDays)
		key.ExpiresAt = &expires
	}
	if err := s.store.InsertAPIKey(ctx, key); err != nil {
		return "", store.APIKey{}, fmt.Errorf("insert api key: %w", err)
	}
	return raw, key, nil
}

// ValidateAPIKey resolves a plaintext key to its owner and scopes.
func (s *Service) ValidateAPIKey(ctx context.Context, raw string) (store.User, store.APIKey, error) {
	key, err := s.store.GetAPIKeyByHash(ctx, auth.HashToken(strings.TrimSpace(raw)))
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.APIKey{}, ErrInvalidAPIKey
	}
	if err != nil {
		return store.User{}, store.APIKey{}, fmt.Errorf("lookup api key: %w", err)
	}
	if !key.IsActive {
		return store.User{}, store.APIKey{}, ErrAPIKeyRevoked
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(s.now()) {
		return store.User{}, store.APIKey{}, ErrAPIKeyExpired
	}
	user, err := s.store.GetUserByID(ctx, key.UserID)
	if err != nil {
		return store.User{}, store.APIKey{}, fmt.Errorf("lookup api key owner: %w", err)
	}
	return user, key, nil
}

func (s *Service) ListAPIKeys(ctx context.Context, userID string) ([]store.APIKey, error) {
	return s.store.ListAPIKeys(ctx, userID)
}

func (s *Service) RevokeAPIKey(ctx context.Context, userID, keyID string) error {
	ok, err := s.store.RevokeAPIKey(ctx, keyID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAPIKeyNotFound
	}
	return nil
}
