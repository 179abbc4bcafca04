package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"picrm/internal/auth"
	"picrm/internal/authpw"
	"picrm/internal/store"
)

type Tokens struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	User         store.User `json:"user"`
}

type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (store.User, error) {
	user, err := s.accounts.Register(ctx, authpw.RegisterRequest{
		Email:       in.Email,
		Password:    in.Password,
		DisplayName: in.DisplayName,
	})
	switch {
	case errors.Is(err, authpw.ErrUserExists):
		return store.User{}, domainError(http.StatusConflict, codeUserExists, "A user with this email already exists", nil)
	case errors.Is(err, authpw.ErrInvalidInput):
		return store.User{}, invalid(err.Error())
	case err != nil:
		return store.User{}, err
	}
	s.logAction(ctx, user.ID, "register", "user", user.ID, nil)
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Tokens, error) {
	user, err := s.accounts.Login(ctx, email, password)
	switch {
	case errors.Is(err, authpw.ErrInvalidCredentials), errors.Is(err, authpw.ErrInvalidInput):
		return Tokens{}, unauthorized(codeInvalidCreds, "Invalid email or password")
	case err != nil:
		return Tokens{}, err
	}
	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return Tokens{}, err
	}
	s.logAction(ctx, user.ID, "login", "user", user.ID, nil)
	return tokens, nil
}

// Refresh rotates a refresh token: the old one is revoked before a new pair
// is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, unauthorized(codeUnauthorized, "Refresh token invalid")
	}
	hash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, hash)
	if err != nil {
		return Tokens{}, unauthorized(codeUnauthorized, "Refresh token invalid")
	}
	if err := s.sessions.RevokeRefreshSession(ctx, hash); err != nil {
		return Tokens{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if isNoRows(err) {
		return Tokens{}, unauthorized(codeUnauthorized, "Refresh token invalid")
	}
	if err != nil {
		return Tokens{}, err
	}
	return s.issueTokens(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) issueTokens(ctx context.Context, user store.User) (Tokens, error) {
	access, claims, err := s.signer.Issue(user.ID, user.Email, user.DisplayName)
	if err != nil {
		return Tokens{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := auth.RandomToken(32)
	if err != nil {
		return Tokens{}, fmt.Errorf("generate refresh token: %w", err)
	}
	expiresAt := s.now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, expiresAt); err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Unix(claims.Exp, 0).UTC(),
		User:         user,
	}, nil
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: claims.Sub, Email: claims.Email, Name: claims.Name}, nil
}

func (s *Service) SessionFromAPIKey(ctx context.Context, raw string) (Session, error) {
	user, key, err := s.accounts.ValidateAPIKey(ctx, raw)
	switch {
	case errors.Is(err, authpw.ErrInvalidAPIKey):
		return Session{}, unauthorized(codeInvalidAPIKey, "Invalid API key")
	case errors.Is(err, authpw.ErrAPIKeyRevoked):
		return Session{}, unauthorized(codeAPIKeyRevoked, "API key has been revoked")
	case errors.Is(err, authpw.ErrAPIKeyExpired):
		return Session{}, unauthorized(codeAPIKeyExpired, "API key has expired")
	case err != nil:
		return Session{}, err
	}
	return Session{
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.DisplayName,
		APIKeyID: key.ID,
		Scopes:   key.Scopes,
	}, nil
}

type APIKeyInput struct {
	Description   string   `json:"description"`
	Scopes        []string `json:"scopes"`
	ExpiresInDays int      `json:"expiresInDays"`
}

type CreatedAPIKey struct {
	store.APIKey
	Key string `json:"key"`
}

func (s *Service) CreateAPIKey(ctx context.Context, userID string, in APIKeyInput) (CreatedAPIKey, error) {
	raw, key, err := s.accounts.GenerateAPIKey(ctx, userID, authpw.APIKeyRequest{
		Description:   in.Description,
		Scopes:        in.Scopes,
		ExpiresInDays: in.ExpiresInDays,
	})
	if errors.Is(err, authpw.ErrInvalidInput) {
		return CreatedAPIKey{}, invalid(err.Error())
	}
	if err != nil {
		return CreatedAPIKey{}, err
	}
	s.logAction(ctx, userID, "create", "api_key", key.ID, map[string]any{"scopes": key.Scopes})
	return CreatedAPIKey{APIKey: key, Key: raw}, nil
}

func (s *Service) ListAPIKeys(ctx context.Context, userID string) ([]store.APIKey, error) {
	return s.accounts.ListAPIKeys(ctx, userID)
}

func (s *Service) RevokeAPIKey(ctx context.Context, userID, keyID string) error {
	err := s.accounts.RevokeAPIKey(ctx, userID, keyID)
	if errors.Is(err, authpw.ErrAPIKeyNotFound) {
		return notFound("API key")
	}
	if err != nil {
		return err
	}
	s.logAction(ctx, userID, "revoke", "api_key", keyID, nil)
	return nil
}
