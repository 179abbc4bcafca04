package authpw

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"picrm/internal/store"
)

// mockUserStore is a map-backed UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string
	keys       map[string]store.APIKey // keyed by hash
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
		keys:       make(map[string]store.APIKey),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[strings.ToLower(email)]; ok {
		return m.users[userID], nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (m *mockUserStore) InsertAPIKey(ctx context.Context, key store.APIKey) error {
	m.keys[key.KeyHash] = key
	return nil
}

func (m *mockUserStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (store.APIKey, error) {
	if key, ok := m.keys[keyHash]; ok {
		return key, nil
	}
	return store.APIKey{}, sql.ErrNoRows
}

func (m *mockUserStore) ListAPIKeys(ctx context.Context, userID string) ([]store.APIKey, error) {
	var out []store.APIKey
	for _, key := range m.keys {
		if key.UserID == userID {
			out = append(out, key)
		}
	}
	return out, nil
}

func (m *mockUserStore) RevokeAPIKey(ctx context.Context, keyID, userID string) (bool, error) {
	for hash, key := range m.keys {
		if key.ID == keyID && key.UserID == userID {
			key.IsActive = false
			m.keys[hash] = key
			return true, nil
		}
	}
	return false, nil
}

func newTestService() (*Service, *mockUserStore) {
	ms := newMockUserStore()
	svc := NewService(ms)
	svc.cost = bcrypt.MinCost
	return svc, ms
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr error
	}{
		{name: "valid", req: RegisterRequest{Email: "Ada@Example.com", Password: "password123", DisplayName: "Ada"}},
		{name: "duplicate email", req: RegisterRequest{Email: "ada@example.com", Password: "password123"}, wantErr: ErrUserExists},
		{name: "short password", req: RegisterRequest{Email: "bob@example.com", Password: "short"}, wantErr: ErrInvalidInput},
		{name: "bad email", req: RegisterRequest{Email: "not-an-email", Password: "password123"}, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Register(ctx, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Register() unexpected error: %v", err)
			}
			if user.Email != "ada@example.com" {
				t.Errorf("expected normalized email, got %s", user.Email)
			}
			if user.PasswordHash == tt.req.Password {
				t.Error("password stored in plaintext")
			}
		})
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterRequest{Email: "ada@example.com", Password: "password123"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "ada@example.com", "password123"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := svc.Login(ctx, "ada@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", err)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	svc, ms := newTestService()
	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterRequest{Email: "ada@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	raw, key, err := svc.GenerateAPIKey(ctx, user.ID, APIKeyRequest{Description: "ci", Scopes: []string{"write"}, ExpiresInDays: 30})
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if !strings.HasPrefix(raw, "pk_") || !strings.HasPrefix(raw, key.KeyPrefix) {
		t.Fatalf("unexpected key %q / prefix %q", raw, key.KeyPrefix)
	}
	if _, stored := ms.keys[raw]; stored {
		t.Fatal("plaintext key must not be stored")
	}

	owner, got, err := svc.ValidateAPIKey(ctx, raw)
	if err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}
	if owner.ID != user.ID || len(got.Scopes) != 1 || got.Scopes[0] != "write" {
		t.Fatalf("unexpected owner/scopes: %s %v", owner.ID, got.Scopes)
	}

	if _, _, err := svc.ValidateAPIKey(ctx, "pk_bogus"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("bogus key: got %v", err)
	}

	svc.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }
	if _, _, err := svc.ValidateAPIKey(ctx, raw); !errors.Is(err, ErrAPIKeyExpired) {
		t.Fatalf("expired key: got %v", err)
	}
	svc.now = time.Now

	if err := svc.RevokeAPIKey(ctx, user.ID, key.ID); err != nil {
		t.Fatalf("RevokeAPIKey() error = %v", err)
	}
	if _, _, err := svc.ValidateAPIKey(ctx, raw); !errors.Is(err, ErrAPIKeyRevoked) {
		t.Fatalf("revoked key: got %v", err)
	}
	if err := svc.RevokeAPIKey(ctx, "someone-else", key.ID); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("foreign revoke: got %v", err)
	}
}

func TestGenerateAPIKeyDefaultsToReadScope(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterRequest{Email: "ada@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, key, err := svc.GenerateAPIKey(ctx, user.ID, APIKeyRequest{})
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if len(key.Scopes) != 1 || key.Scopes[0] != "read" || key.ExpiresAt != nil {
		t.Fatalf("unexpected defaults: %+v", key)
	}
}
