package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/porast/jigman/internal/config"
	"github.com/porast/jigman/internal/jig/entity"
	"github.com/porast/jigman/internal/jig/store"
)

func authTestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:             "auth-test-secret",
			AccessTokenExpire:  2 * time.Hour,
			RefreshTokenExpire: 24 * time.Hour,
			Issuer:             "jigman",
		},
		Auth: config.AuthConfig{
			AdminUsername:    "admin",
			AdminPassword:    "admin-pass",
			AdminDisplayName: "Administrator",
		},
	}
}

func newAuthService(cfg *config.Config) (*AuthService, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	return NewAuthService(mem, cfg, zap.NewNop()), mem
}

func TestSeedAdminCreatesAccountOnce(t *testing.T) {
	svc, mem := newAuthService(authTestConfig())
	ctx := context.Background()

	if err := svc.SeedAdmin(ctx); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	user, err := mem.GetUser(ctx, "admin")
	if err != nil {
		t.Fatalf("Admin not seeded: %v", err)
	}
	if user.Role != entity.RoleAdministrator {
		t.Errorf("Expected administrator role, got %s", user.Role)
	}

	// Second run must not touch the existing collection.
	if err := svc.SeedAdmin(ctx); err != nil {
		t.Fatalf("Second SeedAdmin: %v", err)
	}
	if n, _ := mem.CountUsers(ctx); n != 1 {
		t.Errorf("Expected 1 user after reseed, got %d", n)
	}
}

func TestSeedAdminSkipsWhenNoPasswordConfigured(t *testing.T) {
	cfg := authTestConfig()
	cfg.Auth.AdminPassword = ""
	svc, mem := newAuthService(cfg)
	ctx := context.Background()

	if err := svc.SeedAdmin(ctx); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	if n, _ := mem.CountUsers(ctx); n != 0 {
		t.Errorf("Expected no users, got %d", n)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthService(authTestConfig())
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "operator", "secret123", "Operator One", entity.RoleUser); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	pair, user, err := svc.Login(ctx, "operator", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Errorf("Expected a token pair, got %+v", pair)
	}
	if pair.ExpiresIn != int64((2 * time.Hour).Seconds()) {
		t.Errorf("Expected expires_in 7200, got %d", pair.ExpiresIn)
	}
	if user.DisplayName != "Operator One" {
		t.Errorf("Expected display name, got %s", user.DisplayName)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newAuthService(authTestConfig())
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "operator", "secret123", "", entity.RoleUser); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, _, err := svc.Login(ctx, "operator", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "ghost", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Unknown user: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshIssuesNewPair(t *testing.T) {
	svc, _ := newAuthService(authTestConfig())
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "operator", "secret123", "", entity.RoleUser); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	pair, _, err := svc.Login(ctx, "operator", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.AccessToken == "" || next.RefreshToken == "" {
		t.Errorf("Expected a new token pair, got %+v", next)
	}
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	svc, _ := newAuthService(authTestConfig())

	if _, err := svc.Refresh(context.Background(), "not-a-jwt"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newAuthService(authTestConfig())
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "", "pw", "", entity.RoleUser); !errors.Is(err, ErrValidation) {
		t.Errorf("Empty username: expected validation error, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, "x", "", "", entity.RoleUser); !errors.Is(err, ErrValidation) {
		t.Errorf("Empty password: expected validation error, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, "x", "pw", "", entity.Role("Boss")); !errors.Is(err, ErrValidation) {
		t.Errorf("Unknown role: expected validation error, got %v", err)
	}

	user, err := svc.CreateUser(ctx, "x", "pw", "", entity.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.DisplayName != "x" {
		t.Errorf("Display name must default to the username, got %s", user.DisplayName)
	}
	if user.PasswordHash == "pw" || user.PasswordHash == "" {
		t.Errorf("Password must be stored hashed")
	}
}
