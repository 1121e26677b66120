package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/porast/jigman/internal/config"
	"github.com/porast/jigman/internal/jig/entity"
	"github.com/porast/jigman/internal/jig/store"
	"github.com/porast/jigman/internal/middleware"
)

// ErrInvalidCredentials means login failed; callers get no detail on
// whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// TokenPair is an access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthService authenticates users against the user collection and issues
// JWT pairs. The inventory only consumes the display name and role carried
// in the access-token claims.
type AuthService struct {
	users  store.UserStore
	cfg    *config.Config
	logger *zap.Logger
}

// NewAuthService creates the auth service.
func NewAuthService(users store.UserStore, cfg *config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, cfg: cfg, logger: logger}
}

// SeedAdmin creates the configured admin account when the user collection
// is empty, so a fresh deployment can be logged into.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if count > 0 {
		return nil
	}
	if s.cfg.Auth.AdminPassword == "" {
		s.logger.Warn("No users exist and no admin password configured; login will be impossible")
		return nil
	}

	_, err = s.CreateUser(ctx,
		s.cfg.Auth.AdminUsername,
		s.cfg.Auth.AdminPassword,
		s.cfg.Auth.AdminDisplayName,
		entity.RoleAdministrator)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info("Seeded initial admin account",
		zap.String("username", s.cfg.Auth.AdminUsername))
	return nil
}

// CreateUser stores a new user with a bcrypt password hash.
func (s *AuthService) CreateUser(ctx context.Context, username, password, displayName string, role entity.Role) (*entity.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if displayName == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := entity.User{
		Username:     username,
		DisplayName:  displayName,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.users.PutUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return &user, nil
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, *entity.User, error) {
	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("login %s: %w", username, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User logged in",
		zap.String("username", user.Username), zap.String("role", string(user.Role)))
	return pair, user, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("refresh for %s: %w", claims.Subject, err)
	}

	return s.issueTokens(user)
}

// GetUser looks up a user's public profile.
func (s *AuthService) GetUser(ctx context.Context, username string) (*entity.User, error) {
	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueTokens(user *entity.User) (*TokenPair, error) {
	now := time.Now()

	accessClaims := middleware.JWTClaims{
		Username: user.Username,
		Name:     user.DisplayName,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    s.cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTokenExpire)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).
		SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshClaims := jwt.RegisteredClaims{
		Subject:   user.Username,
		Issuer:    s.cfg.JWT.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.RefreshTokenExpire)),
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).
		SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenExpire.Seconds()),
	}, nil
}
