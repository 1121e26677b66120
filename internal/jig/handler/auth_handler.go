package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/porast/jigman/internal/jig/entity"
	"github.com/porast/jigman/internal/jig/service"
)

// AuthHandler serves login, refresh and user endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	pair, user, err := h.auth.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			Unauthorized(c, "Invalid username or password")
			return
		}
		InternalError(c, err.Error())
		return
	}

	Success(c, gin.H{
		"tokens": pair,
		"user":   user,
	})
}

// Refresh POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var input struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			Unauthorized(c, "Invalid or expired refresh token")
			return
		}
		InternalError(c, err.Error())
		return
	}

	Success(c, pair)
}

// Me GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.GetUser(c.Request.Context(), c.GetString("username"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			NotFound(c, "User not found")
			return
		}
		InternalError(c, err.Error())
		return
	}
	Success(c, user)
}

// CreateUser POST /users (Administrator only)
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var input struct {
		Username    string      `json:"username" binding:"required"`
		Password    string      `json:"password" binding:"required"`
		DisplayName string      `json:"displayName"`
		Role        entity.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	user, err := h.auth.CreateUser(c.Request.Context(),
		input.Username, input.Password, input.DisplayName, input.Role)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, err.Error())
		return
	}

	Created(c, user)
}
