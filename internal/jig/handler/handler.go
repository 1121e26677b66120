package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/porast/jigman/internal/config"
	"github.com/porast/jigman/internal/jig/service"
)

// Handlers is the handler set for the HTTP surface.
type Handlers struct {
	Auth   *AuthHandler
	Jig    *JigHandler
	Export *ExportHandler
	SSE    *SSEHandler
}

// NewHandlers creates the handler set.
func NewHandlers(svc *service.Services, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:   NewAuthHandler(svc.Auth),
		Jig:    NewJigHandler(svc.Inventory),
		Export: NewExportHandler(svc.Inventory, svc.Export),
		SSE:    NewSSEHandler(svc.Hub),
	}
}

// Response is the common response envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created writes a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error writes an error response. The HTTP status is the leading three
// digits of the application code.
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}
