package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safar-travel/service-booking/internal/domain"
)

// Envelope is the standard JSON body for every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Success writes a 200 response with the given payload.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// BadRequest writes a 400 response with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Success: false, Error: message})
}

// Unauthorized writes a 401 response.
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Envelope{Success: false, Error: message})
}

// Error maps a domain error to its HTTP status. Unknown errors become opaque
// 500s so internals never leak to clients.
func Error(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, Envelope{Success: false, Error: err.Error()})
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, Envelope{Success: false, Error: err.Error()})
	case domain.IsBusinessRule(err):
		c.JSON(http.StatusUnprocessableEntity, Envelope{Success: false, Error: err.Error()})
	case domain.IsInvalidState(err):
		c.JSON(http.StatusUnprocessableEntity, Envelope{Success: false, Error: err.Error()})
	case domain.IsConflict(err):
		c.JSON(http.StatusConflict, Envelope{Success: false, Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, Envelope{Success: false, Error: "internal server error"})
	}
}
