package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/FortiShop/product-inventory-service/internal/models"
)

const (
	roleHeader = "X-ROLE"
	roleAdmin  = "ROLE_ADMIN"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// AdminOnly rejects requests whose X-ROLE header is not exactly ROLE_ADMIN.
// The check runs before any binding or state access, so an unauthorized
// caller learns nothing about the resource.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(roleHeader) != roleAdmin {
			log.Warn().
				Str("request_id", getRequestID(c)).
				Str("path", c.Request.URL.Path).
				Msg("Rejected request without admin role")
			Response.Unauthorized(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ResponseHelpers provides methods for REST-native responses
type ResponseHelpers struct{}

func (h *ResponseHelpers) Success(c *gin.Context, resource interface{}) {
	c.JSON(http.StatusOK, resource)
}

// NotFound sends a 404 with the P001 error body
func (h *ResponseHelpers) NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, models.NewErrorResponse(models.ErrorCodeProductNotFound, message))
}

// Unauthorized sends a 401 with the P002 error body
func (h *ResponseHelpers) Unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrorCodeUnauthorized, "admin role required"))
}

// BadRequest sends a 400 with the P003 error body
func (h *ResponseHelpers) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrorCodeInvalidRequest, message))
}

// InternalError sends a 500 with the P999 error body, logging the cause
// without exposing it
func (h *ResponseHelpers) InternalError(c *gin.Context, err error) {
	log.Error().
		Str("request_id", getRequestID(c)).
		Err(err).
		Msg("Internal server error")
	c.JSON(http.StatusInternalServerError, models.NewErrorResponse(models.ErrorCodeInternalError, "an unexpected error occurred"))
}

func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		return requestID.(string)
	}
	return ""
}

// Create a global instance for easy access
var Response = &ResponseHelpers{}
