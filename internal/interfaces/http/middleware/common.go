// Package middleware provides HTTP middleware for the stock ledger API.
package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/erp/stockcore/internal/infrastructure/logger"
	"github.com/erp/stockcore/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Header names read or written by the middleware
const (
	HeaderRequestID = "X-Request-ID"
	HeaderActorID   = "X-Actor-ID"
)

const (
	// MaxRequestIDLength bounds client supplied request IDs
	MaxRequestIDLength = 128
	// MaxActorIDLength matches the created_by columns of the ledger tables
	MaxActorIDLength = 100
)

// RequestID adds a unique request ID to each request, keeping a client supplied one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if len(requestID) > MaxRequestIDLength {
			requestID = requestID[:MaxRequestIDLength]
		}
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Set(logger.GinRequestIDKey, requestID)
		c.Writer.Header().Set(HeaderRequestID, requestID)
		c.Next()
	}
}

// Actor reads the acting user from X-Actor-ID and attaches it to the
// request context. With required set, requests without one are rejected.
func Actor(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if len(actor) > MaxActorIDLength {
			abortWithCode(c, dto.ErrCodeInvalidInput, "X-Actor-ID is too long")
			return
		}
		if actor == "" {
			if required && mutates(c.Request.Method) {
				abortWithCode(c, dto.ErrCodeActorRequired, "X-Actor-ID header is required")
				return
			}
			c.Next()
			return
		}

		c.Set(logger.GinActorIDKey, actor)
		ctx, _ := logger.WithActorID(c.Request.Context(), logger.GetGinLogger(c), actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetActor returns the actor set by Actor, or "" when none was sent
func GetActor(c *gin.Context) string {
	return c.GetString(logger.GinActorIDKey)
}

// GetRequestID returns the request ID set by RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(logger.GinRequestIDKey)
}

func mutates(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func abortWithCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code),
		dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return time.Now().UTC().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}
