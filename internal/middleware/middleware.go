package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"queuedesk/internal/auth"
	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/logger"
	"queuedesk/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	identityKey  = "identity"
	requestIDKey = "request_id"

	RequestIDHeader = "X-Request-ID"
)

// IdentityFromContext returns the caller set by Authenticate.
func IdentityFromContext(c *gin.Context) (*models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*models.Identity)
	return identity, ok
}

// CORS middleware для обработки CORS запросов
func CORS(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// RequestID propagates or generates a request id and puts it on the request context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = logger.NewRequestID()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Logger middleware для структурированного логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		if id, ok := c.Get(requestIDKey); ok {
			logFields = append(logFields, "request_id", id)
		}
		if identity, ok := IdentityFromContext(c); ok {
			logFields = append(logFields, "user_id", identity.UserID)
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			if len(c.Errors) > 0 {
				logFields = append(logFields, "error", c.Errors.String())
			}
			slog.Error("Request completed with error", logFields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			slog.Warn("Request rejected", logFields...)
		default:
			slog.Debug("Request completed", logFields...)
		}
	}
}

// Recovery middleware для восстановления после паники с детальным логированием
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		slog.Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		c.Abort()
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// Authenticate проверяет Bearer токен и сохраняет личность вызывающего в контексте
func Authenticate(validator auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abort(c, apperrors.ErrMissingToken)
			return
		}

		identity, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			if apperrors.HTTPStatus(err) == http.StatusUnauthorized {
				abort(c, err)
				return
			}
			slog.Error("Token validation failed", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Authentication service unavailable"})
			return
		}

		c.Set(identityKey, identity)
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), identity.UserID))
		c.Next()
	}
}

// RequireRole allows the request through only for the listed roles.
// Must run after Authenticate.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	denied := apperrors.ErrStaffOnly
	if len(roles) == 1 && roles[0] == models.RoleAdmin {
		denied = apperrors.ErrAdminOnly
	}

	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			abort(c, apperrors.ErrMissingToken)
			return
		}
		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}
		abort(c, denied)
	}
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err, "Internal server error")})
}
