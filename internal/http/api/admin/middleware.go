package admin

import (
	"net/http"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/config"
	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/cmstools-dev/cmstools/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Context keys populated by the middleware chain.
const (
	ContextOperatorID   = "operatorID"
	ContextOperatorName = "operatorName"
	ContextIsSuperAdmin = "isSuperAdmin"
	ContextRequestID    = "requestID"
)

// RequestIDHeader carries the correlation ID on requests and responses.
const RequestIDHeader = "X-Request-Id"

// requestIDMiddleware assigns each request a correlation ID, honoring one
// supplied by the caller.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestID, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()
	}
}

// operatorAuthMiddleware validates operator JWTs and loads the operator into
// the request context.
func operatorAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseOperatorToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var operator models.Operator
		if errFind := db.WithContext(c.Request.Context()).First(&operator, claims.OperatorID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator not found"})
			return
		}
		if !operator.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator disabled"})
			return
		}

		c.Set(ContextOperatorID, operator.ID)
		c.Set(ContextOperatorName, operator.Username)
		c.Set(ContextIsSuperAdmin, operator.IsSuperAdmin)
		c.Next()
	}
}

// superAdminMiddleware restricts schema-management routes to super admins.
func superAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		isSuper, ok := c.Get(ContextIsSuperAdmin)
		if !ok || isSuper != true {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}
