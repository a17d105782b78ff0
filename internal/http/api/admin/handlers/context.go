package handlers

import (
	"github.com/cmstools-dev/cmstools/internal/audit"
	"github.com/gin-gonic/gin"
)

// operatorFromContext reads the authenticated operator from the gin context.
func operatorFromContext(c *gin.Context) (operatorID uint64, username string, isSuperAdmin bool, ok bool) {
	idValue, exists := c.Get("operatorID")
	if !exists {
		return 0, "", false, false
	}
	operatorID, okID := idValue.(uint64)
	if !okID {
		return 0, "", false, false
	}
	username = c.GetString("operatorName")
	isSuperAdmin = c.GetBool("isSuperAdmin")
	return operatorID, username, isSuperAdmin, true
}

// requestMeta builds the audit request metadata for the current request.
func requestMeta(c *gin.Context) audit.RequestMeta {
	return audit.MetaFromRequest(c.Request, c.GetString("requestID"))
}
