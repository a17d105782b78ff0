package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditLogHandler serves the audit trail.
type AuditLogHandler struct {
	db *gorm.DB
}

// NewAuditLogHandler constructs an AuditLogHandler.
func NewAuditLogHandler(db *gorm.DB) *AuditLogHandler {
	return &AuditLogHandler{db: db}
}

// List returns audit entries, newest first, filtered by table, operation or
// operator.
func (h *AuditLogHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.AuditLog{})
	if tableQ := strings.TrimSpace(c.Query("table_name")); tableQ != "" {
		q = q.Where("table_name = ?", tableQ)
	}
	if operationQ := strings.TrimSpace(c.Query("operation")); operationQ != "" {
		q = q.Where("operation = ?", operationQ)
	}
	if userQ := strings.TrimSpace(c.Query("user_id")); userQ != "" {
		if id, errParse := strconv.ParseUint(userQ, 10, 64); errParse == nil {
			q = q.Where("user_id = ?", id)
		}
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count audit entries failed"})
		return
	}

	var rows []models.AuditLog
	if errFind := q.Order("id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list audit entries failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":                 row.ID,
			"user_id":            row.UserID,
			"username":           row.Username,
			"operation":          row.Operation,
			"connection_name":    row.ConnectionName,
			"schema_name":        row.SchemaName,
			"table_name":         row.TargetTable,
			"primary_key_column": row.PrimaryKeyColumn,
			"primary_key_value":  row.PrimaryKeyValue,
			"ip_address":         row.IPAddress,
			"user_agent":         row.UserAgent,
			"request_id":         row.RequestID,
			"old_values":         row.OldValues,
			"new_values":         row.NewValues,
			"created_at_utc":     row.CreatedAtUTC,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":   out,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
