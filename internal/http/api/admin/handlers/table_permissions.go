package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TablePermissionHandler manages role grants on managed tables.
type TablePermissionHandler struct {
	db *gorm.DB
}

// NewTablePermissionHandler constructs a TablePermissionHandler.
func NewTablePermissionHandler(db *gorm.DB) *TablePermissionHandler {
	return &TablePermissionHandler{db: db}
}

// upsertPermissionRequest carries one (table, role) grant.
type upsertPermissionRequest struct {
	TableID uint64 `json:"table_id"`
	RoleID  uint64 `json:"role_id"`

	CanView   bool `json:"can_view"`
	CanCreate bool `json:"can_create"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`

	CanPublish  bool `json:"can_publish"`
	CanSchedule bool `json:"can_schedule"`
	CanArchive  bool `json:"can_archive"`

	RowFilter string `json:"row_filter"`
}

// Upsert creates or replaces the grant for a (table, role) pair.
func (h *TablePermissionHandler) Upsert(c *gin.Context) {
	var body upsertPermissionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.TableID == 0 || body.RoleID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table_id and role_id are required"})
		return
	}
	ctx := c.Request.Context()

	var table models.Table
	if errFind := h.db.WithContext(ctx).First(&table, body.TableID).Error; errFind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown table"})
		return
	}
	var role models.Role
	if errFind := h.db.WithContext(ctx).First(&role, body.RoleID).Error; errFind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	grant := models.TablePermission{
		TableID:     body.TableID,
		RoleID:      body.RoleID,
		CanView:     body.CanView,
		CanCreate:   body.CanCreate,
		CanUpdate:   body.CanUpdate,
		CanDelete:   body.CanDelete,
		CanPublish:  body.CanPublish,
		CanSchedule: body.CanSchedule,
		CanArchive:  body.CanArchive,
		RowFilter:   strings.TrimSpace(body.RowFilter),
	}
	if errUpsert := h.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "table_id"}, {Name: "role_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"can_view", "can_create", "can_update", "can_delete",
			"can_publish", "can_schedule", "can_archive", "row_filter",
		}),
	}).Create(&grant).Error; errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save permission failed"})
		return
	}
	c.JSON(http.StatusOK, h.format(&grant))
}

// List returns grants filtered by table or role.
func (h *TablePermissionHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.TablePermission{})
	if tableIDQ := strings.TrimSpace(c.Query("table_id")); tableIDQ != "" {
		if id, errParse := strconv.ParseUint(tableIDQ, 10, 64); errParse == nil {
			q = q.Where("table_id = ?", id)
		}
	}
	if roleIDQ := strings.TrimSpace(c.Query("role_id")); roleIDQ != "" {
		if id, errParse := strconv.ParseUint(roleIDQ, 10, 64); errParse == nil {
			q = q.Where("role_id = ?", id)
		}
	}

	var rows []models.TablePermission
	if errFind := q.Order("table_id ASC, role_id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list permissions failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.format(&row))
	}
	c.JSON(http.StatusOK, gin.H{"permissions": out})
}

// Delete removes the grant for a (table, role) pair.
func (h *TablePermissionHandler) Delete(c *gin.Context) {
	tableID, errTable := strconv.ParseUint(strings.TrimSpace(c.Param("tableId")), 10, 64)
	roleID, errRole := strconv.ParseUint(strings.TrimSpace(c.Param("roleId")), 10, 64)
	if errTable != nil || errRole != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Where("table_id = ? AND role_id = ?", tableID, roleID).
		Delete(&models.TablePermission{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete permission failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// format shapes a grant for API responses.
func (h *TablePermissionHandler) format(grant *models.TablePermission) gin.H {
	return gin.H{
		"table_id":     grant.TableID,
		"role_id":      grant.RoleID,
		"can_view":     grant.CanView,
		"can_create":   grant.CanCreate,
		"can_update":   grant.CanUpdate,
		"can_delete":   grant.CanDelete,
		"can_publish":  grant.CanPublish,
		"can_schedule": grant.CanSchedule,
		"can_archive":  grant.CanArchive,
		"row_filter":   grant.RowFilter,
	}
}
