package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RoleHandler manages roles and operator role membership.
type RoleHandler struct {
	db *gorm.DB
}

// NewRoleHandler constructs a RoleHandler.
func NewRoleHandler(db *gorm.DB) *RoleHandler {
	return &RoleHandler{db: db}
}

// createRoleRequest defines the request body for role creation.
type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// Create adds a role.
func (h *RoleHandler) Create(c *gin.Context) {
	var body createRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	role := models.Role{
		Name:        name,
		Description: strings.TrimSpace(body.Description),
		IsActive:    true,
	}
	if body.IsActive != nil {
		role.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&role).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create role failed"})
		return
	}
	c.JSON(http.StatusCreated, h.format(&role))
}

// List returns all roles.
func (h *RoleHandler) List(c *gin.Context) {
	var rows []models.Role
	if errFind := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list roles failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.format(&row))
	}
	c.JSON(http.StatusOK, gin.H{"roles": out})
}

// updateRoleRequest defines optional fields for role updates.
type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// Update applies role changes.
func (h *RoleHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()

	var existing models.Role
	if errFind := h.db.WithContext(ctx).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		existing.Name = name
	}
	if body.Description != nil {
		existing.Description = strings.TrimSpace(*body.Description)
	}
	if body.IsActive != nil {
		existing.IsActive = *body.IsActive
	}

	if errSave := h.db.WithContext(ctx).Save(&existing).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update role failed"})
		return
	}
	c.JSON(http.StatusOK, h.format(&existing))
}

// Delete removes a role, its memberships and its table grants.
func (h *RoleHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errMembers := tx.Where("role_id = ?", id).Delete(&models.UserRole{}).Error; errMembers != nil {
			return errMembers
		}
		if errGrants := tx.Where("role_id = ?", id).Delete(&models.TablePermission{}).Error; errGrants != nil {
			return errGrants
		}
		return tx.Delete(&models.Role{}, id).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete role failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// memberRequest names the operator for membership changes.
type memberRequest struct {
	UserID uint64 `json:"user_id"`
}

// AddMember assigns a role to an operator.
func (h *RoleHandler) AddMember(c *gin.Context) {
	roleID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body memberRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	ctx := c.Request.Context()

	var role models.Role
	if errFind := h.db.WithContext(ctx).First(&role, roleID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
		return
	}
	var operator models.Operator
	if errFind := h.db.WithContext(ctx).First(&operator, body.UserID).Error; errFind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown operator"})
		return
	}

	membership := models.UserRole{UserID: body.UserID, RoleID: roleID}
	if errCreate := h.db.WithContext(ctx).FirstOrCreate(&membership, membership).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assign role failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": body.UserID, "role_id": roleID})
}

// RemoveMember removes an operator from a role.
func (h *RoleHandler) RemoveMember(c *gin.Context) {
	roleID, errRole := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	userID, errUser := strconv.ParseUint(strings.TrimSpace(c.Param("userId")), 10, 64)
	if errRole != nil || errUser != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&models.UserRole{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove role failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Members lists the operators holding a role.
func (h *RoleHandler) Members(c *gin.Context) {
	roleID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var memberships []models.UserRole
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("role_id = ?", roleID).
		Find(&memberships).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list members failed"})
		return
	}
	userIDs := make([]uint64, 0, len(memberships))
	for _, membership := range memberships {
		userIDs = append(userIDs, membership.UserID)
	}
	c.JSON(http.StatusOK, gin.H{"role_id": roleID, "user_ids": userIDs})
}

// format shapes a role for API responses.
func (h *RoleHandler) format(role *models.Role) gin.H {
	return gin.H{
		"id":          role.ID,
		"name":        role.Name,
		"description": role.Description,
		"is_active":   role.IsActive,
	}
}
