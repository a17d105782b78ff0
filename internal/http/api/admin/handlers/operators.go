package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/cmstools-dev/cmstools/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// OperatorHandler manages operator accounts.
type OperatorHandler struct {
	db *gorm.DB
}

// NewOperatorHandler constructs an OperatorHandler.
func NewOperatorHandler(db *gorm.DB) *OperatorHandler {
	return &OperatorHandler{db: db}
}

// createOperatorRequest defines the request body for operator creation.
type createOperatorRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

// Create creates a new operator account.
func (h *OperatorHandler) Create(c *gin.Context) {
	var body createOperatorRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	operator := models.Operator{
		Username:     username,
		Password:     hash,
		Active:       true,
		IsSuperAdmin: body.IsSuperAdmin,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&operator).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create operator failed"})
		return
	}
	c.JSON(http.StatusCreated, h.format(&operator))
}

// List returns all operator accounts.
func (h *OperatorHandler) List(c *gin.Context) {
	var rows []models.Operator
	if errFind := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list operators failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.format(&row))
	}
	c.JSON(http.StatusOK, gin.H{"operators": out})
}

// updateOperatorRequest defines optional fields for operator updates.
type updateOperatorRequest struct {
	Password     *string `json:"password"`
	Active       *bool   `json:"active"`
	IsSuperAdmin *bool   `json:"is_super_admin"`
}

// Update applies operator account changes.
func (h *OperatorHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateOperatorRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()

	var existing models.Operator
	if errFind := h.db.WithContext(ctx).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if body.Password != nil {
		password := strings.TrimSpace(*body.Password)
		if password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password cannot be empty"})
			return
		}
		hash, errHash := security.HashPassword(password)
		if errHash != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
			return
		}
		existing.Password = hash
	}
	if body.Active != nil {
		existing.Active = *body.Active
	}
	if body.IsSuperAdmin != nil {
		existing.IsSuperAdmin = *body.IsSuperAdmin
	}

	if errSave := h.db.WithContext(ctx).Save(&existing).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update operator failed"})
		return
	}
	c.JSON(http.StatusOK, h.format(&existing))
}

// Delete removes an operator account and its role memberships.
func (h *OperatorHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errMembers := tx.Where("user_id = ?", id).Delete(&models.UserRole{}).Error; errMembers != nil {
			return errMembers
		}
		return tx.Delete(&models.Operator{}, id).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete operator failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// format shapes an operator for API responses. The password hash is never
// echoed back.
func (h *OperatorHandler) format(operator *models.Operator) gin.H {
	return gin.H{
		"id":             operator.ID,
		"username":       operator.Username,
		"active":         operator.Active,
		"is_super_admin": operator.IsSuperAdmin,
	}
}
