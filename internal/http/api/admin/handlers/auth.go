package handlers

import (
	"net/http"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/config"
	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/cmstools-dev/cmstools/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler handles operator authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest defines the request body for operator login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates an operator and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(body.Username)
	password := strings.TrimSpace(body.Password)
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	var operator models.Operator
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&operator).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !operator.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "operator account is disabled"})
		return
	}
	if !security.CheckPassword(operator.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errToken := security.GenerateOperatorToken(h.jwtCfg.Secret, operator.ID, operator.Username, operator.IsSuperAdmin, h.jwtCfg.Expiry.Std())
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"operator": gin.H{
			"id":             operator.ID,
			"username":       operator.Username,
			"is_super_admin": operator.IsSuperAdmin,
		},
	})
}
