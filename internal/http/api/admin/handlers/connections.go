package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/cmstools-dev/cmstools/internal/router"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ConnectionHandler manages target connection metadata.
type ConnectionHandler struct {
	db   *gorm.DB
	pool *router.Pool // Cached target handles, evicted on edits.
}

// NewConnectionHandler constructs a ConnectionHandler.
func NewConnectionHandler(db *gorm.DB, pool *router.Pool) *ConnectionHandler {
	return &ConnectionHandler{db: db, pool: pool}
}

// createConnectionRequest defines the request body for connection creation.
type createConnectionRequest struct {
	Name       string `json:"name"`
	Provider   string `json:"provider"`
	ConnString string `json:"conn_string"`
	IsActive   *bool  `json:"is_active"`
}

// validProvider reports whether the provider tag is supported.
func validProvider(provider string) bool {
	return provider == models.ProviderPostgres || provider == models.ProviderSQLite
}

// Create registers a new target connection.
func (h *ConnectionHandler) Create(c *gin.Context) {
	var body createConnectionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	provider := strings.TrimSpace(body.Provider)
	if !validProvider(provider) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be postgres or sqlite"})
		return
	}
	connString := strings.TrimSpace(body.ConnString)
	if connString == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conn_string is required"})
		return
	}

	connection := models.Connection{
		Name:       name,
		Provider:   provider,
		ConnString: connString,
		IsActive:   true,
	}
	if body.IsActive != nil {
		connection.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&connection).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create connection failed"})
		return
	}
	c.JSON(http.StatusCreated, h.format(&connection))
}

// List returns all connections.
func (h *ConnectionHandler) List(c *gin.Context) {
	var rows []models.Connection
	if errFind := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list connections failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.format(&row))
	}
	c.JSON(http.StatusOK, gin.H{"connections": out})
}

// Get fetches a connection by ID.
func (h *ConnectionHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var connection models.Connection
	if errFind := h.db.WithContext(c.Request.Context()).First(&connection, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.format(&connection))
}

// updateConnectionRequest defines optional fields for connection updates.
type updateConnectionRequest struct {
	Name       *string `json:"name"`
	Provider   *string `json:"provider"`
	ConnString *string `json:"conn_string"`
	IsActive   *bool   `json:"is_active"`
}

// Update applies connection changes. Deactivating a connection disables
// every table that references it; any change evicts the pooled handle so
// the next access reconnects with fresh settings.
func (h *ConnectionHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateConnectionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()

	var existing models.Connection
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
	if body.Provider != nil {
		provider := strings.TrimSpace(*body.Provider)
		if !validProvider(provider) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be postgres or sqlite"})
			return
		}
		existing.Provider = provider
	}
	if body.ConnString != nil {
		connString := strings.TrimSpace(*body.ConnString)
		if connString == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conn_string cannot be empty"})
			return
		}
		existing.ConnString = connString
	}
	deactivated := false
	if body.IsActive != nil {
		deactivated = existing.IsActive && !*body.IsActive
		existing.IsActive = *body.IsActive
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errSave := tx.Save(&existing).Error; errSave != nil {
			return errSave
		}
		if deactivated {
			return tx.Model(&models.Table{}).
				Where("connection_id = ?", existing.ID).
				Update("is_enabled", false).Error
		}
		return nil
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update connection failed"})
		return
	}

	h.pool.Evict(existing.ID)
	c.JSON(http.StatusOK, h.format(&existing))
}

// Delete removes a connection that no table references.
func (h *ConnectionHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	ctx := c.Request.Context()

	var dependents int64
	if errCount := h.db.WithContext(ctx).Model(&models.Table{}).Where("connection_id = ?", id).Count(&dependents).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if dependents > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "connection has dependent tables"})
		return
	}

	result := h.db.WithContext(ctx).Delete(&models.Connection{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete connection failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.pool.Evict(id)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// format shapes a connection for API responses. The connection string is
// never echoed back.
func (h *ConnectionHandler) format(connection *models.Connection) gin.H {
	return gin.H{
		"id":        connection.ID,
		"name":      connection.Name,
		"provider":  connection.Provider,
		"is_active": connection.IsActive,
	}
}
