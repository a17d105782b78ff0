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

// TableHandler manages table metadata.
type TableHandler struct {
	db *gorm.DB
}

// NewTableHandler constructs a TableHandler.
func NewTableHandler(db *gorm.DB) *TableHandler {
	return &TableHandler{db: db}
}

// createTableRequest defines the request body for table registration.
type createTableRequest struct {
	ConnectionID    uint64 `json:"connection_id"`
	SchemaName      string `json:"schema_name"`
	TableName       string `json:"table_name"`
	DisplayName     string `json:"display_name"`
	PrimaryKey      string `json:"primary_key"`
	IsView          bool   `json:"is_view"`
	RowFilter       string `json:"row_filter"`
	CustomDetailURL string `json:"custom_detail_url"`
}

// Create registers a manageable table under a connection.
func (h *TableHandler) Create(c *gin.Context) {
	var body createTableRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ConnectionID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "connection_id is required"})
		return
	}
	tableName := strings.TrimSpace(body.TableName)
	if tableName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table_name is required"})
		return
	}
	ctx := c.Request.Context()

	var connection models.Connection
	if errFind := h.db.WithContext(ctx).First(&connection, body.ConnectionID).Error; errFind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown connection"})
		return
	}

	table := models.Table{
		ConnectionID:    body.ConnectionID,
		SchemaName:      strings.TrimSpace(body.SchemaName),
		TableName:       tableName,
		DisplayName:     strings.TrimSpace(body.DisplayName),
		PrimaryKey:      strings.TrimSpace(body.PrimaryKey),
		IsView:          body.IsView,
		IsEnabled:       true,
		RowFilter:       strings.TrimSpace(body.RowFilter),
		CustomDetailURL: strings.TrimSpace(body.CustomDetailURL),
	}
	if errCreate := h.db.WithContext(ctx).Create(&table).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create table failed"})
		return
	}
	c.JSON(http.StatusCreated, h.format(&table))
}

// List returns tables, optionally filtered by connection.
func (h *TableHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Table{})
	if connectionIDQ := strings.TrimSpace(c.Query("connection_id")); connectionIDQ != "" {
		if id, errParse := strconv.ParseUint(connectionIDQ, 10, 64); errParse == nil {
			q = q.Where("connection_id = ?", id)
		}
	}

	var rows []models.Table
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tables failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.format(&row))
	}
	c.JSON(http.StatusOK, gin.H{"tables": out})
}

// Get fetches a table by ID.
func (h *TableHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var table models.Table
	if errFind := h.db.WithContext(c.Request.Context()).First(&table, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.format(&table))
}

// updateTableRequest defines optional fields for table updates.
type updateTableRequest struct {
	DisplayName     *string `json:"display_name"`
	PrimaryKey      *string `json:"primary_key"`
	IsView          *bool   `json:"is_view"`
	IsEnabled       *bool   `json:"is_enabled"`
	RowFilter       *string `json:"row_filter"`
	CustomDetailURL *string `json:"custom_detail_url"`
}

// Update applies table metadata changes.
func (h *TableHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateTableRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()

	var existing models.Table
	if errFind := h.db.WithContext(ctx).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if body.DisplayName != nil {
		existing.DisplayName = strings.TrimSpace(*body.DisplayName)
	}
	if body.PrimaryKey != nil {
		existing.PrimaryKey = strings.TrimSpace(*body.PrimaryKey)
	}
	if body.IsView != nil {
		existing.IsView = *body.IsView
	}
	if body.IsEnabled != nil {
		existing.IsEnabled = *body.IsEnabled
	}
	if body.RowFilter != nil {
		existing.RowFilter = strings.TrimSpace(*body.RowFilter)
	}
	if body.CustomDetailURL != nil {
		existing.CustomDetailURL = strings.TrimSpace(*body.CustomDetailURL)
	}

	if errSave := h.db.WithContext(ctx).Save(&existing).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update table failed"})
		return
	}
	c.JSON(http.StatusOK, h.format(&existing))
}

// Delete removes a table and its column metadata and permissions.
func (h *TableHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errColumns := tx.Where("table_id = ?", id).Delete(&models.Column{}).Error; errColumns != nil {
			return errColumns
		}
		if errPermissions := tx.Where("table_id = ?", id).Delete(&models.TablePermission{}).Error; errPermissions != nil {
			return errPermissions
		}
		return tx.Delete(&models.Table{}, id).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete table failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// format shapes a table for API responses.
func (h *TableHandler) format(table *models.Table) gin.H {
	return gin.H{
		"id":                table.ID,
		"connection_id":     table.ConnectionID,
		"schema_name":       table.SchemaName,
		"table_name":        table.TableName,
		"display_name":      table.DisplayName,
		"primary_key":       table.PrimaryKey,
		"is_view":           table.IsView,
		"is_enabled":        table.IsEnabled,
		"row_filter":        table.RowFilter,
		"custom_detail_url": table.CustomDetailURL,
	}
}
