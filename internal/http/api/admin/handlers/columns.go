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

// ColumnHandler manages column metadata.
type ColumnHandler struct {
	db *gorm.DB
}

// NewColumnHandler constructs a ColumnHandler.
func NewColumnHandler(db *gorm.DB) *ColumnHandler {
	return &ColumnHandler{db: db}
}

// createColumnRequest defines the request body for column creation.
type createColumnRequest struct {
	TableID     uint64 `json:"table_id"`
	ColumnName  string `json:"column_name"`
	DisplayName string `json:"display_name"`
	DataType    string `json:"data_type"`
	IsNullable  *bool  `json:"is_nullable"`
	IsPrimary   bool   `json:"is_primary"`
	IsList      *bool  `json:"is_list"`
	IsEditable  bool   `json:"is_editable"`
	IsFilter    bool   `json:"is_filter"`
	Width       int    `json:"width"`
	Format      string `json:"format"`
	SortOrder   int    `json:"sort_order"`
	DefaultExpr string `json:"default_expr"`
}

// Create adds a column to a table's metadata. Columns that already exist by
// name are left untouched so manual configuration survives re-registration.
func (h *ColumnHandler) Create(c *gin.Context) {
	var body createColumnRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.TableID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table_id is required"})
		return
	}
	columnName := strings.TrimSpace(body.ColumnName)
	if columnName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "column_name is required"})
		return
	}
	ctx := c.Request.Context()

	var table models.Table
	if errFind := h.db.WithContext(ctx).First(&table, body.TableID).Error; errFind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown table"})
		return
	}

	var count int64
	if errCount := h.db.WithContext(ctx).Model(&models.Column{}).
		Where("table_id = ? AND column_name = ?", body.TableID, columnName).
		Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "column already exists"})
		return
	}

	column := models.Column{
		TableID:     body.TableID,
		ColumnName:  columnName,
		DisplayName: strings.TrimSpace(body.DisplayName),
		DataType:    strings.TrimSpace(body.DataType),
		IsNullable:  true,
		IsPrimary:   body.IsPrimary,
		IsList:      true,
		IsEditable:  body.IsEditable,
		IsFilter:    body.IsFilter,
		Width:       body.Width,
		Format:      strings.TrimSpace(body.Format),
		SortOrder:   body.SortOrder,
		DefaultExpr: strings.TrimSpace(body.DefaultExpr),
	}
	if body.IsNullable != nil {
		column.IsNullable = *body.IsNullable
	}
	if body.IsList != nil {
		column.IsList = *body.IsList
	}
	if errCreate := h.db.WithContext(ctx).Create(&column).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create column failed"})
		return
	}
	c.JSON(http.StatusCreated, h.format(&column))
}

// List returns the columns of a table ordered like the grid.
func (h *ColumnHandler) List(c *gin.Context) {
	tableID, errParse := strconv.ParseUint(strings.TrimSpace(c.Query("table_id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table_id is required"})
		return
	}

	var rows []models.Column
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("table_id = ?", tableID).
		Order("sort_order ASC, column_name ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list columns failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.format(&row))
	}
	c.JSON(http.StatusOK, gin.H{"columns": out})
}

// updateColumnRequest defines optional fields for column updates.
type updateColumnRequest struct {
	DisplayName *string `json:"display_name"`
	DataType    *string `json:"data_type"`
	IsNullable  *bool   `json:"is_nullable"`
	IsPrimary   *bool   `json:"is_primary"`
	IsList      *bool   `json:"is_list"`
	IsEditable  *bool   `json:"is_editable"`
	IsFilter    *bool   `json:"is_filter"`
	Width       *int    `json:"width"`
	Format      *string `json:"format"`
	SortOrder   *int    `json:"sort_order"`
	DefaultExpr *string `json:"default_expr"`
}

// Update applies column metadata changes.
func (h *ColumnHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateColumnRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()

	var existing models.Column
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
	if body.DataType != nil {
		existing.DataType = strings.TrimSpace(*body.DataType)
	}
	if body.IsNullable != nil {
		existing.IsNullable = *body.IsNullable
	}
	if body.IsPrimary != nil {
		existing.IsPrimary = *body.IsPrimary
	}
	if body.IsList != nil {
		existing.IsList = *body.IsList
	}
	if body.IsEditable != nil {
		existing.IsEditable = *body.IsEditable
	}
	if body.IsFilter != nil {
		existing.IsFilter = *body.IsFilter
	}
	if body.Width != nil {
		existing.Width = *body.Width
	}
	if body.Format != nil {
		existing.Format = strings.TrimSpace(*body.Format)
	}
	if body.SortOrder != nil {
		existing.SortOrder = *body.SortOrder
	}
	if body.DefaultExpr != nil {
		existing.DefaultExpr = strings.TrimSpace(*body.DefaultExpr)
	}

	if errSave := h.db.WithContext(ctx).Save(&existing).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update column failed"})
		return
	}
	c.JSON(http.StatusOK, h.format(&existing))
}

// Delete removes a column's metadata.
func (h *ColumnHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	result := h.db.WithContext(c.Request.Context()).Delete(&models.Column{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete column failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// format shapes a column for API responses.
func (h *ColumnHandler) format(column *models.Column) gin.H {
	return gin.H{
		"id":           column.ID,
		"table_id":     column.TableID,
		"column_name":  column.ColumnName,
		"display_name": column.DisplayName,
		"data_type":    column.DataType,
		"is_nullable":  column.IsNullable,
		"is_primary":   column.IsPrimary,
		"is_list":      column.IsList,
		"is_editable":  column.IsEditable,
		"is_filter":    column.IsFilter,
		"width":        column.Width,
		"format":       column.Format,
		"sort_order":   column.SortOrder,
		"default_expr": column.DefaultExpr,
	}
}
