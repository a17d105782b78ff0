package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cmstools-dev/cmstools/internal/audit"
	"github.com/cmstools-dev/cmstools/internal/lookup"
	"github.com/cmstools-dev/cmstools/internal/metadata"
	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/cmstools-dev/cmstools/internal/permissions"
	"github.com/cmstools-dev/cmstools/internal/router"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// DataHandler serves the generic data API: grid queries, row fetches and
// mutations against metadata-described tables.
type DataHandler struct {
	store    *metadata.Store
	resolver *permissions.Resolver
	router   *router.Router
	lookups  *lookup.Service
	auditor  *audit.Logger
}

// NewDataHandler constructs a DataHandler.
func NewDataHandler(store *metadata.Store, resolver *permissions.Resolver, rt *router.Router, lookups *lookup.Service, auditor *audit.Logger) *DataHandler {
	return &DataHandler{store: store, resolver: resolver, router: rt, lookups: lookups, auditor: auditor}
}

// tableContext is the resolved metadata and permission state for one request.
type tableContext struct {
	table      *models.Table
	connection *models.Connection
	columns    []models.Column // All columns of the table.
	effective  permissions.Effective
	operatorID uint64
	username   string
}

// resolveTable loads table, connection, columns and the effective permission
// for the acting operator. It writes the error response and returns nil when
// the request cannot proceed.
func (h *DataHandler) resolveTable(c *gin.Context) *tableContext {
	tableID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("tableId")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid table id"})
		return nil
	}
	ctx := c.Request.Context()

	table, errTable := h.store.GetTable(ctx, tableID)
	if errTable != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load table failed"})
		return nil
	}
	if table == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
		return nil
	}

	connection, errConnection := h.store.GetConnection(ctx, table.ConnectionID)
	if errConnection != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load connection failed"})
		return nil
	}
	if connection == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return nil
	}

	operatorID, username, isSuperAdmin, ok := operatorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "operator not found"})
		return nil
	}
	effective, errEffective := h.resolver.Effective(ctx, operatorID, table.ID, isSuperAdmin)
	if errEffective != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve permissions failed"})
		return nil
	}

	columns, errColumns := h.store.GetColumns(ctx, table.ID, false)
	if errColumns != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load columns failed"})
		return nil
	}

	return &tableContext{
		table:      table,
		connection: connection,
		columns:    columns,
		effective:  effective,
		operatorID: operatorID,
		username:   username,
	}
}

// Grid returns one page of rows with the total count, column metadata and
// resolved lookup lists.
func (h *DataHandler) Grid(c *gin.Context) {
	tc := h.resolveTable(c)
	if tc == nil {
		return
	}
	if !tc.effective.CanView {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}
	ctx := c.Request.Context()

	listColumns, errList := h.store.GetColumns(ctx, tc.table.ID, true)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load columns failed"})
		return
	}

	target, errTarget := h.router.Pool().Get(tc.connection)
	if errTarget != nil {
		log.WithError(errTarget).WithField("connection", tc.connection.Name).Error("open target connection failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "target database unavailable"})
		return
	}

	filterValues := make(map[string]string, len(tc.columns))
	for _, column := range tc.columns {
		if !column.IsFilter {
			continue
		}
		if value := strings.TrimSpace(c.Query(column.ColumnName)); value != "" {
			filterValues[column.ColumnName] = value
		}
	}
	fragments, params := router.BuildUserFilters(target, tc.columns, filterValues)
	where := router.ComposeWhere(tc.table.RowFilter, tc.effective.RowFilter, fragments)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(router.DefaultPageSize)))

	result, errQuery := h.router.Query(ctx, tc.connection, tc.table, listColumns, where, params, page, pageSize)
	if errQuery != nil {
		respondRouterError(c, errQuery)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rows":      result.Rows,
		"total":     result.Total,
		"page":      page,
		"page_size": pageSize,
		"columns":   formatColumns(listColumns),
		"lookups":   h.lookups.Resolve(ctx, tc.connection, tc.columns),
		"permissions": gin.H{
			"can_create": tc.effective.CanCreate,
			"can_update": tc.effective.CanUpdate,
			"can_delete": tc.effective.CanDelete,
		},
	})
}

// GetRow returns a single row by primary key.
func (h *DataHandler) GetRow(c *gin.Context) {
	tc := h.resolveTable(c)
	if tc == nil {
		return
	}
	if !tc.effective.CanView {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	pkColumn, errPK := router.ResolvePrimaryKey(tc.table, tc.columns)
	if errPK != nil {
		respondRouterError(c, errPK)
		return
	}

	row, errGet := h.router.GetRow(c.Request.Context(), tc.connection, tc.table, tc.columns, pkColumn, c.Param("id"))
	if errGet != nil {
		respondRouterError(c, errGet)
		return
	}
	if row == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "row not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"row": row, "columns": formatColumns(tc.columns)})
}

// mutationRequest carries raw column values for insert and update calls.
type mutationRequest struct {
	Values map[string]string `json:"values"`
}

// Update modifies the editable columns of one row and audits the change.
func (h *DataHandler) Update(c *gin.Context) {
	tc := h.resolveTable(c)
	if tc == nil {
		return
	}
	if !tc.effective.CanUpdate {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}
	if tc.table.IsView {
		c.JSON(http.StatusBadRequest, gin.H{"error": "views are read-only"})
		return
	}

	var body mutationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	pkColumn, errPK := router.ResolvePrimaryKey(tc.table, tc.columns)
	if errPK != nil {
		respondRouterError(c, errPK)
		return
	}

	editable, values, errCoerce := coerceEditableValues(tc.columns, body.Values)
	if errCoerce != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errCoerce.Error()})
		return
	}

	ctx := c.Request.Context()
	pkValue := c.Param("id")
	before, errBefore := h.router.GetRow(ctx, tc.connection, tc.table, tc.columns, pkColumn, pkValue)
	if errBefore != nil {
		respondRouterError(c, errBefore)
		return
	}
	if before == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "row not found"})
		return
	}

	affected, errUpdate := h.router.UpdateRow(ctx, tc.connection, tc.table, editable, pkColumn, pkValue, values)
	if errUpdate != nil {
		respondRouterError(c, errUpdate)
		return
	}

	if affected > 0 {
		after, _ := h.router.GetRow(ctx, tc.connection, tc.table, tc.columns, pkColumn, pkValue)
		h.auditor.Log(ctx, audit.Entry{
			UserID:    tc.operatorID,
			Username:  tc.username,
			Operation: models.AuditOpUpdate,
			Table:     tc.table,
			PKColumn:  pkColumn,
			PKValue:   pkValue,
			OldValues: snapshot(before, values),
			NewValues: snapshot(after, values),
			Meta:      requestMeta(c),
		})
	}
	c.JSON(http.StatusOK, gin.H{"updated": affected})
}

// Create inserts a row, applying symbolic column defaults, and audits it.
func (h *DataHandler) Create(c *gin.Context) {
	tc := h.resolveTable(c)
	if tc == nil {
		return
	}
	if !tc.effective.CanCreate {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}
	if tc.table.IsView {
		c.JSON(http.StatusBadRequest, gin.H{"error": "views are read-only"})
		return
	}

	var body mutationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	pkColumn, errPK := router.ResolvePrimaryKey(tc.table, tc.columns)
	if errPK != nil {
		respondRouterError(c, errPK)
		return
	}

	editable, values, errCoerce := coerceEditableValues(tc.columns, body.Values)
	if errCoerce != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errCoerce.Error()})
		return
	}

	// Columns with a symbolic default fill in when the caller omitted them.
	now := time.Now().UTC()
	for _, column := range tc.columns {
		if column.ColumnName == pkColumn {
			continue
		}
		if _, supplied := values[column.ColumnName]; supplied {
			continue
		}
		value, ok := metadata.EvaluateDefault(column.DefaultExpr, tc.operatorID, now)
		if !ok {
			continue
		}
		editable = append(editable, column)
		values[column.ColumnName] = value
	}
	if len(values) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no values supplied"})
		return
	}

	ctx := c.Request.Context()
	newKey, errInsert := h.router.InsertRow(ctx, tc.connection, tc.table, editable, pkColumn, values)
	if errInsert != nil {
		respondRouterError(c, errInsert)
		return
	}

	after, _ := h.router.GetRow(ctx, tc.connection, tc.table, tc.columns, pkColumn, newKey)
	h.auditor.Log(ctx, audit.Entry{
		UserID:    tc.operatorID,
		Username:  tc.username,
		Operation: models.AuditOpCreate,
		Table:     tc.table,
		PKColumn:  pkColumn,
		PKValue:   newKey,
		NewValues: snapshot(after, values),
		Meta:      requestMeta(c),
	})
	c.JSON(http.StatusCreated, gin.H{"id": newKey})
}

// setStatusRequest names the status column, the new value and the workflow
// action that gates the transition.
type setStatusRequest struct {
	Column string `json:"column"`
	Value  string `json:"value"`
	Action string `json:"action"` // publish, schedule, archive or empty.
}

// SetStatus updates a single status column, gated on the workflow capability
// matching the requested action.
func (h *DataHandler) SetStatus(c *gin.Context) {
	tc := h.resolveTable(c)
	if tc == nil {
		return
	}
	if tc.table.IsView {
		c.JSON(http.StatusBadRequest, gin.H{"error": "views are read-only"})
		return
	}

	var body setStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var allowed bool
	switch strings.ToLower(strings.TrimSpace(body.Action)) {
	case "publish":
		allowed = tc.effective.CanPublish
	case "schedule":
		allowed = tc.effective.CanSchedule
	case "archive":
		allowed = tc.effective.CanArchive
	case "":
		allowed = tc.effective.CanUpdate
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	columnName := strings.TrimSpace(body.Column)
	var statusColumn *models.Column
	for i := range tc.columns {
		if tc.columns[i].ColumnName == columnName && tc.columns[i].IsEditable {
			statusColumn = &tc.columns[i]
			break
		}
	}
	if statusColumn == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status column"})
		return
	}
	value, errCoerce := router.CoerceWriteValue(*statusColumn, body.Value)
	if errCoerce != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errCoerce.Error()})
		return
	}

	pkColumn, errPK := router.ResolvePrimaryKey(tc.table, tc.columns)
	if errPK != nil {
		respondRouterError(c, errPK)
		return
	}

	ctx := c.Request.Context()
	pkValue := c.Param("id")
	before, errBefore := h.router.GetRow(ctx, tc.connection, tc.table, tc.columns, pkColumn, pkValue)
	if errBefore != nil {
		respondRouterError(c, errBefore)
		return
	}
	if before == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "row not found"})
		return
	}

	values := map[string]any{statusColumn.ColumnName: value}
	affected, errUpdate := h.router.UpdateRow(ctx, tc.connection, tc.table, []models.Column{*statusColumn}, pkColumn, pkValue, values)
	if errUpdate != nil {
		respondRouterError(c, errUpdate)
		return
	}

	if affected > 0 {
		after, _ := h.router.GetRow(ctx, tc.connection, tc.table, tc.columns, pkColumn, pkValue)
		h.auditor.Log(ctx, audit.Entry{
			UserID:    tc.operatorID,
			Username:  tc.username,
			Operation: models.AuditOpSetStatus,
			Table:     tc.table,
			PKColumn:  pkColumn,
			PKValue:   pkValue,
			OldValues: snapshot(before, values),
			NewValues: snapshot(after, values),
			Meta:      requestMeta(c),
		})
	}
	c.JSON(http.StatusOK, gin.H{"updated": affected})
}

// coerceEditableValues converts raw string values for the editable columns
// present in the payload into typed bind values.
func coerceEditableValues(columns []models.Column, raw map[string]string) ([]models.Column, map[string]any, error) {
	var editable []models.Column
	values := make(map[string]any, len(raw))
	for _, column := range columns {
		if !column.IsEditable {
			continue
		}
		rawValue, supplied := raw[column.ColumnName]
		if !supplied {
			continue
		}
		value, errCoerce := router.CoerceWriteValue(column, rawValue)
		if errCoerce != nil {
			return nil, nil, errCoerce
		}
		editable = append(editable, column)
		values[column.ColumnName] = value
	}
	return editable, values, nil
}

// snapshot restricts a row to the columns touched by a mutation.
func snapshot(row router.Row, values map[string]any) map[string]any {
	if row == nil {
		return nil
	}
	result := make(map[string]any, len(values))
	for name := range values {
		result[name] = row[name]
	}
	return result
}

// formatColumns shapes column metadata for API responses.
func formatColumns(columns []models.Column) []gin.H {
	out := make([]gin.H, 0, len(columns))
	for _, column := range columns {
		out = append(out, gin.H{
			"name":        column.ColumnName,
			"label":       column.Label(),
			"data_type":   column.DataType,
			"is_primary":  column.IsPrimary,
			"is_editable": column.IsEditable,
			"is_filter":   column.IsFilter,
			"width":       column.Width,
			"format":      column.Format,
		})
	}
	return out
}

// respondRouterError maps router failures onto HTTP responses. Raw database
// error text is logged but only the conflict message reaches the client.
func respondRouterError(c *gin.Context, err error) {
	var conflict *router.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Message})
	case errors.Is(err, router.ErrNoPrimaryKey), errors.Is(err, router.ErrNoColumns):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("target database operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database operation failed"})
	}
}
