// Package admin wires the administration API: operator auth, the generic
// data endpoints and the schema-management endpoints.
package admin

import (
	"github.com/cmstools-dev/cmstools/internal/audit"
	"github.com/cmstools-dev/cmstools/internal/config"
	"github.com/cmstools-dev/cmstools/internal/http/api/admin/handlers"
	"github.com/cmstools-dev/cmstools/internal/lookup"
	"github.com/cmstools-dev/cmstools/internal/metadata"
	"github.com/cmstools-dev/cmstools/internal/permissions"
	"github.com/cmstools-dev/cmstools/internal/router"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers every administration endpoint on the engine.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, rt *router.Router, lookups *lookup.Service) {
	if r == nil || db == nil {
		return
	}

	store := metadata.NewStore(db)
	resolver := permissions.NewResolver(db)
	auditor := audit.NewLogger(db, store)

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/v0/admin")
	api.Use(requestIDMiddleware())

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	api.POST("/auth/login", authHandler.Login)

	versionHandler := handlers.NewVersionHandler()
	api.GET("/version", versionHandler.GetVersion)

	authed := api.Group("")
	authed.Use(operatorAuthMiddleware(db, jwtCfg))

	dataHandler := handlers.NewDataHandler(store, resolver, rt, lookups, auditor)
	authed.GET("/data/:tableId", dataHandler.Grid)
	authed.POST("/data/:tableId", dataHandler.Create)
	authed.GET("/data/:tableId/:id", dataHandler.GetRow)
	authed.PUT("/data/:tableId/:id", dataHandler.Update)
	authed.POST("/data/:tableId/:id/status", dataHandler.SetStatus)

	// Schema management changes the permission and metadata model itself, so
	// it stays behind the super-admin gate.
	schema := authed.Group("")
	schema.Use(superAdminMiddleware())

	connectionHandler := handlers.NewConnectionHandler(db, rt.Pool())
	schema.POST("/connections", connectionHandler.Create)
	schema.GET("/connections", connectionHandler.List)
	schema.GET("/connections/:id", connectionHandler.Get)
	schema.PUT("/connections/:id", connectionHandler.Update)
	schema.DELETE("/connections/:id", connectionHandler.Delete)

	tableHandler := handlers.NewTableHandler(db)
	schema.POST("/tables", tableHandler.Create)
	schema.GET("/tables", tableHandler.List)
	schema.GET("/tables/:id", tableHandler.Get)
	schema.PUT("/tables/:id", tableHandler.Update)
	schema.DELETE("/tables/:id", tableHandler.Delete)

	columnHandler := handlers.NewColumnHandler(db)
	schema.POST("/columns", columnHandler.Create)
	schema.GET("/columns", columnHandler.List)
	schema.PUT("/columns/:id", columnHandler.Update)
	schema.DELETE("/columns/:id", columnHandler.Delete)

	roleHandler := handlers.NewRoleHandler(db)
	schema.POST("/roles", roleHandler.Create)
	schema.GET("/roles", roleHandler.List)
	schema.PUT("/roles/:id", roleHandler.Update)
	schema.DELETE("/roles/:id", roleHandler.Delete)
	schema.GET("/roles/:id/members", roleHandler.Members)
	schema.POST("/roles/:id/members", roleHandler.AddMember)
	schema.DELETE("/roles/:id/members/:userId", roleHandler.RemoveMember)

	permissionHandler := handlers.NewTablePermissionHandler(db)
	schema.PUT("/table-permissions", permissionHandler.Upsert)
	schema.GET("/table-permissions", permissionHandler.List)
	schema.DELETE("/table-permissions/:tableId/:roleId", permissionHandler.Delete)

	operatorHandler := handlers.NewOperatorHandler(db)
	schema.POST("/operators", operatorHandler.Create)
	schema.GET("/operators", operatorHandler.List)
	schema.PUT("/operators/:id", operatorHandler.Update)
	schema.DELETE("/operators/:id", operatorHandler.Delete)

	auditHandler := handlers.NewAuditLogHandler(db)
	schema.GET("/audit-log", auditHandler.List)
}
