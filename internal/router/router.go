package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/config"
	"github.com/stemsi/hris-authz/internal/handler"
	"github.com/stemsi/hris-authz/internal/logger"
	"github.com/stemsi/hris-authz/internal/metrics"
	"github.com/stemsi/hris-authz/internal/middleware"
	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health     *handler.HealthHandler
	Me         *handler.MeHandler
	Permission *handler.PermissionHandler
	Role       *handler.RoleHandler
	UserRole   *handler.UserRoleHandler
	Menu       *handler.MenuHandler
	Events     *handler.EventsHandler
}

// Deps carries the cross-cutting pieces routes are wired with.
type Deps struct {
	Tokens  middleware.TokenValidator
	Guard   *middleware.Guard
	Limiter *middleware.RateLimiter
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, deps Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the access log and every envelope share it.
	router.Use(response.RequestIDMiddleware())
	router.Use(logger.GinMiddleware(deps.Log))
	router.Use(deps.Metrics.GinMiddleware())

	// ─── 0. Operational (No Auth) ──────────────────────────────────────
	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	// ─── 1. WebSocket Group (Token Query Auth) ─────────────────────────
	// Registered before Brotli: an upgraded connection must not be buffered.
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(deps.Tokens), deps.Guard.LoadPermissions())
	{
		ws.GET("/authz/events", handlers.Events.Stream)
	}

	api := router.Group("/api/v1")
	api.Use(
		middleware.Brotli(),
		middleware.RequireJWT(deps.Tokens),
		deps.Guard.LoadPermissions(),
		middleware.NoStore(),
	)

	// ─── 2. Self Group (Any Authenticated Principal) ───────────────────
	me := api.Group("/me")
	{
		me.GET("/permissions", handlers.Me.Permissions)
		me.GET("/menu", handlers.Me.Menu)
		if deps.Limiter != nil {
			me.GET("/authorize", deps.Limiter.Middleware(), handlers.Me.Authorize)
		} else {
			me.GET("/authorize", handlers.Me.Authorize)
		}
	}

	// ─── 3. Admin Group (RBAC) ─────────────────────────────────────────
	admin := api.Group("/admin")
	{
		// Permission catalog
		admin.GET("/permissions",
			deps.Guard.RequirePermission(model.PermissionPermissionsView),
			handlers.Permission.ListPermissions,
		)

		// Roles
		admin.GET("/roles",
			deps.Guard.RequirePermission(model.PermissionRolesView),
			handlers.Role.ListRoles,
		)
		admin.GET("/roles/drift",
			deps.Guard.RequirePermission(model.PermissionRolesView),
			handlers.Role.Drift,
		)
		admin.GET("/roles/:id",
			deps.Guard.RequirePermission(model.PermissionRolesView),
			handlers.Role.GetRole,
		)
		admin.POST("/roles",
			deps.Guard.RequirePermission(model.PermissionRolesManage),
			handlers.Role.CreateRole,
		)
		admin.PUT("/roles/:id",
			deps.Guard.RequirePermission(model.PermissionRolesManage),
			handlers.Role.UpdateRole,
		)
		admin.PUT("/roles/:id/permissions",
			deps.Guard.RequirePermission(model.PermissionRolesManage),
			handlers.Role.SetBindings,
		)
		admin.DELETE("/roles/:id",
			deps.Guard.RequirePermission(model.PermissionRolesManage),
			handlers.Role.DeleteRole,
		)

		// Users
		admin.GET("/users/:id",
			deps.Guard.RequirePermission(model.PermissionUsersView),
			handlers.UserRole.GetUser,
		)
		admin.GET("/users/:id/permissions",
			deps.Guard.RequireAnyPermission(model.PermissionRolesView, model.PermissionAuditView),
			handlers.UserRole.GetUserPermissions,
		)
		admin.PUT("/users/:id/role",
			deps.Guard.RequirePermission(model.PermissionUsersEdit),
			handlers.UserRole.AssignRole,
		)

		// Menu
		admin.GET("/menu",
			deps.Guard.RequirePermission(model.PermissionMenusManage),
			handlers.Menu.Tree,
		)
		admin.GET("/menu/preview",
			deps.Guard.RequirePermission(model.PermissionMenusManage),
			handlers.Menu.Preview,
		)
	}

	return router
}
