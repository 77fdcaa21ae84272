package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artmarket/internal/domain"
	"artmarket/internal/routing"
	"artmarket/internal/service"
)

// RequestRecorder recibe una observación por request atendido.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
}

// RouterDeps agrupa lo que NewRouter necesita para montar las rutas.
type RouterDeps struct {
	JWT      *service.JWTService
	Auth     *AuthHandler
	Profiles *ProfileHandler
	Uploads  *UploadHandler
	Pages    *PageHandler
	Guard    *PageGuard
	Health   *HealthHandler
	Metrics  http.Handler
	Recorder RequestRecorder
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), requestMetricsMiddleware(deps.Recorder), jsonContentTypeMiddleware())

	if deps.Health != nil {
		r.GET("/health", deps.Health.Check)
	}
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	requireAuth := JWTAuthMiddleware(deps.JWT)

	auth := r.Group("/auth")
	auth.POST("/signup", deps.Auth.SignUp)
	auth.POST("/signin", deps.Auth.SignIn)
	auth.POST("/refresh", deps.Auth.Refresh)
	auth.POST("/signout", deps.Auth.SignOut)
	auth.GET("/session", requireAuth, deps.Auth.Session)

	profiles := r.Group("/profiles", requireAuth)
	profiles.GET("/:id", deps.Profiles.Get)
	profiles.PUT("/:id", deps.Profiles.Put)
	profiles.PATCH("/:id", deps.Profiles.Patch)

	if deps.Uploads != nil {
		r.GET("/storage/:bucket/url", deps.Uploads.URL)
		storage := r.Group("/storage", requireAuth)
		storage.POST("/:bucket", deps.Uploads.Upload)
		storage.DELETE("/:bucket", deps.Uploads.Delete)
	}

	registerPages(r, deps)
	return r
}

// registerPages monta las páginas públicas y las protegidas por rol.
func registerPages(r *gin.Engine, deps RouterDeps) {
	optionalAuth := OptionalAuthMiddleware(deps.JWT)
	pages := r.Group("", optionalAuth)

	for _, path := range []string{routing.LandingPath, routing.ExplorePath, routing.SignupPath} {
		pages.GET(path, deps.Guard.RequireRoles(anyRole...), deps.Pages.Render)
	}
	pages.GET(routing.LoginPath, deps.Guard.RequireRoles(anyRole...), deps.Pages.Login)

	pages.GET(routing.HomePath, deps.Guard.RequireRoles(anyRole...), deps.Pages.Render)
	pages.GET(routing.DashboardPath, deps.Guard.RequireRoles(), deps.Pages.Render)

	dashboards := map[string]domain.Role{
		"admin":   domain.RoleAdmin,
		"artist":  domain.RoleArtist,
		"gallery": domain.RoleGallery,
	}
	for name, role := range dashboards {
		guard := deps.Guard.RequireRoles(role)
		base := routing.DashboardPath + "/" + name
		pages.GET(base, guard, deps.Pages.Render)
		pages.GET(base+"/*rest", guard, deps.Pages.Render)
	}

	// Dashboards sin ruta propia pasan por el guard sin roles: redirigen a la raíz del usuario.
	r.NoRoute(optionalAuth, dashboardOnly, deps.Guard.RequireRoles(), deps.Pages.Render)
}

func dashboardOnly(c *gin.Context) {
	if !routing.IsDashboardPath(c.Request.URL.Path) {
		writeError(c, http.StatusNotFound, "not found")
		return
	}
	c.Next()
}

// anyRole admite cualquier perfil existente, incluso con rol desconocido.
var anyRole = []domain.Role{
	domain.RoleUnknown,
	domain.RoleAdmin,
	domain.RoleArtist,
	domain.RoleGallery,
	domain.RoleBuyer,
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func requestMetricsMiddleware(recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		recorder.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
