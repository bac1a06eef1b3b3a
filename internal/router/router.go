package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/hcmut-dev/rollcall-backend/internal/handler"
	"github.com/hcmut-dev/rollcall-backend/internal/middleware"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/response"
	"github.com/hcmut-dev/rollcall-backend/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Attendance *handler.AttendanceHandler
	CheckIn    *handler.CheckInHandler
	Class      *handler.ClassHandler
	User       *handler.UserHandler
	Reconcile  *handler.ReconcileHandler
	WS         *handler.WSHandler
	System     *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check and Prometheus scrape endpoint.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Rate limiter for check-in: spamming attempts from one device is the
	// main abuse vector.
	checkInLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.GET("/me", middleware.RequireAuth(authService), handlers.Auth.Me)
		auth.POST("/logout", middleware.RequireAuth(authService), handlers.Auth.Logout)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireAuth(authService),
		middleware.RequireRole(model.RoleStudent),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.POST("/check-in", checkInLimiter.Middleware(), handlers.CheckIn.CheckIn)
		studentAPI.GET("/classes", handlers.CheckIn.ListMyClasses)
		studentAPI.GET("/notifications", handlers.CheckIn.ListNotifications)
	}

	// ─── 3. Lecturer Group (JWT + Role) ────────────────────────────────
	lecturerAPI := router.Group("/api/v1/lecturer")
	lecturerAPI.Use(
		middleware.RequireAuth(authService),
		middleware.RequireRole(model.RoleLecturer),
	)
	{
		lecturerAPI.GET("/classes", handlers.Attendance.ListMyClasses)
		lecturerAPI.GET("/classes/:id/roster", handlers.Attendance.GetRoster)
		lecturerAPI.PUT("/classes/:id/location", handlers.Attendance.SetClassLocation)

		lecturerAPI.POST("/sessions", handlers.Attendance.CreateSession)
		lecturerAPI.GET("/sessions", handlers.Attendance.ListSessions)
		lecturerAPI.GET("/sessions/:id", handlers.Attendance.GetSession)
		lecturerAPI.POST("/sessions/:id/refresh", handlers.Attendance.RefreshSession)
		lecturerAPI.POST("/sessions/:id/terminate", handlers.Attendance.TerminateSession)
		lecturerAPI.PUT("/sessions/:id/attendance", handlers.Attendance.ManualOverride)
	}

	// ─── 4. WebSocket Group (Lecturer WS Auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(authService),
		middleware.RequireRole(model.RoleLecturer),
	)
	{
		ws.GET("/lecturer/sessions/:id/stream", handlers.WS.SessionMonitorStream)
	}

	// ─── 5. Admin Group (JWT + Role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireAuth(authService),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		// Class management
		adminAPI.GET("/classes", handlers.Class.ListClasses)
		adminAPI.POST("/classes", handlers.Class.CreateClass)
		adminAPI.GET("/classes/:id", handlers.Class.GetClass)
		adminAPI.PUT("/classes/:id", handlers.Class.UpdateClass)
		adminAPI.DELETE("/classes/:id", handlers.Class.DeleteClass)

		// Roster management
		adminAPI.GET("/classes/:id/roster", handlers.Class.GetRoster)
		adminAPI.POST("/classes/:id/students", handlers.Class.AddStudent)
		adminAPI.DELETE("/classes/:id/students/:student_id", handlers.Class.RemoveStudent)

		// Account management
		adminAPI.GET("/users", handlers.User.ListUsers)
		adminAPI.POST("/users", handlers.User.CreateUser)
		adminAPI.PUT("/users/:id", handlers.User.UpdateUser)
		adminAPI.DELETE("/users/:id", handlers.User.DeleteUser)
		adminAPI.POST("/users/:id/reset-session", handlers.User.ResetUserSession)

		// On-demand reconciliation
		adminAPI.POST("/reconcile", handlers.Reconcile.Run)

		// System Monitoring
		adminAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
