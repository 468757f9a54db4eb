package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/roadready/driveschool-api/api/swagger"
	"github.com/roadready/driveschool-api/internal/middleware"
	"github.com/roadready/driveschool-api/internal/models"
	"github.com/roadready/driveschool-api/pkg/config"
	"github.com/roadready/driveschool-api/pkg/logger"
	"github.com/roadready/driveschool-api/pkg/middleware/cors"
	"github.com/roadready/driveschool-api/pkg/middleware/requestid"
)

// Handlers bundles the HTTP handlers mounted by the router.
type Handlers struct {
	Bookings      *BookingHandler
	Vehicles      *VehicleHandler
	Timetable     *TimetableHandler
	Progress      *ProgressHandler
	Notifications *NotificationHandler
}

// NewRouter assembles the gin engine: ambient middleware, health and
// metrics endpoints, swagger, then the versioned API under cfg.APIPrefix.
func NewRouter(cfg *config.Config, db *sqlx.DB, registry *prometheus.Registry, handlers Handlers, log *zap.Logger) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(cors.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.NewHTTPMetrics(registry).Handler())

	r.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Auth(cfg.JWT.Secret))

	lessons := api.Group("/lessons")
	{
		lessons.POST("",
			middleware.RequireRole(models.RoleStudent, models.RoleAdmin),
			handlers.Bookings.Book)
		lessons.GET("", handlers.Bookings.List)
		lessons.GET("/suggest-times", handlers.Bookings.SuggestTimes)
		lessons.POST("/suggest-vehicles", handlers.Bookings.SuggestVehicles)
		lessons.GET("/:id", handlers.Bookings.Get)
		lessons.PUT("/:id", handlers.Bookings.Reschedule)
		lessons.DELETE("/:id", handlers.Bookings.Cancel)
		lessons.GET("/:id/suggest-comment",
			middleware.RequireRole(models.RoleTutor, models.RoleAdmin),
			handlers.Progress.SuggestComment)
	}

	vehicles := api.Group("/vehicles")
	{
		vehicles.GET("", handlers.Vehicles.List)
		vehicles.GET("/utilization",
			middleware.RequireRole(models.RoleAdmin),
			handlers.Vehicles.Utilization)
		vehicles.GET("/:id", handlers.Vehicles.Get)

		admin := vehicles.Group("", middleware.RequireRole(models.RoleAdmin))
		admin.POST("", handlers.Vehicles.Create)
		admin.PUT("/:id", handlers.Vehicles.Update)
		admin.PATCH("/:id/availability", handlers.Vehicles.SetAvailability)
		admin.DELETE("/:id", handlers.Vehicles.Delete)
	}

	api.POST("/timetable/generate",
		middleware.RequireRole(models.RoleAdmin),
		handlers.Timetable.Generate)

	progress := api.Group("/progress")
	{
		progress.POST("",
			middleware.RequireRole(models.RoleTutor, models.RoleAdmin),
			handlers.Progress.AddRecord)
	}

	students := api.Group("/students")
	{
		students.GET("/:id/progress", handlers.Progress.Records)
		students.GET("/:id/progress/score", handlers.Progress.Score)
		students.GET("/:id/progress/report", handlers.Progress.Report)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", handlers.Notifications.List)
		notifications.POST("/:id/read", handlers.Notifications.MarkRead)
	}

	return r
}
