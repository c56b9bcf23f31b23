package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"webcalib-bridge/internal/importer"
	"webcalib-bridge/internal/scheduler"
	"webcalib-bridge/internal/store"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	db        *gorm.DB
	store     *store.Store
	importer  *importer.Importer
	scheduler *scheduler.Scheduler
}

// New creates the HTTP handlers. scheduler may be nil when periodic sync is
// disabled.
func New(db *gorm.DB, st *store.Store, imp *importer.Importer, sched *scheduler.Scheduler) *Handlers {
	return &Handlers{db: db, store: st, importer: imp, scheduler: sched}
}

// SetupRoutes sets up all HTTP routes.
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/import", h.Import)
		api.GET("/mails", h.GetMails)
		api.GET("/stats", h.GetStats)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunSchedulerOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests.
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Details:   make(map[string]string),
	}

	if err := h.db.Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.scheduler != nil && h.scheduler.IsRunning() {
		response.Details["scheduler"] = "running"
		response.Details["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
		response.Details["last_run"] = h.scheduler.GetLastRun().Format(time.RFC3339)
	} else {
		response.Details["scheduler"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}
