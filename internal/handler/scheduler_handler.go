package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartScheduler starts the periodic portal sync.
func (h *Handlers) StartScheduler(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "scheduler is not enabled",
			Message: "Enable the scheduler in the service configuration",
			Code:    http.StatusNotFound,
		})
		return
	}
	if err := h.scheduler.Start(); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   err.Error(),
			Message: "Failed to start scheduler",
			Code:    http.StatusConflict,
		})
		return
	}
	c.Status(http.StatusOK)
}

// StopScheduler stops the periodic portal sync.
func (h *Handlers) StopScheduler(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "scheduler is not enabled",
			Message: "Enable the scheduler in the service configuration",
			Code:    http.StatusNotFound,
		})
		return
	}
	if err := h.scheduler.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   err.Error(),
			Message: "Failed to stop scheduler",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.Status(http.StatusOK)
}

// RunSchedulerOnce triggers a single sync cycle.
func (h *Handlers) RunSchedulerOnce(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "scheduler is not enabled",
			Message: "Enable the scheduler in the service configuration",
			Code:    http.StatusNotFound,
		})
		return
	}
	h.scheduler.RunOnce()
	c.Status(http.StatusOK)
}

// GetSchedulerStatus returns the scheduler state and run times.
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusOK, gin.H{"status": "disabled"})
		return
	}
	status := "stopped"
	if h.scheduler.IsRunning() {
		status = "running"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"next_run": h.scheduler.GetNextRun(),
		"last_run": h.scheduler.GetLastRun(),
	})
}
