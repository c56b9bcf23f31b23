package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"webcalib-bridge/internal/importer"
)

// Import handles POST /api/v1/import.
func (h *Handlers) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ImportResponse{
			Success: false,
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = importer.ModeDirect
	}
	logrus.Infof("Import request received (mode: %s)", mode)

	switch mode {
	case importer.ModeScrape:
		if req.ScraperConfig == nil {
			c.JSON(http.StatusBadRequest, ImportResponse{
				Success: false,
				Message: "Missing scraper config",
				Error:   "scrape mode requires scraperConfig",
			})
			return
		}
		if result := req.ScraperConfig.Validate(); !result.Valid {
			c.JSON(http.StatusBadRequest, ImportResponse{
				Success: false,
				Message: "Invalid scraper config",
				Error:   strings.Join(result.Errors, ", "),
				Errors:  result.Errors,
			})
			return
		}

	case importer.ModeDirect, importer.ModeSync:
		if len(req.Threads) == 0 && len(req.Messages) == 0 {
			c.JSON(http.StatusBadRequest, ImportResponse{
				Success: false,
				Message: "No data provided",
				Error:   "threads or messages are required",
			})
			return
		}

	default:
		c.JSON(http.StatusBadRequest, ImportResponse{
			Success: false,
			Message: "Invalid mode",
			Error:   fmt.Sprintf("unsupported mode: %q", mode),
		})
		return
	}

	report, err := h.importer.Run(c.Request.Context(), importer.Request{
		Mode:     mode,
		Threads:  req.Threads,
		Messages: req.Messages,
		Scraper:  req.ScraperConfig,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ImportResponse{
			Success: false,
			Message: "Import failed",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ImportResponse{
		Success: true,
		Message: fmt.Sprintf("Import completed: %d threads, %d messages", report.ImportedThreads, report.ImportedMessages),
		Data: &ImportData{
			ImportedThreads:  report.ImportedThreads,
			ImportedMessages: report.ImportedMessages,
			DuplicateThreads: report.DuplicateThreads,
			Errors:           report.Errors,
			ProcessedAt:      report.ProcessedAt,
		},
	})
}
