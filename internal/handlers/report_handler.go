package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"homebase/internal/models"
	"homebase/internal/services"
)

type ReportHandler struct {
	service *services.ReportService
}

func NewReportHandler(service *services.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// GET /parties/:party_id/reports/tasks.pdf
func (h *ReportHandler) TaskReport(c *gin.Context) {
	partyID := getPartyID(c)

	var filter models.TaskFilter
	if v := c.Query("status"); v != "" {
		s := models.TaskStatus(v)
		if !models.IsValidTaskStatus(s) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		filter.Status = &s
	}
	filter.Sort = models.TaskSort(c.Query("sort"))

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="tasks.pdf"`)
	if err := h.service.WriteTaskReport(c.Request.Context(), c.Writer, partyID, filter); err != nil {
		log.Printf("[report][tasks][err] party=%d: %v", partyID, err)
		// headers may already be out; nothing sensible left to send
		return
	}
	log.Printf("[report][tasks][ok] party=%d", partyID)
}
