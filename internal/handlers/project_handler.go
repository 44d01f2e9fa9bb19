package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"homebase/internal/models"
	"homebase/internal/services"
)

type ProjectHandler struct {
	service services.ProjectService
}

func NewProjectHandler(service services.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// POST /parties/:party_id/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	partyID, userID := getPartyID(c), getUserID(c)

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Color       string `json:"color"`
		Icon        string `json:"icon"`
		Code        string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.service.Create(c.Request.Context(), &models.Project{
		PartyID:     partyID,
		OwnerID:     &userID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		Code:        req.Code,
	})
	if err != nil {
		log.Printf("[project][create][err] party=%d: %v", partyID, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[project][create][ok] party=%d id=%d code=%s", partyID, project.ID, project.Code)
	c.JSON(http.StatusCreated, project)
}

// GET /parties/:party_id/projects
func (h *ProjectHandler) List(c *gin.Context) {
	partyID := getPartyID(c)

	var status *models.ProjectStatus
	if v := c.Query("status"); v != "" {
		s := models.ProjectStatus(v)
		if s != models.ProjectActive && s != models.ProjectArchived {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		status = &s
	}

	projects, err := h.service.List(c.Request.Context(), partyID, status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// GET /parties/:party_id/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	partyID := getPartyID(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	project, err := h.service.GetByID(c.Request.Context(), partyID, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// PATCH /parties/:party_id/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	partyID := getPartyID(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
		Icon        *string `json:"icon"`
		Status      *string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := services.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
	}
	if req.Status != nil {
		s := models.ProjectStatus(*req.Status)
		update.Status = &s
	}

	project, err := h.service.Update(c.Request.Context(), partyID, id, update)
	if err != nil {
		log.Printf("[project][update][err] party=%d id=%d: %v", partyID, id, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[project][update][ok] party=%d id=%d", partyID, project.ID)
	c.JSON(http.StatusOK, project)
}

// DELETE /parties/:party_id/projects/:id
// Tasks in the project survive with project_id cleared.
func (h *ProjectHandler) Delete(c *gin.Context) {
	partyID := getPartyID(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), partyID, id); err != nil {
		log.Printf("[project][delete][err] party=%d id=%d: %v", partyID, id, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[project][delete][ok] party=%d id=%d", partyID, id)
	c.Status(http.StatusNoContent)
}
