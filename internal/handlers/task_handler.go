package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"homebase/internal/models"
	"homebase/internal/services"
)

type TaskHandler struct {
	service services.TaskService
}

func NewTaskHandler(service services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

func humanActor(c *gin.Context) models.Actor {
	return models.Actor{ID: getUserID(c), Type: models.ActorHuman}
}

func parseDateField(c *gin.Context, field, value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			u := t.UTC()
			return &u, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + field + " (YYYY-MM-DD or RFC3339)"})
	return nil, false
}

// POST /parties/:party_id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	partyID, userID := getPartyID(c), getUserID(c)

	var req struct {
		Title            string   `json:"title" binding:"required"`
		Description      string   `json:"description"`
		Priority         string   `json:"priority"` // low|medium|high
		AssignedTo       *int64   `json:"assigned_to"`
		DueDate          string   `json:"due_date"`
		StartDate        string   `json:"start_date"`
		EstimatedMinutes *int     `json:"estimated_minutes"`
		ProjectID        *int64   `json:"project_id"`
		ParentTaskID     *int64   `json:"parent_task_id"`
		Labels           []string `json:"labels"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[task][create][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[task][create] party=%d user=%d title=%q project=%v parent=%v",
		partyID, userID, req.Title, req.ProjectID, req.ParentTaskID)

	due, ok := parseDateField(c, "due_date", req.DueDate)
	if !ok {
		return
	}
	start, ok := parseDateField(c, "start_date", req.StartDate)
	if !ok {
		return
	}

	task := &models.Task{
		PartyID:          partyID,
		ProjectID:        req.ProjectID,
		ParentTaskID:     req.ParentTaskID,
		CreatedBy:        userID,
		AssignedTo:       req.AssignedTo,
		Title:            req.Title,
		Description:      req.Description,
		Priority:         models.TaskPriority(req.Priority),
		DueDate:          due,
		StartDate:        start,
		EstimatedMinutes: req.EstimatedMinutes,
	}

	created, err := h.service.Create(c.Request.Context(), task, req.Labels, humanActor(c))
	if err != nil {
		log.Printf("[task][create][err] party=%d: %v", partyID, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[task][create][ok] party=%d id=%d code=%s", partyID, created.ID, created.DisplayCode())
	c.JSON(http.StatusCreated, created)
}

// GET /parties/:party_id/tasks
func (h *TaskHandler) List(c *gin.Context) {
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
	if v := c.Query("assigned_to"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assigned_to"})
			return
		}
		filter.AssignedTo = &id
	}
	if v := c.Query("project_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
			return
		}
		filter.ProjectID = &id
	}
	if v := c.Query("parent_task_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent_task_id"})
			return
		}
		filter.ParentTaskID = &id
	}
	if v := c.Query("label"); v != "" {
		filter.LabelName = &v
	}
	filter.Sort = models.TaskSort(c.Query("sort"))

	tasks, err := h.service.List(c.Request.Context(), partyID, filter)
	if err != nil {
		log.Printf("[task][list][err] party=%d: %v", partyID, err)
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GET /parties/:party_id/tasks/:id
// The id segment also accepts task codes like T-3 or HB-3.
func (h *TaskHandler) GetByID(c *gin.Context) {
	partyID := getPartyID(c)
	ref := c.Param("id")

	task, err := h.resolve(c, partyID, ref)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// PATCH /parties/:party_id/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	partyID := getPartyID(c)
	task, err := h.resolve(c, partyID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	var req struct {
		Title            *string `json:"title"`
		Description      *string `json:"description"`
		Priority         *string `json:"priority"`
		AssignedTo       *int64  `json:"assigned_to"`
		ClearAssignee    bool    `json:"clear_assignee"`
		DueDate          string  `json:"due_date"`
		ClearDueDate     bool    `json:"clear_due_date"`
		StartDate        string  `json:"start_date"`
		EstimatedMinutes *int    `json:"estimated_minutes"`
		ProjectID        *int64  `json:"project_id"`
		ClearProject     bool    `json:"clear_project"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := services.TaskUpdate{
		Title:            req.Title,
		Description:      req.Description,
		AssignedTo:       req.AssignedTo,
		ClearAssignee:    req.ClearAssignee,
		ClearDueDate:     req.ClearDueDate,
		EstimatedMinutes: req.EstimatedMinutes,
		ProjectID:        req.ProjectID,
		ClearProject:     req.ClearProject,
	}
	if req.Priority != nil {
		p := models.TaskPriority(*req.Priority)
		update.Priority = &p
	}
	due, ok := parseDateField(c, "due_date", req.DueDate)
	if !ok {
		return
	}
	update.DueDate = due
	start, ok := parseDateField(c, "start_date", req.StartDate)
	if !ok {
		return
	}
	update.StartDate = start

	updated, err := h.service.Update(c.Request.Context(), partyID, task.ID, update, humanActor(c))
	if err != nil {
		log.Printf("[task][update][err] party=%d id=%d: %v", partyID, task.ID, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[task][update][ok] party=%d id=%d", partyID, updated.ID)
	c.JSON(http.StatusOK, updated)
}

// POST /parties/:party_id/tasks/:id/status
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	partyID := getPartyID(c)
	task, err := h.resolve(c, partyID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.service.ChangeStatus(c.Request.Context(), partyID, task.ID, models.TaskStatus(req.Status), humanActor(c))
	if err != nil {
		log.Printf("[task][status][err] party=%d id=%d to=%s: %v", partyID, task.ID, req.Status, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[task][status][ok] party=%d id=%d to=%s", partyID, updated.ID, updated.Status)
	c.JSON(http.StatusOK, updated)
}

// DELETE /parties/:party_id/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	partyID := getPartyID(c)
	task, err := h.resolve(c, partyID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), partyID, task.ID); err != nil {
		log.Printf("[task][delete][err] party=%d id=%d: %v", partyID, task.ID, err)
		writeServiceError(c, err)
		return
	}
	log.Printf("[task][delete][ok] party=%d id=%d", partyID, task.ID)
	c.Status(http.StatusNoContent)
}

// POST /parties/:party_id/tasks/:id/comments
func (h *TaskHandler) AddComment(c *gin.Context) {
	partyID := getPartyID(c)
	task, err := h.resolve(c, partyID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.service.AddComment(c.Request.Context(), partyID, task.ID, req.Content, humanActor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// GET /parties/:party_id/tasks/:id/comments
func (h *TaskHandler) ListComments(c *gin.Context) {
	partyID := getPartyID(c)
	task, err := h.resolve(c, partyID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	comments, err := h.service.ListComments(c.Request.Context(), partyID, task.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// POST /parties/:party_id/tasks/:id/labels
func (h *TaskHandler) AttachLabel(c *gin.Context) {
	partyID := getPartyID(c)
	task, err := h.resolve(c, partyID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	label, err := h.service.AttachLabel(c.Request.Context(), partyID, task.ID, req.Name, humanActor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, label)
}

// GET /parties/:party_id/labels
func (h *TaskHandler) ListLabels(c *gin.Context) {
	partyID := getPartyID(c)
	labels, err := h.service.ListLabels(c.Request.Context(), partyID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, labels)
}

// GET /parties/:party_id/tasks/:id/activity
func (h *TaskHandler) ListActivity(c *gin.Context) {
	partyID := getPartyID(c)
	task, err := h.resolve(c, partyID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	events, err := h.service.ListActivity(c.Request.Context(), partyID, task.ID, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// resolve accepts either a numeric id or a display code like HB-3.
func (h *TaskHandler) resolve(c *gin.Context, partyID int64, ref string) (*models.Task, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		return h.service.GetByID(c.Request.Context(), partyID, id)
	}
	return h.service.ResolveCode(c.Request.Context(), partyID, ref)
}
